package httpapi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mlcore/internal/domain"
)

// downloadOutcome carries one of the two concurrent downloads' results
// back to DownloadMod.
type downloadOutcome struct {
	path        string
	contentType string
	err         error
}

// DownloadMod fetches code's current manifest, then downloads its newest
// file and (if present) its logo into a fresh temp directory concurrently,
// reporting progress on mainProgress/logoProgress as it goes. The content
// type isn't filtered here - an unrecognized logo content type is a fatal
// install error surfaced later by diskstore's installLogo, not something
// silently dropped. The caller owns the returned DownloadedMod's TempDir
// and must Close it once done.
func (c *Client) DownloadMod(ctx context.Context, code string, mainProgress, logoProgress chan<- domain.DownloadProgress) (domain.DownloadedMod, error) {
	defer close(mainProgress)
	defer close(logoProgress)

	mod, err := c.GetManifest(ctx, code)
	if err != nil {
		return domain.DownloadedMod{}, err
	}
	latest, ok := mod.LatestFile()
	if !ok {
		return domain.DownloadedMod{}, fmt.Errorf("mod %s has no files", code)
	}

	tempDir, err := os.MkdirTemp("", "mlcore-download-*")
	if err != nil {
		return domain.DownloadedMod{}, fmt.Errorf("creating download dir: %w", err)
	}

	mainName := latest.FileName
	if mainName == "" {
		mainName = filepath.Base(latest.DownloadURL)
	}

	mainCh := make(chan downloadOutcome, 1)
	go func() {
		path, contentType, err := c.downloadFile(ctx, latest.DownloadURL, tempDir, mainName, 0, mainProgress)
		mainCh <- downloadOutcome{path, contentType, err}
	}()

	logoCh := make(chan downloadOutcome, 1)
	if mod.Logo != "" {
		sendProgress(logoProgress, domain.StartedProgress())
		go func() {
			path, contentType, err := c.downloadFile(ctx, mod.Logo, tempDir, "logo", 0, logoProgress)
			logoCh <- downloadOutcome{path, contentType, err}
		}()
	} else {
		sendProgress(logoProgress, domain.FinishedProgress())
		logoCh <- downloadOutcome{}
	}

	main := <-mainCh
	logoResult := <-logoCh
	if main.err != nil {
		os.RemoveAll(tempDir)
		return domain.DownloadedMod{}, fmt.Errorf("downloading main file for %s: %w", code, main.err)
	}
	if mod.Logo != "" && logoResult.err != nil {
		os.RemoveAll(tempDir)
		return domain.DownloadedMod{}, fmt.Errorf("downloading logo for %s: %w", code, logoResult.err)
	}

	var logo *domain.DownloadedLogo
	if mod.Logo != "" {
		logo = &domain.DownloadedLogo{Path: logoResult.path, ContentType: logoResult.contentType}
	}

	return domain.DownloadedMod{
		Mod:      mod,
		ModFile:  latest,
		MainFile: main.path,
		Logo:     logo,
		TempDir:  tempDir,
	}, nil
}
