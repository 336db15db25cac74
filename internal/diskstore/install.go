package diskstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mlcore/internal/domain"
)

// makeDestDir creates the payload directory for destID, failing if it
// already exists.
func (s *Store) makeDestDir(destID string) (string, error) {
	dir := s.modDir(destID)
	exists, err := pathExists(dir)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", destID, err)
	}
	if exists {
		return "", fmt.Errorf("%w: %s", domain.ErrAlreadyExists, destID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating mod dir for %s: %v", domain.ErrDestination, destID, err)
	}
	return dir, nil
}

// installMain copies or extracts source into destDir, following the same
// classification the payload would have gotten from a local drag-and-drop
// install: a lone .lua file becomes main.lua, a .zip is extracted, anything
// else is copied under its own basename.
func (s *Store) installMain(source, destDir string) error {
	if strings.EqualFold(filepath.Ext(source), ".zip") {
		return extractZipArchive(source, destDir)
	}
	return copySingleFile(source, destDir)
}

func copySingleFile(source, destDir string) error {
	name := filepath.Base(source)
	if strings.EqualFold(filepath.Ext(source), ".lua") {
		name = "main.lua"
	}

	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", domain.ErrSource, source, err)
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(destDir, name))
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", domain.ErrDestination, name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", source, err)
	}
	return nil
}

// installLogo copies a downloaded logo into the mod's metadata directory,
// naming it mod_logo.<ext> from its content type.
func (s *Store) installLogo(logo *domain.DownloadedLogo, destID string) (string, error) {
	ext, ok := logoExtensions[logo.ContentType]
	if !ok {
		return "", fmt.Errorf("%w: unrecognized logo content type %q", domain.ErrManifestParse, logo.ContentType)
	}

	if err := os.MkdirAll(s.metadataDir(destID), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating metadata dir for %s: %v", domain.ErrDestination, destID, err)
	}

	destName := "mod_logo." + ext
	in, err := os.Open(logo.Path)
	if err != nil {
		return "", fmt.Errorf("%w: opening logo %s: %v", domain.ErrSource, logo.Path, err)
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(s.metadataDir(destID), destName))
	if err != nil {
		return "", fmt.Errorf("%w: creating logo file for %s: %v", domain.ErrDestination, destID, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copying logo for %s: %w", destID, err)
	}
	return destName, nil
}

var logoExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// InstallLocal copies source (a single file on disk) into a freshly created
// mod directory named destID. Local installs never carry a manifest.
func (s *Store) InstallLocal(source, destID string) (domain.Mod, error) {
	info, err := os.Stat(source)
	if err != nil {
		return domain.Mod{}, fmt.Errorf("%w: %s: %v", domain.ErrSource, source, err)
	}
	if info.IsDir() {
		return domain.Mod{}, fmt.Errorf("%w: %s is a directory", domain.ErrSource, source)
	}

	destDir, err := s.makeDestDir(destID)
	if err != nil {
		return domain.Mod{}, err
	}
	if err := s.installMain(source, destDir); err != nil {
		return domain.Mod{}, err
	}
	return domain.Mod{ID: destID}, nil
}

// InstallRemote installs an already-downloaded remote mod: its main payload,
// its optional logo, and the manifest describing both. It also refreshes
// the latest-file pointer for the mod's id.
func (s *Store) InstallRemote(downloaded *domain.DownloadedMod) (domain.Mod, error) {
	destID := RemoteID(downloaded.Mod)

	destDir, err := s.makeDestDir(destID)
	if err != nil {
		return domain.Mod{}, err
	}
	if err := s.installMain(downloaded.MainFile, destDir); err != nil {
		return domain.Mod{}, err
	}

	var logoName string
	if downloaded.Logo != nil {
		logoName, err = s.installLogo(downloaded.Logo, destID)
		if err != nil {
			return domain.Mod{}, err
		}
	}

	manifest := domain.Manifest{
		Name:        downloaded.Mod.Name,
		Slug:        downloaded.Mod.Slug,
		Description: downloaded.Mod.Description,
		Logo:        logoName,
		ModFile: domain.ManifestModFile{
			ID:          downloaded.ModFile.ID,
			CreatedAt:   downloaded.ModFile.CreatedAt,
			DownloadURL: downloaded.ModFile.DownloadURL,
		},
	}
	if err := s.writeManifest(destID, manifest); err != nil {
		return domain.Mod{}, err
	}
	if _, _, err := s.UpdateLatestJSON(downloaded.Mod); err != nil {
		return domain.Mod{}, err
	}

	return domain.Mod{ID: destID, Manifest: &manifest}, nil
}
