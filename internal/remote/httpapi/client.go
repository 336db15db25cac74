// Package httpapi implements the remote service's HTTP surface: fetching a
// mod's catalog entry and streaming down its payload and logo. It is the
// Go translation of ApiClient in the original spelunkyfyi::http module,
// built the way the teacher builds its HTTP clients (internal/core/downloader.go,
// internal/source/curseforge/client.go): net/http directly, no client
// framework, retries and backoff hand-rolled around a single-attempt helper.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"mlcore/internal/domain"
)

const (
	manifestPathPrefix = "/api/mods/"
	defaultMaxAttempts  = 3
	defaultInitialDelay = time.Second
	defaultBackoffMul   = 2
)

// Client is a remote-service API client scoped to a single service root and
// auth token.
type Client struct {
	base       *url.URL
	authHeader string
	httpClient *http.Client
}

// New creates a Client. serviceRoot must be an absolute URL (e.g.
// "https://mods.example.com"); authToken is sent as "Token <authToken>" on
// every request.
func New(serviceRoot, authToken string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(serviceRoot)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("%w: invalid service root %q", domain.ErrInvalidURI, serviceRoot)
	}
	if authToken == "" {
		return nil, fmt.Errorf("%w: empty auth token", domain.ErrInvalidToken)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:       base,
		authHeader: "Token " + authToken,
		httpClient: httpClient,
	}, nil
}

// checkedURI verifies that raw is a URL belonging to the same
// scheme/authority/path-prefix as the client's service root, so a
// manifest's download_url can never redirect requests (and the auth
// header) to an unrelated host.
func (c *Client) checkedURI(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURI, err)
	}
	if u.Scheme != c.base.Scheme {
		return nil, fmt.Errorf("%w: expected scheme %q, got %q", domain.ErrInvalidURI, c.base.Scheme, u.Scheme)
	}
	if u.Host != c.base.Host {
		return nil, fmt.Errorf("%w: expected host %q, got %q", domain.ErrInvalidURI, c.base.Host, u.Host)
	}
	basePath := c.base.Path
	if basePath == "" {
		basePath = "/"
	}
	if !strings.HasPrefix(path.Clean(u.Path)+"/", strings.TrimSuffix(path.Clean(basePath), "/")+"/") {
		return nil, fmt.Errorf("%w: expected path to start with %q, got %q", domain.ErrInvalidURI, basePath, u.Path)
	}
	return u, nil
}

func (c *Client) resolve(p string) *url.URL {
	u := *c.base
	u.Path = path.Join(c.base.Path, p)
	return &u
}

func (c *Client) newRequest(ctx context.Context, u *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	return req, nil
}

// httpStatusError carries a response status code so retry logic can decide
// whether it's worth trying again.
type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("remote service returned %d", e.code)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

func isRetryableNet(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// withRetry runs attempt up to defaultMaxAttempts times with exponential
// backoff, stopping early on a non-retryable error.
func withRetry(ctx context.Context, attempt func() error) error {
	var lastErr error
	delay := defaultInitialDelay
	for i := 1; i <= defaultMaxAttempts; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if i == defaultMaxAttempts {
			break
		}

		var statusErr *httpStatusError
		switch {
		case errors.As(err, &statusErr):
			if !isRetryableStatus(statusErr.code) {
				return err
			}
		case !isRetryableNet(err):
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= defaultBackoffMul
	}
	return lastErr
}

// GetManifest fetches the catalog entry for a remote mod by slug.
func (c *Client) GetManifest(ctx context.Context, slug string) (domain.RemoteMod, error) {
	u := c.resolve(path.Join(manifestPathPrefix, slug))

	var mod domain.RemoteMod
	err := withRetry(ctx, func() error {
		req, err := c.newRequest(ctx, u)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetching manifest for %s: %w", slug, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			return &httpStatusError{code: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(&mod); err != nil {
			return fmt.Errorf("decoding manifest for %s: %w", slug, err)
		}
		return nil
	})
	if err != nil {
		return domain.RemoteMod{}, err
	}
	return mod, nil
}

// downloadFile streams downloadURL (validated via checkedURI) to a new
// file in destDir, publishing throttled-free progress on progressCh as
// bytes arrive. It returns the path written and the response's
// Content-Type.
func (c *Client) downloadFile(ctx context.Context, downloadURL, destDir, destName string, expectedSize int64, progressCh chan<- domain.DownloadProgress) (path string, contentType string, err error) {
	u, err := c.checkedURI(downloadURL)
	if err != nil {
		return "", "", err
	}

	destPath := destDir + string(os.PathSeparator) + destName

	err = withRetry(ctx, func() error {
		req, err := c.newRequest(ctx, u)
		if err != nil {
			return err
		}
		sendProgress(progressCh, domain.StartedProgress())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", downloadURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			return &httpStatusError{code: resp.StatusCode}
		}
		contentType = resp.Header.Get("Content-Type")

		total := expectedSize
		if total <= 0 {
			total = resp.ContentLength
		}

		out, err := os.Create(destPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", destPath, err)
		}
		defer out.Close()

		reader := &progressReader{reader: resp.Body, total: total, progressCh: progressCh}
		if _, err := io.Copy(out, reader); err != nil {
			return fmt.Errorf("writing %s: %w", destPath, err)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return destPath, contentType, nil
}

// progressReader emits a Receiving progress update on every Read.
type progressReader struct {
	reader     io.Reader
	total      int64
	received   int64
	progressCh chan<- domain.DownloadProgress
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.received += int64(n)
		sendProgress(r.progressCh, domain.ReceivingProgress(r.total, r.received))
	}
	return n, err
}

// sendProgress delivers the latest progress without blocking the download:
// if the channel's single slot is occupied by a stale update, it's
// discarded in favor of the fresh one.
func sendProgress(ch chan<- domain.DownloadProgress, p domain.DownloadProgress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}
