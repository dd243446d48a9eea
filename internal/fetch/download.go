// Package fetch downloads unit sources and unpacks their archives.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/qiniu/x/log"
)

// Downloader stores the resource at url in the file dest.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// HTTP downloads over HTTP(S).
type HTTP struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTP returns a downloader with a generous timeout; SDL and Blend2D
// tarballs are tens of megabytes.
func NewHTTP() *HTTP {
	return &HTTP{
		Client:    &http.Client{Timeout: 10 * time.Minute},
		UserAgent: "glimmerdeps",
	}
}

// Download writes the body to a temporary file next to dest and renames it
// into place, so an interrupted download never leaves a truncated dest.
func (h *HTTP) Download(ctx context.Context, url, dest string) error {
	log.Debugf("download %s -> %s", url, dest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return fmt.Errorf("fetch %s: short body, got %d of %d bytes", url, n, resp.ContentLength)
	}
	log.Debugf("downloaded %d bytes", n)
	return os.Rename(tmp.Name(), dest)
}
