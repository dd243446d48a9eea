// Package fetchtest provides an in-memory Downloader and archive builders
// for tests of packages that fetch sources.
package fetchtest

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Downloader serves canned bodies by URL. Unknown URLs fail like a 404.
type Downloader struct {
	Files map[string][]byte

	mu    sync.Mutex
	calls []string
}

func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	d.mu.Lock()
	d.calls = append(d.calls, url)
	data, ok := d.Files[url]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("fetch %s: unexpected status 404", url)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// Count returns the number of downloads attempted.
func (d *Downloader) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// URLs returns the requested URLs in order.
func (d *Downloader) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// TarGz packs files (slash path -> content) into a .tar.gz image.
func TarGz(t testing.TB, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, name := range names {
		body := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(tw, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
