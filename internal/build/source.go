package build

import (
	"context"
	"os"
	"path/filepath"

	"github.com/goplus/glimmerdeps/internal/artifact"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/fetch"
)

// complete reports whether r's source tree is extracted and whole.
func (p *Pipeline) complete(r *resolved) bool {
	if !artifact.Exists(r.srcDir) {
		return false
	}
	return r.spec.Marker == "" || artifact.Exists(filepath.Join(r.srcDir, filepath.FromSlash(r.spec.Marker)))
}

// fetch makes r's source tree present. The archive is kept in the
// dependency directory so a partial tree can be re-extracted offline.
func (p *Pipeline) fetch(ctx context.Context, r *resolved) error {
	if p.complete(r) {
		return nil
	}
	s := r.spec
	archive := filepath.Join(p.Layout.DependencyDir(), s.Archive)

	if !artifact.Exists(archive) {
		p.Console.Tracef("downloading %s", s.URL)
		if err := p.Downloader.Download(ctx, s.URL, archive); err != nil {
			return failure.New(failure.DownloadFailed, s.Name, "download", err)
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			p.Console.Warn("%s: %s missing, extracting again", s.Name, s.Marker)
		}
		if err := os.RemoveAll(r.srcDir); err != nil {
			return failure.New(failure.ExtractionFailed, s.Name, "extract", err)
		}
		if err := fetch.Extract(archive, p.Layout.DependencyDir()); err != nil {
			os.RemoveAll(r.srcDir)
			os.Remove(archive)
			return failure.New(failure.ExtractionFailed, s.Name, "extract", err).
				WithHint("the archive was removed, run again to download it")
		}
		if p.complete(r) {
			return nil
		}
	}
	return failure.Newf(failure.SourceIncomplete, s.Name, "extract",
		"%s not found in %s", s.Marker, r.srcDir).WithHint("delete " + archive + " and run again")
}
