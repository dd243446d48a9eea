package fetch

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/qiniu/x/log"
	"github.com/ulikunitz/xz"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Format is an archive container format.
type Format int

const (
	Unknown Format = iota
	Zip
	TarGz
	TarXz
)

// FormatOf guesses the format of archive from its file name.
func FormatOf(archive string) Format {
	name := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return Zip
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return TarGz
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return TarXz
	}
	return Unknown
}

// Extract unpacks archive into dest, creating it if needed.
func Extract(archive, dest string) error {
	log.Debugf("extract %s -> %s", archive, dest)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	switch FormatOf(archive) {
	case Zip:
		return extractZip(archive, dest)
	case TarGz:
		return extractTar(archive, dest, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case TarXz:
		return extractTar(archive, dest, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	}
	return fmt.Errorf("%s: unsupported archive format", filepath.Base(archive))
}

// target joins name to dest and rejects results outside dest.
func target(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	p := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if err := noLinkedParent(dest, p); err != nil {
		return "", fmt.Errorf("%w: %s", err, name)
	}
	return p, nil
}

// noLinkedParent fails when a directory between dest and p is a symlink,
// so a file cannot be written through a link unpacked earlier.
func noLinkedParent(dest, p string) error {
	rel, err := filepath.Rel(dest, filepath.Dir(p))
	if err != nil || rel == "." {
		return err
	}
	dir := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		dir = filepath.Join(dir, part)
		fi, err := os.Lstat(dir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return ErrUnsafePath
		}
	}
	return nil
}

func extractZip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		p, err := target(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(p, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		err = writeFile(p, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(archive, dest string, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return err
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			// GitHub tarballs start with a pax_global_header entry.
			continue
		}
		p, err := target(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(p, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(p, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || strings.HasPrefix(hdr.Linkname, "/") {
				return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if _, err := target(dest, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return err
			}
			os.Remove(p)
			if err := os.Symlink(hdr.Linkname, p); err != nil {
				return err
			}
		default:
			log.Debugf("extract: skip %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
}

func writeFile(p string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	perm := mode.Perm() | 0o600
	out, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
