package build

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/glimmerdeps/internal/artifact"
	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/toolchain"
	"github.com/goplus/glimmerdeps/internal/unit"
	"github.com/magefile/mage/sh"
)

// installLibs locates every artifact of r under root and copies it into
// the library directory under its canonical name.
func (p *Pipeline) installLibs(r *resolved, root string, prof *toolchain.Profile) error {
	s := r.spec
	libDir := p.Layout.LibDir()
	for _, a := range s.Artifacts {
		cands, err := r.vars.ExpandAll(a.Candidates)
		if err != nil {
			return failure.New(failure.ArtifactNotFound, s.Name, "locate", err)
		}
		src, err := artifact.Locate(root, cands)
		if err != nil {
			return failure.New(failure.ArtifactNotFound, s.Name, "locate", err)
		}
		dst := filepath.Join(libDir, p.Layout.Host.LibName(a.Name))
		if err := copyFile(dst, src); err != nil {
			return failure.New(failure.InstallFailed, s.Name, "install", err)
		}
		p.Console.Tracef("installed %s -> %s", src, dst)

		// Debug symbols travel with MSVC debug libraries.
		if prof != nil && prof.MSVC() && p.Layout.BuildType == env.Debug {
			pdb := strings.TrimSuffix(src, filepath.Ext(src)) + ".pdb"
			if artifact.Exists(pdb) {
				if err := copyFile(filepath.Join(libDir, a.Name+".pdb"), pdb); err != nil {
					return failure.New(failure.InstallFailed, s.Name, "install", err)
				}
			}
		}
	}
	return nil
}

// installHeaders applies r's header rules to the shared include tree.
func (p *Pipeline) installHeaders(r *resolved) error {
	s := r.spec
	for _, h := range s.Headers {
		if h.Feature != "" && !p.Features[h.Feature] {
			continue
		}
		if err := p.installHeaderRule(r, h); err != nil {
			return failure.New(failure.InstallFailed, s.Name, "install headers", err)
		}
	}
	return nil
}

func (p *Pipeline) installHeaderRule(r *resolved, h unit.HeaderRule) error {
	froms, err := r.vars.ExpandAll(h.From)
	if err != nil {
		return err
	}
	var cands []string
	for _, f := range froms {
		cands = append(cands, filepath.Join(r.srcDir, filepath.FromSlash(f)))
	}
	src, err := artifact.Locate(r.srcDir, cands)
	if err != nil {
		return err
	}
	dst := filepath.Join(p.Layout.IncludeDir(), filepath.FromSlash(h.To))

	switch {
	case len(h.Files) > 0:
		for _, name := range h.Files {
			if err := copyFile(filepath.Join(dst, name), filepath.Join(src, name)); err != nil {
				return err
			}
		}
		return nil
	case h.Glob != "":
		matches, err := filepath.Glob(filepath.Join(src, h.Glob))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err != nil || fi.IsDir() {
				continue
			}
			if err := copyFile(filepath.Join(dst, filepath.Base(m)), m); err != nil {
				return err
			}
		}
		return nil
	}

	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return copyFile(filepath.Join(dst, filepath.Base(src)), src)
	}
	return copyTree(dst, src, h.Exclude)
}

// copyTree copies the regular files under src into dst, skipping file
// names that match any exclude pattern.
func copyTree(dst, src string, exclude []string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		for _, pat := range exclude {
			if ok, _ := filepath.Match(pat, d.Name()); ok {
				return nil
			}
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return copyFile(filepath.Join(dst, rel), path)
	})
}

func copyFile(dst, src string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return sh.Copy(dst, src)
}
