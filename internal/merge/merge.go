// Package merge combines static libraries into a single archive.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goplus/glimmerdeps/internal/artifact"
	"github.com/goplus/glimmerdeps/internal/console"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/goplus/glimmerdeps/internal/toolchain"
)

// Combined describes a merged archive.
type Combined struct {
	Path         string   `yaml:"path"`
	Constituents []string `yaml:"constituents"`
}

// Merger drives the host archiver.
type Merger struct {
	Runner  proc.Runner
	Profile *toolchain.Profile
	Console *console.Console
}

func New(r proc.Runner, prof *toolchain.Profile) *Merger {
	return &Merger{Runner: r, Profile: prof, Console: console.Std()}
}

// Merge writes every object of libs, in order, into one archive at out.
//
// A missing constituent skips the merge with a MergeWarning; the caller
// decides whether that ends the run.
func (m *Merger) Merge(ctx context.Context, libs []string, out string) (*Combined, error) {
	for _, lib := range libs {
		if !artifact.Exists(lib) {
			return nil, failure.Newf(failure.MergeWarning, "", "merge", "%s not found", lib)
		}
	}
	if len(libs) == 0 {
		return nil, failure.Newf(failure.MergeWarning, "", "merge", "no libraries to merge")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, failure.New(failure.MergeFailed, "", "merge", err)
	}

	var err error
	if m.Profile.MSVC() {
		err = m.mergeMSVC(ctx, libs, out)
	} else {
		err = m.mergeAr(ctx, libs, out)
	}
	if err != nil {
		return nil, failure.New(failure.MergeFailed, "", "merge", err)
	}
	return &Combined{Path: out, Constituents: append([]string(nil), libs...)}, nil
}

func (m *Merger) archiver(def string) string {
	if m.Profile.Archiver != "" {
		return m.Profile.Archiver
	}
	return def
}

func (m *Merger) mergeMSVC(ctx context.Context, libs []string, out string) error {
	args := append([]string{"/NOLOGO", "/OUT:" + out}, libs...)
	return m.Runner.Run(ctx, proc.Cmd{Name: m.archiver("lib.exe"), Args: args, Env: m.Profile.Env})
}

// mergeAr extracts each archive into its own scratch subdirectory, so
// members with equal names in different libraries survive, and archives
// the union again. Members repeated inside one archive are extracted one
// instance at a time with "ar xN".
func (m *Merger) mergeAr(ctx context.Context, libs []string, out string) error {
	ar := m.archiver("ar")
	scratch, err := os.MkdirTemp(filepath.Dir(out), ".merge-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	seen := make(map[string]bool)
	var objects []string
	for i, lib := range libs {
		abs, err := filepath.Abs(lib)
		if err != nil {
			return err
		}
		base := strings.TrimSuffix(filepath.Base(lib), filepath.Ext(lib))
		dir := filepath.Join(scratch, fmt.Sprintf("%02d-%s", i, base))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := m.extract(ctx, ar, abs, dir); err != nil {
			return fmt.Errorf("extract %s: %w", lib, err)
		}

		members, err := members(dir)
		if err != nil {
			return err
		}
		for _, name := range members {
			path := filepath.Join(dir, name)
			if seen[name] {
				renamed := unused(base+"__"+name, func(n string) bool {
					return seen[n] || artifact.Exists(filepath.Join(dir, n))
				})
				if err := os.Rename(path, filepath.Join(dir, renamed)); err != nil {
					return err
				}
				m.console().Tracef("merge: %s in %s renamed to %s", name, lib, renamed)
				path, name = filepath.Join(dir, renamed), renamed
			}
			seen[name] = true
			objects = append(objects, path)
		}
	}

	tmp := filepath.Join(scratch, filepath.Base(out))
	if err := m.Runner.Run(ctx, proc.Cmd{Name: ar, Args: append([]string{"rcs", tmp}, objects...), Dir: scratch, Env: m.Profile.Env}); err != nil {
		return fmt.Errorf("archive %s: %w", out, err)
	}
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmp, out)
}

// extract unpacks lib into dir. A plain "ar x" keeps only the last of
// several members sharing a name, so those are pulled out by instance
// number and given distinct names.
func (m *Merger) extract(ctx context.Context, ar, lib, dir string) error {
	listing, err := m.Runner.Output(ctx, proc.Cmd{Name: ar, Args: []string{"t", lib}, Dir: dir, Env: m.Profile.Env})
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	count := make(map[string]int)
	var dups []string
	for _, name := range strings.Split(listing, "\n") {
		name = strings.TrimSpace(name)
		if name == "" || strings.HasPrefix(name, "__.SYMDEF") {
			continue
		}
		count[name]++
		if count[name] == 2 {
			dups = append(dups, name)
		}
	}

	if err := m.Runner.Run(ctx, proc.Cmd{Name: ar, Args: []string{"x", lib}, Dir: dir, Env: m.Profile.Env}); err != nil {
		return err
	}
	for _, name := range dups {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n := 1; n <= count[name]; n++ {
			args := []string{"xN", strconv.Itoa(n), lib, name}
			if err := m.Runner.Run(ctx, proc.Cmd{Name: ar, Args: args, Dir: dir, Env: m.Profile.Env}); err != nil {
				return fmt.Errorf("member %s appears %d times and instance %d cannot be extracted: %w", name, count[name], n, err)
			}
			renamed := unused(fmt.Sprintf("%s.%d%s", stem, n, ext), func(c string) bool {
				return count[c] > 0 || artifact.Exists(filepath.Join(dir, c))
			})
			if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, renamed)); err != nil {
				return fmt.Errorf("member %s instance %d: %w", name, n, err)
			}
			m.console().Tracef("merge: %s #%d in %s renamed to %s", name, n, lib, renamed)
		}
	}
	return nil
}

// unused returns name, or name with a numeric prefix, such that taken
// reports false for it.
func unused(name string, taken func(string) bool) string {
	cand := name
	for i := 2; taken(cand); i++ {
		cand = fmt.Sprintf("%d_%s", i, name)
	}
	return cand
}

func (m *Merger) console() *console.Console {
	if m.Console == nil {
		return console.Std()
	}
	return m.Console
}

// members lists the extracted regular files of dir, symbol tables
// excluded.
func members(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), "__.SYMDEF") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
