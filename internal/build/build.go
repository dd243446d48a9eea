// Package build takes a single unit from source to installed artifacts:
// fetch, configure, compile, locate and install.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goplus/glimmerdeps/internal/artifact"
	"github.com/goplus/glimmerdeps/internal/console"
	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/feature"
	"github.com/goplus/glimmerdeps/internal/fetch"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/goplus/glimmerdeps/internal/toolchain"
	"github.com/goplus/glimmerdeps/internal/unit"
	"github.com/goplus/glimmerdeps/x/cmake"
	"github.com/magefile/mage/sh"
)

// State is where a unit stands, derived from the filesystem on demand.
type State int

const (
	Missing State = iota
	Fetched
	Configured
	Built
	Installed
)

func (s State) String() string {
	switch s {
	case Fetched:
		return "fetched"
	case Configured:
		return "configured"
	case Built:
		return "built"
	case Installed:
		return "installed"
	}
	return "missing"
}

// Pipeline builds units into a Layout. Units are processed one at a time;
// a Pipeline is not safe for concurrent use.
type Pipeline struct {
	Layout     *env.Layout
	Runner     proc.Runner
	Downloader fetch.Downloader
	Catalog    *unit.Catalog
	Console    *console.Console

	Platform string
	Features feature.Set
	Jobs     int // parallel compile jobs, 0 lets the generator decide
}

// New returns a Pipeline with the process-wide console and one compile job
// per CPU.
func New(l *env.Layout, r proc.Runner, d fetch.Downloader, c *unit.Catalog) *Pipeline {
	return &Pipeline{
		Layout:     l,
		Runner:     r,
		Downloader: d,
		Catalog:    c,
		Console:    console.Std(),
		Features:   feature.Set{},
		Jobs:       runtime.NumCPU(),
	}
}

// resolved is a unit spec with the host override applied and every
// template expanded for this run.
type resolved struct {
	spec     *unit.Spec
	vars     unit.Vars
	srcDir   string
	buildDir string
	cmakeDir string
}

func (p *Pipeline) vars(s *unit.Spec) unit.Vars {
	h := p.Layout.Host
	return unit.Vars{
		Name:        s.Name,
		Version:     s.Version,
		Config:      string(p.Layout.BuildType),
		Prefix:      h.LibPrefix(),
		Ext:         h.LibExt(),
		Platform:    p.Platform,
		ProjectRoot: p.Layout.Root,
		IncludeDir:  p.Layout.IncludeDir(),
		Features:    p.Features,
		Sources:     map[string]string{},
	}
}

func (p *Pipeline) resolve(spec *unit.Spec) (*resolved, error) {
	s := spec.ForHost(p.Layout.Host)
	v := p.vars(s)
	dep := p.Layout.DependencyDir()

	if s.Kind != unit.File {
		dir, err := v.Expand(s.Dir)
		if err != nil {
			return nil, err
		}
		v.SourceDir = filepath.Join(dep, dir)
	}
	for _, name := range s.Uses {
		used, err := p.lookup(name)
		if err != nil {
			return nil, err
		}
		v.Sources[name] = used.srcDir
	}

	e, err := s.Expanded(v)
	if err != nil {
		return nil, err
	}
	r := &resolved{spec: e, vars: v, srcDir: v.SourceDir, cmakeDir: v.SourceDir}
	if e.CMakeSource != "" {
		r.cmakeDir = e.CMakeSource
	}
	if e.BuildDir != "" {
		r.buildDir = filepath.Join(dep, filepath.FromSlash(e.BuildDir))
	} else {
		r.buildDir = filepath.Join(r.srcDir, "build")
	}
	return r, nil
}

func (p *Pipeline) lookup(name string) (*resolved, error) {
	if p.Catalog == nil {
		return nil, fmt.Errorf("unit %s: no catalog", name)
	}
	s, ok := p.Catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown unit %s", name)
	}
	return p.resolve(s)
}

// outputs are the files whose presence means r is installed.
func (p *Pipeline) outputs(r *resolved) []string {
	if r.spec.Kind.Compiled() {
		outs := make([]string, len(r.spec.Artifacts))
		for i, a := range r.spec.Artifacts {
			outs[i] = filepath.Join(p.Layout.LibDir(), p.Layout.Host.LibName(a.Name))
		}
		return outs
	}
	return []string{filepath.Join(p.Layout.IncludeDir(), filepath.FromSlash(r.spec.Primary))}
}

func (p *Pipeline) cachePath() string {
	return filepath.Join(p.Layout.LibDir(), cacheFile)
}

func (p *Pipeline) loadCache() *installCache {
	cache, err := loadInstallCache(p.cachePath())
	if err != nil {
		return &installCache{}
	}
	return cache
}

func (p *Pipeline) installed(r *resolved, cache *installCache) bool {
	for _, out := range p.outputs(r) {
		if !artifact.Exists(out) {
			return false
		}
	}
	return !cache.stale(r.spec.Name, r.spec.Version)
}

// Ensure makes spec's outputs present in the layout. Unless force is set, a
// unit whose outputs already exist is left alone and no process is run.
func (p *Pipeline) Ensure(ctx context.Context, spec *unit.Spec, prof *toolchain.Profile, force bool) error {
	r, err := p.resolve(spec)
	if err != nil {
		return failure.New(failure.InvalidCatalog, spec.Name, "expand", err)
	}
	s := r.spec

	cache := p.loadCache()
	if !force && p.installed(r, cache) {
		p.Console.Tracef("%s %s is up to date", s.Name, s.Version)
		return nil
	}
	p.Console.Step("Building %s %s...", s.Name, s.Version)

	if s.Kind == unit.File {
		dst := p.outputs(r)[0]
		if err := p.Downloader.Download(ctx, s.URL, dst); err != nil {
			return failure.New(failure.DownloadFailed, s.Name, "download", err)
		}
	} else {
		if err := p.fetch(ctx, r); err != nil {
			return err
		}
	}
	for _, name := range s.Uses {
		if !p.Features[name] {
			continue
		}
		used, err := p.lookup(name)
		if err != nil {
			return failure.New(failure.InvalidCatalog, s.Name, "expand", err)
		}
		if err := p.fetch(ctx, used); err != nil {
			return err
		}
	}

	if s.Kind == unit.CMake {
		if err := p.compile(ctx, r, prof); err != nil {
			return err
		}
	}
	if s.Kind.Compiled() {
		root := r.buildDir
		if s.Kind == unit.Prebuilt {
			root = r.srcDir
		}
		if err := p.installLibs(r, root, prof); err != nil {
			return err
		}
	}
	if err := p.installHeaders(r); err != nil {
		return err
	}
	for _, out := range p.outputs(r) {
		if !artifact.Exists(out) {
			return failure.Newf(failure.InstallFailed, s.Name, "install", "%s missing after install", out)
		}
	}

	cache.set(s.Name, &installEntry{Version: s.Version, InstallTime: time.Now()})
	if err := saveInstallCache(p.cachePath(), cache); err != nil {
		return failure.New(failure.InstallFailed, s.Name, "record install", err)
	}
	return nil
}

const fingerprintFile = ".toolchain"

func (p *Pipeline) compile(ctx context.Context, r *resolved, prof *toolchain.Profile) error {
	s := r.spec
	if s.Fresh {
		if err := sh.Rm(r.buildDir); err != nil {
			return failure.New(failure.ConfigureFailed, s.Name, "configure", err)
		}
	}
	if err := os.MkdirAll(r.buildDir, 0o755); err != nil {
		return failure.New(failure.ConfigureFailed, s.Name, "configure", err)
	}

	// A cache from another compiler pins the old one; drop it.
	fpPath := filepath.Join(r.buildDir, fingerprintFile)
	fp := prof.Fingerprint()
	if old, err := os.ReadFile(fpPath); err != nil || string(old) != fp {
		os.Remove(filepath.Join(r.buildDir, "CMakeCache.txt"))
	}

	c := cmake.New(p.Runner, r.cmakeDir, r.buildDir)
	c.Generator(prof.Generator)
	c.Platform(prof.GeneratorPlatform)
	c.BuildType(string(p.Layout.BuildType))
	c.Env(prof.Env)
	if !prof.MSVC() {
		if prof.CC != "" {
			c.Define("CMAKE_C_COMPILER", prof.CC)
		}
		if prof.CXX != "" {
			c.Define("CMAKE_CXX_COMPILER", prof.CXX)
		}
	}
	opts, err := r.vars.ExpandOptions(s.Options)
	if err != nil {
		return failure.New(failure.ConfigureFailed, s.Name, "configure", err)
	}
	for _, o := range opts {
		switch strings.ToUpper(o.Value) {
		case "ON":
			c.DefineBool(o.Key, true)
		case "OFF":
			c.DefineBool(o.Key, false)
		default:
			c.Define(o.Key, o.Value)
		}
	}

	if err := c.Configure(ctx); err != nil {
		return failure.New(failure.ConfigureFailed, s.Name, "configure", err)
	}
	if err := os.WriteFile(fpPath, []byte(fp), 0o644); err != nil {
		return failure.New(failure.ConfigureFailed, s.Name, "configure", err)
	}
	if err := c.Build(ctx, p.Jobs); err != nil {
		return failure.New(failure.CompileFailed, s.Name, "compile", err)
	}
	return nil
}

// Inspect derives the state of spec from the layout without changing it.
func (p *Pipeline) Inspect(spec *unit.Spec) (State, error) {
	r, err := p.resolve(spec)
	if err != nil {
		return Missing, failure.New(failure.InvalidCatalog, spec.Name, "expand", err)
	}
	if p.installed(r, p.loadCache()) {
		return Installed, nil
	}
	s := r.spec
	if s.Kind == unit.CMake {
		if cands, err := r.vars.ExpandAll(s.Artifacts[0].Candidates); err == nil {
			if _, err := artifact.Locate(r.buildDir, cands); err == nil {
				return Built, nil
			}
		}
		if artifact.Exists(filepath.Join(r.buildDir, "CMakeCache.txt")) {
			return Configured, nil
		}
	}
	if s.Kind != unit.File && p.complete(r) {
		return Fetched, nil
	}
	return Missing, nil
}
