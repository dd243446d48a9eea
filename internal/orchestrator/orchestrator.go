// Package orchestrator runs a whole dependency build: features, toolchain,
// every enabled unit, the main project, the merge of all static libraries
// and, optionally, the upload of the result.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/goplus/glimmerdeps/internal/build"
	"github.com/goplus/glimmerdeps/internal/console"
	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/feature"
	"github.com/goplus/glimmerdeps/internal/fetch"
	"github.com/goplus/glimmerdeps/internal/merge"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/goplus/glimmerdeps/internal/publish"
	"github.com/goplus/glimmerdeps/internal/toolchain"
	"github.com/goplus/glimmerdeps/internal/unit"
	"github.com/goplus/glimmerdeps/x/cmake"
	"github.com/magefile/mage/sh"
	"gopkg.in/yaml.v3"
)

// State is the progress of a run.
type State int

const (
	Idle State = iota
	FeaturesResolved
	ToolchainResolved
	UnitsBuilt
	MainProjectBuilt
	Merged
	Published
	Done
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	FeaturesResolved:  "features resolved",
	ToolchainResolved: "toolchain resolved",
	UnitsBuilt:        "units built",
	MainProjectBuilt:  "main project built",
	Merged:            "merged",
	Published:         "published",
	Done:              "done",
	Failed:            "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Options select what a run builds.
type Options struct {
	Platform  feature.Platform
	Overrides feature.Overrides
	BuildType env.BuildType

	// Update rebuilds every unit and forces the main project to refresh.
	Update bool
	// Clean removes the main build dir and the dependency dir first.
	Clean bool
	// Jobs is the parallel compile hint, 0 lets the generator decide.
	Jobs int
	// Publish is an optional s3://bucket/prefix target for the result.
	Publish string
}

// Report describes a finished (or failed) run.
type Report struct {
	RunID       string
	Features    feature.Set
	Profile     *toolchain.Profile
	Units       []string // units ensured, in build order
	Skipped     []string // disabled or unsupported on the host
	MainLibrary string
	Combined    *merge.Combined
	Manifest    string
	Published   []string
	Warnings    []error
	States      []State
}

// ProfileResolver yields the toolchain of the host.
type ProfileResolver interface {
	Resolve(ctx context.Context) (*toolchain.Profile, error)
}

// Orchestrator sequences a run. Steps never overlap; an Orchestrator is
// not safe for concurrent use.
type Orchestrator struct {
	Root       string
	Host       env.Host
	Catalog    *unit.Catalog
	Runner     proc.Runner
	Downloader fetch.Downloader
	Toolchain  ProfileResolver
	Console    *console.Console

	// NewPublisher connects to the publish target. Defaults to a minio
	// client configured from the environment.
	NewPublisher func(t publish.Target) (*publish.Publisher, error)

	state State
}

// New returns an Orchestrator for the project at root on host.
func New(root string, host env.Host, cat *unit.Catalog, r proc.Runner) *Orchestrator {
	return &Orchestrator{
		Root:       root,
		Host:       host,
		Catalog:    cat,
		Runner:     r,
		Downloader: fetch.NewHTTP(),
		Toolchain:  toolchain.New(host, r),
		Console:    console.Std(),
		NewPublisher: func(t publish.Target) (*publish.Publisher, error) {
			cfg, err := publish.ConfigFromEnv()
			if err != nil {
				return nil, failure.New(failure.PublishFailed, "", "publish", err)
			}
			return publish.New(cfg, t)
		},
	}
}

// State returns where the last run stands.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) enter(rep *Report, s State) {
	o.state = s
	rep.States = append(rep.States, s)
}

// Run executes every step in order. Any fatal error moves the run to
// Failed and is returned together with the partial report; a merge
// skipped for a missing library is recorded as a warning only.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	rep := &Report{RunID: uuid.NewString()}
	o.state = Idle
	rep.States = []State{Idle}
	if err := o.run(ctx, opts, rep); err != nil {
		o.enter(rep, Failed)
		return rep, err
	}
	o.enter(rep, Done)
	return rep, nil
}

func (o *Orchestrator) run(ctx context.Context, opts Options, rep *Report) error {
	c := o.Console
	if _, err := feature.ParsePlatform(string(opts.Platform)); err != nil {
		return err
	}
	if opts.BuildType == "" {
		opts.BuildType = env.Release
	}
	layout, err := env.NewLayout(o.Root, o.Host, opts.BuildType)
	if err != nil {
		return err
	}

	rep.Features = feature.Resolve(opts.Platform, opts.Overrides)
	c.Section("Platform %s (%s): %s", opts.Platform, opts.BuildType, rep.Features)
	o.enter(rep, FeaturesResolved)

	prof, err := o.Toolchain.Resolve(ctx)
	if err != nil {
		return err
	}
	rep.Profile = prof
	c.Step("Using %s", describe(prof))
	o.enter(rep, ToolchainResolved)

	if err := o.prepare(layout, opts); err != nil {
		return err
	}
	if err := o.buildUnits(ctx, layout, opts, prof, rep); err != nil {
		return err
	}
	o.enter(rep, UnitsBuilt)

	if err := o.buildMain(ctx, layout, opts, rep.Features, prof); err != nil {
		return err
	}
	rep.MainLibrary = layout.MainLibrary(string(opts.Platform))
	c.Step("Glimmer (%s) build complete", opts.BuildType)
	o.enter(rep, MainProjectBuilt)

	libs := o.mergeInputs(layout, rep.Units, rep.MainLibrary)
	m := merge.New(o.Runner, prof)
	m.Console = c
	combined, err := m.Merge(ctx, libs, layout.CombinedLibrary())
	if err != nil {
		if failure.IsFatal(err) {
			return err
		}
		c.Warn("%v", err)
		rep.Warnings = append(rep.Warnings, err)
		if opts.Publish != "" {
			skipped := fmt.Errorf("publish to %s skipped: no combined library", opts.Publish)
			c.Warn("%v", skipped)
			rep.Warnings = append(rep.Warnings, skipped)
		}
		return nil
	}
	rep.Combined = combined
	c.Step("Combined lib created: %s", combined.Path)

	rep.Manifest = filepath.Join(layout.CombinedDir(), "manifest.yaml")
	if err := writeManifest(rep.Manifest, newManifest(rep, opts)); err != nil {
		return failure.New(failure.MergeFailed, "", "write manifest", err)
	}
	o.enter(rep, Merged)

	if opts.Publish == "" {
		return nil
	}
	return o.publish(ctx, opts.Publish, rep)
}

// prepare creates the layout, wiping the main build dir and the sources
// first when asked to.
func (o *Orchestrator) prepare(l *env.Layout, opts Options) error {
	if opts.Clean || opts.Update {
		o.Console.Warn("Removing %s", l.BuildDir())
		if err := sh.Rm(l.BuildDir()); err != nil {
			return err
		}
	}
	if opts.Clean {
		o.Console.Warn("Removing %s", l.DependencyDir())
		if err := sh.Rm(l.DependencyDir()); err != nil {
			return err
		}
	}
	return l.Ensure()
}

func (o *Orchestrator) buildUnits(ctx context.Context, l *env.Layout, opts Options, prof *toolchain.Profile, rep *Report) error {
	p := build.New(l, o.Runner, o.Downloader, o.Catalog)
	p.Console = o.Console
	p.Platform = string(opts.Platform)
	p.Features = rep.Features
	if opts.Jobs > 0 {
		p.Jobs = opts.Jobs
	}
	for _, s := range o.Catalog.Units {
		if !rep.Features[s.Name] {
			rep.Skipped = append(rep.Skipped, s.Name)
			continue
		}
		if !s.Supports(o.Host) {
			o.Console.Tracef("%s is not built on %s", s.Name, o.Host)
			rep.Skipped = append(rep.Skipped, s.Name)
			continue
		}
		if err := p.Ensure(ctx, s, prof, opts.Update); err != nil {
			return err
		}
		rep.Units = append(rep.Units, s.Name)
	}
	return nil
}

// buildMain configures and builds the toolkit itself in <root>/build.
func (o *Orchestrator) buildMain(ctx context.Context, l *env.Layout, opts Options, fs feature.Set, prof *toolchain.Profile) error {
	o.Console.Section("Building Glimmer (%s)...", opts.BuildType)
	if prof.MSVC() {
		// The solution does not always notice a changed library set.
		for _, stale := range []string{
			l.MainLibrary(string(opts.Platform)),
			strings.TrimSuffix(l.MainLibrary(string(opts.Platform)), ".lib") + ".pdb",
			l.CombinedLibrary(),
		} {
			if err := sh.Rm(stale); err != nil {
				return failure.New(failure.MainBuildFailed, "", "clean", err)
			}
		}
	}

	c := cmake.New(o.Runner, l.Root, l.BuildDir())
	c.Generator(prof.Generator)
	c.Platform(prof.GeneratorPlatform)
	c.BuildType(string(opts.BuildType))
	c.Fresh(prof.MSVC())
	c.Env(prof.Env)
	if !prof.MSVC() {
		if prof.CC != "" {
			c.Define("CMAKE_C_COMPILER", prof.CC)
		}
		if prof.CXX != "" {
			c.Define("CMAKE_CXX_COMPILER", prof.CXX)
		}
	}
	for _, def := range feature.MainOptions(opts.Platform, opts.Overrides, fs, opts.Update) {
		k, v, _ := strings.Cut(def, "=")
		if v == "ON" {
			c.DefineBool(k, true)
		} else {
			c.Define(k, v)
		}
	}
	if err := c.Configure(ctx); err != nil {
		return failure.New(failure.MainBuildFailed, "", "configure", err)
	}
	jobs := opts.Jobs
	if jobs == 0 && !prof.MSVC() {
		jobs = runtime.NumCPU()
	}
	if err := c.Build(ctx, jobs); err != nil {
		return failure.New(failure.MainBuildFailed, "", "compile", err)
	}
	return nil
}

// mergeInputs lists the installed libraries of the units built in this
// run, sorted, followed by main. Libraries left in the directory by units
// that are now disabled are not merged.
func (o *Orchestrator) mergeInputs(l *env.Layout, units []string, main string) []string {
	var libs []string
	for _, name := range units {
		s, ok := o.Catalog.Lookup(name)
		if !ok {
			continue
		}
		s = s.ForHost(l.Host)
		if !s.Kind.Compiled() {
			continue
		}
		for _, a := range s.Artifacts {
			libs = append(libs, filepath.Join(l.LibDir(), l.Host.LibName(a.Name)))
		}
	}
	sort.Strings(libs)
	return append(libs, main)
}

func (o *Orchestrator) publish(ctx context.Context, target string, rep *Report) error {
	t, err := publish.ParseTarget(target)
	if err != nil {
		return failure.New(failure.PublishFailed, "", "publish", err)
	}
	p, err := o.NewPublisher(t)
	if err != nil {
		return err
	}
	keys, err := p.Publish(ctx, rep.RunID, rep.Combined.Path, rep.Manifest)
	if err != nil {
		return err
	}
	rep.Published = keys
	o.Console.Step("Published to %s/%s", t, rep.RunID)
	o.enter(rep, Published)
	return nil
}

func describe(p *toolchain.Profile) string {
	switch {
	case p.MSVC():
		return p.Generator + " (" + p.Version + ")"
	case p.Distro != "":
		return p.CC + " [" + p.Distro + "] " + p.Version
	}
	return p.CC + " " + p.Version
}

// Manifest is written next to the combined archive.
type Manifest struct {
	RunID     string    `yaml:"run_id"`
	Created   time.Time `yaml:"created"`
	Platform  string    `yaml:"platform"`
	BuildType string    `yaml:"build_type"`
	Features  []string  `yaml:"features"`
	Toolchain struct {
		Generator string `yaml:"generator,omitempty"`
		Compiler  string `yaml:"compiler"`
		Version   string `yaml:"version,omitempty"`
	} `yaml:"toolchain"`
	Units    []string        `yaml:"units"`
	Combined *merge.Combined `yaml:"combined"`
}

func newManifest(rep *Report, opts Options) *Manifest {
	m := &Manifest{
		RunID:     rep.RunID,
		Created:   time.Now().UTC(),
		Platform:  string(opts.Platform),
		BuildType: string(opts.BuildType),
		Features:  rep.Features.Enabled(),
		Units:     rep.Units,
		Combined:  rep.Combined,
	}
	m.Toolchain.Generator = rep.Profile.Generator
	m.Toolchain.Compiler = rep.Profile.CXX
	m.Toolchain.Version = rep.Profile.Version
	return m
}

func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
