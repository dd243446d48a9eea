// Package cmake wraps the cmake configure/build workflow.
package cmake

import (
	"context"
	"os"
	"sort"
	"strconv"

	"github.com/goplus/glimmerdeps/internal/proc"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake drives one CMake build directory.
type CMake struct {
	runner    proc.Runner
	sourceDir string
	buildDir  string
	generator string
	platform  string
	buildType string
	fresh     bool
	env       map[string]string
	defines   map[string]defineValue
}

// New returns a CMake building sourceDir into buildDir through r.
func New(r proc.Runner, sourceDir, buildDir string) *CMake {
	return &CMake{
		runner:    r,
		sourceDir: sourceDir,
		buildDir:  buildDir,
		defines:   make(map[string]defineValue),
	}
}

// Generator sets the CMake generator (e.g. "Visual Studio 17 2022").
func (c *CMake) Generator(name string) { c.generator = name }

// Platform sets the generator platform passed with -A (e.g. "x64").
func (c *CMake) Platform(name string) { c.platform = name }

// BuildType sets CMAKE_BUILD_TYPE and the --config of builds.
func (c *CMake) BuildType(name string) { c.buildType = name }

// Fresh makes Configure discard any existing cache (cmake --fresh).
func (c *CMake) Fresh(v bool) { c.fresh = v }

// Env sets the environment overlay of every cmake invocation.
func (c *CMake) Env(overlay map[string]string) { c.env = overlay }

// Define adds a -D<key>:STRING=<value> definition.
func (c *CMake) Define(key, value string) {
	c.defines[key] = defineValue{value: value, typeName: "STRING"}
}

// DefineBool adds a -D<key>:BOOL=ON/OFF definition.
func (c *CMake) DefineBool(key string, value bool) {
	v := "OFF"
	if value {
		v = "ON"
	}
	c.defines[key] = defineValue{value: v, typeName: "BOOL"}
}

// Configure runs "cmake -S <source> -B <build>" with all configured options.
// Extra args are appended at the end.
func (c *CMake) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(c.buildDir, 0o755); err != nil {
		return err
	}
	return c.run(ctx, c.configureArgs(args))
}

func (c *CMake) configureArgs(extra []string) []string {
	cmakeArgs := []string{"-S", c.sourceDir, "-B", c.buildDir}
	if c.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", c.generator)
	}
	if c.platform != "" {
		cmakeArgs = append(cmakeArgs, "-A", c.platform)
	}
	if c.fresh {
		cmakeArgs = append(cmakeArgs, "--fresh")
	}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	cmakeArgs = append(cmakeArgs, c.definesArgs()...)
	return append(cmakeArgs, extra...)
}

// Build runs "cmake --build <build>" with jobs parallel workers when jobs
// is positive, and optional extra arguments.
func (c *CMake) Build(ctx context.Context, jobs int, args ...string) error {
	return c.run(ctx, c.buildArgs(jobs, args))
}

func (c *CMake) buildArgs(jobs int, extra []string) []string {
	cmakeArgs := []string{"--build", c.buildDir}
	if c.buildType != "" {
		cmakeArgs = append(cmakeArgs, "--config", c.buildType)
	}
	if jobs > 0 {
		cmakeArgs = append(cmakeArgs, "--parallel", strconv.Itoa(jobs))
	}
	return append(cmakeArgs, extra...)
}

func (c *CMake) run(ctx context.Context, args []string) error {
	return c.runner.Run(ctx, proc.Cmd{Name: "cmake", Args: args, Env: c.env})
}

func (c *CMake) definesArgs() []string {
	if len(c.defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.defines))
	for k := range c.defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		d := c.defines[k]
		args = append(args, "-D"+k+":"+d.typeName+"="+d.value)
	}
	return args
}
