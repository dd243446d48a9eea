// Package proc runs the external tools of a build (cmake, ar, lib.exe,
// vswhere, toolset scripts) with an explicit environment overlay.
//
// The overlay is never applied to the current process: each child gets
// os.Environ() with the overlay merged on top.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/qiniu/x/log"
)

// Cmd describes one child process invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string // overlay on top of the parent environment
}

func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes commands. Implementations block until the child exits.
type Runner interface {
	// Run executes c, streaming its output to the runner's writers.
	Run(ctx context.Context, c Cmd) error
	// Output executes c and returns its stdout. Stderr is discarded.
	Output(ctx context.Context, c Cmd) (string, error)
}

// Exec is the os/exec backed Runner.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec returns a Runner that forwards child output to stdout and stderr.
func NewExec(stdout, stderr io.Writer) *Exec {
	return &Exec{Stdout: stdout, Stderr: stderr}
}

func (e *Exec) command(ctx context.Context, c Cmd) *exec.Cmd {
	name := c.Name
	if p := PathOf(c.Env); p != "" && !strings.ContainsAny(name, `/\`) {
		if full, ok := LookPathIn(name, p); ok {
			name = full
		}
	}
	cmd := exec.CommandContext(ctx, name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}
	return cmd
}

func (e *Exec) Run(ctx context.Context, c Cmd) error {
	log.Debugf("run: %s (dir=%s)", c, c.Dir)
	cmd := e.command(ctx, c)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

func (e *Exec) Output(ctx context.Context, c Cmd) (string, error) {
	log.Debugf("output: %s (dir=%s)", c, c.Dir)
	cmd := e.command(ctx, c)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", c.Name, err)
	}
	return stdout.String(), nil
}

// MergeEnv returns base ("KEY=VALUE" entries) with overlay applied. Keys
// present in overlay replace those in base; the result is sorted by key so
// child environments are deterministic.
func MergeEnv(base []string, overlay map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overlay))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	for k, v := range overlay {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

// ParseEnv parses line-oriented KEY=VALUE output, as printed by `set` on
// Windows or `env` on POSIX. Lines without '=' and lines with an empty key
// (cmd.exe prints "=C:=C:\" style entries) are skipped.
func ParseEnv(out string) map[string]string {
	env := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// LookPathIn searches the directories of pathList, a PATH-style value, for
// an executable named file. Unlike exec.LookPath it does not consult the
// current process environment, so it sees the PATH of an overlay.
func LookPathIn(file, pathList string) (string, bool) {
	names := []string{file}
	if runtime.GOOS == "windows" && filepath.Ext(file) == "" {
		names = append(names, file+".exe", file+".bat", file+".cmd")
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			continue
		}
		for _, name := range names {
			p := filepath.Join(dir, name)
			fi, err := os.Stat(p)
			if err != nil || fi.IsDir() {
				continue
			}
			if runtime.GOOS != "windows" && fi.Mode()&0o111 == 0 {
				continue
			}
			return p, true
		}
	}
	return "", false
}

// PathOf returns the PATH entry of an overlay. Windows spells it "Path".
func PathOf(overlay map[string]string) string {
	for k, v := range overlay {
		if strings.EqualFold(k, "PATH") {
			return v
		}
	}
	return ""
}
