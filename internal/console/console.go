// Package console prints the colored progress and diagnostic lines of a
// build run and routes verbose command tracing to a leveled logger.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gookit/color"
	"github.com/qiniu/x/log"
)

// Console writes status lines. The zero value is not usable; use New or Std.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	err     io.Writer
	verbose bool
}

// New returns a Console writing progress to out and diagnostics to errw.
func New(out, errw io.Writer) *Console {
	return &Console{out: out, err: errw}
}

var std = New(os.Stdout, os.Stderr)

// Std returns the process-wide console.
func Std() *Console { return std }

// SetVerbose toggles debug tracing of child commands.
func (c *Console) SetVerbose(v bool) {
	c.mu.Lock()
	c.verbose = v
	c.mu.Unlock()
	if v {
		log.SetOutputLevel(log.Ldebug)
	} else {
		log.SetOutputLevel(log.Linfo)
	}
}

// Verbose reports whether child command output should be shown.
func (c *Console) Verbose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbose
}

// DisableColor strips ANSI sequences, e.g. when output is not a terminal.
func DisableColor() {
	color.Disable()
}

func (c *Console) println(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(w, s)
}

// Step prints a green progress line.
func (c *Console) Step(format string, args ...any) {
	c.println(c.out, color.Green.Sprintf(format, args...))
}

// Section prints a blue header line.
func (c *Console) Section(format string, args ...any) {
	c.println(c.out, color.Blue.Sprintf(format, args...))
}

// Warn prints a yellow warning line.
func (c *Console) Warn(format string, args ...any) {
	c.println(c.out, color.Yellow.Sprintf(format, args...))
}

// Error prints a red "[ERROR]" line to the error stream.
func (c *Console) Error(err error) {
	c.println(c.err, color.Red.Sprintf("[ERROR] %v", err))
}

// Tracef logs a debug line; shown only in verbose mode.
func (c *Console) Tracef(format string, args ...any) {
	log.Debugf(format, args...)
}

// Stdout returns where child process output goes: the console writer in
// verbose mode, io.Discard otherwise.
func (c *Console) Stdout() io.Writer {
	if c.Verbose() {
		return c.out
	}
	return io.Discard
}

// Stderr is like Stdout for the child's error stream.
func (c *Console) Stderr() io.Writer {
	if c.Verbose() {
		return c.err
	}
	return io.Discard
}
