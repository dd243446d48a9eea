// Package proctest provides a scripted proc.Runner for tests.
package proctest

import (
	"context"
	"strings"
	"sync"

	"github.com/goplus/glimmerdeps/internal/proc"
)

// Runner records every command and answers through the optional hooks.
// With no hook set, Run succeeds and Output returns "".
type Runner struct {
	RunFunc    func(c proc.Cmd) error
	OutputFunc func(c proc.Cmd) (string, error)

	mu    sync.Mutex
	calls []proc.Cmd
}

func (r *Runner) record(c proc.Cmd) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *Runner) Run(ctx context.Context, c proc.Cmd) error {
	r.record(c)
	if r.RunFunc != nil {
		return r.RunFunc(c)
	}
	return nil
}

func (r *Runner) Output(ctx context.Context, c proc.Cmd) (string, error) {
	r.record(c)
	if r.OutputFunc != nil {
		return r.OutputFunc(c)
	}
	return "", nil
}

// Calls returns the commands seen so far.
func (r *Runner) Calls() []proc.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]proc.Cmd(nil), r.calls...)
}

// Lines renders Calls as "name arg..." strings.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Count returns how many recorded commands contain substr.
func (r *Runner) Count(substr string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// Reset forgets the recorded commands.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
