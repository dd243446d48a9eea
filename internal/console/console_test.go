package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConsoleLines(t *testing.T) {
	DisableColor()
	var out, errw bytes.Buffer
	c := New(&out, &errw)

	c.Step("Building %s...", "yoga")
	c.Warn("Glimmer lib not found: %s", "x.a")
	c.Section("=== Building Glimmer ===")
	c.Error(errors.New("compile yoga: compile failed"))

	got := out.String()
	for _, want := range []string{"Building yoga...", "Glimmer lib not found: x.a", "=== Building Glimmer ==="} {
		if !strings.Contains(got, want) {
			t.Errorf("stdout missing %q:\n%s", want, got)
		}
	}
	if got := errw.String(); !strings.Contains(got, "[ERROR] compile yoga: compile failed") {
		t.Errorf("stderr = %q", got)
	}
}

func TestConsoleChildOutput(t *testing.T) {
	var out, errw bytes.Buffer
	c := New(&out, &errw)

	if c.Stdout() != io.Discard || c.Stderr() != io.Discard {
		t.Errorf("quiet console should discard child output")
	}
	c.SetVerbose(true)
	defer c.SetVerbose(false)
	if c.Stdout() != &out || c.Stderr() != &errw {
		t.Errorf("verbose console should forward child output")
	}
}
