package unit

import (
	"fmt"
	"strings"
	"text/template"
)

// Vars is the data a unit's templated fields are expanded against.
type Vars struct {
	Name        string
	Version     string
	Config      string // CMake configuration, "Debug" or "Release"
	Prefix      string // static library prefix of the host ("lib" or "")
	Ext         string // static library extension of the host (".a" or ".lib")
	Platform    string // platform selector, e.g. "sdl3"
	ProjectRoot string
	IncludeDir  string
	SourceDir   string

	Features map[string]bool
	Sources  map[string]string // source dirs of used units, by unit name
}

// Enabled reports whether the named unit is enabled in this run.
func (v Vars) Enabled(name string) bool {
	return v.Features[name]
}

// SourceOf returns the source directory of a used unit, or "" when that
// unit is disabled.
func (v Vars) SourceOf(name string) string {
	if !v.Enabled(name) {
		return ""
	}
	return v.Sources[name]
}

var funcs = template.FuncMap{
	"on": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}

// Expand executes s as a template against v. Strings without actions are
// returned unchanged.
func (v Vars) Expand(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	t, err := template.New(v.Name).Funcs(funcs).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("unit %s: parse %q: %w", v.Name, s, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, v); err != nil {
		return "", fmt.Errorf("unit %s: expand %q: %w", v.Name, s, err)
	}
	return b.String(), nil
}

// ExpandAll expands every element of ss.
func (v Vars) ExpandAll(ss []string) ([]string, error) {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		e, err := v.Expand(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ExpandOptions expands option values. Options that expand to the empty
// string are dropped, which lets an option depend on a feature.
func (v Vars) ExpandOptions(opts Options) (Options, error) {
	out := make(Options, 0, len(opts))
	for _, o := range opts {
		val, err := v.Expand(o.Value)
		if err != nil {
			return nil, err
		}
		if val == "" {
			continue
		}
		out = append(out, Option{Key: o.Key, Value: val})
	}
	return out, nil
}

// Expanded returns a copy of s with URL, archive, dir and marker expanded.
func (s *Spec) Expanded(v Vars) (*Spec, error) {
	c := *s
	var err error
	for _, f := range []*string{&c.URL, &c.Archive, &c.Dir, &c.Marker, &c.CMakeSource, &c.BuildDir, &c.Primary} {
		if *f, err = v.Expand(*f); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
