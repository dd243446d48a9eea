// Package unit describes the third-party dependencies ("units") the build
// fetches, compiles and installs. Specs are declarative and immutable once
// loaded; string fields may contain text/template actions expanded against
// Vars at build time.
package unit

import (
	"fmt"
	"slices"

	"github.com/goplus/glimmerdeps/internal/env"
	"gopkg.in/yaml.v3"
)

// Kind selects the pipeline steps a unit goes through.
type Kind string

const (
	// CMake units are fetched, configured, compiled, located and installed.
	CMake Kind = "cmake"
	// Prebuilt units ship binaries: fetched, located in the source tree, installed.
	Prebuilt Kind = "prebuilt"
	// Headers units are fetched and only have their headers installed.
	Headers Kind = "headers"
	// File units are a single header downloaded straight into the include tree.
	File Kind = "file"
)

func (k Kind) valid() bool {
	switch k {
	case CMake, Prebuilt, Headers, File:
		return true
	}
	return false
}

// Compiled reports whether units of kind k produce static libraries.
func (k Kind) Compiled() bool {
	return k == CMake || k == Prebuilt
}

// Option is one build-configuration definition passed to CMake.
type Option struct {
	Key   string
	Value string
}

// Options keeps definitions in declaration order. In YAML it is a mapping.
type Options []Option

func (o *Options) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: options must be a mapping", node.Line)
	}
	opts := make(Options, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: option %s must be a scalar", v.Line, k.Value)
		}
		opts = append(opts, Option{Key: k.Value, Value: v.Value})
	}
	*o = opts
	return nil
}

func (o Options) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, opt := range o {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: opt.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: opt.Value, Style: yaml.DoubleQuotedStyle})
	}
	return node, nil
}

// Paths is a list of relative paths that also accepts a single scalar.
type Paths []string

func (p *Paths) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*p = Paths{node.Value}
		return nil
	case yaml.SequenceNode:
		var s []string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = s
		return nil
	}
	return fmt.Errorf("line %d: expected a path or a list of paths", node.Line)
}

// Artifact is one static library a unit produces. Candidates are probed in
// order relative to the unit's build directory (source directory for
// prebuilt units); Name is the canonical library name it is installed as.
type Artifact struct {
	Name       string `yaml:"name"`
	Candidates Paths  `yaml:"candidates"`
}

// HeaderRule copies part of a unit's source tree into the shared include
// tree.
type HeaderRule struct {
	From    Paths    `yaml:"from"`              // candidate source dirs/files, first existing wins
	To      string   `yaml:"to"`                // subdirectory of the include tree
	Glob    string   `yaml:"glob,omitempty"`    // copy only matching files, non-recursive
	Files   []string `yaml:"files,omitempty"`   // copy only these files
	Exclude []string `yaml:"exclude,omitempty"` // file name patterns skipped in tree copies
	Feature string   `yaml:"feature,omitempty"` // copy only when this feature is enabled
}

// Override replaces fields of a Spec on one host. Non-empty fields win.
type Override struct {
	URL       string       `yaml:"url,omitempty"`
	Archive   string       `yaml:"archive,omitempty"`
	Dir       string       `yaml:"dir,omitempty"`
	Marker    string       `yaml:"marker,omitempty"`
	Kind      Kind         `yaml:"kind,omitempty"`
	Options   Options      `yaml:"options,omitempty"`
	Artifacts []Artifact   `yaml:"artifacts,omitempty"`
	Headers   []HeaderRule `yaml:"headers,omitempty"`
}

// Spec is the static description of one unit.
type Spec struct {
	Name        string                `yaml:"name"`
	Version     string                `yaml:"version"`
	Kind        Kind                  `yaml:"kind"`
	URL         string                `yaml:"url"`
	Archive     string                `yaml:"archive,omitempty"`      // download file name in the dependency dir
	Dir         string                `yaml:"dir,omitempty"`          // extracted source directory name
	Marker      string                `yaml:"marker,omitempty"`       // file proving a complete extraction
	CMakeSource string                `yaml:"cmake_source,omitempty"` // CMake project dir, defaults to the source dir
	BuildDir    string                `yaml:"build_dir,omitempty"`    // relative to the dependency dir
	Fresh       bool                  `yaml:"fresh,omitempty"`        // wipe the build dir before configuring
	Options     Options               `yaml:"options,omitempty"`
	Artifacts   []Artifact            `yaml:"artifacts,omitempty"`
	Headers     []HeaderRule          `yaml:"headers,omitempty"`
	Primary     string                `yaml:"primary,omitempty"` // header-only units: output relative to the include tree
	Uses        []string              `yaml:"uses,omitempty"`    // source-only units whose trees this unit reads
	Only        []env.Host            `yaml:"only,omitempty"`
	Hosts       map[env.Host]Override `yaml:"hosts,omitempty"`
}

// Supports reports whether the unit is built on host h.
func (s *Spec) Supports(h env.Host) bool {
	return len(s.Only) == 0 || slices.Contains(s.Only, h)
}

// ForHost returns a copy of s with the override for h applied.
func (s *Spec) ForHost(h env.Host) *Spec {
	c := *s
	c.Hosts = nil
	o, ok := s.Hosts[h]
	if !ok {
		return &c
	}
	if o.URL != "" {
		c.URL = o.URL
	}
	if o.Archive != "" {
		c.Archive = o.Archive
	}
	if o.Dir != "" {
		c.Dir = o.Dir
	}
	if o.Marker != "" {
		c.Marker = o.Marker
	}
	if o.Kind != "" {
		c.Kind = o.Kind
	}
	if o.Options != nil {
		c.Options = o.Options
	}
	if o.Artifacts != nil {
		c.Artifacts = o.Artifacts
	}
	if o.Headers != nil {
		c.Headers = o.Headers
	}
	return &c
}

func (s *Spec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("unit without name")
	}
	if !s.Kind.valid() {
		return fmt.Errorf("unit %s: unknown kind %q", s.Name, s.Kind)
	}
	if s.URL == "" {
		return fmt.Errorf("unit %s: url is required", s.Name)
	}
	switch s.Kind {
	case CMake, Prebuilt:
		if len(s.Artifacts) == 0 {
			return fmt.Errorf("unit %s: %s units must declare artifacts", s.Name, s.Kind)
		}
		for _, a := range s.Artifacts {
			if a.Name == "" || len(a.Candidates) == 0 {
				return fmt.Errorf("unit %s: artifact needs a name and candidates", s.Name)
			}
		}
	case Headers, File:
		if s.Primary == "" {
			return fmt.Errorf("unit %s: %s units must declare a primary header", s.Name, s.Kind)
		}
	}
	if s.Kind != File && (s.Dir == "" || s.Archive == "") {
		return fmt.Errorf("unit %s: archive and dir are required", s.Name)
	}
	for h, o := range s.Hosts {
		if o.Kind != "" && !o.Kind.valid() {
			return fmt.Errorf("unit %s: host %s: unknown kind %q", s.Name, h, o.Kind)
		}
	}
	return nil
}
