package unit

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/goplus/glimmerdeps/internal/failure"
	"gopkg.in/yaml.v3"
)

//go:embed units.yaml
var defaultCatalog []byte

// Catalog is the ordered list of units a run may build. Order is build
// order: a unit may only use units declared before it.
type Catalog struct {
	Units []*Spec `yaml:"units"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.New(failure.InvalidCatalog, "", "load catalog", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a catalog.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, failure.New(failure.InvalidCatalog, "", "load catalog", err)
	}
	if err := c.validate(); err != nil {
		return nil, failure.New(failure.InvalidCatalog, "", "load catalog", err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Units) == 0 {
		return fmt.Errorf("no units declared")
	}
	seen := make(map[string]bool, len(c.Units))
	for _, u := range c.Units {
		if err := u.validate(); err != nil {
			return err
		}
		if seen[u.Name] {
			return fmt.Errorf("unit %s declared twice", u.Name)
		}
		for _, dep := range u.Uses {
			if !seen[dep] {
				return fmt.Errorf("unit %s uses %s, which must be declared before it", u.Name, dep)
			}
		}
		seen[u.Name] = true
	}
	return nil
}

// Lookup returns the unit named name.
func (c *Catalog) Lookup(name string) (*Spec, bool) {
	for _, u := range c.Units {
		if u.Name == name {
			return u, true
		}
	}
	return nil, false
}

// Dependents returns the names of units that use name.
func (c *Catalog) Dependents(name string) []string {
	var deps []string
	for _, u := range c.Units {
		for _, used := range u.Uses {
			if used == name {
				deps = append(deps, u.Name)
			}
		}
	}
	return deps
}
