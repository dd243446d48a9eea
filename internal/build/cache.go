package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Library directory layout:
//
//	<lib dir>/
//	  .cache.json          # install records: unit name -> installEntry
//	  libfreetype.a        # canonical unit libraries
//	  ...
const cacheFile = ".cache.json"

// installEntry records one successful install of a unit.
type installEntry struct {
	Version     string    `json:"version"`
	InstallTime time.Time `json:"install_time"`
}

// installCache maps unit names to their last install.
type installCache struct {
	Units map[string]*installEntry `json:"units"`
}

func (c *installCache) get(name string) (*installEntry, bool) {
	entry, ok := c.Units[name]
	return entry, ok
}

func (c *installCache) set(name string, entry *installEntry) {
	if c.Units == nil {
		c.Units = make(map[string]*installEntry)
	}
	c.Units[name] = entry
}

// stale reports whether the recorded install of name is of a version other
// than version. Units without a record are trusted.
func (c *installCache) stale(name, version string) bool {
	entry, ok := c.get(name)
	return ok && entry.Version != version
}

func loadInstallCache(path string) (*installCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cache installCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func saveInstallCache(path string, cache *installCache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
