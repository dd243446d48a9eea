// Package artifact finds build outputs whose location depends on the
// generator: multi-config generators nest outputs under a configuration
// directory, single-config generators write to the build root.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NotFoundError lists every candidate probed.
type NotFoundError struct {
	Root  string
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no artifact under %s, tried: %s", e.Root, strings.Join(e.Tried, ", "))
}

// Locate returns the first candidate, relative to root, that exists. Order
// is significant: list the most likely path for the current generator
// first. Absolute candidates are probed as-is.
func Locate(root string, candidates []string) (string, error) {
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		p := c
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, filepath.FromSlash(c))
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		tried = append(tried, c)
	}
	return "", &NotFoundError{Root: root, Tried: tried}
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
