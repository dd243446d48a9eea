//go:build !windows

package toolchain

import (
	"os"
	"path/filepath"
)

// Only reachable with an explicit Windows host, e.g. in tests.
func defaultVswhere() string {
	return filepath.Join(os.Getenv("ProgramFiles(x86)"), "Microsoft Visual Studio", "Installer", "vswhere.exe")
}
