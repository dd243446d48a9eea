//go:build windows

package toolchain

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

func defaultVswhere() string {
	dir, err := windows.KnownFolderPath(windows.FOLDERID_ProgramFilesX86, 0)
	if err != nil {
		dir = os.Getenv("ProgramFiles(x86)")
	}
	return filepath.Join(dir, "Microsoft Visual Studio", "Installer", "vswhere.exe")
}
