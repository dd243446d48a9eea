// Package env describes the on-disk layout shared by the dependency build,
// the main project build and anything consuming their outputs.
package env

import (
	"fmt"
	"os"
	"path/filepath"
)

// Host is the platform family the build runs on.
type Host string

const (
	Windows Host = "windows"
	POSIX   Host = "posix"
)

// HostOf maps a GOOS value to a Host.
func HostOf(goos string) Host {
	if goos == "windows" {
		return Windows
	}
	return POSIX
}

// LibPrefix returns the static library name prefix of h.
func (h Host) LibPrefix() string {
	if h == Windows {
		return ""
	}
	return "lib"
}

// LibExt returns the static library extension of h, with the leading dot.
func (h Host) LibExt() string {
	if h == Windows {
		return ".lib"
	}
	return ".a"
}

// LibName returns the canonical static library file name for name on h,
// e.g. "libfreetype.a" or "freetype.lib".
func (h Host) LibName(name string) string {
	return h.LibPrefix() + name + h.LibExt()
}

func (h Host) platformDir() string {
	if h == Windows {
		return "win32"
	}
	return "linux"
}

// BuildType is the CMake configuration being built.
type BuildType string

const (
	Debug   BuildType = "Debug"
	Release BuildType = "Release"
)

func (t BuildType) subdir() string {
	if t == Debug {
		return "debug"
	}
	return "release"
}

// Layout is the filesystem contract of a run:
//
//	<root>/
//	  src/libs/lib/<win32|linux>/<debug|release>/  # per-unit static libraries
//	  src/libs/inc/<unit>/                         # shared include tree
//	  dependency/                                  # downloads, sources, unit build dirs
//	  build/                                       # main project build dir
//	  staticlib/<Type>/                            # main project library
//	  staticlib/combined/<Type>/                   # merged archive + manifest
type Layout struct {
	Root      string
	Host      Host
	BuildType BuildType
}

// NewLayout returns the layout rooted at root, made absolute.
func NewLayout(root string, host Host, bt BuildType) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	return &Layout{Root: abs, Host: host, BuildType: bt}, nil
}

func (l *Layout) LibDir() string {
	return filepath.Join(l.Root, "src", "libs", "lib", l.Host.platformDir(), l.BuildType.subdir())
}

func (l *Layout) IncludeDir() string {
	return filepath.Join(l.Root, "src", "libs", "inc")
}

func (l *Layout) DependencyDir() string {
	return filepath.Join(l.Root, "dependency")
}

func (l *Layout) BuildDir() string {
	return filepath.Join(l.Root, "build")
}

func (l *Layout) StaticLibDir() string {
	return filepath.Join(l.Root, "staticlib", string(l.BuildType))
}

func (l *Layout) CombinedDir() string {
	return filepath.Join(l.Root, "staticlib", "combined", string(l.BuildType))
}

// MainLibrary returns the path of the main project's library for platform.
func (l *Layout) MainLibrary(platform string) string {
	return filepath.Join(l.StaticLibDir(), l.Host.LibName("glimmer_"+platform))
}

// CombinedLibrary returns the path of the merged archive.
func (l *Layout) CombinedLibrary() string {
	return filepath.Join(l.CombinedDir(), l.Host.LibName("glimmer"))
}

// Ensure creates the directories every run writes into.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.LibDir(), l.IncludeDir(), l.DependencyDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
