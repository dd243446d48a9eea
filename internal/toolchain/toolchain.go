// Package toolchain detects the native compiler environment a build runs
// in: the Visual Studio developer environment on Windows, a RHEL toolset or
// the system compiler elsewhere.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/proc"
)

// Profile is the resolved compiler environment. It is read-only once
// returned by a Resolver.
type Profile struct {
	Host env.Host

	// Env is applied on top of the parent environment of every child
	// process of the build. It never touches the current process.
	Env map[string]string

	Generator         string // CMake generator, empty for CMake's default
	GeneratorPlatform string // CMake -A value, MSVC only
	SolutionExt       string // "sln" or "slnx", MSVC only
	Archiver          string // lib.exe or ar
	CC                string
	CXX               string
	Version           string // MSVC installation version or compiler banner
	Origin            string // VS install path, toolset script or compiler path
	Distro            string // informational classification of the compiler banner
}

// MSVC reports whether p drives the Visual Studio toolchain.
func (p *Profile) MSVC() bool { return p.Host == env.Windows }

// Fingerprint identifies the compiler selection. A build directory
// configured under a different fingerprint must be reconfigured.
func (p *Profile) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", p.Generator, p.GeneratorPlatform, p.CC, p.CXX, p.Version)
}

// Resolver resolves the Profile of its host once.
type Resolver struct {
	Host   env.Host
	Runner proc.Runner

	// LookPath finds executables on the current PATH.
	LookPath func(file string) (string, error)
	// Vswhere is the path of vswhere.exe.
	Vswhere string
	// Toolsets are RHEL toolset enable scripts, probed in order.
	Toolsets []string

	mu      sync.Mutex
	done    bool
	profile *Profile
	err     error
}

// DefaultToolsets are the RHEL/CentOS toolsets newer than the system GCC.
var DefaultToolsets = []string{
	"/opt/rh/gcc-toolset-12/enable",
	"/opt/rh/gcc-toolset-11/enable",
	"/opt/rh/devtoolset-11/enable",
}

// New returns a Resolver for host that runs its probes through r.
func New(host env.Host, r proc.Runner) *Resolver {
	return &Resolver{
		Host:     host,
		Runner:   r,
		LookPath: exec.LookPath,
		Vswhere:  defaultVswhere(),
		Toolsets: DefaultToolsets,
	}
}

// Resolve returns the profile, probing the system on the first call only.
// Later calls return the same result without running anything.
func (r *Resolver) Resolve(ctx context.Context) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return r.profile, r.err
	}
	if r.Host == env.Windows {
		r.profile, r.err = r.resolveMSVC(ctx)
	} else {
		r.profile, r.err = r.resolvePOSIX(ctx)
	}
	r.done = true
	return r.profile, r.err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
