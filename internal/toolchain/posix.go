package toolchain

import (
	"context"
	"strings"

	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/qiniu/x/log"
)

// compilers are probed on PATH in order, each with its C++ driver.
var compilers = []struct{ cc, cxx string }{
	{"gcc", "g++"},
	{"cc", "c++"},
	{"clang", "clang++"},
}

func (r *Resolver) resolvePOSIX(ctx context.Context) (*Profile, error) {
	for _, script := range r.Toolsets {
		if !exists(script) {
			continue
		}
		out, err := r.Runner.Output(ctx, proc.Cmd{
			Name: "bash",
			Args: []string{"-c", "source " + script + " && env"},
		})
		if err != nil {
			log.Debugf("toolset %s: %v", script, err)
			continue
		}
		overlay := proc.ParseEnv(out)
		if overlay["CC"] == "" {
			overlay["CC"] = "gcc"
		}
		if overlay["CXX"] == "" {
			overlay["CXX"] = "g++"
		}
		return &Profile{
			Host:     env.POSIX,
			Env:      overlay,
			Archiver: "ar",
			CC:       overlay["CC"],
			CXX:      overlay["CXX"],
			Version:  strings.TrimSuffix(strings.TrimPrefix(script, "/opt/rh/"), "/enable"),
			Origin:   script,
			Distro:   "rhel-toolset",
		}, nil
	}

	for _, c := range compilers {
		path, err := r.LookPath(c.cc)
		if err != nil {
			continue
		}
		banner := ""
		if out, err := r.Runner.Output(ctx, proc.Cmd{Name: path, Args: []string{"--version"}}); err == nil {
			banner, _, _ = strings.Cut(strings.TrimSpace(out), "\n")
		}
		return &Profile{
			Host:     env.POSIX,
			Env:      map[string]string{"CC": c.cc, "CXX": c.cxx},
			Archiver: "ar",
			CC:       c.cc,
			CXX:      c.cxx,
			Version:  banner,
			Origin:   path,
			Distro:   classify(banner),
		}, nil
	}

	return nil, failure.Newf(failure.ToolchainNotFound, "", "resolve toolchain",
		"no C compiler on PATH").WithHint("install build-essential (Ubuntu) or gcc-c++ (Fedora)")
}

// classify names the origin of a compiler banner for display. An empty
// result means the distribution is unknown, which is not an error.
func classify(banner string) string {
	switch {
	case strings.Contains(banner, "Ubuntu"):
		return "ubuntu"
	case strings.Contains(banner, "Fedora"), strings.Contains(banner, "Red Hat"):
		return "fedora"
	case strings.Contains(banner, "clang"):
		return "clang"
	case strings.Contains(banner, "Free Software Foundation"), strings.HasPrefix(banner, "gcc"):
		return "gnu"
	}
	return ""
}
