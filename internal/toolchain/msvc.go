package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/qiniu/x/log"
	"golang.org/x/mod/semver"
)

const (
	opMSVC      = "resolve toolchain"
	vcComponent = "Microsoft.VisualStudio.Component.VC.Tools.x86.x64"
	vsHint      = "install Visual Studio 2019 or later with the C++ workload"
)

// vsRelease is one supported Visual Studio major version.
type vsRelease struct {
	Generator   string
	SolutionExt string
}

var vsReleases = map[int]vsRelease{
	16: {"Visual Studio 16 2019", "sln"},
	17: {"Visual Studio 17 2022", "sln"},
	18: {"Visual Studio 18 2026", "slnx"},
}

// vsInstance is the subset of a vswhere JSON record we read.
type vsInstance struct {
	InstallationPath    string `json:"installationPath"`
	InstallationVersion string `json:"installationVersion"`
}

// majorOf returns the major number of a dotted VS version such as
// "17.8.34330.188".
func majorOf(version string) (int, error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v := "v" + strings.Join(parts, ".")
	if !semver.IsValid(v) {
		return 0, fmt.Errorf("malformed version %q", version)
	}
	return strconv.Atoi(strings.TrimPrefix(semver.Major(v), "v"))
}

func (r *Resolver) vswhere(ctx context.Context, prerelease bool) (*vsInstance, error) {
	args := []string{"-latest", "-products", "*", "-requires", vcComponent, "-format", "json"}
	if prerelease {
		args = append(args, "-prerelease")
	}
	out, err := r.Runner.Output(ctx, proc.Cmd{Name: r.Vswhere, Args: args})
	if err != nil {
		return nil, err
	}
	var instances []vsInstance
	if err := json.Unmarshal([]byte(out), &instances); err != nil {
		return nil, fmt.Errorf("parse vswhere output: %w", err)
	}
	for i := range instances {
		if instances[i].InstallationPath != "" {
			return &instances[i], nil
		}
	}
	return nil, nil
}

func (r *Resolver) resolveMSVC(ctx context.Context) (*Profile, error) {
	if !exists(r.Vswhere) {
		return nil, failure.Newf(failure.ToolchainNotFound, "", opMSVC,
			"vswhere not found at %s", r.Vswhere).WithHint(vsHint)
	}

	inst, err := r.vswhere(ctx, false)
	if err == nil && inst == nil {
		log.Debugf("no stable Visual Studio found, trying prerelease versions")
		inst, err = r.vswhere(ctx, true)
	}
	if err != nil {
		return nil, failure.New(failure.ToolchainNotFound, "", opMSVC, err).WithHint(vsHint)
	}
	if inst == nil {
		return nil, failure.Newf(failure.ToolchainNotFound, "", opMSVC,
			"no Visual Studio installation with C++ tools").WithHint(vsHint)
	}

	major, err := majorOf(inst.InstallationVersion)
	if err != nil {
		return nil, failure.New(failure.UnsupportedToolchainVersion, "", opMSVC, err)
	}
	rel, ok := vsReleases[major]
	if !ok {
		return nil, failure.Newf(failure.UnsupportedToolchainVersion, "", opMSVC,
			"Visual Studio %s", inst.InstallationVersion).WithHint("supported majors are 16, 17 and 18")
	}

	vcvars := filepath.Join(inst.InstallationPath, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	if !exists(vcvars) {
		return nil, failure.Newf(failure.ToolchainNotFound, "", opMSVC,
			"vcvarsall.bat not found in %s", inst.InstallationPath).WithHint(vsHint)
	}
	// cmd keeps the quoted script path intact because the command line
	// after /c does not start with a quote.
	out, err := r.Runner.Output(ctx, proc.Cmd{
		Name: "cmd",
		Args: []string{"/d", "/c", "call", vcvars, "amd64", ">nul", "&&", "set"},
	})
	if err != nil {
		return nil, failure.New(failure.ToolchainNotFound, "", opMSVC,
			fmt.Errorf("initialize developer environment: %w", err))
	}
	overlay := proc.ParseEnv(out)

	archiver := "lib.exe"
	if p, ok := proc.LookPathIn("lib.exe", proc.PathOf(overlay)); ok {
		archiver = p
	}
	return &Profile{
		Host:              env.Windows,
		Env:               overlay,
		Generator:         rel.Generator,
		GeneratorPlatform: "x64",
		SolutionExt:       rel.SolutionExt,
		Archiver:          archiver,
		CC:                "cl",
		CXX:               "cl",
		Version:           inst.InstallationVersion,
		Origin:            inst.InstallationPath,
		Distro:            "msvc",
	}, nil
}
