package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/goplus/glimmerdeps/internal/proc/proctest"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o755); err != nil {
		t.Fatal(err)
	}
}

// vsFixture lays out a fake Visual Studio install and returns a resolver
// whose vswhere answers with version for stable (and prerelease when
// prerelease is set).
func vsFixture(t *testing.T, version string, prerelease bool) (*Resolver, *proctest.Runner) {
	t.Helper()
	dir := t.TempDir()
	vswhere := filepath.Join(dir, "Installer", "vswhere.exe")
	install := filepath.Join(dir, "VS")
	touch(t, vswhere)
	touch(t, filepath.Join(install, "VC", "Auxiliary", "Build", "vcvarsall.bat"))

	record := `[{"installationPath": ` + jsonString(install) + `, "installationVersion": "` + version + `"}]`
	fake := &proctest.Runner{
		OutputFunc: func(c proc.Cmd) (string, error) {
			switch c.Name {
			case vswhere:
				isPre := strings.Contains(c.String(), "-prerelease")
				if isPre == prerelease {
					return record, nil
				}
				return "[]", nil
			case "cmd":
				return "PATH=C:\\VS\\bin\r\nINCLUDE=C:\\VS\\include\r\nVSCMD_VER=17.8.0\r\n", nil
			}
			return "", errors.New("unexpected command " + c.Name)
		},
	}
	r := New(env.Windows, fake)
	r.Vswhere = vswhere
	return r, fake
}

func jsonString(s string) string {
	return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
}

func TestResolveMSVC(t *testing.T) {
	tests := []struct {
		version   string
		generator string
		ext       string
	}{
		{"16.11.34601.136", "Visual Studio 16 2019", "sln"},
		{"17.8.34330.188", "Visual Studio 17 2022", "sln"},
		{"18.0.11111.16", "Visual Studio 18 2026", "slnx"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			r, fake := vsFixture(t, tt.version, false)
			p, err := r.Resolve(context.Background())
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if p.Generator != tt.generator || p.SolutionExt != tt.ext || p.GeneratorPlatform != "x64" {
				t.Errorf("profile = %q/%q/%q", p.Generator, p.SolutionExt, p.GeneratorPlatform)
			}
			if p.Env["INCLUDE"] != "C:\\VS\\include" {
				t.Errorf("overlay INCLUDE = %q", p.Env["INCLUDE"])
			}
			if !p.MSVC() || p.Version != tt.version {
				t.Errorf("MSVC = %v, Version = %q", p.MSVC(), p.Version)
			}
			if n := fake.Count("-prerelease"); n != 0 {
				t.Errorf("prerelease queried %d times for a stable install", n)
			}
		})
	}
}

func TestResolveMSVCPrerelease(t *testing.T) {
	r, fake := vsFixture(t, "18.0.11111.16", true)
	p, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Generator != "Visual Studio 18 2026" {
		t.Errorf("Generator = %q", p.Generator)
	}
	if n := fake.Count("-prerelease"); n != 1 {
		t.Errorf("prerelease queried %d times, want 1", n)
	}
}

func TestResolveMSVCUnsupportedVersion(t *testing.T) {
	r, fake := vsFixture(t, "99.0.1", false)
	_, err := r.Resolve(context.Background())
	if !errors.Is(err, failure.UnsupportedToolchainVersion) {
		t.Fatalf("Resolve error = %v, want UnsupportedToolchainVersion", err)
	}
	if n := fake.Count("vcvarsall"); n != 0 {
		t.Errorf("vcvarsall ran %d times for an unsupported version", n)
	}
}

func TestResolveMSVCNotFound(t *testing.T) {
	t.Run("no vswhere", func(t *testing.T) {
		r := New(env.Windows, &proctest.Runner{})
		r.Vswhere = filepath.Join(t.TempDir(), "vswhere.exe")
		_, err := r.Resolve(context.Background())
		if !errors.Is(err, failure.ToolchainNotFound) {
			t.Errorf("Resolve error = %v, want ToolchainNotFound", err)
		}
	})
	t.Run("no instances", func(t *testing.T) {
		vswhere := filepath.Join(t.TempDir(), "vswhere.exe")
		touch(t, vswhere)
		fake := &proctest.Runner{OutputFunc: func(proc.Cmd) (string, error) { return "[]", nil }}
		r := New(env.Windows, fake)
		r.Vswhere = vswhere
		_, err := r.Resolve(context.Background())
		if !errors.Is(err, failure.ToolchainNotFound) {
			t.Errorf("Resolve error = %v, want ToolchainNotFound", err)
		}
		if len(fake.Calls()) != 2 {
			t.Errorf("vswhere ran %d times, want 2", len(fake.Calls()))
		}
	})
}

func TestResolvePOSIXToolset(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gcc-toolset-12", "enable")
	present := filepath.Join(dir, "gcc-toolset-11", "enable")
	touch(t, present)

	fake := &proctest.Runner{
		OutputFunc: func(c proc.Cmd) (string, error) {
			if c.Name != "bash" || !strings.Contains(c.Args[1], present) {
				return "", errors.New("unexpected " + c.String())
			}
			return "PATH=/opt/rh/gcc-toolset-11/root/usr/bin:/usr/bin\nCXX=/opt/rh/gcc-toolset-11/root/usr/bin/g++\n", nil
		},
	}
	r := New(env.POSIX, fake)
	r.Toolsets = []string{missing, present}
	r.LookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	p, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.CC != "gcc" || p.CXX != "/opt/rh/gcc-toolset-11/root/usr/bin/g++" {
		t.Errorf("CC/CXX = %q/%q", p.CC, p.CXX)
	}
	if !strings.HasPrefix(p.Env["PATH"], "/opt/rh/gcc-toolset-11") {
		t.Errorf("overlay PATH = %q", p.Env["PATH"])
	}
	if p.Archiver != "ar" || p.MSVC() || p.Generator != "" {
		t.Errorf("profile = %+v", p)
	}
}

func TestResolvePOSIXSystemCompiler(t *testing.T) {
	fake := &proctest.Runner{
		OutputFunc: func(c proc.Cmd) (string, error) {
			return "clang version 18.1.3\nTarget: x86_64-pc-linux-gnu\n", nil
		},
	}
	r := New(env.POSIX, fake)
	r.Toolsets = nil
	r.LookPath = func(file string) (string, error) {
		if file == "clang" {
			return "/usr/bin/clang", nil
		}
		return "", exec.ErrNotFound
	}

	p, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.CC != "clang" || p.CXX != "clang++" || p.Distro != "clang" {
		t.Errorf("profile = %+v", p)
	}
	if p.Version != "clang version 18.1.3" {
		t.Errorf("Version = %q", p.Version)
	}
}

func TestResolvePOSIXNotFound(t *testing.T) {
	r := New(env.POSIX, &proctest.Runner{})
	r.Toolsets = nil
	r.LookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := r.Resolve(context.Background())
	if !errors.Is(err, failure.ToolchainNotFound) {
		t.Fatalf("Resolve error = %v, want ToolchainNotFound", err)
	}
	if !strings.Contains(err.Error(), "build-essential") {
		t.Errorf("error lacks install hint: %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r, fake := vsFixture(t, "17.8.34330.188", false)
	first, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	calls := len(fake.Calls())

	second, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if second != first {
		t.Errorf("second Resolve returned a different profile")
	}
	if len(fake.Calls()) != calls {
		t.Errorf("second Resolve ran %d commands", len(fake.Calls())-calls)
	}
}

func TestMajorOf(t *testing.T) {
	for in, want := range map[string]int{
		"17.8.34330.188": 17,
		"16.11":          16,
		"18":             18,
	} {
		if got, err := majorOf(in); err != nil || got != want {
			t.Errorf("majorOf(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := majorOf("preview"); err == nil {
		t.Errorf("majorOf(preview) succeeded")
	}
}

func TestClassify(t *testing.T) {
	for banner, want := range map[string]string{
		"gcc (Ubuntu 13.2.0-4ubuntu3) 13.2.0": "ubuntu",
		"gcc (GCC) 14.1.1 (Red Hat 14.1.1-6)": "fedora",
		"Apple clang version 15.0.0":          "clang",
		"gcc (GCC) 12.2.0":                    "gnu",
		"tcc version 0.9.27":                  "",
	} {
		if got := classify(banner); got != want {
			t.Errorf("classify(%q) = %q, want %q", banner, got, want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := &Profile{Generator: "Visual Studio 17 2022", GeneratorPlatform: "x64", CC: "cl", CXX: "cl", Version: "17.8"}
	b := *a
	b.Version = "17.9"
	if a.Fingerprint() == b.Fingerprint() {
		t.Errorf("fingerprint ignores version")
	}
}
