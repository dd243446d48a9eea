package internal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/feature"
	"github.com/goplus/glimmerdeps/internal/orchestrator"
	"github.com/spf13/pflag"
)

// resetFlags restores every package-level flag to its default; cobra only
// writes the flags present on a command line.
func resetFlags() {
	rootDir, catalogPath, verbose, noColor = ".", "", false, false
	platformName, overrides = "sdl3", feature.Overrides{}
	releaseBuild, debugBuild = false, false
	buildUpdate, buildClean, buildJobs, buildPublish = false, false, 0, ""
	mergeOutput = ""
	for _, cmd := range append(rootCmd.Commands(), rootCmd) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildOptions(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	platformName = "glfw"
	overrides.DisablePlots = true
	debugBuild = true
	buildUpdate = true
	buildJobs = 6
	buildPublish = "s3://artifacts/glimmer"

	opts, err := buildOptions()
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	want := orchestrator.Options{
		Platform:  feature.GLFW,
		Overrides: feature.Overrides{DisablePlots: true},
		BuildType: env.Debug,
		Update:    true,
		Jobs:      6,
		Publish:   "s3://artifacts/glimmer",
	}
	if opts != want {
		t.Errorf("opts = %+v, want %+v", opts, want)
	}

	debugBuild = false
	if opts, _ := buildOptions(); opts.BuildType != env.Release {
		t.Errorf("default build type = %s", opts.BuildType)
	}

	platformName = "win32"
	if _, err := buildOptions(); !errors.Is(err, failure.InvalidPlatform) {
		t.Errorf("buildOptions error = %v, want InvalidPlatform", err)
	}

	platformName = "sdl3"
	buildJobs = -1
	if _, err := buildOptions(); err == nil {
		t.Error("negative jobs accepted")
	}
}

func TestFeaturesCommand(t *testing.T) {
	out, err := execute(t, "features", "--platform", "glfw", "--disable-svg")
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	for _, want := range []string{"+ glfw\n", "+ nfd\n", "- sdl3\n", "- lunasvg\n", "- blend2d\n", "+ implot\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "Glimmer options: GLIMMER_PLATFORM=glfw GLIMMER_DISABLE_SVG=ON GLIMMER_ENABLE_NFDEXT=ON\n") {
		t.Errorf("options line wrong:\n%s", out)
	}
}

func TestFeaturesInvalidPlatform(t *testing.T) {
	_, err := execute(t, "features", "--platform", "qt")
	if !errors.Is(err, failure.InvalidPlatform) {
		t.Errorf("error = %v, want InvalidPlatform", err)
	}
}

func TestBuildTypeFlagsExclusive(t *testing.T) {
	if _, err := execute(t, "status", "--root", t.TempDir(), "-r", "-d"); err == nil {
		t.Error("--release and --debug accepted together")
	}
}

func TestStatusCommand(t *testing.T) {
	out, err := execute(t, "status", "--root", t.TempDir(), "--platform", "sdl3")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{
		"freetype   2.14.1     missing\n",
		"implot     0.17       missing (used by imgui)\n",
		"glfw",
		"combined:  none\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "glfw ") && !strings.HasSuffix(line, " disabled") {
			t.Errorf("glfw line = %q, want disabled", line)
		}
	}
}

func TestStatusPartialManifest(t *testing.T) {
	root := t.TempDir()
	l, _ := env.NewLayout(root, env.POSIX, env.Release)
	if err := os.MkdirAll(l.CombinedDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := "run_id: 0b1c\nplatform: sdl3\nbuild_type: Release\n"
	if err := os.WriteFile(filepath.Join(l.CombinedDir(), "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "status", "--root", root, "--platform", "sdl3")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "combined:  none\n") {
		t.Errorf("output for a manifest without combined library:\n%s", out)
	}
}

func TestStatusCustomCatalog(t *testing.T) {
	_, err := execute(t, "status", "--root", t.TempDir(), "--catalog", "/nonexistent/units.yaml")
	if !errors.Is(err, failure.InvalidCatalog) {
		t.Errorf("error = %v, want InvalidCatalog", err)
	}
}

func TestMergeRequiresOutput(t *testing.T) {
	if _, err := execute(t, "merge", "liba.a"); err == nil {
		t.Error("merge without -o accepted")
	}
}
