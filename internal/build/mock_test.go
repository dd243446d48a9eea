package build

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/glimmerdeps/internal/console"
	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/feature"
	"github.com/goplus/glimmerdeps/internal/fetch/fetchtest"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/goplus/glimmerdeps/internal/proc/proctest"
	"github.com/goplus/glimmerdeps/internal/toolchain"
	"github.com/goplus/glimmerdeps/internal/unit"
)

var tarGz = fetchtest.TarGz

const testCatalog = `units:
  - name: yoga
    version: "3.2.1"
    kind: cmake
    url: "https://example.com/yoga-{{.Version}}.tar.gz"
    archive: yoga.tar.gz
    dir: "yoga-{{.Version}}"
    marker: yoga/Yoga.h
    options:
      BUILD_SHARED_LIBS: "OFF"
      YOGA_SRC: "{{.SourceDir}}"
    artifacts:
      - name: yoga
        candidates:
          - "yoga/{{.Config}}/{{.Prefix}}yogacore{{.Ext}}"
          - "yoga/{{.Prefix}}yogacore{{.Ext}}"
    headers:
      - from: yoga
        glob: "*.h"
        to: yoga

  - name: blend2d
    version: "0.21.2"
    kind: cmake
    url: https://example.com/blend2d.tar.gz
    archive: blend2d.tar.gz
    dir: blend2d
    marker: CMakeLists.txt
    artifacts:
      - name: blend2d
        candidates: ["{{.Prefix}}blend2d{{.Ext}}"]
    headers:
      - from: [blend2d, src/blend2d]
        to: blend2d
        exclude: ["*.cpp"]

  - name: implot
    version: "0.17"
    kind: headers
    url: https://example.com/implot.tar.gz
    archive: implot.tar.gz
    dir: implot-0.17
    marker: implot.cpp
    primary: implot/implot.h
    headers:
      - from: "."
        glob: "*.h"
        to: implot

  - name: imgui
    version: "1.92.5"
    kind: cmake
    url: https://example.com/imgui.tar.gz
    archive: imgui.tar.gz
    dir: imgui-1.92.5
    marker: imgui.cpp
    uses: [implot]
    cmake_source: "{{.ProjectRoot}}/imgui_cmake"
    build_dir: build_imgui
    fresh: true
    options:
      BUILD_IMPLOT: '{{on (.Enabled "implot")}}'
      IMPLOT_DIR: '{{.SourceOf "implot"}}'
    artifacts:
      - name: imgui_static
        candidates: ["lib/{{.Prefix}}imgui_static{{.Ext}}"]
    headers:
      - from: "."
        glob: "*.h"
        to: imgui
      - from: backends
        files: [imgui_impl_sdl3.h]
        to: imguisdl3
        feature: sdl3
      - from: backends
        files: [imgui_impl_glfw.h]
        to: imguiglfw
        feature: glfw

  - name: stb
    version: master
    kind: file
    url: https://example.com/stb_image.h
    primary: stb_image/stb_image.h
`

// testArchives are the downloads of testCatalog.
func testArchives(t *testing.T) map[string][]byte {
	return map[string][]byte{
		"https://example.com/yoga-3.2.1.tar.gz": tarGz(t, map[string]string{
			"yoga-3.2.1/CMakeLists.txt": "project(yoga)\n",
			"yoga-3.2.1/yoga/Yoga.h":    "// yoga\n",
			"yoga-3.2.1/yoga/YGNode.h":  "// node\n",
			"yoga-3.2.1/yoga/Yoga.cpp":  "// impl\n",
		}),
		"https://example.com/blend2d.tar.gz": tarGz(t, map[string]string{
			"blend2d/CMakeLists.txt":           "project(blend2d)\n",
			"blend2d/src/blend2d/blend2d.h":    "// b2d\n",
			"blend2d/src/blend2d/core/api.h":   "// api\n",
			"blend2d/src/blend2d/core/api.cpp": "// impl\n",
		}),
		"https://example.com/implot.tar.gz": tarGz(t, map[string]string{
			"implot-0.17/implot.cpp": "// impl\n",
			"implot-0.17/implot.h":   "// implot\n",
		}),
		"https://example.com/imgui.tar.gz": tarGz(t, map[string]string{
			"imgui-1.92.5/imgui.cpp":                  "// impl\n",
			"imgui-1.92.5/imgui.h":                    "// imgui\n",
			"imgui-1.92.5/backends/imgui_impl_sdl3.h": "// sdl3\n",
			"imgui-1.92.5/backends/imgui_impl_glfw.h": "// glfw\n",
		}),
		"https://example.com/stb_image.h": []byte("// stb_image\n"),
	}
}

// compiler is a proctest hook that plays the part of "cmake --build": it
// creates the given file (relative to the build dir) for every build dir
// whose slash-separated path ends with the key.
func compiler(outputs map[string]string) func(c proc.Cmd) error {
	return func(c proc.Cmd) error {
		if len(c.Args) < 2 || c.Args[0] != "--build" {
			return nil
		}
		dir := c.Args[1]
		for key, rel := range outputs {
			if strings.HasSuffix(filepath.ToSlash(dir), key) {
				p := filepath.Join(dir, filepath.FromSlash(rel))
				if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(p, []byte("!<arch>\n"), 0o644); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

var posixOutputs = map[string]string{
	"yoga-3.2.1/build": "yoga/libyogacore.a",
	"blend2d/build":    "libblend2d.a",
	"build_imgui":      "lib/libimgui_static.a",
}

func posixProfile() *toolchain.Profile {
	return &toolchain.Profile{
		Host:     env.POSIX,
		Env:      map[string]string{"CC": "gcc", "CXX": "g++"},
		Archiver: "ar",
		CC:       "gcc",
		CXX:      "g++",
		Version:  "gcc (GCC) 13.2.0",
	}
}

type fixture struct {
	layout *env.Layout
	runner *proctest.Runner
	dl     *fetchtest.Downloader
	p      *Pipeline
	cat    *unit.Catalog
}

func newFixture(t *testing.T, host env.Host, bt env.BuildType, outputs map[string]string) *fixture {
	t.Helper()
	cat, err := unit.Load(strings.NewReader(testCatalog))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	l, err := env.NewLayout(t.TempDir(), host, bt)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Ensure(); err != nil {
		t.Fatal(err)
	}
	runner := &proctest.Runner{RunFunc: compiler(outputs)}
	dl := &fetchtest.Downloader{Files: testArchives(t)}
	p := New(l, runner, dl, cat)
	p.Console = console.New(io.Discard, io.Discard)
	p.Platform = "sdl3"
	p.Features = feature.Set{"yoga": true, "blend2d": true, "implot": true, "imgui": true, "stb": true, "sdl3": true}
	p.Jobs = 2
	return &fixture{layout: l, runner: runner, dl: dl, p: p, cat: cat}
}

func (f *fixture) spec(t *testing.T, name string) *unit.Spec {
	t.Helper()
	s, ok := f.cat.Lookup(name)
	if !ok {
		t.Fatalf("unit %s not in test catalog", name)
	}
	return s
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
