package unit

import (
	"errors"
	"strings"
	"testing"

	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/failure"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	want := "freetype yoga lunasvg sdl3 glfw blend2d implot imgui nfd json stb icons"
	var names []string
	for _, u := range c.Units {
		names = append(names, u.Name)
	}
	if got := strings.Join(names, " "); got != want {
		t.Errorf("units = %q, want %q", got, want)
	}

	imgui, ok := c.Lookup("imgui")
	if !ok {
		t.Fatal("imgui not in catalog")
	}
	if imgui.Kind != CMake || len(imgui.Uses) != 1 || imgui.Uses[0] != "implot" {
		t.Errorf("imgui = kind %s uses %v", imgui.Kind, imgui.Uses)
	}
	if got := c.Dependents("implot"); len(got) != 1 || got[0] != "imgui" {
		t.Errorf("Dependents(implot) = %v", got)
	}
	if got := c.Dependents("nfd"); len(got) != 0 {
		t.Errorf("Dependents(nfd) = %v", got)
	}

	// Options keep declaration order.
	ft, _ := c.Lookup("freetype")
	if ft.Options[0].Key != "BUILD_SHARED_LIBS" || ft.Options[len(ft.Options)-1].Key != "FT_DISABLE_BROTLI" {
		t.Errorf("freetype options out of order: %v", ft.Options)
	}

	b2d, _ := c.Lookup("blend2d")
	if b2d.Supports(env.Windows) || !b2d.Supports(env.POSIX) {
		t.Errorf("blend2d should be POSIX-only")
	}
}

func TestForHost(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	glfw, _ := c.Lookup("glfw")

	posix := glfw.ForHost(env.POSIX)
	if posix.Kind != CMake || posix.Archive != "glfw.tar.gz" {
		t.Errorf("posix glfw = %s %s", posix.Kind, posix.Archive)
	}

	win := glfw.ForHost(env.Windows)
	if win.Kind != Prebuilt || win.Archive != "glfw.zip" || len(win.Artifacts) != 2 {
		t.Errorf("windows glfw = %s %s %d artifacts", win.Kind, win.Archive, len(win.Artifacts))
	}
	if len(win.Headers) != len(glfw.Headers) {
		t.Errorf("windows glfw should inherit header rules")
	}
	if win.Hosts != nil {
		t.Errorf("ForHost result should carry no overrides")
	}
	// The catalog entry itself is untouched.
	if glfw.Kind != CMake {
		t.Errorf("ForHost mutated the original spec")
	}
}

func TestExpand(t *testing.T) {
	v := Vars{
		Name:        "imgui",
		Version:     "1.92.5",
		Config:      "Release",
		Prefix:      "lib",
		Ext:         ".a",
		Platform:    "sdl3",
		ProjectRoot: "/p",
		IncludeDir:  "/p/src/libs/inc",
		SourceDir:   "/p/dependency/imgui-1.92.5",
		Features:    map[string]bool{"implot": true, "blend2d": false},
		Sources:     map[string]string{"implot": "/p/dependency/implot-0.17"},
	}

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"imgui-{{.Version}}", "imgui-1.92.5"},
		{"lib/{{.Config}}/{{.Prefix}}imgui_static{{.Ext}}", "lib/Release/libimgui_static.a"},
		{`{{on (.Enabled "implot")}}`, "ON"},
		{`{{.SourceOf "implot"}}`, "/p/dependency/implot-0.17"},
		{`{{on (eq .Platform "glfw")}}`, "OFF"},
		{`{{if .Enabled "blend2d"}}ON{{end}}`, ""},
	}
	for _, tt := range tests {
		got, err := v.Expand(tt.in)
		if err != nil {
			t.Errorf("Expand(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := v.Expand("{{.Missing}}"); err == nil {
		t.Errorf("Expand of unknown field should fail")
	}

	v.Features["implot"] = false
	if got, _ := v.Expand(`{{.SourceOf "implot"}}`); got != "" {
		t.Errorf("SourceOf disabled unit = %q, want empty", got)
	}
}

func TestExpandOptionsDropsEmpty(t *testing.T) {
	v := Vars{Name: "imgui", Features: map[string]bool{}}
	opts, err := v.ExpandOptions(Options{
		{Key: "BUILD_IMPLOT", Value: `{{on (.Enabled "implot")}}`},
		{Key: "IMPLOT_DIR", Value: `{{.SourceOf "implot"}}`},
		{Key: "FIXED", Value: "1"},
	})
	if err != nil {
		t.Fatalf("ExpandOptions: %v", err)
	}
	if len(opts) != 2 || opts[0] != (Option{"BUILD_IMPLOT", "OFF"}) || opts[1] != (Option{"FIXED", "1"}) {
		t.Errorf("ExpandOptions = %v", opts)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"empty", "units: []\n", "no units"},
		{"unknown field", "units:\n  - name: a\n    colour: red\n", "colour"},
		{"unknown kind", "units:\n  - name: a\n    kind: meson\n    url: u\n", "unknown kind"},
		{"no artifacts", "units:\n  - name: a\n    kind: cmake\n    url: u\n    archive: a.tgz\n    dir: a\n", "artifacts"},
		{"use before declare", `units:
  - name: a
    kind: headers
    url: u
    archive: a.tgz
    dir: a
    primary: a/a.h
    uses: [b]
`, "declared before"},
		{"duplicate", `units:
  - {name: a, kind: file, url: u, primary: a.h}
  - {name: a, kind: file, url: u, primary: a.h}
`, "twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !errors.Is(err, failure.InvalidCatalog) {
				t.Errorf("error kind = %v, want InvalidCatalog", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestPathsScalar(t *testing.T) {
	c, err := Load(strings.NewReader(`units:
  - name: a
    kind: headers
    url: u
    archive: a.tgz
    dir: a
    primary: a/a.h
    headers:
      - from: include
        to: a
      - from: [x, y]
        to: b
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h := c.Units[0].Headers
	if len(h[0].From) != 1 || h[0].From[0] != "include" {
		t.Errorf("scalar from = %v", h[0].From)
	}
	if len(h[1].From) != 2 || h[1].From[1] != "y" {
		t.Errorf("list from = %v", h[1].From)
	}
}
