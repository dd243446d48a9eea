// Package feature derives which units are active for a target platform.
package feature

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goplus/glimmerdeps/internal/failure"
)

// Platform is a target profile of the GUI toolkit.
type Platform string

const (
	SDL3 Platform = "sdl3" // native, SDL-backed windowing and rendering
	GLFW Platform = "glfw" // native, GLFW-backed windowing with OpenGL
	Test Platform = "test" // headless test target, core units only
)

// Platforms lists the accepted selectors.
var Platforms = []Platform{SDL3, GLFW, Test}

// ParsePlatform validates a platform selector.
func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", failure.Newf(failure.InvalidPlatform, "", "resolve features",
		"unknown platform %q", s).WithHint("expected one of sdl3, glfw, test")
}

// Overrides are the user's feature switches. All but EnableBlend2D can only
// turn units off.
type Overrides struct {
	DisablePlots    bool
	DisableSVG      bool
	DisableImages   bool
	DisableIconFont bool
	DisableRichText bool // main project only, no unit depends on it
	EnableBlend2D   bool
}

// Set maps unit name to enabled.
type Set map[string]bool

// Units known to the resolver.
var Units = []string{
	"freetype", "yoga", "imgui", "implot", "lunasvg", "sdl3", "glfw",
	"blend2d", "nfd", "json", "stb", "icons",
}

var baseline = map[Platform][]string{
	Test: {"freetype", "yoga", "imgui"},
	SDL3: {"freetype", "yoga", "imgui", "implot", "lunasvg", "sdl3", "blend2d", "stb", "icons"},
	GLFW: {"freetype", "yoga", "imgui", "implot", "lunasvg", "glfw", "nfd", "stb", "icons"},
}

// Resolve computes the feature set of platform p with o applied. It is a
// pure function of its inputs.
func Resolve(p Platform, o Overrides) Set {
	s := make(Set, len(Units))
	for _, name := range Units {
		s[name] = false
	}
	for _, name := range baseline[p] {
		s[name] = true
	}

	if o.DisablePlots {
		s["implot"] = false
	}
	if o.DisableSVG {
		s["lunasvg"] = false
	}
	if o.DisableImages {
		s["stb"] = false
	}
	if o.DisableIconFont {
		s["icons"] = false
	}
	// Blend2D is opt-in and only where the profile carries it.
	s["blend2d"] = s["blend2d"] && o.EnableBlend2D
	return s
}

// Enabled returns the enabled unit names, sorted.
func (s Set) Enabled() []string {
	var names []string
	for name, on := range s {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// String renders s deterministically, e.g. "+freetype -glfw +imgui".
func (s Set) String() string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		sign := "-"
		if s[name] {
			sign = "+"
		}
		parts[i] = sign + name
	}
	return strings.Join(parts, " ")
}

// MainOptions returns the main-project CMake definitions derived from p and o.
func MainOptions(p Platform, o Overrides, s Set, forceUpdate bool) []string {
	defs := []string{fmt.Sprintf("GLIMMER_PLATFORM=%s", p)}
	add := func(cond bool, key string) {
		if cond {
			defs = append(defs, key+"=ON")
		}
	}
	add(o.DisableSVG, "GLIMMER_DISABLE_SVG")
	add(o.DisableImages, "GLIMMER_DISABLE_IMAGES")
	add(o.DisableRichText, "GLIMMER_DISABLE_RICHTEXT")
	add(o.DisablePlots, "GLIMMER_DISABLE_PLOTS")
	add(s["nfd"], "GLIMMER_ENABLE_NFDEXT")
	add(s["blend2d"], "GLIMMER_ENABLE_BLEND2D")
	add(forceUpdate, "GLIMMER_FORCE_UPDATE")
	return defs
}
