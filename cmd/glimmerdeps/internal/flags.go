package internal

import (
	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/feature"
	"github.com/spf13/cobra"
)

var (
	platformName string
	overrides    feature.Overrides
	releaseBuild bool
	debugBuild   bool
)

// addFeatureFlags registers the platform selector and feature switches.
func addFeatureFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&platformName, "platform", string(feature.SDL3), "Target platform: sdl3, glfw or test")
	f.BoolVar(&overrides.DisablePlots, "disable-plots", false, "Build without ImPlot")
	f.BoolVar(&overrides.DisableSVG, "disable-svg", false, "Build without LunaSVG/PlutoVG")
	f.BoolVar(&overrides.DisableImages, "disable-images", false, "Build without stb_image")
	f.BoolVar(&overrides.DisableIconFont, "disable-icon-font", false, "Build without the icon font headers")
	f.BoolVar(&overrides.DisableRichText, "disable-richtext", false, "Build Glimmer without rich text")
	f.BoolVar(&overrides.EnableBlend2D, "enable-blend2d", false, "Build Blend2D (sdl3, non-Windows only)")
}

// addBuildTypeFlags registers -r/--release and -d/--debug.
func addBuildTypeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&releaseBuild, "release", "r", false, "Release build (default)")
	cmd.Flags().BoolVarP(&debugBuild, "debug", "d", false, "Debug build")
	cmd.MarkFlagsMutuallyExclusive("release", "debug")
}

func buildType() env.BuildType {
	if debugBuild {
		return env.Debug
	}
	return env.Release
}

func platform() (feature.Platform, error) {
	return feature.ParsePlatform(platformName)
}
