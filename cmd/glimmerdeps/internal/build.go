package internal

import (
	"fmt"

	"github.com/goplus/glimmerdeps/internal/console"
	"github.com/goplus/glimmerdeps/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	buildUpdate  bool
	buildClean   bool
	buildJobs    int
	buildPublish string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the dependencies, Glimmer and the combined library",
	Long: `Build resolves the features of the selected platform and the host toolchain,
ensures every enabled dependency is installed, builds Glimmer and merges all
static libraries into staticlib/combined/<type>.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	addFeatureFlags(buildCmd)
	addBuildTypeFlags(buildCmd)
	buildCmd.Flags().BoolVar(&buildUpdate, "update", false, "Rebuild every dependency")
	buildCmd.Flags().BoolVar(&buildClean, "clean", false, "Remove the build and dependency directories first")
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "Parallel compile jobs (default: number of CPUs)")
	buildCmd.Flags().StringVar(&buildPublish, "publish", "", "Upload the combined library to s3://bucket/prefix")
	rootCmd.AddCommand(buildCmd)
}

func buildOptions() (orchestrator.Options, error) {
	p, err := platform()
	if err != nil {
		return orchestrator.Options{}, err
	}
	if buildJobs < 0 {
		return orchestrator.Options{}, fmt.Errorf("--jobs must not be negative")
	}
	return orchestrator.Options{
		Platform:  p,
		Overrides: overrides,
		BuildType: buildType(),
		Update:    buildUpdate,
		Clean:     buildClean,
		Jobs:      buildJobs,
		Publish:   buildPublish,
	}, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	o := orchestrator.New(root, hostOS(), cat, newRunner())
	rep, err := o.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	c := console.Std()
	c.Step("Built %d dependencies, skipped %d", len(rep.Units), len(rep.Skipped))
	if rep.Combined != nil {
		c.Section("Output: %s", rep.Combined.Path)
	}
	for _, key := range rep.Published {
		c.Step("Uploaded %s", key)
	}
	return nil
}
