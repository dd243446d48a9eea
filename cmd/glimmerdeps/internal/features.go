package internal

import (
	"fmt"
	"strings"

	"github.com/goplus/glimmerdeps/internal/feature"
	"github.com/spf13/cobra"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Show the dependencies enabled for a platform",
	Args:  cobra.NoArgs,
	RunE:  runFeatures,
}

func init() {
	addFeatureFlags(featuresCmd)
	rootCmd.AddCommand(featuresCmd)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	p, err := platform()
	if err != nil {
		return err
	}
	set := feature.Resolve(p, overrides)

	out := cmd.OutOrStdout()
	for _, name := range feature.Units {
		mark := "-"
		if set[name] {
			mark = "+"
		}
		fmt.Fprintf(out, "%s %s\n", mark, name)
	}
	fmt.Fprintf(out, "\nGlimmer options: %s\n", strings.Join(feature.MainOptions(p, overrides, set, false), " "))
	return nil
}
