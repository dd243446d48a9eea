package internal

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goplus/glimmerdeps/internal/build"
	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/feature"
	"github.com/goplus/glimmerdeps/internal/orchestrator"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every dependency",
	Long:  `Status inspects the project layout and reports, per dependency, how far it got: missing, fetched, configured, built or installed.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	addFeatureFlags(statusCmd)
	addBuildTypeFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := platform()
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
	l, err := env.NewLayout(root, hostOS(), buildType())
	if err != nil {
		return err
	}

	set := feature.Resolve(p, overrides)
	pipeline := build.New(l, nil, nil, cat)
	pipeline.Platform = string(p)
	pipeline.Features = set

	out := cmd.OutOrStdout()
	for _, s := range cat.Units {
		state := "disabled"
		switch {
		case !set[s.Name]:
		case !s.Supports(l.Host):
			state = "unsupported"
		default:
			st, err := pipeline.Inspect(s)
			if err != nil {
				return err
			}
			state = st.String()
		}
		if users := cat.Dependents(s.Name); len(users) > 0 {
			state += " (used by " + strings.Join(users, ", ") + ")"
		}
		fmt.Fprintf(out, "%-10s %-10s %s\n", s.Name, s.Version, state)
	}

	m, err := orchestrator.ReadManifest(filepath.Join(l.CombinedDir(), "manifest.yaml"))
	if err != nil || m.Combined == nil {
		fmt.Fprintf(out, "\ncombined:  none\n")
		return nil
	}
	fmt.Fprintf(out, "\ncombined:  %s (run %s, %s %s)\n", m.Combined.Path, m.RunID, m.Platform, m.BuildType)
	return nil
}
