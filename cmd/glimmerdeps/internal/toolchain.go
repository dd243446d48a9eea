package internal

import (
	"fmt"

	"github.com/goplus/glimmerdeps/internal/toolchain"
	"github.com/spf13/cobra"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Show the C/C++ toolchain a build would use",
	Args:  cobra.NoArgs,
	RunE:  runToolchain,
}

func init() {
	rootCmd.AddCommand(toolchainCmd)
}

func runToolchain(cmd *cobra.Command, args []string) error {
	prof, err := toolchain.New(hostOS(), newRunner()).Resolve(cmd.Context())
	if err != nil {
		return err
	}
	printProfile(cmd, prof)
	return nil
}

func printProfile(cmd *cobra.Command, p *toolchain.Profile) {
	out := cmd.OutOrStdout()
	row := func(key, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-11s %s\n", key+":", value)
		}
	}
	row("host", string(p.Host))
	row("generator", p.Generator)
	row("platform", p.GeneratorPlatform)
	row("solution", p.SolutionExt)
	row("cc", p.CC)
	row("cxx", p.CXX)
	row("archiver", p.Archiver)
	row("version", p.Version)
	row("origin", p.Origin)
	row("distro", p.Distro)
	if len(p.Env) > 0 {
		row("env", fmt.Sprintf("%d variables", len(p.Env)))
	}
}
