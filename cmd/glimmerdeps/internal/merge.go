package internal

import (
	"path/filepath"

	"github.com/goplus/glimmerdeps/internal/console"
	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/goplus/glimmerdeps/internal/merge"
	"github.com/goplus/glimmerdeps/internal/toolchain"
	"github.com/spf13/cobra"
)

var mergeOutput string

var mergeCmd = &cobra.Command{
	Use:   "merge -o OUT LIB...",
	Short: "Merge static libraries into one archive",
	Long:  `Merge combines the given static libraries, in order, into a single archive with the host archiver.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Output archive path")
	mergeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	out, err := filepath.Abs(mergeOutput)
	if err != nil {
		return err
	}
	prof, err := toolchain.New(hostOS(), newRunner()).Resolve(cmd.Context())
	if err != nil {
		return err
	}

	c := console.Std()
	combined, err := merge.New(newRunner(), prof).Merge(cmd.Context(), args, out)
	if err != nil {
		if failure.IsFatal(err) {
			return err
		}
		c.Warn("%v", err)
		return nil
	}
	c.Step("Combined lib created: %s (%d libraries)", combined.Path, len(combined.Constituents))
	return nil
}
