package internal

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/goplus/glimmerdeps/internal/console"
	"github.com/goplus/glimmerdeps/internal/env"
	"github.com/goplus/glimmerdeps/internal/proc"
	"github.com/goplus/glimmerdeps/internal/unit"
	"github.com/spf13/cobra"
)

var (
	rootDir     string
	catalogPath string
	verbose     bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "glimmerdeps",
	Short: "glimmerdeps builds the native dependencies of Glimmer",
	Long: `glimmerdeps downloads, compiles and installs the third-party libraries of the
Glimmer GUI toolkit, builds Glimmer itself and merges every static library
into a single archive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		console.Std().SetVerbose(verbose)
		if noColor {
			console.DisableColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Glimmer project root")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Unit catalog YAML file (default: built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show tool output and trace every command")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		console.Std().Error(err)
		os.Exit(1)
	}
}

func hostOS() env.Host {
	return env.HostOf(runtime.GOOS)
}

func loadCatalog() (*unit.Catalog, error) {
	if catalogPath != "" {
		return unit.LoadFile(catalogPath)
	}
	return unit.Default()
}

func projectRoot() (string, error) {
	return filepath.Abs(rootDir)
}

func newRunner() proc.Runner {
	c := console.Std()
	return proc.NewExec(c.Stdout(), c.Stderr())
}
