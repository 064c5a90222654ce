// Command reactivator serves components whose fields are fed by shared,
// reference-counted source subscriptions.
package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactivator/internal/config"
	"github.com/vango-dev/reactivator/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	noColor    bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "reactivator",
		Short: "Shared source subscriptions for live components",
		Long: `Reactivator serves a component whose fields are fed by shared sources.

Every connected client gets its own component instance, but instances
bound to the same source share a single upstream subscription:

  • clock      ticks at a fixed interval
  • netstatus  probes a URL and reports online/offline
  • s3object   polls an S3 object's version

The subscription is opened by the first client and closed when the last
one disconnects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				errors.DisableColors()
			}
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.ConfigFileName, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		serveCmd(flags),
		checkCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig loads the configuration file. A missing default file yields
// the built-in defaults; a missing file named with --config is an error.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	if cmd.Flags().Changed("config") {
		return config.Load(flags.configPath)
	}
	return config.LoadOrDefault(flags.configPath)
}

// printError prints err, using the structured format for coded errors.
func printError(w io.Writer, err error) {
	var e *errors.Error
	if stderrors.As(err, &e) {
		fmt.Fprint(w, e.Format())
		return
	}
	fmt.Fprintf(w, "\033[31mError:\033[0m %s\n", err)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
