// Package cmd contains the CLI commands for dirfilter.
package cmd

import (
	"fmt"
	"os"

	"github.com/brianly1003/dirfilter/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version info (set from main)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dirfilter",
	Short: "Continuous fuzzy filter over a directory tree",
	Long: `dirfilter keeps a live, filtered view of the files under a directory.

Type a pattern and the matching files are listed as you go. Every character
of the pattern must appear in the file path in order ("mgo" matches
"cmd/main.go"). Patterns without upper-case letters ignore case.

The view follows the file system: files created, removed or renamed under
the root are picked up automatically. Matches can also be served over HTTP
and WebSocket.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information from the main package.
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.dirfilter/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd displays version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dirfilter %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Build time: %s\n", buildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", gitCommit)
	},
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Logs go to stderr so stdout carries only matches.
	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = log.Output(os.Stderr)
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
