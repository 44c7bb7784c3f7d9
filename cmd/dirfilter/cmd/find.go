package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/brianly1003/dirfilter/internal/config"
	"github.com/brianly1003/dirfilter/internal/filter"
	"github.com/brianly1003/dirfilter/internal/tree"
	"github.com/spf13/cobra"
)

var (
	findRoot  string
	findLimit int
)

// findCmd runs a single filter pass and exits.
var findCmd = &cobra.Command{
	Use:   "find <pattern>",
	Short: "Print the files matching a pattern once",
	Long: `Scan the directory once, print the files matching the pattern and exit.

Examples:
  dirfilter find mgo                 # files like cmd/main.go
  dirfilter find Test --root ./src   # upper case makes the match case-sensitive
  dirfilter find "" --limit 0        # every file`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringVar(&findRoot, "root", "", "directory to filter (default: current directory)")
	findCmd.Flags().IntVar(&findLimit, "limit", -1, "maximum number of paths to print, 0 for all (default: output.max_results)")
}

func runFind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if findRoot != "" {
		cfg.Root.Path = findRoot
		if err := normalizeRoot(cfg); err != nil {
			return err
		}
	}
	if findLimit >= 0 {
		cfg.Output.MaxResults = findLimit
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return findMatches(ctx, cmd.OutOrStdout(), cfg, args[0])
}

// findMatches scans cfg.Root once and prints the matches for raw.
func findMatches(ctx context.Context, w io.Writer, cfg *config.Config, raw string) error {
	scanner, err := tree.NewScanner(cfg.Root.Path, tree.ScannerOptions{
		SkipDirectories: cfg.Root.SkipDirectories,
		IgnorePatterns:  cfg.Root.IgnorePatterns,
		IncludeHidden:   cfg.Root.IncludeHidden,
	})
	if err != nil {
		return err
	}

	root, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", cfg.Root.Path, err)
	}

	snap, err := filter.FilterOnce(root, raw, filter.MatcherOptions{
		MaxConcurrentDirs: cfg.Matcher.MaxConcurrentDirs,
		FileWorkers:       cfg.Matcher.FileWorkers,
	})
	if err != nil {
		return err
	}

	for _, path := range snap.Paths(cfg.Output.MaxResults) {
		fmt.Fprintln(w, path)
	}
	return nil
}

// normalizeRoot makes a root path given on the command line absolute.
func normalizeRoot(cfg *config.Config) error {
	abs, err := filepath.Abs(cfg.Root.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve root path: %w", err)
	}
	cfg.Root.Path = abs
	return nil
}
