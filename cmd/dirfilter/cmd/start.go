package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brianly1003/dirfilter/internal/app"
	"github.com/brianly1003/dirfilter/internal/config"
	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/hub"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// exitCommand ends an interactive session.
const exitCommand = "exit"

var (
	rootPath string
	serve    bool
	port     int
	noWatch  bool
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an interactive filter session",
	Long: `Start an interactive filter session over a directory.

Each line read from standard input replaces the current pattern and the
matching files are printed. An empty line matches every file. Type "exit"
or close standard input to stop.

Example:
  dirfilter start                      # filter the current directory
  dirfilter start --root ~/src/project
  dirfilter start --serve --port 8767  # also serve matches over HTTP/WebSocket
  echo main | dirfilter start          # non-interactive`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&rootPath, "root", "", "directory to filter (default: current directory)")
	startCmd.Flags().BoolVar(&serve, "serve", false, "serve matches over HTTP and WebSocket")
	startCmd.Flags().IntVar(&port, "port", 0, "server port (default: 8767)")
	startCmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not follow file system changes")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyStartFlags(cfg); err != nil {
		return err
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("root", cfg.Root.Path).
		Bool("watch", cfg.Watcher.Enabled).
		Bool("serve", cfg.Server.Enabled).
		Msg("starting dirfilter")

	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	out := cmd.OutOrStdout()

	sub := hub.NewChannelSubscriber(hub.NewSubscriberID("cli"), 64,
		events.EventTypeMatchesUpdated,
		events.EventTypeFilterStopped,
	)
	application.Subscribe(sub)

	go func() {
		for event := range sub.Events() {
			base, ok := event.(*events.BaseEvent)
			if !ok {
				continue
			}
			switch payload := base.Payload.(type) {
			case events.MatchesUpdatedPayload:
				printMatches(out, payload)
				if interactive {
					fmt.Fprint(os.Stderr, "> ")
				}
			case events.FilterStoppedPayload:
				if payload.Error != "" {
					fmt.Fprintf(os.Stderr, "filter stopped: %s\n", payload.Error)
				}
			}
		}
	}()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		select {
		case <-application.Ready():
		case <-ctx.Done():
			return
		}
		if err := readPatterns(cmd.InOrStdin(), application.SetPattern); err != nil {
			log.Debug().Err(err).Msg("pattern input ended")
		}
		application.Stop()
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("dirfilter stopped")
	return nil
}

// applyStartFlags overrides cfg with the command-line flags.
func applyStartFlags(cfg *config.Config) error {
	if rootPath != "" {
		cfg.Root.Path = rootPath
	}
	if serve {
		cfg.Server.Enabled = true
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if noWatch {
		cfg.Watcher.Enabled = false
	}
	return normalizeRoot(cfg)
}

// readPatterns submits every line of r until "exit" or EOF. A stopped filter
// ends the loop early.
func readPatterns(r io.Reader, submit func(string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == exitCommand {
			return nil
		}
		if err := submit(line); err != nil {
			if errors.Is(err, domain.ErrFilterStopped) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// printMatches writes one block of results: the matching paths followed by
// a summary line.
func printMatches(w io.Writer, p events.MatchesUpdatedPayload) {
	for _, path := range p.Paths {
		fmt.Fprintln(w, path)
	}
	summary := fmt.Sprintf("-- %d of %d files match %q", p.MatchCount, p.TotalFiles, p.Pattern)
	if p.Truncated {
		summary += fmt.Sprintf(" (showing %d)", len(p.Paths))
	}
	fmt.Fprintln(w, summary)
}
