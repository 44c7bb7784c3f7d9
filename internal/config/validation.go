package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/gobwas/glob"
)

var (
	validLogLevels  = []string{"trace", "debug", "info", "warn", "error"}
	validLogFormats = []string{"console", "json"}
)

// Validate validates the configuration. It returns a *domain.ValidationError
// naming the first offending key.
func Validate(cfg *Config) error {
	if err := validateRoot(&cfg.Root); err != nil {
		return err
	}
	if err := validateWatcher(&cfg.Watcher); err != nil {
		return err
	}
	if err := validateMatcher(&cfg.Matcher); err != nil {
		return err
	}
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if cfg.Output.MaxResults < 0 {
		return domain.NewValidationError("output.max_results", "cannot be negative")
	}
	return validateLogging(&cfg.Logging)
}

func validateRoot(cfg *RootConfig) error {
	if cfg.Path == "" {
		return domain.NewValidationError("root.path", "cannot be empty")
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewValidationError("root.path", fmt.Sprintf("does not exist: %s", cfg.Path))
		}
		return domain.NewValidationError("root.path", err.Error())
	}
	if !info.IsDir() {
		return domain.NewValidationError("root.path", fmt.Sprintf("is not a directory: %s", cfg.Path))
	}

	for _, pattern := range cfg.IgnorePatterns {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return domain.NewValidationError("root.ignore_patterns", fmt.Sprintf("invalid glob %q: %v", pattern, err))
		}
	}
	return nil
}

func validateWatcher(cfg *WatcherConfig) error {
	if cfg.DebounceMS < 0 {
		return domain.NewValidationError("watcher.debounce_ms", "cannot be negative")
	}
	if cfg.DebounceMS > 10000 {
		return domain.NewValidationError("watcher.debounce_ms", "cannot exceed 10000ms")
	}
	return nil
}

func validateMatcher(cfg *MatcherConfig) error {
	if cfg.MaxConcurrentDirs < 1 {
		return domain.NewValidationError("matcher.max_concurrent_dirs", "must be at least 1")
	}
	if cfg.FileWorkers < 1 {
		return domain.NewValidationError("matcher.file_workers", "must be at least 1")
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return domain.NewValidationError("server.port", "must be between 1 and 65535")
	}
	if cfg.Host == "" {
		return domain.NewValidationError("server.host", "cannot be empty")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	if !slices.Contains(validLogLevels, cfg.Level) {
		return domain.NewValidationError("logging.level", fmt.Sprintf("must be one of %v", validLogLevels))
	}
	if !slices.Contains(validLogFormats, cfg.Format) {
		return domain.NewValidationError("logging.format", fmt.Sprintf("must be one of %v", validLogFormats))
	}
	return nil
}
