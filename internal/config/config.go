// Package config handles configuration management for dirfilter.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. DIRFILTER_ROOT_PATH or DIRFILTER_SERVER_PORT.
const EnvPrefix = "DIRFILTER"

// Config holds all configuration for the application.
type Config struct {
	Root    RootConfig    `mapstructure:"root" yaml:"root"`
	Watcher WatcherConfig `mapstructure:"watcher" yaml:"watcher"`
	Matcher MatcherConfig `mapstructure:"matcher" yaml:"matcher"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// RootConfig describes the directory tree being filtered.
type RootConfig struct {
	Path            string   `mapstructure:"path" yaml:"path"`
	SkipDirectories []string `mapstructure:"skip_directories" yaml:"skip_directories"`
	IgnorePatterns  []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`
	IncludeHidden   bool     `mapstructure:"include_hidden" yaml:"include_hidden"`
}

// WatcherConfig holds file watcher configuration.
type WatcherConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	DebounceMS int  `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// MatcherConfig bounds the parallelism of a scan.
type MatcherConfig struct {
	MaxConcurrentDirs int `mapstructure:"max_concurrent_dirs" yaml:"max_concurrent_dirs"`
	FileWorkers       int `mapstructure:"file_workers" yaml:"file_workers"`
}

// ServerConfig holds the optional HTTP/WebSocket server configuration.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// OutputConfig controls what the CLI prints.
type OutputConfig struct {
	MaxResults int `mapstructure:"max_results" yaml:"max_results"` // 0 prints every match
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dirfilter")
		v.AddConfigPath("/etc/dirfilter")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// A missing config file is not an error
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment
// overrides are present. The root path is left empty.
func Default() *Config {
	return &Config{
		Root: RootConfig{
			SkipDirectories: append([]string(nil), DefaultSkipDirectories...),
			IgnorePatterns:  append([]string(nil), DefaultIgnorePatterns...),
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMS: DefaultDebounceMS,
		},
		Matcher: MatcherConfig{
			MaxConcurrentDirs: DefaultMaxConcurrentDirs,
			FileWorkers:       DefaultFileWorkers,
		},
		Server: ServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
		Output: OutputConfig{
			MaxResults: DefaultMaxResults,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("root.path", d.Root.Path)
	v.SetDefault("root.skip_directories", d.Root.SkipDirectories)
	v.SetDefault("root.ignore_patterns", d.Root.IgnorePatterns)
	v.SetDefault("root.include_hidden", d.Root.IncludeHidden)

	v.SetDefault("watcher.enabled", d.Watcher.Enabled)
	v.SetDefault("watcher.debounce_ms", d.Watcher.DebounceMS)

	v.SetDefault("matcher.max_concurrent_dirs", d.Matcher.MaxConcurrentDirs)
	v.SetDefault("matcher.file_workers", d.Matcher.FileWorkers)

	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("output.max_results", d.Output.MaxResults)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	// An empty root means the current directory
	if cfg.Root.Path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg.Root.Path = cwd
	}

	absPath, err := filepath.Abs(cfg.Root.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve root path: %w", err)
	}
	cfg.Root.Path = absPath

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))

	return nil
}

// GetConfigDir returns the user config directory for dirfilter.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".dirfilter"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
