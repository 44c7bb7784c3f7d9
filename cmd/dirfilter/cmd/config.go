package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brianly1003/dirfilter/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const configHeader = `# dirfilter configuration
# Every key can be overridden with an environment variable, e.g.
# DIRFILTER_SERVER_PORT=9000 or DIRFILTER_ROOT_PATH=/src/project.
# An empty root.path means the current directory.

`

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage dirfilter configuration.

Without subcommands, shows the current effective configuration.

Examples:
  dirfilter config                 # Show current config
  dirfilter config init            # Create config file with defaults
  dirfilter config path            # Show config file locations
  dirfilter config get <key>       # Get a config value
  dirfilter config set <key> <value>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings.

By default, creates ~/.dirfilter/config.yaml.
Use --local to create ./config.yaml in the current directory.`,
	RunE: runConfigInit,
}

// configPathCmd shows config file locations.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file locations",
	RunE:  runConfigPath,
}

// configGetCmd gets a config value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key. Keys use dot notation.

Examples:
  dirfilter config get server.port
  dirfilter config get root.skip_directories`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a config value in the user config file.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in ~/.dirfilter/config.yaml.

Creates the config file if it doesn't exist.

Examples:
  dirfilter config set server.port 9000
  dirfilter config set watcher.enabled false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.dirfilter/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
	}

	if err := writeDefaultConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config dir: %w", err)
	}

	locations := []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/dirfilter/config.yaml",
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, loc, exists)
	}
	fmt.Fprintf(out, "\nConfig directory: %s\n", configDir)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if err := setConfigFileValue(configPath, key, value); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, configPath)
	return nil
}

// getConfigValue looks up a dotted key in cfg through its YAML form.
func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	var current interface{} = data
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
		if current, ok = m[part]; !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
	}
	return current, nil
}

// setConfigFileValue sets key in the YAML file at path, creating it if needed.
func setConfigFileValue(path, key, value string) error {
	if _, err := getConfigValue(config.Default(), key); err != nil {
		return err
	}

	var data map[string]interface{}
	if content, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	if err := setNestedValue(data, key, parseValue(value)); err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func setNestedValue(data map[string]interface{}, key string, value interface{}) error {
	parts := strings.Split(key, ".")

	current := data
	for _, part := range parts[:len(parts)-1] {
		if _, ok := current[part]; !ok {
			current[part] = make(map[string]interface{})
		}
		nested, ok := current[part].(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot set nested value: %s is not a map", part)
		}
		current = nested
	}

	current[parts[len(parts)-1]] = value
	return nil
}

// parseValue converts a command-line value to a bool, an int or a
// comma-separated list, falling back to the string itself.
func parseValue(value string) interface{} {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if strings.Contains(value, ",") {
		return strings.Split(value, ",")
	}
	return value
}

func writeDefaultConfig(path string) error {
	content, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(configHeader), content...), 0644)
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintln(w, "----------------------")
	fmt.Fprintf(w, "Root Path:       %s\n", cfg.Root.Path)
	fmt.Fprintf(w, "Include Hidden:  %t\n", cfg.Root.IncludeHidden)
	fmt.Fprintf(w, "Skip Dirs:       %s\n", strings.Join(cfg.Root.SkipDirectories, ", "))
	fmt.Fprintf(w, "Ignore Patterns: %s\n", strings.Join(cfg.Root.IgnorePatterns, ", "))
	fmt.Fprintf(w, "Watcher Enabled: %t (debounce %dms)\n", cfg.Watcher.Enabled, cfg.Watcher.DebounceMS)
	fmt.Fprintf(w, "Matcher:         %d dirs, %d file workers\n", cfg.Matcher.MaxConcurrentDirs, cfg.Matcher.FileWorkers)
	fmt.Fprintf(w, "Server Enabled:  %t (%s:%d)\n", cfg.Server.Enabled, cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(w, "Max Results:     %d\n", cfg.Output.MaxResults)
	fmt.Fprintf(w, "Log Level:       %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "Log Format:      %s\n", cfg.Logging.Format)
}
