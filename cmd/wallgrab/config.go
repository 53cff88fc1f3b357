package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"wallgrab/pkg/auth"
	"wallgrab/pkg/config"
	"wallgrab/pkg/filter"
	"wallgrab/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage wallgrab configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (WALLGRAB_*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Long: `Write a configuration file with every option at its default value.

The file is created as 'wallgrab.yaml' in the current directory unless a path
is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after flags, environment, file and defaults are
merged. API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file.

This command checks:
  - YAML syntax
  - Value ranges and custom source definitions
  - The filter expression
  - That the output and log directories can be created`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "wallgrab.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Fprintf(ui.Output(), "\nTo overwrite, first remove the existing file:\n  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output(), "\nNext steps:")
	fmt.Fprintln(ui.Output(), "1. Edit the file to pick sources, limits and quality thresholds")
	fmt.Fprintln(ui.Output(), "2. Store keys for Pixabay or Pexels with 'wallgrab keys set <source>'")
	fmt.Fprintln(ui.Output(), "3. Run 'wallgrab config validate' to check it")
	fmt.Fprintln(ui.Output(), "4. Start downloading with 'wallgrab search <query>'")
	return nil
}

// masked returns a copy of cfg with API keys masked for display
func masked(cfg *config.Config) config.Config {
	display := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return auth.MaskKey(s)
	}
	display.Sources.Wallhaven.APIKey = mask(cfg.Sources.Wallhaven.APIKey)
	display.Sources.Unsplash.AccessKey = mask(cfg.Sources.Unsplash.AccessKey)
	display.Sources.Pixabay.APIKey = mask(cfg.Sources.Pixabay.APIKey)
	display.Sources.Pexels.APIKey = mask(cfg.Sources.Pexels.APIKey)
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	display := masked(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return err
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output())
	fmt.Fprint(ui.Output(), string(data))

	fmt.Fprintln(ui.Output(), "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output(), "1. Command line flags")
	fmt.Fprintln(ui.Output(), "2. Environment variables (WALLGRAB_*)")
	if configFile != "" {
		fmt.Fprintf(ui.Output(), "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(ui.Output(), "3. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(ui.Output(), "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		for _, candidate := range config.SearchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config")
			return errors.New("no configuration file found")
		}
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var problems, warnings []string

	if _, err := filter.Compile(cfg.Download.Filter); err != nil {
		problems = append(problems, fmt.Sprintf("filter: %v", err))
	}
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Sources.Pixabay.Enabled && cfg.Sources.Pixabay.APIKey == "" {
		warnings = append(warnings, "pixabay is enabled but has no key in the file (stored keys are still used)")
	}
	if cfg.Sources.Pexels.Enabled && cfg.Sources.Pexels.APIKey == "" {
		warnings = append(warnings, "pexels is enabled but has no key in the file (stored keys are still used)")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Output(), "  - %s\n", p)
		}
		return errors.New("configuration is invalid")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Output(), "  - %s\n", w)
		}
		fmt.Fprintln(ui.Output())
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output(), "\nConfiguration summary:")
	fmt.Fprintf(ui.Output(), "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(ui.Output(), "  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Fprintf(ui.Output(), "  Minimum file size: %d bytes\n", cfg.Download.MinFileSize)
	fmt.Fprintf(ui.Output(), "  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Fprintf(ui.Output(), "  History: %t\n", cfg.History.Enabled)
	fmt.Fprintf(ui.Output(), "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
