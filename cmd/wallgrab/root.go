package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"wallgrab/pkg/config"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd runs a search when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "wallgrab [query...]",
	Short: "Download wallpapers from Wallhaven, Reddit, Unsplash, Pixabay and Pexels",
	Long: `wallgrab searches several wallpaper sources for a query and saves every image
that passes the size and resolution checks.

Sources:
  wallhaven   no key needed (optional key for more results)
  reddit      no key needed, searches wallpaper subreddits
  unsplash    no key needed (optional key for search instead of random)
  pixabay     free API key required
  pexels      free API key required

Images land in <output>/<query>_Wallpapers and can be zipped with --archive.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuiet(true)
		}
		if cmd.Name() != "version" && cmd.Name() != "help" && !quiet {
			ui.PrintLogo()
		}
	},
	RunE: runSearch,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: wallgrab.yaml or ~/.config/wallgrab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show per-image logs alongside the progress display")

	rootCmd.SetVersionTemplate(`wallgrab {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with the global flags applied on top
// of flags, then initializes the logger from it
func loadConfig(cmd *cobra.Command, flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	// the progress display is the default view; logs below warn stay out of
	// its way unless asked for
	if logLevel == "" && !verbose && cfg.Logging.File == "" && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("wallgrab starting")
	return cfg, nil
}
