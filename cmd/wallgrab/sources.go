package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"wallgrab/pkg/auth"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/sources"
	"wallgrab/pkg/ui"
)

// sourcesCmd lists the available sources
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List image sources, their limits and key status",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	var keys sources.KeyFunc
	if manager, err := auth.NewManager(); err == nil {
		keys = manager.KeyFunc()
	}

	registry := sources.NewRegistry(cfg, nil, keys, sources.Endpoints{}, logger.GetLogger())
	defaults := make(map[string]bool)
	for _, name := range registry.Defaults() {
		defaults[name] = true
	}

	ui.PrintHighlight("Sources")
	fmt.Fprintf(ui.Output(), "  %-12s %-8s %-6s %-14s %s\n", "NAME", "ENABLED", "LIMIT", "KEY", "RUNS BY DEFAULT")
	for _, info := range registry.Infos() {
		key := "not needed"
		switch {
		case info.HasKey:
			key = "stored"
		case info.NeedsKey:
			key = "missing"
		}
		fmt.Fprintf(ui.Output(), "  %-12s %-8t %-6d %-14s %t\n", info.Name, info.Enabled, info.Limit, key, defaults[info.Name])
	}

	for _, info := range registry.Infos() {
		if info.NeedsKey && !info.HasKey {
			fmt.Fprintf(ui.Output(), "\nAdd a %s key with 'wallgrab keys set %s'\n", info.Name, info.Name)
		}
	}
	return nil
}
