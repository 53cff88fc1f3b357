package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"wallgrab/pkg/history"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/ui"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear the record of downloaded images",
	Long: `Every saved image's URL is recorded so later searches skip it. Use
'history clear' to download everything again.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded downloads, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every recorded download",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "entries to show (0 for all)")
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return nil, err
	}
	store, err := history.Open(cfg.History.Path, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to open history", err.Error())
		return nil, err
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.PrintWarning("History is empty")
		return nil
	}

	shown := entries
	if historyLimit > 0 && len(shown) > historyLimit {
		shown = shown[:historyLimit]
	}

	ui.PrintHighlight(fmt.Sprintf("%d recorded downloads (%s)", len(entries), store.Path()))
	for _, e := range shown {
		fmt.Fprintf(ui.Output(), "  %s  %-9s %-8s %s\n    %s\n",
			e.DownloadedAt.Format("2006-01-02 15:04"), e.Source, ui.FormatBytes(e.Size), e.Query, e.URL)
	}
	if len(shown) < len(entries) {
		fmt.Fprintf(ui.Output(), "  ... %d more (use --limit 0 to show all)\n", len(entries)-len(shown))
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		ui.PrintError("Failed to clear history", err.Error())
		return err
	}
	ui.PrintSuccess("History cleared")
	return nil
}
