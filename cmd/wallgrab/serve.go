package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/ui"
	"wallgrab/pkg/web"
)

var (
	serveAddr   string
	serveOutput string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the download form over HTTP",
	Long: `Serve an HTML form for running one-source downloads from a browser.

Every run saves into the server output directory. Tick "Download as zip" to
get the run's images back as a zip file instead of the status page.`,
	Example: `  # Serve on the default address (:5000)
  wallgrab serve

  # Serve on localhost only, saving into ./wallpapers
  wallgrab serve --addr 127.0.0.1:8080 --output ./wallpapers`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :5000)")
	serveCmd.Flags().StringVar(&serveOutput, "output", "", "directory form downloads are saved to (default AgnosticWallpapers)")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if serveAddr != "" {
		flags["address"] = serveAddr
	}
	if serveOutput != "" {
		flags["server-output"] = serveOutput
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	// the form asks for a zip per request; never package the shared folder
	cfg.Archive.Enabled = false
	log := logger.GetLogger()

	s, closeFn, err := buildScraper(cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize scraper", err.Error())
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// form runs report through the log only
	s.SetTUI(ui.NewProgressDisplay(io.Discard, false))
	srv := web.New(cfg.Server, s, s.Registry().Names(), log)

	ui.PrintInfo("Serving on", displayAddr(cfg.Server.Address))
	ui.PrintInfo("Saving to", absPath(cfg.Server.OutputDirectory))
	ui.PrintHighlight("Press Ctrl+C to stop")

	return srv.ListenAndServe(ctx)
}
