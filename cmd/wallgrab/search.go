package main

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

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"wallgrab/pkg/auth"
	"wallgrab/pkg/config"
	"wallgrab/pkg/history"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/scraper"
	"wallgrab/pkg/ui"
	"wallgrab/pkg/ui/tui"
)

var errEmptyQuery = errors.New("Search term cannot be empty.")

var (
	// Search command flags
	searchSources []string
	searchLimit   int
	outputDir     string
	archiveRun    bool
	keepFiles     bool
	filterExpr    string
	minSize       int64
	concurrent    int
	useTUI        bool
	noHistory     bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search the sources and download matching wallpapers",
	Long: `Search one or more sources for a query and download the results.

Without --source every enabled source that needs no further setup runs, in
order: wallhaven, reddit, unsplash, then pixabay and pexels when their keys
are stored. Each source stops at its own limit (wallhaven 10, reddit 10,
unsplash 5 by default); --limit sets the same limit for every source.

Images smaller than --min-size bytes are discarded. URLs downloaded in
earlier runs are skipped unless --no-history is given.`,
	Example: `  # Search every default source
  wallgrab search AE86

  # Only Reddit and Wallhaven, 20 images each
  wallgrab search "initial d" -s reddit,wallhaven -n 20

  # Zip the results and keep only the archive
  wallgrab search sunset --archive

  # Only landscape images wider than 2560 pixels
  wallgrab search mountains --filter 'width >= 2560 && width > height'`,
	Args: cobra.ArbitraryArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	addSearchFlags(searchCmd)
	addSearchFlags(rootCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&searchSources, "source", "s", nil, "sources to search, repeatable or comma separated (default: all available)")
	cmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "images per source (default: per-source config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory (default: current directory)")
	cmd.Flags().BoolVar(&archiveRun, "archive", false, "zip the download folder when finished")
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "keep the folder after archiving")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "CEL expression candidates must match (vars: source, url, title, id, width, height, score)")
	cmd.Flags().Int64Var(&minSize, "min-size", config.DefaultMinFileSize, "minimum file size in bytes")
	cmd.Flags().IntVar(&concurrent, "concurrent", 3, "number of concurrent downloads")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "use the interactive terminal UI")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "neither skip nor record previously downloaded URLs")
}

// searchFlags maps the changed search flags onto config keys
func searchFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if cmd.Flags().Changed("concurrent") {
		flags["concurrent-downloads"] = concurrent
	}
	if cmd.Flags().Changed("min-size") {
		flags["min-size"] = minSize
	}
	if filterExpr != "" {
		flags["filter"] = filterExpr
	}
	if archiveRun {
		flags["archive"] = true
	}
	if keepFiles {
		flags["keep-files"] = true
	}
	if noHistory {
		flags["history"] = false
	}
	return flags
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		var err error
		query, err = promptQuery(os.Stdin, ui.Output(), term.IsTerminal(int(os.Stdin.Fd())))
		if err != nil {
			return err
		}
	}
	if query == "" {
		return errEmptyQuery
	}

	cfg, err := loadConfig(cmd, searchFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	log := logger.GetLogger()

	s, closeFn, err := buildScraper(cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize scraper", err.Error())
		return err
	}
	defer closeFn()

	names := parseSources(searchSources)
	req := scraper.Request{
		Query:   query,
		Sources: names,
		Limits:  limitsFor(names, s.Registry().Defaults(), searchLimit),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(map[string]interface{}{"query": query, "sources": names}).Info("Starting search")

	var report *scraper.Report
	if useTUI {
		report, err = runWithTUI(ctx, cfg, s, req)
	} else {
		ui.PrintInfo("Search term", query)
		report, err = s.Run(ctx, req)
	}

	notifier := ui.NewNotifier(cfg.Notifications.Enabled)
	if err != nil {
		notifier.SendError("wallgrab", fmt.Sprintf("Search for %s stopped: %v", query, err))
		if report == nil {
			ui.PrintError("Search failed", err.Error())
			return err
		}
		ui.PrintWarning("Search interrupted", err.Error())
	}

	if !useTUI {
		scraper.Describe(ui.Output(), report)
	}
	ui.PrintSummary(report.Total, absPath(report.OutputDir), report.ArchivePath)
	if report.Total == 0 {
		ui.PrintHints(query)
	} else {
		notifier.SendSuccess("wallgrab", fmt.Sprintf("%d images saved for %s", report.Total, query))
	}

	logger.LogMetrics(log, "search", map[string]interface{}{
		"query":    query,
		"total":    report.Total,
		"duration": report.Duration,
	})
	return err
}

// promptQuery reads a search term from in, printing a prompt when in is a
// terminal
func promptQuery(in io.Reader, out io.Writer, interactive bool) (string, error) {
	if interactive {
		fmt.Fprint(out, "Enter search term (e.g. AE86, Initial D, Cyberpunk): ")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read search term: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// parseSources flattens repeated and comma separated --source values
func parseSources(values []string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			name := strings.ToLower(strings.TrimSpace(part))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// limitsFor applies a --limit to every source that will run
func limitsFor(names, defaults []string, limit int) map[string]int {
	if limit <= 0 {
		return nil
	}
	if len(names) == 0 {
		names = defaults
	}
	limits := make(map[string]int, len(names))
	for _, name := range names {
		limits[name] = limit
	}
	return limits
}

// buildScraper wires the key store and the history into a scraper. The
// returned func closes the history.
func buildScraper(cfg *config.Config, log logger.Logger) (*scraper.Scraper, func(), error) {
	opts := scraper.Options{Logger: log}
	closeFn := func() {}

	if keys, err := auth.NewManager(); err != nil {
		log.WithError(err).Warn("Key store unavailable, using config and environment keys only")
	} else {
		opts.Keys = keys.KeyFunc()
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, log)
		if err != nil {
			log.WithError(err).Warn("History unavailable, previously downloaded images will not be skipped")
		} else {
			opts.History = store
			closeFn = func() { store.Close() }
		}
	}

	s, err := scraper.New(cfg, opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return s, closeFn, nil
}

// runWithTUI runs the search behind the bubbletea UI. Quitting the UI
// cancels the search.
func runWithTUI(ctx context.Context, cfg *config.Config, s *scraper.Scraper, req scraper.Request) (*scraper.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(cfg.Download.ConcurrentDownloads)
	s.SetTUI(terminal)

	type result struct {
		report *scraper.Report
		err    error
	}
	scraperDone := make(chan result, 1)
	go func() {
		report, err := s.Run(ctx, req)
		scraperDone <- result{report, err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()

	select {
	case res := <-scraperDone:
		terminal.LogSuccess("Finished: %d images saved", reportTotal(res.report))
		terminal.Stop()
		<-tuiDone
		return res.report, res.err
	case err := <-tuiDone:
		cancel()
		res := <-scraperDone
		if err != nil {
			logger.WithError(err).Error("TUI failed")
		}
		return res.report, res.err
	}
}

func reportTotal(r *scraper.Report) int {
	if r == nil {
		return 0
	}
	return r.Total
}
