package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"wallgrab/internal/downloader"
	"wallgrab/pkg/archive"
	"wallgrab/pkg/config"
	errs "wallgrab/pkg/errors"
	"wallgrab/pkg/filter"
	"wallgrab/pkg/history"
	"wallgrab/pkg/httpclient"
	"wallgrab/pkg/imaging"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/metadata"
	"wallgrab/pkg/ratelimit"
	"wallgrab/pkg/sources"
	"wallgrab/pkg/storage"
	"wallgrab/pkg/ui"
)

const (
	// maxPages bounds how far a source is paged in one run
	maxPages = 20
	// maxBarrenPages stops a source after this many pages without a saved image
	maxBarrenPages = 5
	pausePoll      = 250 * time.Millisecond
)

// History is the persistent record consulted before downloading
type History interface {
	Has(url string) (bool, error)
	Record(e history.Entry) error
}

// Options wires optional collaborators into a Scraper. Zero values are
// replaced with defaults built from the config.
type Options struct {
	Client    *httpclient.Client
	Registry  *sources.Registry
	Keys      sources.KeyFunc
	Endpoints sources.Endpoints
	History   History
	Logger    logger.Logger
	// Progress receives per-download updates; nil uses a ProgressDisplay
	// on the ui output
	Progress ui.TUI
}

// Request describes one run
type Request struct {
	Query string
	// Sources in the order they run; empty means every default source
	Sources []string
	// Limits override the configured per-source limits
	Limits map[string]int
	// OutputDir overrides the directory derived from the folder pattern
	OutputDir string
}

// SourceReport is the outcome for one source
type SourceReport struct {
	Name     string
	Limit    int
	Accepted int
	Rejected int
	Failed   int
	// Skipped counts candidates dropped before download by the filter,
	// duplicate detection or the history
	Skipped int
	Pages   int
	Err     error
}

// Report summarizes a run
type Report struct {
	Query       string
	OutputDir   string
	ArchivePath string
	Sources     []SourceReport
	Files       []string
	Total       int
	Duration    time.Duration
}

// Scraper runs searches across sources and saves what passes the filters
type Scraper struct {
	config   *config.Config
	client   *httpclient.Client
	registry *sources.Registry
	filter   *filter.Filter
	limiters *ratelimit.Group
	pages    *ratelimit.Group
	history  History
	progress ui.TUI
	logger   logger.Logger
}

// New creates a Scraper from cfg
func New(cfg *config.Config, opts Options) (*Scraper, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	f, err := filter.Compile(cfg.Download.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	client := opts.Client
	if client == nil {
		client = httpclient.New(httpclient.OptionsFromConfig(cfg, log), log)
	}

	registry := opts.Registry
	if registry == nil {
		registry = sources.NewRegistry(cfg, client, opts.Keys, opts.Endpoints, log)
	}

	rpm, burst := cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize
	limiters := ratelimit.NewGroup(func() ratelimit.Limiter {
		if rpm <= 0 {
			return ratelimit.Unlimited{}
		}
		return ratelimit.NewTokenBucket(burst, rpm)
	})
	apm := cfg.RateLimit.APICallsPerMinute
	pages := ratelimit.NewGroup(func() ratelimit.Limiter {
		if apm <= 0 {
			return ratelimit.Unlimited{}
		}
		return ratelimit.NewSlidingWindow(apm, time.Minute)
	})

	return &Scraper{
		config:   cfg,
		client:   client,
		registry: registry,
		filter:   f,
		limiters: limiters,
		pages:    pages,
		history:  opts.History,
		progress: opts.Progress,
		logger:   log,
	}, nil
}

// Registry returns the sources the scraper can use
func (s *Scraper) Registry() *sources.Registry {
	return s.registry
}

// SetTUI routes progress to an interactive terminal UI
func (s *Scraper) SetTUI(t ui.TUI) {
	s.progress = t
}

// run is the state shared by the sources of one Run
type run struct {
	query    string
	pool     *downloader.WorkerPool
	progress ui.TUI
	seen     map[string]bool
	accepted []downloader.DownloadResult
	nextID   int
}

// Run executes req. Source failures are recorded in the report and do not
// stop the run; the returned error is reserved for setup failures and
// cancellation.
func (s *Scraper) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New("search term cannot be empty")
	}

	names := req.Sources
	if len(names) == 0 {
		names = s.registry.Defaults()
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = s.config.OutputDirectory(query, storage.SanitizeQuery)
	}
	store, err := storage.NewManager(outputDir, s.config.Output.FileNamePattern)
	if err != nil {
		return nil, err
	}
	defer store.CleanTemp()

	if s.config.Output.SaveMetadata {
		if n, err := metadata.CleanOrphanedMetadata(outputDir); err != nil {
			s.logger.WithError(err).Warn("Failed to clean orphaned metadata")
		} else if n > 0 {
			s.logger.WithField("removed", n).Debug("Removed orphaned metadata")
		}
	}

	progress := s.progress
	if progress == nil {
		verbose := strings.EqualFold(s.config.Logging.Level, "debug")
		progress = ui.NewProgressDisplay(ui.Output(), verbose)
	}

	logger.LogComponentStart(s.logger, "scraper", map[string]interface{}{
		"query":      query,
		"sources":    names,
		"output_dir": outputDir,
		"filter":     s.filter.String(),
	})

	workers := s.config.Download.ConcurrentDownloads
	pool := downloader.NewWorkerPool(ctx, workers, s.client, store, s.limiters, downloader.Thresholds{
		MinFileSize: s.config.Download.MinFileSize,
		MinWidth:    s.config.Download.MinWidth,
		MinHeight:   s.config.Download.MinHeight,
	}, s.logger)
	pool.Start()

	r := &run{
		query:    query,
		pool:     pool,
		progress: progress,
		seen:     make(map[string]bool),
	}
	report := &Report{Query: query, OutputDir: outputDir}

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		report.Sources = append(report.Sources, s.runSource(ctx, r, name, req.Limits))
	}

	pool.Stop()

	s.finalize(r, report)

	if ctx.Err() != nil {
		report.Duration = time.Since(start)
		return report, ctx.Err()
	}

	if s.config.Archive.Enabled && report.Total > 0 {
		keep := s.config.Archive.KeepFiles
		if !keep && s.config.ArchiveRemovesBase(outputDir) {
			s.logger.WithField("output_dir", outputDir).Warn("Output directory is the base directory; keeping files after archiving")
			keep = true
		}
		path, err := archive.Package(outputDir, keep)
		if err != nil {
			s.logger.WithError(err).Error("Failed to archive downloads")
			progress.LogError("Failed to archive downloads: %v", err)
		}
		report.ArchivePath = path
	}

	report.Duration = time.Since(start)
	logger.LogMetrics(s.logger, "scrape", map[string]interface{}{
		"query":    query,
		"total":    report.Total,
		"duration": report.Duration,
	})
	return report, nil
}

// limitFor resolves the per-source limit
func (s *Scraper) limitFor(name string, overrides map[string]int) int {
	for k, v := range overrides {
		if strings.EqualFold(k, name) && v > 0 {
			return v
		}
	}
	limit, _ := s.config.SourceLimit(name)
	return limit
}

func (s *Scraper) runSource(ctx context.Context, r *run, name string, overrides map[string]int) SourceReport {
	rep := SourceReport{Name: strings.ToLower(name), Limit: s.limitFor(name, overrides)}
	log := s.logger.WithField("source", rep.Name)

	src, err := s.registry.Get(name)
	if err != nil {
		rep.Err = err
		log.WithError(err).Warn("Source unavailable")
		r.progress.LogWarning("Skipping %s: %v", name, err)
		return rep
	}
	if rep.Limit <= 0 {
		return rep
	}

	r.progress.StartSource(rep.Name, rep.Limit)
	if s.progress == nil {
		ui.PrintSearchHeader(rep.Name, r.query)
	}

	cursor := ""
	barren := 0
	for rep.Accepted < rep.Limit && rep.Pages < maxPages {
		if err := s.pages.For(rep.Name).Wait(ctx); err != nil {
			rep.Err = err
			return rep
		}
		if err := s.limiters.For(rep.Name).Wait(ctx); err != nil {
			rep.Err = err
			return rep
		}

		page, err := src.Fetch(ctx, sources.Request{
			Query:  r.query,
			Wanted: rep.Limit - rep.Accepted,
			Cursor: cursor,
		})
		rep.Pages++
		if err != nil {
			log.WithError(err).WarnWithFields("Fetch failed", map[string]interface{}{"cursor": cursor})
			r.progress.LogError("Error with %s: %v", rep.Name, err)
			if page == nil || page.Done || ctx.Err() != nil {
				rep.Err = err
				return rep
			}
		}

		before := rep.Accepted
		queue := s.selectCandidates(r, page.Candidates, &rep)
		if err := s.download(ctx, r, queue, &rep); err != nil {
			rep.Err = err
			return rep
		}

		if rep.Accepted == before {
			barren++
		} else {
			barren = 0
		}
		if page.Done || barren >= maxBarrenPages {
			break
		}
		cursor = page.NextCursor
	}

	log.InfoWithFields("Source finished", map[string]interface{}{
		"accepted": rep.Accepted,
		"rejected": rep.Rejected,
		"failed":   rep.Failed,
		"skipped":  rep.Skipped,
		"pages":    rep.Pages,
	})
	return rep
}

// selectCandidates applies the filter, per-run dedup and the history
func (s *Scraper) selectCandidates(r *run, candidates []sources.Candidate, rep *SourceReport) []sources.Candidate {
	var out []sources.Candidate
	for _, c := range candidates {
		if !s.filter.Match(c) {
			rep.Skipped++
			continue
		}
		if r.seen[c.URL] {
			rep.Skipped++
			continue
		}
		r.seen[c.URL] = true

		if !c.Random && s.history != nil && s.config.History.SkipKnown {
			known, err := s.history.Has(c.URL)
			if err != nil {
				s.logger.WithError(err).Warn("History lookup failed")
			} else if known {
				rep.Skipped++
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// download submits queue in batches no larger than the remaining limit, so
// a source never saves more than its limit
func (s *Scraper) download(ctx context.Context, r *run, queue []sources.Candidate, rep *SourceReport) error {
	workers := s.config.Download.ConcurrentDownloads
	if workers < 1 {
		workers = 1
	}

	for len(queue) > 0 && rep.Accepted < rep.Limit {
		if err := s.waitWhilePaused(ctx, r.progress); err != nil {
			return err
		}

		n := min(workers, rep.Limit-rep.Accepted, len(queue))
		batch := queue[:n]
		queue = queue[n:]

		ids := make(map[string]string, n)
		for _, c := range batch {
			r.nextID++
			id := fmt.Sprintf("%s-%d", rep.Name, r.nextID)
			ids[c.URL] = id
			r.progress.StartDownload(id, rep.Name, c.URL)
			if err := r.pool.Submit(downloader.DownloadJob{Candidate: c, Query: r.query}); err != nil {
				return err
			}
		}

		for i := 0; i < n; i++ {
			select {
			case res, ok := <-r.pool.Results():
				if !ok {
					return errors.New("worker pool closed")
				}
				s.record(r, res, ids[res.Job.Candidate.URL], rep)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (s *Scraper) record(r *run, res downloader.DownloadResult, id string, rep *SourceReport) {
	c := res.Job.Candidate
	status := string(res.Status)
	logger.LogDownload(s.logger, c.Source, c.URL, res.Path, status, res.Error)

	switch res.Status {
	case downloader.StatusAccepted:
		rep.Accepted++
		r.accepted = append(r.accepted, res)
		r.progress.CompleteDownload(id, res.Path, res.Size)
	case downloader.StatusRejected:
		rep.Rejected++
		r.progress.RejectDownload(id, res.Error)
	default:
		rep.Failed++
		if errs.Is(res.Error, errs.ErrorTypeRateLimit) {
			logger.LogRateLimit(s.logger, c.Source, retryAfter(res.Error))
		}
		r.progress.FailDownload(id, res.Error)
	}
}

func retryAfter(err error) time.Duration {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

func (s *Scraper) waitWhilePaused(ctx context.Context, p ui.TUI) error {
	for p.IsPaused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePoll):
		}
	}
	return ctx.Err()
}

// finalize writes sidecars and thumbnails and records history for every
// saved image
func (s *Scraper) finalize(r *run, report *Report) {
	for _, res := range r.accepted {
		report.Files = append(report.Files, res.Path)

		if s.config.Output.SaveMetadata {
			if err := s.writeSidecar(r.query, res); err != nil {
				s.logger.WithError(err).WithField("path", res.Path).Warn("Failed to write metadata")
			}
		}

		if s.config.Output.Thumbnails {
			thumb := imaging.ThumbnailPath(res.Path)
			if err := imaging.Thumbnail(res.Path, thumb, s.config.Output.ThumbnailWidth); err != nil {
				s.logger.WithError(err).WithField("path", res.Path).Warn("Failed to write thumbnail")
			}
		}

		if s.history != nil && s.config.History.Enabled {
			url := res.Job.Candidate.URL
			if res.Job.Candidate.Random && res.FinalURL != "" {
				url = res.FinalURL
			}
			err := s.history.Record(history.Entry{
				URL:    url,
				Source: res.Job.Candidate.Source,
				Query:  r.query,
				Path:   res.Path,
				Size:   res.Size,
			})
			if err != nil {
				s.logger.WithError(err).Warn("Failed to record history")
			}
		}
	}
	report.Total = len(report.Files)
}

func (s *Scraper) writeSidecar(query string, res downloader.DownloadResult) error {
	c := res.Job.Candidate
	meta := &metadata.ImageMetadata{
		Source:       c.Source,
		Query:        query,
		URL:          c.URL,
		ID:           c.ID,
		Title:        c.Title,
		FileName:     filepath.Base(res.Path),
		FileSize:     res.Size,
		Width:        res.Width,
		Height:       res.Height,
		Format:       res.Format,
		DownloadedAt: time.Now(),
	}
	if res.Width > 0 {
		meta.Aspect = meta.GetAspectRatio()
	}
	if res.FinalURL != c.URL {
		meta.FinalURL = res.FinalURL
	}
	if x, err := imaging.ReadEXIF(res.Path); err == nil {
		meta.EXIF = x
	}
	return meta.Save(res.Path)
}

// Describe writes a per-source breakdown of a report
func Describe(w io.Writer, rep *Report) {
	for _, src := range rep.Sources {
		line := fmt.Sprintf("%-10s %d/%d saved", src.Name, src.Accepted, src.Limit)
		if src.Rejected > 0 {
			line += fmt.Sprintf(", %d rejected", src.Rejected)
		}
		if src.Failed > 0 {
			line += fmt.Sprintf(", %d failed", src.Failed)
		}
		if src.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", src.Skipped)
		}
		if src.Err != nil {
			line += fmt.Sprintf(" (%v)", src.Err)
		}
		fmt.Fprintln(w, line)
	}
}
