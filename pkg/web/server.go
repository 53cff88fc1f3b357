// Package web serves the download form: pick a query, a source and a
// count, and the run's images are saved on the server or returned as a zip.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"wallgrab/pkg/archive"
	"wallgrab/pkg/config"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/scraper"
	"wallgrab/pkg/sources"
	"wallgrab/pkg/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTemplate    = "download_page.html"
	shutdownTimeout = 5 * time.Second
	defaultCount    = 10
)

// Runner executes one scrape
type Runner interface {
	Run(ctx context.Context, req scraper.Request) (*scraper.Report, error)
}

// page is the data rendered into the form
type page struct {
	Query        string
	Source       string
	Count        int
	Archive      bool
	Sources      []string
	Status       string
	Level        string
	OutputFolder string
}

// Server is the HTML form front end
type Server struct {
	cfg     config.ServerConfig
	runner  Runner
	sources []string
	router  *gin.Engine
	logger  logger.Logger

	// one run at a time; every run writes to the same directory
	mu sync.Mutex
}

// New creates a Server. sourceNames populate the form's source list.
func New(cfg config.ServerConfig, runner Runner, sourceNames []string, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	s := &Server{
		cfg:     cfg,
		runner:  runner,
		sources: displayNames(sourceNames),
		router:  router,
		logger:  log.WithField("component", "web"),
	}

	router.GET("/", s.index)
	router.POST("/download", s.download)
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(s.logger, "web", map[string]interface{}{
			"address":    s.cfg.Address,
			"output_dir": s.cfg.OutputDirectory,
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.LogComponentStop(s.logger, "web", "context cancelled")
	return nil
}

func (s *Server) defaults() page {
	query := s.cfg.DefaultQuery
	if query == "" {
		query = "AE86"
	}
	source := s.cfg.DefaultSource
	if source == "" {
		source = "Reddit"
	}
	count := s.cfg.DefaultCount
	if count <= 0 {
		count = defaultCount
	}
	return page{Query: query, Source: source, Count: count, Sources: s.sources}
}

func (s *Server) index(c *gin.Context) {
	p := s.defaults()
	p.Status = "Ready to begin..."
	c.HTML(http.StatusOK, pageTemplate, p)
}

func (s *Server) download(c *gin.Context) {
	p := s.defaults()
	if q := strings.TrimSpace(c.PostForm("query")); q != "" {
		p.Query = q
	}
	if src := strings.TrimSpace(c.PostForm("source")); src != "" {
		p.Source = src
	}
	if raw, ok := c.GetPostForm("count"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			n = defaultCount
		}
		p.Count = n
	}
	p.Archive = c.PostForm("archive") != ""

	// nothing to fetch; zero or negative counts save no images
	if p.Count <= 0 {
		p.Status, p.Level = s.emptyStatus(p.Source)
		c.HTML(http.StatusOK, pageTemplate, p)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.ToLower(p.Source)
	report, err := s.runner.Run(c.Request.Context(), scraper.Request{
		Query:     p.Query,
		Sources:   []string{name},
		Limits:    map[string]int{name: p.Count},
		OutputDir: s.cfg.OutputDirectory,
	})

	total := 0
	if report != nil {
		total = report.Total
		p.OutputFolder = absolute(report.OutputDir)
	}
	p.Status, p.Level = statusFor(p.Source, report, err)

	s.logger.InfoWithFields("Form download finished", map[string]interface{}{
		"query":  p.Query,
		"source": name,
		"count":  p.Count,
		"total":  total,
	})

	if p.Archive && err == nil && total > 0 {
		if s.sendArchive(c, report) {
			return
		}
		p.Status, p.Level = fmt.Sprintf("Success! %d images saved from %s, but the zip could not be built.", total, p.Source), "error"
	}

	c.HTML(http.StatusOK, pageTemplate, p)
}

// statusFor maps a run outcome to the form's status line and style
func statusFor(source string, report *scraper.Report, err error) (string, string) {
	if err != nil {
		return fmt.Sprintf("Error during download from %s: %v", source, err), "error"
	}

	var srcErr error
	if report != nil && len(report.Sources) > 0 {
		srcErr = report.Sources[0].Err
	}
	switch {
	case errors.Is(srcErr, sources.ErrMissingAPIKey):
		return fmt.Sprintf("Download from %s requires a valid API Key.", source), "error"
	case errors.Is(srcErr, sources.ErrUnknownSource):
		return fmt.Sprintf("Source %s is not a valid option.", source), "error"
	case report != nil && report.Total > 0:
		return fmt.Sprintf("Success! %d images saved from %s.", report.Total, source), "success"
	case srcErr != nil:
		return fmt.Sprintf("Error during download from %s: %v", source, srcErr), "error"
	}
	return fmt.Sprintf("Downloaded 0 images from %s. Try a new query.", source), ""
}

// emptyStatus is the status for a request that asks for no images
func (s *Server) emptyStatus(source string) (string, string) {
	rep := scraper.SourceReport{Name: strings.ToLower(source), Err: sources.ErrUnknownSource}
	for _, name := range s.sources {
		if strings.EqualFold(name, source) {
			rep.Err = nil
		}
	}
	return statusFor(source, &scraper.Report{Sources: []scraper.SourceReport{rep}}, nil)
}

// sendArchive zips the run's files and streams them as an attachment
func (s *Server) sendArchive(c *gin.Context, report *scraper.Report) bool {
	tmp, err := os.CreateTemp("", "wallgrab-*.zip")
	if err != nil {
		s.logger.WithError(err).Error("Failed to create archive file")
		return false
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if _, err := archive.ZipFiles(report.OutputDir, tmp.Name(), report.Files); err != nil {
		s.logger.WithError(err).Error("Failed to build archive")
		return false
	}

	c.FileAttachment(tmp.Name(), storage.SanitizeQuery(report.Query)+"_Wallpapers.zip")
	return true
}

// requestLogger logs each request through the application logger
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(log, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// displayNames capitalizes source names for the form
func displayNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		out = append(out, strings.ToUpper(n[:1])+n[1:])
	}
	return out
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
