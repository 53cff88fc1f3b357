package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wallgrab/pkg/config"
	"wallgrab/pkg/history"
	"wallgrab/pkg/imaging"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/sources"
	"wallgrab/pkg/ui"
)

// fixture serves wallhaven and reddit search results plus the images they
// point at. Images whose name starts with "tiny" are below the size floor.
type fixture struct {
	server      *httptest.Server
	wallhaven   []string
	reddit      []string
	redditFails bool
	imageHits   int32
}

func noisePNG(t *testing.T) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	big := noisePNG(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/wallhaven", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]interface{}, 0, len(f.wallhaven))
		for i, name := range f.wallhaven {
			data = append(data, map[string]interface{}{
				"id":        name,
				"path":      f.imageURL(name),
				"url":       "https://wallhaven.cc/w/" + name,
				"favorites": i,
			})
		}
		writeJSON(t, w, map[string]interface{}{
			"data": data,
			"meta": map[string]interface{}{"current_page": 1, "last_page": 1},
		})
	})
	mux.HandleFunc("/r/", func(w http.ResponseWriter, r *http.Request) {
		if f.redditFails {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		children := make([]map[string]interface{}, 0, len(f.reddit))
		for _, name := range f.reddit {
			children = append(children, map[string]interface{}{
				"data": map[string]interface{}{"id": name, "title": name, "url": f.imageURL(name)},
			})
		}
		writeJSON(t, w, map[string]interface{}{"data": map[string]interface{}{"children": children}})
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.imageHits, 1)
		w.Header().Set("Content-Type", "image/png")
		if strings.HasPrefix(filepath.Base(r.URL.Path), "tiny") {
			w.Write([]byte("tiny"))
			return
		}
		w.Write(big)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) imageURL(name string) string {
	return f.server.URL + "/img/" + name + ".png"
}

func (f *fixture) endpoints() sources.Endpoints {
	return sources.Endpoints{
		Wallhaven: f.server.URL + "/wallhaven",
		Reddit:    f.server.URL + "/r/%s/search.json",
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Download.MinFileSize = 1024
	cfg.RateLimit.RequestsPerMinute = 0
	cfg.RateLimit.APICallsPerMinute = 0
	cfg.Retry.MaxAttempts = 1
	cfg.Sources.Reddit.Subreddits = []string{"wallpaper"}
	return cfg
}

type memoryHistory struct {
	mu       sync.Mutex
	known    map[string]bool
	recorded []history.Entry
}

func newMemoryHistory(known ...string) *memoryHistory {
	h := &memoryHistory{known: make(map[string]bool)}
	for _, u := range known {
		h.known[u] = true
	}
	return h
}

func (h *memoryHistory) Has(url string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.known[url], nil
}

func (h *memoryHistory) Record(e history.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.known[e.URL] = true
	h.recorded = append(h.recorded, e)
	return nil
}

func newScraper(t *testing.T, cfg *config.Config, f *fixture, h History) *Scraper {
	t.Helper()
	opts := Options{
		Endpoints: f.endpoints(),
		Logger:    logger.NewNopLogger(),
		Progress:  ui.NewProgressDisplay(io.Discard, false),
	}
	if h != nil {
		opts.History = h
	}
	s, err := New(cfg, opts)
	require.NoError(t, err)
	return s
}

func pngFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	return matches
}

func TestRunEmptyQuery(t *testing.T) {
	f := newFixture(t)
	s := newScraper(t, testConfig(t), f, nil)

	_, err := s.Run(context.Background(), Request{Query: "   "})
	assert.EqualError(t, err, "search term cannot be empty")
}

func TestRunInvalidFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Download.Filter = "width >"

	_, err := New(cfg, Options{Logger: logger.NewNopLogger()})
	assert.Error(t, err)
}

func TestRunNeverExceedsLimit(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a", "b", "c", "d", "e", "f"}
	s := newScraper(t, testConfig(t), f, nil)

	report, err := s.Run(context.Background(), Request{
		Query:   "AE86",
		Sources: []string{"wallhaven"},
		Limits:  map[string]int{"Wallhaven": 3},
	})
	require.NoError(t, err)

	require.Len(t, report.Sources, 1)
	assert.Equal(t, 3, report.Sources[0].Accepted)
	assert.Equal(t, 3, report.Total)
	assert.Len(t, pngFiles(t, report.OutputDir), 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.imageHits))
	assert.Equal(t, filepath.Join(s.config.Output.BaseDirectory, "AE86_Wallpapers"), report.OutputDir)
}

func TestRunRejectsSmallImages(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a", "tiny1", "b", "tiny2"}
	s := newScraper(t, testConfig(t), f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven"}})
	require.NoError(t, err)

	src := report.Sources[0]
	assert.Equal(t, 2, src.Accepted)
	assert.Equal(t, 2, src.Rejected)
	assert.Zero(t, src.Failed)
	assert.Len(t, pngFiles(t, report.OutputDir), 2)

	entries, err := os.ReadDir(report.OutputDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "staging file left behind: %s", e.Name())
	}
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"shared", "w1"}
	f.reddit = []string{"shared", "r1"}
	s := newScraper(t, testConfig(t), f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven", "reddit"}})
	require.NoError(t, err)

	require.Len(t, report.Sources, 2)
	assert.Equal(t, 2, report.Sources[0].Accepted)
	assert.Equal(t, 1, report.Sources[1].Accepted)
	assert.Equal(t, 1, report.Sources[1].Skipped)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.imageHits))
}

func TestRunSkipsKnownURLs(t *testing.T) {
	f := newFixture(t)
	f.reddit = []string{"old", "new"}
	h := newMemoryHistory(f.imageURL("old"))
	s := newScraper(t, testConfig(t), f, h)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"reddit"}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sources[0].Accepted)
	assert.Equal(t, 1, report.Sources[0].Skipped)
	require.Len(t, h.recorded, 1)
	assert.Equal(t, f.imageURL("new"), h.recorded[0].URL)
	assert.Equal(t, "reddit", h.recorded[0].Source)
	assert.Equal(t, "AE86", h.recorded[0].Query)
}

func TestRunHistoryPersistsAcrossRuns(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a", "b"}

	store, err := history.Open(filepath.Join(t.TempDir(), "history"), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := testConfig(t)
	s := newScraper(t, cfg, f, store)

	first, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven"}})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)

	second, err := s.Run(context.Background(), Request{
		Query:     "AE86",
		Sources:   []string{"wallhaven"},
		OutputDir: filepath.Join(t.TempDir(), "again"),
	})
	require.NoError(t, err)
	assert.Zero(t, second.Total)
	assert.Equal(t, 2, second.Sources[0].Skipped)

	entries, err := store.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunHistoryIgnoredWhenSkipKnownOff(t *testing.T) {
	f := newFixture(t)
	f.reddit = []string{"old"}
	cfg := testConfig(t)
	cfg.History.SkipKnown = false
	s := newScraper(t, cfg, f, newMemoryHistory(f.imageURL("old")))

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"reddit"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
}

func TestRunReportsUnavailableSources(t *testing.T) {
	f := newFixture(t)
	f.reddit = []string{"r1"}
	s := newScraper(t, testConfig(t), f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"pixabay", "flickr", "reddit"}})
	require.NoError(t, err)

	require.Len(t, report.Sources, 3)
	assert.ErrorIs(t, report.Sources[0].Err, sources.ErrMissingAPIKey)
	assert.ErrorIs(t, report.Sources[1].Err, sources.ErrUnknownSource)
	assert.NoError(t, report.Sources[2].Err)
	assert.Equal(t, 1, report.Total)
}

func TestRunContinuesAfterSourceFailure(t *testing.T) {
	f := newFixture(t)
	f.redditFails = true
	f.wallhaven = []string{"a"}
	s := newScraper(t, testConfig(t), f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"reddit", "wallhaven"}})
	require.NoError(t, err)

	assert.Error(t, report.Sources[0].Err)
	assert.Zero(t, report.Sources[0].Accepted)
	assert.Equal(t, 1, report.Sources[1].Accepted)
}

func TestRunFilterExpression(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a", "b", "c"}
	cfg := testConfig(t)
	cfg.Download.Filter = `id != "b"`
	s := newScraper(t, cfg, f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven"}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Sources[0].Skipped)
}

func TestRunWritesMetadataAndThumbnails(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a"}
	cfg := testConfig(t)
	cfg.Output.SaveMetadata = true
	cfg.Output.Thumbnails = true
	cfg.Output.ThumbnailWidth = 16
	s := newScraper(t, cfg, f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven"}})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)

	path := report.Files[0]
	assert.FileExists(t, path+".json")

	data, err := os.ReadFile(path + ".json")
	require.NoError(t, err)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "wallhaven", meta["source"])
	assert.Equal(t, "AE86", meta["query"])
	assert.EqualValues(t, 64, meta["width"])

	assert.FileExists(t, imaging.ThumbnailPath(path))
}

func TestRunArchives(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a", "b"}
	cfg := testConfig(t)
	cfg.Archive.Enabled = true
	s := newScraper(t, cfg, f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven"}})
	require.NoError(t, err)

	assert.Equal(t, report.OutputDir+".zip", report.ArchivePath)
	assert.FileExists(t, report.ArchivePath)
	assert.NoDirExists(t, report.OutputDir)
}

func TestRunArchiveKeepsBaseDirectory(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a"}
	cfg := testConfig(t)
	cfg.Output.FolderPattern = ""
	cfg.Archive.Enabled = true
	base := cfg.Output.BaseDirectory
	require.NoError(t, os.WriteFile(filepath.Join(base, "unrelated.txt"), []byte("keep me"), 0644))
	s := newScraper(t, cfg, f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven"}})
	require.NoError(t, err)

	assert.Equal(t, base, report.OutputDir)
	assert.FileExists(t, report.ArchivePath)
	assert.FileExists(t, filepath.Join(base, "unrelated.txt"))
	assert.Len(t, pngFiles(t, base), 1)
}

func TestRunNoArchiveWhenNothingSaved(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig(t)
	cfg.Archive.Enabled = true
	s := newScraper(t, cfg, f, nil)

	report, err := s.Run(context.Background(), Request{Query: "AE86", Sources: []string{"wallhaven"}})
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Empty(t, report.ArchivePath)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	f.wallhaven = []string{"a"}
	s := newScraper(t, testConfig(t), f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := s.Run(ctx, Request{Query: "AE86", Sources: []string{"wallhaven"}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Total)
}

func TestDescribe(t *testing.T) {
	var buf bytes.Buffer
	Describe(&buf, &Report{Sources: []SourceReport{
		{Name: "reddit", Limit: 10, Accepted: 4, Rejected: 2, Skipped: 1},
		{Name: "pixabay", Err: sources.ErrMissingAPIKey},
	}})

	out := buf.String()
	assert.Contains(t, out, "reddit     4/10 saved, 2 rejected, 1 skipped")
	assert.Contains(t, out, "pixabay    0/0 saved (missing API key)")
}
