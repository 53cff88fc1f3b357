package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wallgrab/pkg/config"
	errs "wallgrab/pkg/errors"
	"wallgrab/pkg/httpclient"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/retry"
)

func testClient() *httpclient.Client {
	return httpclient.New(httpclient.Options{
		APITimeout: time.Second,
		Retry:      &retry.Config{MaxAttempts: 1},
	}, logger.NewNopLogger())
}

func jsonHandler(t *testing.T, check func(r *http.Request), body interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}
}

func TestWallhavenFetch(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "initial d", q.Get("q"))
		assert.Equal(t, "111", q.Get("categories"))
		assert.Equal(t, "100", q.Get("purity"))
		assert.Equal(t, "1920x1080", q.Get("resolutions"))
		assert.Equal(t, "toplist", q.Get("sorting"))
		assert.Equal(t, "desc", q.Get("order"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Empty(t, q.Get("apikey"))
	}, map[string]interface{}{
		"data": []map[string]interface{}{
			{"id": "abc", "path": "https://w.wallhaven.cc/full/ab/wallhaven-abc.jpg", "dimension_x": 1920, "dimension_y": 1080, "favorites": 12},
			{"id": "nopath", "path": ""},
		},
		"meta": map[string]interface{}{"current_page": 2, "last_page": 5},
	}))
	defer server.Close()

	src := NewWallhaven(testClient(), config.DefaultConfig().Sources.Wallhaven, server.URL, logger.NewNopLogger())
	page, err := src.Fetch(context.Background(), Request{Query: "initial d", Wanted: 10, Cursor: "2"})
	require.NoError(t, err)

	require.Len(t, page.Candidates, 1)
	c := page.Candidates[0]
	assert.Equal(t, "https://w.wallhaven.cc/full/ab/wallhaven-abc.jpg", c.URL)
	assert.Equal(t, "wallhaven", c.Source)
	assert.Equal(t, 1920, c.Width)
	assert.Equal(t, 12, c.Score)
	assert.Equal(t, "3", page.NextCursor)
	assert.False(t, page.Done)
}

func TestWallhavenDoneOnLastPage(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, nil, map[string]interface{}{
		"data": []map[string]interface{}{{"id": "x", "path": "https://w.wallhaven.cc/x.png"}},
		"meta": map[string]interface{}{"current_page": 1, "last_page": 1},
	}))
	defer server.Close()

	src := NewWallhaven(testClient(), config.DefaultConfig().Sources.Wallhaven, server.URL, logger.NewNopLogger())
	page, err := src.Fetch(context.Background(), Request{Query: "x", Wanted: 5})
	require.NoError(t, err)
	assert.True(t, page.Done)
}

func TestWallhavenShortPageWithoutMeta(t *testing.T) {
	full := make([]map[string]interface{}, 24)
	for i := range full {
		full[i] = map[string]interface{}{"id": strconv.Itoa(i), "path": "https://w.wallhaven.cc/" + strconv.Itoa(i) + ".jpg"}
	}
	tests := []struct {
		name string
		data []map[string]interface{}
		done bool
	}{
		{"full page", full, false},
		{"short page", full[:2], true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(jsonHandler(t, nil, map[string]interface{}{"data": tt.data}))
			defer server.Close()

			src := NewWallhaven(testClient(), config.DefaultConfig().Sources.Wallhaven, server.URL, logger.NewNopLogger())
			page, err := src.Fetch(context.Background(), Request{Query: "x", Wanted: 50})
			require.NoError(t, err)
			assert.Len(t, page.Candidates, len(tt.data))
			assert.Equal(t, tt.done, page.Done)
		})
	}
}

func TestWallhavenEmptyData(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, nil, map[string]interface{}{"data": []interface{}{}}))
	defer server.Close()

	src := NewWallhaven(testClient(), config.DefaultConfig().Sources.Wallhaven, server.URL, logger.NewNopLogger())
	page, err := src.Fetch(context.Background(), Request{Query: "nothing", Wanted: 5})
	require.NoError(t, err)
	assert.Empty(t, page.Candidates)
	assert.True(t, page.Done)
}

func TestRedditFetch(t *testing.T) {
	var paths []string
	server := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		paths = append(paths, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ae86", q.Get("q"))
		assert.Equal(t, "on", q.Get("restrict_sr"))
		assert.Equal(t, "7", q.Get("limit"))
		assert.Equal(t, "top", q.Get("sort"))
		assert.Equal(t, "all", q.Get("t"))
	}, map[string]interface{}{
		"data": map[string]interface{}{
			"children": []map[string]interface{}{
				{"data": map[string]interface{}{"id": "1", "title": "Override", "url": "https://reddit.com/gallery/1", "url_overridden_by_dest": "https://i.redd.it/abc123"}},
				{"data": map[string]interface{}{"id": "2", "title": "Direct", "url": "https://i.imgur.com/X.JPG"}},
				{"data": map[string]interface{}{"id": "3", "title": "Video", "url": "https://v.redd.it/vid"}},
				{"data": map[string]interface{}{"id": "4", "title": "Empty"}},
			},
		},
	}))
	defer server.Close()

	cfg := config.DefaultConfig().Sources.Reddit
	src := NewReddit(testClient(), cfg, server.URL+"/r/%s/search.json", logger.NewNopLogger())

	page, err := src.Fetch(context.Background(), Request{Query: "ae86", Wanted: 7})
	require.NoError(t, err)
	require.Len(t, page.Candidates, 2)
	assert.Equal(t, "https://i.redd.it/abc123", page.Candidates[0].URL)
	assert.Equal(t, "https://i.imgur.com/X.JPG", page.Candidates[1].URL)
	assert.Equal(t, "1", page.NextCursor)
	assert.False(t, page.Done)

	page, err = src.Fetch(context.Background(), Request{Query: "ae86", Wanted: 7, Cursor: "2"})
	require.NoError(t, err)
	assert.True(t, page.Done)

	assert.Equal(t, []string{"/r/wallpaper/search.json", "/r/WidescreenWallpaper/search.json"}, paths)
}

func TestRedditLimitCappedPerRequest(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
	}, map[string]interface{}{"data": map[string]interface{}{"children": []interface{}{}}}))
	defer server.Close()

	src := NewReddit(testClient(), config.DefaultConfig().Sources.Reddit, server.URL+"/r/%s/search.json", logger.NewNopLogger())
	_, err := src.Fetch(context.Background(), Request{Query: "x", Wanted: 100})
	require.NoError(t, err)
}

func TestRedditErrorIsLocalToSubreddit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	src := NewReddit(testClient(), config.DefaultConfig().Sources.Reddit, server.URL+"/r/%s/search.json", logger.NewNopLogger())
	page, err := src.Fetch(context.Background(), Request{Query: "x", Wanted: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r/wallpaper")
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
	require.NotNil(t, page)
	assert.False(t, page.Done)
	assert.Equal(t, "1", page.NextCursor)
}

func TestIsRedditImage(t *testing.T) {
	assert.True(t, IsRedditImage("https://i.redd.it/abc"))
	assert.True(t, IsRedditImage("https://example.com/a.JPEG"))
	assert.True(t, IsRedditImage("https://example.com/a.png?x=1"))
	assert.False(t, IsRedditImage("https://example.com/a.gif"))
	assert.False(t, IsRedditImage(""))
}

func TestUnsplashRedirector(t *testing.T) {
	src := NewUnsplash(nil, config.DefaultConfig().Sources.Unsplash, "", "", logger.NewNopLogger())

	page, err := src.Fetch(context.Background(), Request{Query: "initial d", Wanted: 2})
	require.NoError(t, err)
	assert.True(t, page.Done)

	var urls []string
	for _, c := range page.Candidates {
		assert.True(t, c.Random)
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{
		"https://source.unsplash.com/1920x1080/?initial%20d,1",
		"https://source.unsplash.com/1920x1080/?initial%20d,2",
		"https://source.unsplash.com/1920x1080/?initial-d,1",
		"https://source.unsplash.com/1920x1080/?initial-d,2",
		"https://source.unsplash.com/1920x1080/?initial+d,1",
		"https://source.unsplash.com/1920x1080/?initial+d,2",
	}, urls)
}

func TestQueryVariants(t *testing.T) {
	assert.Equal(t, []string{"sunset", "sunset", "sunset"}, QueryVariants("sunset"))
	assert.Equal(t, []string{"a b", "a-b", "a+b"}, QueryVariants("a b"))
}

func TestUnsplashRedirectorSingleWord(t *testing.T) {
	src := NewUnsplash(nil, config.DefaultConfig().Sources.Unsplash, "", "", logger.NewNopLogger())

	page, err := src.Fetch(context.Background(), Request{Query: "AE86", Wanted: 2})
	require.NoError(t, err)

	var urls []string
	for _, c := range page.Candidates {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{
		"https://source.unsplash.com/1920x1080/?AE86,1",
		"https://source.unsplash.com/1920x1080/?AE86,2",
		"https://source.unsplash.com/1920x1080/?AE86,3",
		"https://source.unsplash.com/1920x1080/?AE86,4",
		"https://source.unsplash.com/1920x1080/?AE86,5",
		"https://source.unsplash.com/1920x1080/?AE86,6",
	}, urls)
}

func TestUnsplashSearchAPI(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, "Client-ID secret", r.Header.Get("Authorization"))
		assert.Equal(t, "mountains", r.URL.Query().Get("query"))
	}, map[string]interface{}{
		"total_pages": 1,
		"results": []map[string]interface{}{
			{"id": "u1", "width": 6000, "height": 4000, "likes": 3, "alt_description": "peak", "urls": map[string]string{"full": "https://images.unsplash.com/photo-1"}},
		},
	}))
	defer server.Close()

	cfg := config.DefaultConfig().Sources.Unsplash
	cfg.AccessKey = "secret"
	src := NewUnsplash(testClient(), cfg, server.URL, "", logger.NewNopLogger())

	page, err := src.Fetch(context.Background(), Request{Query: "mountains", Wanted: 5})
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	assert.Equal(t, "https://images.unsplash.com/photo-1", page.Candidates[0].URL)
	assert.Equal(t, "peak", page.Candidates[0].Title)
	assert.False(t, page.Candidates[0].Random)
	assert.True(t, page.Done)
}

func TestPixabayFetch(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pk", q.Get("key"))
		assert.Equal(t, "photo", q.Get("image_type"))
		assert.Equal(t, "1920", q.Get("min_width"))
		assert.Equal(t, "1080", q.Get("min_height"))
		assert.Equal(t, "50", q.Get("per_page"))
	}, map[string]interface{}{
		"totalHits": 60,
		"hits": []map[string]interface{}{
			{"id": 7, "tags": "car, drift", "largeImageURL": "https://pixabay.com/get/large.jpg", "webformatURL": "https://pixabay.com/get/web.jpg", "imageWidth": 4000, "imageHeight": 2250},
			{"id": 8, "webformatURL": "https://pixabay.com/get/web8.jpg"},
		},
	}))
	defer server.Close()

	cfg := config.DefaultConfig().Sources.Pixabay
	cfg.APIKey = "pk"
	src := NewPixabay(testClient(), cfg, server.URL, logger.NewNopLogger())

	page, err := src.Fetch(context.Background(), Request{Query: "car", Wanted: 10})
	require.NoError(t, err)
	require.Len(t, page.Candidates, 2)
	assert.Equal(t, "https://pixabay.com/get/large.jpg", page.Candidates[0].URL)
	assert.Equal(t, "7", page.Candidates[0].ID)
	assert.Equal(t, "https://pixabay.com/get/web8.jpg", page.Candidates[1].URL)
	assert.False(t, page.Done)

	page, err = src.Fetch(context.Background(), Request{Query: "car", Wanted: 10, Cursor: "2"})
	require.NoError(t, err)
	assert.True(t, page.Done)
}

func TestPexelsFetch(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, "pexels-key", r.Header.Get("Authorization"))
		assert.Equal(t, "landscape", r.URL.Query().Get("orientation"))
		assert.Equal(t, "30", r.URL.Query().Get("per_page"))
	}, map[string]interface{}{
		"page": 1,
		"photos": []map[string]interface{}{
			{"id": 1, "width": 5000, "height": 3000, "alt": "road", "src": map[string]string{"original": "https://images.pexels.com/1.jpeg", "large2x": "https://images.pexels.com/1-l.jpeg"}},
			{"id": 2, "src": map[string]string{"large2x": "https://images.pexels.com/2-l.jpeg"}},
		},
	}))
	defer server.Close()

	cfg := config.DefaultConfig().Sources.Pexels
	cfg.APIKey = "pexels-key"
	src := NewPexels(testClient(), cfg, server.URL, logger.NewNopLogger())

	page, err := src.Fetch(context.Background(), Request{Query: "road", Wanted: 10})
	require.NoError(t, err)
	require.Len(t, page.Candidates, 2)
	assert.Equal(t, "https://images.pexels.com/1.jpeg", page.Candidates[0].URL)
	assert.Equal(t, "https://images.pexels.com/2-l.jpeg", page.Candidates[1].URL)
	assert.True(t, page.Done, "no next_page means done")
}

func TestCustomSource(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, "night city", r.URL.Query().Get("q"))
		assert.Equal(t, "token", r.Header.Get("X-Api-Key"))
	}, map[string]interface{}{
		"items": []map[string]interface{}{
			{"url": "https://cdn.example.com/1.jpg"},
			{"url": "ftp://cdn.example.com/2.jpg"},
			{"url": 42},
		},
	}))
	defer server.Close()

	src := NewCustom(testClient(), config.CustomSource{
		Name:        "Catalog",
		URL:         server.URL + "/search?q={query}&page={page}&n={per_page}",
		ResultsPath: "$.items[*].url",
		Headers:     map[string]string{"X-Api-Key": "token"},
	}, logger.NewNopLogger())

	assert.Equal(t, "catalog", src.Name())
	assert.True(t, strings.HasSuffix(src.ExpandURL("a b", 3), "/search?q=a+b&page=3&n=20"))

	page, err := src.Fetch(context.Background(), Request{Query: "night city", Wanted: 5})
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	assert.Equal(t, "https://cdn.example.com/1.jpg", page.Candidates[0].URL)
	assert.False(t, page.Done)
}

func TestExtractURLs(t *testing.T) {
	doc := map[string]interface{}{
		"image": "https://cdn.example.com/single.png",
		"list":  []interface{}{"https://a/1.jpg", "https://a/2.jpg"},
	}

	urls, err := ExtractURLs("$.image", doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/single.png"}, urls)

	urls, err = ExtractURLs("$.list[*]", doc)
	require.NoError(t, err)
	assert.Len(t, urls, 2)

	_, err = ExtractURLs("$.missing", doc)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestRegistry(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sources.Pexels.APIKey = "from-config"
	cfg.Sources.Custom = []config.CustomSource{{
		SourceCommon: config.SourceCommon{Enabled: true},
		Name:         "Catalog",
		URL:          "https://example.com/?q={query}",
		ResultsPath:  "$.urls",
	}}

	keys := func(source string) string {
		if source == "pexels" {
			return "from-keyring"
		}
		return ""
	}
	reg := NewRegistry(cfg, testClient(), keys, Endpoints{}, logger.NewNopLogger())

	assert.Equal(t, []string{"wallhaven", "reddit", "unsplash", "pixabay", "pexels", "catalog"}, reg.Names())

	s, err := reg.Get("Reddit")
	require.NoError(t, err)
	assert.Equal(t, "reddit", s.Name())

	_, err = reg.Get("Pixabay")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = reg.Get("flickr")
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = reg.Get("pexels")
	require.NoError(t, err)

	assert.Equal(t, []string{"wallhaven", "reddit", "unsplash", "pexels", "catalog"}, reg.Defaults())

	var pixabay Info
	for _, info := range reg.Infos() {
		if info.Name == "pixabay" {
			pixabay = info
		}
	}
	assert.True(t, pixabay.NeedsKey)
	assert.False(t, pixabay.HasKey)
}

func TestRegistryUsesStoredKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	reg := NewRegistry(cfg, testClient(), func(source string) string {
		if source == "pixabay" {
			return "stored"
		}
		return ""
	}, Endpoints{}, logger.NewNopLogger())

	_, err := reg.Get("pixabay")
	assert.NoError(t, err)
}
