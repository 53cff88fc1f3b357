package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"wallgrab/pkg/config"
	"wallgrab/pkg/logger"
)

const (
	// UnsplashRedirector serves a random photo for a keyword without a key
	UnsplashRedirector = "https://source.unsplash.com"
	// UnsplashEndpoint is the official search API
	UnsplashEndpoint = "https://api.unsplash.com/search/photos"

	unsplashMaxPerPage = 30
)

type unsplashResponse struct {
	TotalPages int `json:"total_pages"`
	Results    []struct {
		ID             string `json:"id"`
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		Likes          int    `json:"likes"`
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Raw  string `json:"raw"`
			Full string `json:"full"`
		} `json:"urls"`
	} `json:"results"`
}

// Unsplash uses the search API when an access key is configured and the
// keyless random redirector otherwise
type Unsplash struct {
	client     JSONClient
	cfg        config.UnsplashConfig
	endpoint   string
	redirector string
	logger     logger.Logger
}

// NewUnsplash creates an Unsplash source. Empty endpoints use the public hosts.
func NewUnsplash(client JSONClient, cfg config.UnsplashConfig, endpoint, redirector string, log logger.Logger) *Unsplash {
	if endpoint == "" {
		endpoint = UnsplashEndpoint
	}
	if redirector == "" {
		redirector = UnsplashRedirector
	}
	return &Unsplash{client: client, cfg: cfg, endpoint: endpoint, redirector: redirector, logger: log}
}

func (u *Unsplash) Name() string { return "unsplash" }

func (u *Unsplash) Fetch(ctx context.Context, req Request) (*Page, error) {
	if u.cfg.AccessKey == "" {
		return u.redirectorPage(req), nil
	}
	return u.searchPage(ctx, req)
}

// QueryVariants returns the query as typed, with spaces as '-', and with
// spaces as '+'. A query without spaces yields the same variant three times.
func QueryVariants(query string) []string {
	return []string{query, strings.ReplaceAll(query, " ", "-"), strings.ReplaceAll(query, " ", "+")}
}

// redirectorPage generates Wanted URLs per query variant in one shot. A
// repeated variant continues its numbering so every URL is a fresh draw.
func (u *Unsplash) redirectorPage(req Request) *Page {
	resolution := u.cfg.Resolution
	if resolution == "" {
		resolution = "1920x1080"
	}

	page := &Page{Done: true}
	used := make(map[string]int)
	for _, variant := range QueryVariants(req.Query) {
		offset := used[variant]
		used[variant] += req.Wanted
		for i := offset + 1; i <= offset+req.Wanted; i++ {
			page.Candidates = append(page.Candidates, Candidate{
				URL:    fmt.Sprintf("%s/%s/?%s,%d", u.redirector, resolution, url.PathEscape(variant), i),
				Source: u.Name(),
				Title:  variant,
				Random: true,
			})
		}
	}
	return page
}

func (u *Unsplash) searchPage(ctx context.Context, req Request) (*Page, error) {
	page := pageFromCursor(req.Cursor)

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(unsplashMaxPerPage))
	params.Set("orientation", "landscape")

	var resp unsplashResponse
	headers := map[string]string{
		"Authorization":  "Client-ID " + u.cfg.AccessKey,
		"Accept-Version": "v1",
	}
	if err := u.client.GetJSON(ctx, withQuery(u.endpoint, params), headers, &resp); err != nil {
		return nil, err
	}

	out := &Page{
		NextCursor: strconv.Itoa(page + 1),
		Done:       len(resp.Results) == 0 || page >= resp.TotalPages,
	}
	for _, photo := range resp.Results {
		imgURL := firstNonEmpty(photo.URLs.Full, photo.URLs.Raw)
		if imgURL == "" {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{
			URL:    imgURL,
			Source: u.Name(),
			ID:     photo.ID,
			Title:  firstNonEmpty(photo.Description, photo.AltDescription),
			Width:  photo.Width,
			Height: photo.Height,
			Score:  photo.Likes,
		})
	}
	return out, nil
}
