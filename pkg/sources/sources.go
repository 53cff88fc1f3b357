package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Candidate is an image URL returned by a source
type Candidate struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
	// Width and Height are what the API reports, zero when unknown
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	Score  int `json:"score,omitempty"`
	// Random marks URLs that resolve to a different image on every request
	Random bool `json:"random,omitempty"`
}

// Request asks a source for the next page of candidates
type Request struct {
	Query string
	// Wanted is how many more images the caller still needs
	Wanted int
	// Cursor is the NextCursor of the previous page, empty for the first
	Cursor string
}

// Page is one batch of candidates
type Page struct {
	Candidates []Candidate
	NextCursor string
	// Done means there is nothing after this page
	Done bool
}

// Source is an image provider.
//
// When Fetch returns an error together with a non-nil Page that is not
// Done, the failure was local to one request and the caller may continue
// with NextCursor.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Page, error)
}

// JSONClient is the subset of the HTTP client the sources need
type JSONClient interface {
	GetJSON(ctx context.Context, url string, headers map[string]string, target interface{}) error
}

// pageFromCursor parses a 1-based page cursor
func pageFromCursor(cursor string) int {
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func withQuery(base string, params url.Values) string {
	if strings.Contains(base, "?") {
		return base + "&" + params.Encode()
	}
	return base + "?" + params.Encode()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// firstNonEmpty returns the first non-blank string
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
