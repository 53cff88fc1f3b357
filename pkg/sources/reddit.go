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

// RedditEndpoint is the subreddit search URL; %s is the subreddit
const RedditEndpoint = "https://www.reddit.com/r/%s/search.json"

var redditImageMarkers = []string{".jpg", ".jpeg", ".png", "i.redd.it"}

type redditResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				ID                  string `json:"id"`
				Title               string `json:"title"`
				URL                 string `json:"url"`
				URLOverriddenByDest string `json:"url_overridden_by_dest"`
				Score               int    `json:"score"`
				Over18              bool   `json:"over_18"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Reddit searches a fixed list of wallpaper subreddits, one subreddit per
// Fetch. The cursor is the index of the next subreddit.
type Reddit struct {
	client   JSONClient
	cfg      config.RedditConfig
	endpoint string
	logger   logger.Logger
}

// NewReddit creates a Reddit source; endpoint must contain one %s for the subreddit
func NewReddit(client JSONClient, cfg config.RedditConfig, endpoint string, log logger.Logger) *Reddit {
	if endpoint == "" {
		endpoint = RedditEndpoint
	}
	return &Reddit{client: client, cfg: cfg, endpoint: endpoint, logger: log}
}

func (r *Reddit) Name() string { return "reddit" }

func (r *Reddit) Fetch(ctx context.Context, req Request) (*Page, error) {
	idx, err := strconv.Atoi(req.Cursor)
	if err != nil || idx < 0 {
		idx = 0
	}
	if idx >= len(r.cfg.Subreddits) {
		return &Page{Done: true}, nil
	}
	subreddit := r.cfg.Subreddits[idx]

	out := &Page{
		NextCursor: strconv.Itoa(idx + 1),
		Done:       idx+1 >= len(r.cfg.Subreddits),
	}

	perRequest := r.cfg.MaxPerRequest
	if perRequest <= 0 {
		perRequest = 25
	}
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("restrict_sr", "on")
	params.Set("limit", strconv.Itoa(clamp(req.Wanted, 1, perRequest)))
	params.Set("sort", r.cfg.Sort)
	params.Set("t", r.cfg.Time)

	var resp redditResponse
	endpoint := fmt.Sprintf(r.endpoint, url.PathEscape(subreddit))
	if err := r.client.GetJSON(ctx, withQuery(endpoint, params), nil, &resp); err != nil {
		return out, fmt.Errorf("r/%s: %w", subreddit, err)
	}

	for _, child := range resp.Data.Children {
		post := child.Data
		imgURL := firstNonEmpty(post.URLOverriddenByDest, post.URL)
		if !IsRedditImage(imgURL) {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{
			URL:    imgURL,
			Source: r.Name(),
			ID:     post.ID,
			Title:  post.Title,
			Score:  post.Score,
		})
	}

	r.logger.DebugWithFields("reddit subreddit searched", map[string]interface{}{
		"subreddit":  subreddit,
		"posts":      len(resp.Data.Children),
		"candidates": len(out.Candidates),
	})
	return out, nil
}

// IsRedditImage reports whether a post URL points at a direct image
func IsRedditImage(u string) bool {
	if u == "" {
		return false
	}
	lower := strings.ToLower(u)
	for _, marker := range redditImageMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
