package sources

import (
	"context"
	"net/url"
	"strconv"

	"wallgrab/pkg/config"
	"wallgrab/pkg/logger"
)

// WallhavenEndpoint is the wallhaven.cc search API
const WallhavenEndpoint = "https://wallhaven.cc/api/v1/search"

type wallhavenResponse struct {
	Data []struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		Path       string `json:"path"`
		DimensionX int    `json:"dimension_x"`
		DimensionY int    `json:"dimension_y"`
		Favorites  int    `json:"favorites"`
		Category   string `json:"category"`
	} `json:"data"`
	Meta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"meta"`
}

// Wallhaven searches wallhaven.cc, one API page per Fetch
type Wallhaven struct {
	client   JSONClient
	cfg      config.WallhavenConfig
	endpoint string
	logger   logger.Logger
}

// NewWallhaven creates a Wallhaven source; an empty endpoint uses the public API
func NewWallhaven(client JSONClient, cfg config.WallhavenConfig, endpoint string, log logger.Logger) *Wallhaven {
	if endpoint == "" {
		endpoint = WallhavenEndpoint
	}
	return &Wallhaven{client: client, cfg: cfg, endpoint: endpoint, logger: log}
}

func (w *Wallhaven) Name() string { return "wallhaven" }

func (w *Wallhaven) Fetch(ctx context.Context, req Request) (*Page, error) {
	page := pageFromCursor(req.Cursor)

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("categories", w.cfg.Categories)
	params.Set("purity", w.cfg.Purity)
	params.Set("resolutions", w.cfg.Resolutions)
	params.Set("sorting", w.cfg.Sorting)
	params.Set("order", w.cfg.Order)
	params.Set("page", strconv.Itoa(page))
	if w.cfg.APIKey != "" {
		params.Set("apikey", w.cfg.APIKey)
	}

	var resp wallhavenResponse
	if err := w.client.GetJSON(ctx, withQuery(w.endpoint, params), nil, &resp); err != nil {
		return nil, err
	}

	out := &Page{NextCursor: strconv.Itoa(page + 1)}
	for _, wp := range resp.Data {
		if wp.Path == "" {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{
			URL:    wp.Path,
			Source: w.Name(),
			ID:     wp.ID,
			Title:  wp.URL,
			Width:  wp.DimensionX,
			Height: wp.DimensionY,
			Score:  wp.Favorites,
		})
	}

	// without paging meta a page shorter than per_page is the last one
	short := resp.Meta.LastPage == 0 && w.cfg.PerPage > 0 && len(resp.Data) < w.cfg.PerPage
	out.Done = len(resp.Data) == 0 || short || (resp.Meta.LastPage > 0 && page >= resp.Meta.LastPage)
	w.logger.DebugWithFields("wallhaven page fetched", map[string]interface{}{
		"page":       page,
		"last_page":  resp.Meta.LastPage,
		"candidates": len(out.Candidates),
	})
	return out, nil
}
