package sources

import (
	"context"
	"net/url"
	"strconv"

	"wallgrab/pkg/config"
	"wallgrab/pkg/logger"
)

// PixabayEndpoint is the Pixabay image search API
const PixabayEndpoint = "https://pixabay.com/api/"

type pixabayResponse struct {
	TotalHits int `json:"totalHits"`
	Hits      []struct {
		ID            int    `json:"id"`
		Tags          string `json:"tags"`
		Likes         int    `json:"likes"`
		ImageWidth    int    `json:"imageWidth"`
		ImageHeight   int    `json:"imageHeight"`
		LargeImageURL string `json:"largeImageURL"`
		WebformatURL  string `json:"webformatURL"`
	} `json:"hits"`
}

// Pixabay searches pixabay.com; it requires an API key
type Pixabay struct {
	client   JSONClient
	cfg      config.PixabayConfig
	endpoint string
	logger   logger.Logger
}

// NewPixabay creates a Pixabay source; an empty endpoint uses the public API
func NewPixabay(client JSONClient, cfg config.PixabayConfig, endpoint string, log logger.Logger) *Pixabay {
	if endpoint == "" {
		endpoint = PixabayEndpoint
	}
	return &Pixabay{client: client, cfg: cfg, endpoint: endpoint, logger: log}
}

func (p *Pixabay) Name() string { return "pixabay" }

func (p *Pixabay) Fetch(ctx context.Context, req Request) (*Page, error) {
	page := pageFromCursor(req.Cursor)
	perPage := clamp(p.cfg.PerPage, 3, 200)

	params := url.Values{}
	params.Set("key", p.cfg.APIKey)
	params.Set("q", req.Query)
	params.Set("image_type", p.cfg.ImageType)
	params.Set("min_width", strconv.Itoa(p.cfg.MinWidth))
	params.Set("min_height", strconv.Itoa(p.cfg.MinHeight))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))

	var resp pixabayResponse
	if err := p.client.GetJSON(ctx, withQuery(p.endpoint, params), nil, &resp); err != nil {
		return nil, err
	}

	out := &Page{
		NextCursor: strconv.Itoa(page + 1),
		Done:       len(resp.Hits) == 0 || page*perPage >= resp.TotalHits,
	}
	for _, hit := range resp.Hits {
		imgURL := firstNonEmpty(hit.LargeImageURL, hit.WebformatURL)
		if imgURL == "" {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{
			URL:    imgURL,
			Source: p.Name(),
			ID:     strconv.Itoa(hit.ID),
			Title:  hit.Tags,
			Width:  hit.ImageWidth,
			Height: hit.ImageHeight,
			Score:  hit.Likes,
		})
	}

	p.logger.DebugWithFields("pixabay page fetched", map[string]interface{}{
		"page":       page,
		"total_hits": resp.TotalHits,
		"candidates": len(out.Candidates),
	})
	return out, nil
}
