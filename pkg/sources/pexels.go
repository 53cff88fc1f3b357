package sources

import (
	"context"
	"net/url"
	"strconv"

	"wallgrab/pkg/config"
	"wallgrab/pkg/logger"
)

// PexelsEndpoint is the Pexels photo search API
const PexelsEndpoint = "https://api.pexels.com/v1/search"

type pexelsResponse struct {
	Page     int    `json:"page"`
	NextPage string `json:"next_page"`
	Photos   []struct {
		ID           int    `json:"id"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Alt          string `json:"alt"`
		Photographer string `json:"photographer"`
		Src          struct {
			Original string `json:"original"`
			Large2x  string `json:"large2x"`
		} `json:"src"`
	} `json:"photos"`
}

// Pexels searches pexels.com; the API key goes in the Authorization header
type Pexels struct {
	client   JSONClient
	cfg      config.PexelsConfig
	endpoint string
	logger   logger.Logger
}

// NewPexels creates a Pexels source; an empty endpoint uses the public API
func NewPexels(client JSONClient, cfg config.PexelsConfig, endpoint string, log logger.Logger) *Pexels {
	if endpoint == "" {
		endpoint = PexelsEndpoint
	}
	return &Pexels{client: client, cfg: cfg, endpoint: endpoint, logger: log}
}

func (p *Pexels) Name() string { return "pexels" }

func (p *Pexels) Fetch(ctx context.Context, req Request) (*Page, error) {
	page := pageFromCursor(req.Cursor)

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("per_page", strconv.Itoa(clamp(p.cfg.PerPage, 1, 80)))
	params.Set("page", strconv.Itoa(page))
	if p.cfg.Orientation != "" {
		params.Set("orientation", p.cfg.Orientation)
	}

	var resp pexelsResponse
	headers := map[string]string{"Authorization": p.cfg.APIKey}
	if err := p.client.GetJSON(ctx, withQuery(p.endpoint, params), headers, &resp); err != nil {
		return nil, err
	}

	out := &Page{
		NextCursor: strconv.Itoa(page + 1),
		Done:       len(resp.Photos) == 0 || resp.NextPage == "",
	}
	for _, photo := range resp.Photos {
		imgURL := firstNonEmpty(photo.Src.Original, photo.Src.Large2x)
		if imgURL == "" {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{
			URL:    imgURL,
			Source: p.Name(),
			ID:     strconv.Itoa(photo.ID),
			Title:  firstNonEmpty(photo.Alt, photo.Photographer),
			Width:  photo.Width,
			Height: photo.Height,
		})
	}
	return out, nil
}
