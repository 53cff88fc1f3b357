package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"wallgrab/pkg/config"
	errs "wallgrab/pkg/errors"
	"wallgrab/pkg/logger"
)

// Custom queries a user-described JSON endpoint and picks image URLs out of
// the response with a JSONPath expression
type Custom struct {
	client JSONClient
	cfg    config.CustomSource
	logger logger.Logger
}

// NewCustom creates a custom JSON source
func NewCustom(client JSONClient, cfg config.CustomSource, log logger.Logger) *Custom {
	return &Custom{client: client, cfg: cfg, logger: log}
}

func (c *Custom) Name() string { return strings.ToLower(c.cfg.Name) }

func (c *Custom) paged() bool {
	return strings.Contains(c.cfg.URL, "{page}")
}

// ExpandURL fills the {query}, {page} and {per_page} placeholders
func (c *Custom) ExpandURL(query string, page int) string {
	perPage := c.cfg.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(query),
		"{page}", strconv.Itoa(page),
		"{per_page}", strconv.Itoa(perPage),
	)
	return r.Replace(c.cfg.URL)
}

func (c *Custom) Fetch(ctx context.Context, req Request) (*Page, error) {
	page := pageFromCursor(req.Cursor)

	var doc interface{}
	if err := c.client.GetJSON(ctx, c.ExpandURL(req.Query, page), c.cfg.Headers, &doc); err != nil {
		return nil, err
	}

	urls, err := ExtractURLs(c.cfg.ResultsPath, doc)
	if err != nil {
		return nil, err
	}

	out := &Page{
		NextCursor: strconv.Itoa(page + 1),
		Done:       !c.paged() || len(urls) == 0,
	}
	for _, u := range urls {
		out.Candidates = append(out.Candidates, Candidate{URL: u, Source: c.Name()})
	}

	c.logger.DebugWithFields("custom source page fetched", map[string]interface{}{
		"source":     c.Name(),
		"page":       page,
		"candidates": len(out.Candidates),
	})
	return out, nil
}

// ExtractURLs evaluates expr against a decoded JSON document and returns
// every http(s) string it selects
func ExtractURLs(expr string, doc interface{}) ([]string, error) {
	val, err := jsonpath.Get(strings.TrimSpace(expr), doc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, fmt.Sprintf("jsonpath %q", expr), err)
	}

	var values []interface{}
	switch v := val.(type) {
	case []interface{}:
		values = v
	default:
		values = []interface{}{v}
	}

	var urls []string
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			urls = append(urls, s)
		}
	}
	return urls, nil
}
