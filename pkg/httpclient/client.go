package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"wallgrab/pkg/config"
	errs "wallgrab/pkg/errors"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/retry"
)

// maxAPIBody bounds how much of a JSON response is read
const maxAPIBody = 16 << 20

// Options configures a Client
type Options struct {
	UserAgent       string
	APITimeout      time.Duration
	DownloadTimeout time.Duration
	Retry           *retry.Config
	// HTTPClient overrides the transport, mainly for tests
	HTTPClient *http.Client
}

// OptionsFromConfig builds Options from the download and retry sections
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		UserAgent:       cfg.Download.UserAgent,
		APITimeout:      cfg.Download.APITimeout,
		DownloadTimeout: cfg.Download.DownloadTimeout,
		Retry:           retry.FromSettings(cfg.Retry, log),
	}
}

// Client is the HTTP client shared by every source and the download workers
type Client struct {
	httpClient      *http.Client
	headers         map[string]string
	apiTimeout      time.Duration
	downloadTimeout time.Duration
	retry           *retry.Config
	logger          logger.Logger
}

// New creates a Client. Per-request deadlines come from the Options
// timeouts, so the underlying http.Client has none of its own.
func New(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.APITimeout <= 0 {
		opts.APITimeout = 10 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 20 * time.Second
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
		opts.Retry.Logger = log
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		httpClient: hc,
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept-Language": "en-US,en;q=0.9",
		},
		apiTimeout:      opts.APITimeout,
		downloadTimeout: opts.DownloadTimeout,
		retry:           opts.Retry,
		logger:          log,
	}
}

func (c *Client) newRequest(ctx context.Context, url string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// do sends req and converts transport failures and non-2xx statuses into
// typed errors. On success the caller owns resp.Body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":   req.URL.String(),
			"error": err.Error(),
		})
		// A per-attempt deadline stays retryable; the caller's own
		// cancellation is caught by retry.Wait.
		if req.Context().Err() != nil {
			return nil, errs.New(errs.ErrorTypeNetwork, "request timed out: "+err.Error())
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "request failed", err)
	}
	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, time.Since(start))

	if err := checkResponseStatus(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := errs.FromStatus(resp.StatusCode, http.StatusText(resp.StatusCode))
	if e.Type == errs.ErrorTypeRateLimit {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// GetRaw performs an API query and returns the body. Each attempt gets
// its own API timeout.
func (c *Client) GetRaw(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return retry.DoWithResult(ctx, func() ([]byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.apiTimeout)
		defer cancel()

		req, err := c.newRequest(attemptCtx, url, headers)
		if err != nil {
			return nil, err
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to read response body", err)
		}
		return body, nil
	}, c.retry)
}

// GetJSON performs an API query and decodes the JSON response into target
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, target interface{}) error {
	body, err := c.GetRaw(ctx, url, headers)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, "failed to parse JSON", err)
	}
	return nil
}

// Response is an image GET whose status has been checked but whose body
// has not been read
type Response struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	// FinalURL is the URL after redirects
	FinalURL string
}

// Close releases the body and its idle timer
func (r *Response) Close() error {
	return r.Body.Close()
}

// idleBody cancels a download once no bytes have arrived for timeout.
// Every read that returns data pushes the deadline back.
type idleBody struct {
	body    io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	stalled *atomic.Bool
	cancel  context.CancelFunc
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.timer.Reset(b.timeout)
	}
	if err != nil && err != io.EOF && b.stalled.Load() {
		err = errs.Wrap(errs.ErrorTypeNetwork, fmt.Sprintf("no data received for %s", b.timeout), err)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	err := b.body.Close()
	b.cancel()
	return err
}

// Download starts an image GET. The download timeout bounds connecting,
// waiting for headers and every gap between body reads, not the whole
// transfer. The caller must Close the response.
func (c *Client) Download(ctx context.Context, url string) (*Response, error) {
	return retry.DoWithResult(ctx, func() (*Response, error) {
		dlCtx, cancel := context.WithCancel(ctx)
		stalled := new(atomic.Bool)
		timer := time.AfterFunc(c.downloadTimeout, func() {
			stalled.Store(true)
			cancel()
		})
		abort := func() {
			timer.Stop()
			cancel()
		}

		req, err := c.newRequest(dlCtx, url, map[string]string{"Accept": "image/*,*/*;q=0.8"})
		if err != nil {
			abort()
			return nil, err
		}
		resp, err := c.do(req)
		if err != nil {
			abort()
			return nil, err
		}
		timer.Reset(c.downloadTimeout)

		return &Response{
			Body: &idleBody{
				body:    resp.Body,
				timer:   timer,
				timeout: c.downloadTimeout,
				stalled: stalled,
				cancel:  cancel,
			},
			ContentType:   resp.Header.Get("Content-Type"),
			ContentLength: resp.ContentLength,
			FinalURL:      resp.Request.URL.String(),
		}, nil
	}, c.retry)
}
