package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/regwatch/internal/model"
	"github.com/ppiankov/regwatch/internal/util"
	"github.com/ppiankov/regwatch/internal/worker"
)

// ErrDisallowedByRobots is the fetch error for URLs excluded by robots.txt
var ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

// ErrBodyTooLarge is the fetch error for responses over the configured size
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// StatusError is the fetch error for non-200 responses
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// Fetcher retrieves source documents. Every call produces a FetchOutcome;
// failures are reported in the outcome rather than returned.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
}

// NewFetcher creates a new Fetcher with the given configuration. The limiter
// may be nil.
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter) *Fetcher {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed municipal sites
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		limiter:    limiter,
	}
	if f.userAgent == "" {
		f.userAgent = model.DefaultUserAgent
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, f.userAgent)
	}
	return f
}

// Fetch issues a single GET for the source. Elapsed time is always recorded.
func (f *Fetcher) Fetch(ctx context.Context, src model.Source) model.FetchOutcome {
	start := time.Now()
	out := f.fetch(ctx, src)
	out.Elapsed = time.Since(start)
	return out
}

func (f *Fetcher) fetch(ctx context.Context, src model.Source) model.FetchOutcome {
	var crawlDelay time.Duration
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, src.URL)
		if err != nil {
			return model.FetchOutcome{Err: fmt.Errorf("robots: %w", err)}
		}
		if !allowed {
			return model.FetchOutcome{Err: ErrDisallowedByRobots}
		}
		crawlDelay = delay
	}

	if f.limiter != nil {
		if err := f.limiter.WaitWithDelay(ctx, src.URL, crawlDelay); err != nil {
			return model.FetchOutcome{Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return model.FetchOutcome{Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader(src.DocType))
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return model.FetchOutcome{Err: fmt.Errorf("fetch: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	out := model.FetchOutcome{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		out.Err = err
		return out
	}
	out.Body = body

	if resp.StatusCode != http.StatusOK {
		out.Err = &StatusError{Code: resp.StatusCode}
	}
	return out
}

// readBody reads at most maxBytes, failing rather than truncating
func (f *Fetcher) readBody(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBytes)
	}
	return body, nil
}

func acceptHeader(docType model.DocType) string {
	if docType == model.DocTypePDF {
		return "application/pdf,*/*;q=0.8"
	}
	return "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
}
