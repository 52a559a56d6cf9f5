package fetcher

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RateLimiters map[string]*rate.Limiter
	// DataGovKey is attached as x-api-key on data.gov.sg-family hosts and
	// unlocks the higher request rate for them.
	DataGovKey string
}

// StatusError reports a non-2xx terminal response after retries.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return "unexpected status " + http.StatusText(e.Code) + " from " + e.URL
}

// IsTimeout reports whether the error was a request timeout or deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}

// datagovHosts are the hosts whose rate limits depend on an API key.
var datagovHosts = map[string]bool{
	"data.gov.sg":                  true,
	"api-open.data.gov.sg":         true,
	"tablebuilder.singstat.gov.sg": true,
}

// DefaultRateLimiters returns the per-host rate limiters for the Singapore
// government data providers. Without an API key data.gov.sg allows roughly 4
// requests per 10s, so the shared limiter enforces one request per 2.5s;
// with a key one per second.
func DefaultRateLimiters(apiKeyed bool) map[string]*rate.Limiter {
	govInterval := 2500 * time.Millisecond
	if apiKeyed {
		govInterval = time.Second
	}
	return map[string]*rate.Limiter{
		"data.gov.sg":                  rate.NewLimiter(rate.Every(govInterval), 1),
		"api-open.data.gov.sg":         rate.NewLimiter(rate.Every(govInterval), 1),
		"tablebuilder.singstat.gov.sg": rate.NewLimiter(rate.Every(govInterval), 1),
		"www.singstat.gov.sg":          rate.NewLimiter(1, 1),
		"www.hdb.gov.sg":               rate.NewLimiter(1, 2),
		"services2.hdb.gov.sg":         rate.NewLimiter(1, 2),
		"www.ura.gov.sg":               rate.NewLimiter(1, 2),
		"www.google.com":               rate.NewLimiter(0.5, 1),
	}
}

// HTTPFetcher implements rate-limited HTTP fetching with retry and backoff.
// One fetcher is shared process-wide so the per-host limiters apply across
// cycles, not just within one.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; HeartlandScout/1.0)"
	}
	limiters := opts.RateLimiters
	if limiters == nil {
		limiters = DefaultRateLimiters(opts.DataGovKey != "")
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	// Unknown hosts get a fresh shared limiter so repeated calls to the same
	// provider are still spaced out.
	lim := rate.NewLimiter(2, 2)
	f.limiters[host] = lim
	return lim
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limiterFor(req.URL.Host)

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
		last := attempt == f.opts.MaxRetries-1

		cloned := req.Clone(ctx)
		resp, err := f.client.Do(cloned)
		if err != nil {
			lastErr = err
			if IsTimeout(err) || ctx.Err() != nil || last {
				// Timeouts surface immediately; the tool records UNAVAILABLE.
				return nil, err
			}
			zap.L().Warn("http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
			if last {
				return nil, lastErr
			}
			zap.L().Warn("retryable status, backing off",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			_ = resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
		}

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	base := 3 * time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 2))
	d = d + jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Result is a fetched document plus the URL it finally resolved to.
type Result struct {
	Body     string
	FinalURL string
}

// Get fetches the URL and returns the response body as text. Redirects are
// followed; the final URL is reported for provenance.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	if f.opts.DataGovKey != "" && datagovHosts[req.URL.Host] {
		req.Header.Set("x-api-key", f.opts.DataGovKey)
	}

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Result{Body: string(body), FinalURL: finalURL}, nil
}
