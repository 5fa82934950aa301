package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flightscout-service/pkg/logger"

	"golang.org/x/time/rate"
)

const defaultMaxBodyBytes = 8 << 20

// FetcherConfig configures outbound requests to sources
type FetcherConfig struct {
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	RetryMax      int
	// BackoffBase is the fallback wait on a throttled response without Retry-After
	BackoffBase  time.Duration
	MaxBodyBytes int64
}

// Request is one outbound call
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Cookies []*http.Cookie
}

// Response is a fully read response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
}

// HTTPStatusError is returned for a non-2xx final response
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Fetcher performs rate limited requests with retry on throttling and server errors
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     FetcherConfig
	logger  logger.Logger
}

// NewFetcher creates a fetcher. One fetcher is shared by all sessions of a source.
func NewFetcher(cfg FetcherConfig, log logger.Logger) *Fetcher {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		cfg:     cfg,
		logger:  log,
	}
}

// Do sends req, retrying 429/403/408/5xx and transport errors up to RetryMax times
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.RetryMax; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		if httpReq.Header.Get("User-Agent") == "" && f.cfg.UserAgent != "" {
			httpReq.Header.Set("User-Agent", f.cfg.UserAgent)
		}
		for _, c := range req.Cookies {
			httpReq.AddCookie(c)
		}

		resp, err := f.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt < f.cfg.RetryMax {
				if err := sleep(ctx, f.backoff(attempt, 0)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("request to %s failed: %w", req.URL, err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response from %s: %w", req.URL, readErr)
		}

		code := resp.StatusCode
		switch {
		case code >= 200 && code < 300:
			return &Response{
				StatusCode: code,
				Header:     resp.Header,
				Body:       body,
				Cookies:    resp.Cookies(),
			}, nil
		case retryable(code):
			lastErr = &HTTPStatusError{StatusCode: code, URL: req.URL}
			if attempt < f.cfg.RetryMax {
				wait := f.backoff(attempt, parseRetryAfter(resp.Header))
				f.logger.Warn("Throttled by source, backing off",
					"status", code,
					"attempt", attempt,
					"wait", wait)
				if err := sleep(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
		default:
			return nil, &HTTPStatusError{StatusCode: code, URL: req.URL}
		}
	}
	return nil, lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusForbidden ||
		code == http.StatusRequestTimeout ||
		(code >= 500 && code <= 599)
}

func (f *Fetcher) backoff(attempt int, retryAfter time.Duration) time.Duration {
	wait := retryAfter
	if wait == 0 {
		wait = f.cfg.BackoffBase
	}
	jitter := time.Duration(rand.Int63n(int64(f.cfg.BackoffBase)/4 + 1))
	return wait + time.Duration(attempt*attempt)*f.cfg.BackoffBase/2 + jitter
}

func parseRetryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MergeCookies returns base with any cookie in update replacing the same name
func MergeCookies(base, update []*http.Cookie) []*http.Cookie {
	merged := make([]*http.Cookie, 0, len(base)+len(update))
	index := make(map[string]int, len(base)+len(update))
	for _, c := range append(append([]*http.Cookie{}, base...), update...) {
		if i, ok := index[c.Name]; ok {
			merged[i] = c
			continue
		}
		index[c.Name] = len(merged)
		merged = append(merged, c)
	}
	return merged
}
