package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/pagewatch/pkg/domain"
)

// default fetcher settings
const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; pagewatch/1.0)"
	DefaultMaxSize   = 10 * 1024 * 1024
)

// FetcherConfig defines HTTPFetcher parameters, zero values replaced by defaults
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxSize   int64
}

// HTTPFetcher retrieves the watched page via HTTP GET
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxSize   int64
}

// NewHTTPFetcher creates a new page fetcher
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxSize:   cfg.MaxSize,
	}
}

// Fetch retrieves the page. Any failure, including non-2xx status, is returned as *domain.FetchError
func (f *HTTPFetcher) Fetch(ctx context.Context, urlStr string) (*domain.RawPage, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, &domain.FetchError{URL: urlStr, Err: fmt.Errorf("parse URL: %w", err)}
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &domain.FetchError{URL: urlStr, Err: fmt.Errorf("invalid URL")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return nil, &domain.FetchError{URL: urlStr, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: urlStr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{URL: urlStr, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status code")}
	}

	// one extra byte tells a body of exactly maxSize from a longer one
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, &domain.FetchError{URL: urlStr, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	truncated := int64(len(body)) > f.maxSize
	if truncated {
		body = body[:f.maxSize]
		lgr.Printf("[WARN] page %s is larger than %d bytes, the rest is ignored", urlStr, f.maxSize)
	}

	return &domain.RawPage{
		URL:         urlStr,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		Body:        body,
		Truncated:   truncated,
		FetchedAt:   time.Now(),
	}, nil
}
