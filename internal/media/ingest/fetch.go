package ingest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cookbookapp/cookbook-server/internal/ratelimit"
)

const (
	// fetchTimeout is the maximum time for a source image download.
	fetchTimeout = 30 * time.Second

	// maxFetchSize limits download size to prevent memory exhaustion.
	maxFetchSize = 20 * 1024 * 1024 // 20MB

	// maxRedirects bounds redirect chains when following a source URL.
	maxRedirects = 5

	// Image hosts serve different bytes to unknown clients; present a
	// realistic browser identity like the admin tool this replaces did.
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	acceptHeader = "image/webp,image/apng,image/*,*/*;q=0.8"
	acceptLang   = "en-US,en;q=0.9"
)

// Fetcher downloads source images over HTTP with a browser-like identity.
// Certificate verification is on by default; insecure is an explicit
// configuration opt-out only.
type Fetcher struct {
	httpClient *http.Client
	limiter    *ratelimit.KeyedRateLimiter
	logger     *slog.Logger
}

// NewFetcher creates a fetcher. limiter may be nil to disable outbound
// rate limiting (tests).
func NewFetcher(insecureSkipVerify bool, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit operator opt-out
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   fetchTimeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch downloads the image at rawURL and returns its bytes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, u.Host); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLang)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	// Read with size limit
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	if len(data) == 0 {
		return nil, errors.New("empty response body")
	}

	f.logger.Debug("fetched source image",
		"url", rawURL,
		"size", len(data),
	)

	return data, nil
}
