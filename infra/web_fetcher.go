package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultUserAgent = "Mozilla/5.0"
	maxPageBodyBytes = 5 << 20
)

type WebPage struct {
	URL        string
	StatusCode int
	Body       string
}

// WebFetcher downloads public pages of a submitted deliverable.
type WebFetcher struct {
	UserAgent string
	client    *http.Client
}

func NewWebFetcher() *WebFetcher {
	return &WebFetcher{
		UserAgent: defaultUserAgent,
		client:    &http.Client{},
	}
}

// Fetch returns the page whatever its status code; only transport failures are errors.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*WebPage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	return &WebPage{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}
