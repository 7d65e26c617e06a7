package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/ports/adapter"
)

var _ adapter.ImageFetcher = (*HTTPFetcher)(nil)

// HTTPFetcher streams upstream image bodies for the proxy. The caller owns
// and must close the returned body.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*adapter.FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: http %d", domain.ErrUpstream, resp.StatusCode)
	}
	return &adapter.FetchedImage{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		CacheControl:  resp.Header.Get("Cache-Control"),
		ContentLength: resp.ContentLength,
	}, nil
}
