package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxArchiveSize caps the fetched archive at 64 MiB; the companion wheel is
// well under 1 MiB.
const maxArchiveSize = 64 << 20

// HTTPFetcher retrieves archives over HTTP with automatic retries on
// transient failures.
type HTTPFetcher struct {
	client *retryablehttp.Client
}

// NewHTTPFetcher creates a fetcher with the given retry budget.
func NewHTTPFetcher(retryMax int, timeout time.Duration) *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &HTTPFetcher{client: client}
}

// Fetch downloads the archive bytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("install: build fetch request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("install: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("install: fetch %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("install: read archive body: %w", err)
	}
	if len(data) > maxArchiveSize {
		return nil, fmt.Errorf("install: archive exceeds %d bytes", maxArchiveSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("install: archive is empty")
	}
	return data, nil
}
