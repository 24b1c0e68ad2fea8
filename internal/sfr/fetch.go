package sfr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxTableBytes caps a downloaded tabulation.
const maxTableBytes = 64 << 20

// Fetcher retrieves the tabulated SFR dataset over HTTP.
type Fetcher struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for url.
func NewFetcher(url string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Fetch performs an HTTP GET for the table.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sfr table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTableBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxTableBytes {
		return nil, fmt.Errorf("sfr table from %s exceeds %d byte limit", f.url, maxTableBytes)
	}

	f.logger.Info("sfr table downloaded", "url", f.url, "bytes", len(body))
	return body, nil
}

// Opener adapts the fetcher to a Cache source.
func (f *Fetcher) Opener(ctx context.Context) Opener {
	return func() (io.ReadCloser, error) {
		body, err := f.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}

// SourceOpener opens location as a URL if it has an http or https scheme and
// as a local path otherwise.
func SourceOpener(ctx context.Context, location string, logger *slog.Logger) Opener {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewFetcher(location, logger).Opener(ctx)
	}
	return FileOpener(location)
}
