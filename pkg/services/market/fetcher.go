package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
)

// ErrDataUnavailable is returned when the market was closed on the
// requested date or the upstream source failed. The run is not retried.
var ErrDataUnavailable = errors.New("market data unavailable")

// Fetcher produces the market snapshot a report is built from.
type Fetcher interface {
	Fetch(ctx context.Context, date string) (domain.MarketSnapshot, error)
}

const defaultTimeout = 30 * time.Second

// Client fetches snapshots from the market-data HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client with a bounded request timeout.
func NewClient(baseURL string, opts ...func(*Client)) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the internal HTTP client.
func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		c.httpClient = hc
	}
}

type snapshotEnvelope struct {
	MarketClosed bool                   `json:"market_closed"`
	Snapshot     *domain.MarketSnapshot `json:"snapshot"`
}

// Fetch retrieves the snapshot for date. Transport errors, non-200
// responses and closed-market payloads all surface as
// ErrDataUnavailable.
func (c *Client) Fetch(ctx context.Context, date string) (domain.MarketSnapshot, error) {
	endpoint := fmt.Sprintf("%s/snapshot?date=%s", c.baseURL, url.QueryEscape(date))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.MarketSnapshot{}, fmt.Errorf("%w: upstream returned %d: %s",
			ErrDataUnavailable, resp.StatusCode, string(body))
	}

	var envelope snapshotEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: failed to decode snapshot: %v", ErrDataUnavailable, err)
	}
	if envelope.MarketClosed {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: market closed on %s", ErrDataUnavailable, date)
	}
	if envelope.Snapshot == nil {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: empty snapshot for %s", ErrDataUnavailable, date)
	}
	return *envelope.Snapshot, nil
}
