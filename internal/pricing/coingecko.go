package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohamedkhairy/coin-alerts/internal/models"
	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

// UpstreamError indicates that the upstream price API could not be used:
// network failure, non-2xx response, or a malformed payload.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream price API: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("upstream price API: %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves point-in-time price snapshots
type Fetcher interface {
	// Fetch retrieves current prices for the given asset ids. Ids unknown to
	// the upstream are simply absent from the result, not errors.
	Fetch(ctx context.Context, assetIDs []string) (*models.PriceSnapshot, error)
}

// CoinGeckoFetcher fetches prices from a CoinGecko-style /simple/price
// endpoint
type CoinGeckoFetcher struct {
	baseURL       string
	quoteCurrency string
	client        *http.Client
}

// NewCoinGeckoFetcher creates a new fetcher for the given API base URL and
// quote currency. The timeout bounds each request; it must be shorter than
// the watcher poll interval.
func NewCoinGeckoFetcher(baseURL, quoteCurrency string, timeout time.Duration) *CoinGeckoFetcher {
	return &CoinGeckoFetcher{
		baseURL:       strings.TrimRight(baseURL, "/"),
		quoteCurrency: strings.ToLower(quoteCurrency),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch retrieves current prices for the given asset ids
func (f *CoinGeckoFetcher) Fetch(ctx context.Context, assetIDs []string) (*models.PriceSnapshot, error) {
	snapshot := models.NewPriceSnapshot(time.Now())
	if len(assetIDs) == 0 {
		return snapshot, nil
	}

	ids := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		normalized := models.NormalizeAssetID(id)
		if normalized != "" {
			ids = append(ids, normalized)
		}
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", f.quoteCurrency)
	endpoint := f.baseURL + "/simple/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UpstreamError{Op: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "fetch prices", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Op: "fetch prices", StatusCode: resp.StatusCode}
	}

	// Upstream shape: {"bitcoin": {"usd": 50000.12}, ...}
	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &UpstreamError{Op: "decode response", Err: err}
	}

	for id, quotes := range payload {
		price, ok := quotes[f.quoteCurrency]
		if !ok {
			// Present id with a missing quote field means no data, not an error
			logger.Debug("No quote for asset in upstream response",
				logger.String("asset_id", id),
				logger.String("quote_currency", f.quoteCurrency),
			)
			continue
		}
		snapshot.Prices[models.NormalizeAssetID(id)] = price
	}

	return snapshot, nil
}
