package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

// ratePaths maps each stored rate type to its FX source endpoint.
var ratePaths = map[domain.RateType]string{
	domain.RateTypeDaily:    "/blue",
	domain.RateTypeOfficial: "/official",
}

// quoteResponse is the FX source payload. Only Sell is consumed.
type quoteResponse struct {
	Buy       decimal.Decimal `json:"buy"`
	Sell      decimal.Decimal `json:"sell"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Client fetches ARS/USD quotes from the external FX source.
type Client struct {
	baseURL    string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewClient creates a new FX source client.
func NewClient(baseURL string, delay time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// FetchSellRate returns the sell rate (ARS per USD) for the given market.
func (c *Client) FetchSellRate(ctx context.Context, rateType domain.RateType) (decimal.Decimal, error) {
	path, ok := ratePaths[rateType]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown rate type %q", rateType)
	}

	body, err := c.fetchWithRetry(ctx, c.baseURL+path)
	if err != nil {
		return decimal.Zero, err
	}

	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return decimal.Zero, fmt.Errorf("parsing FX response: %w", err)
	}
	if !q.Sell.IsPositive() {
		return decimal.Zero, fmt.Errorf("FX source returned non-positive %s sell rate %s", rateType, q.Sell)
	}

	return q.Sell, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = time.Second
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating FX request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("FX request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading FX response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("FX source HTTP %d (attempt %d/%d)", resp.StatusCode, attempt+1, c.maxRetries+1)
			continue
		}

		return nil, fmt.Errorf("FX source HTTP %d: %s", resp.StatusCode, string(body))
	}

	return nil, lastErr
}
