package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

// ErrPriceNotListed indicates the provider knows the model but lists no price for the requested year.
var ErrPriceNotListed = errors.New("no price listed for model year")

// Quote is a reference price reported by the provider in its native currency.
type Quote struct {
	Amount   decimal.Decimal
	Currency domain.Currency
}

type lastUpdateResponse struct {
	UpdatedAt time.Time `json:"updatedAt"`
}

type yearPrice struct {
	Year  int             `json:"year"`
	Price decimal.Decimal `json:"price"`
}

type pricesResponse struct {
	Currency string      `json:"currency"`
	Prices   []yearPrice `json:"prices"`
}

// Client is an HTTP client for the external vehicle pricing provider with retry on 429.
type Client struct {
	baseURL    string
	token      string
	currency   domain.Currency
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	listings   *listingCache
}

// NewClient creates a new pricing provider client. currency is the provider's native currency,
// used when a response does not state one.
func NewClient(baseURL, token string, currency domain.Currency, maxRetries int, baseDelay time.Duration) *Client {
	if !currency.Valid() {
		currency = domain.ARS
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		currency:   currency,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		listings:   newListingCache(),
	}
}

// LastModified returns the time the provider last published new price data.
func (c *Client) LastModified(ctx context.Context) (time.Time, error) {
	var resp lastUpdateResponse
	if err := c.getJSON(ctx, "/last-update", &resp); err != nil {
		return time.Time{}, err
	}
	if resp.UpdatedAt.IsZero() {
		return time.Time{}, fmt.Errorf("provider returned empty last-update timestamp")
	}
	c.listings.observe(resp.UpdatedAt)
	return resp.UpdatedAt, nil
}

// ReferencePrice looks up the price of a model (by provider identifier) for the given model year.
func (c *Client) ReferencePrice(ctx context.Context, externalID string, year int) (Quote, error) {
	resp, ok := c.listings.get(externalID)
	if !ok {
		if err := c.getJSON(ctx, "/models/"+url.PathEscape(externalID)+"/prices", &resp); err != nil {
			return Quote{}, err
		}
		c.listings.set(externalID, resp)
	}

	currency := c.currency
	if resp.Currency != "" {
		parsed, err := domain.ParseCurrency(resp.Currency)
		if err != nil {
			return Quote{}, fmt.Errorf("model %s: %w", externalID, err)
		}
		currency = parsed
	}

	price, ok := lo.Find(resp.Prices, func(p yearPrice) bool { return p.Year == year })
	if !ok {
		return Quote{}, fmt.Errorf("model %s year %d: %w", externalID, year, ErrPriceNotListed)
	}

	return Quote{Amount: price.Price, Currency: currency}, nil
}

// get performs an authenticated GET request with retry on 429.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	endpoint := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnreachable, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w: HTTP 429 at %s (attempt %d/%d)", domain.ErrProviderUnreachable, path, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: HTTP %d from %s", domain.ErrProviderUnreachable, resp.StatusCode, path)
		}
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, path, string(body))
	}

	return nil, lastErr
}

// getJSON performs a GET request and unmarshals the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", path, err)
	}
	return nil
}
