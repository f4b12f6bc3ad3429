// Package rates looks up the LBC/USD exchange rate and converts amounts
// between the two currencies.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client fetches the current coins-per-USD rate from the rate service.
// It implements service.RateClient.
type Client struct {
	rateURL    string
	httpClient *http.Client
}

// NewClient creates a rate client.
func NewClient(rateURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		rateURL: rateURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type rateResponse struct {
	Data struct {
		LBCUSD *decimal.Decimal `json:"lbc_usd"`
	} `json:"data"`
}

// GetRate returns the current coins-per-USD rate. A missing field, an
// unparseable body or a zero rate all fail the call: converting with an
// invalid rate must never silently produce a zero or non-finite amount.
func (c *Client) GetRate(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rateURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request rate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read rate response: %w", err)
	}

	var rate rateResponse
	if err := json.Unmarshal(body, &rate); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal rate response: %w", err)
	}
	if rate.Data.LBCUSD == nil {
		return decimal.Zero, fmt.Errorf("rate response missing lbc_usd field")
	}
	if rate.Data.LBCUSD.IsZero() || rate.Data.LBCUSD.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid rate %s", rate.Data.LBCUSD)
	}
	return *rate.Data.LBCUSD, nil
}
