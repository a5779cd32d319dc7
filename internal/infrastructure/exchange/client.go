package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultURL returns the latest rates against USD.
const DefaultURL = "https://api.exchangerate-api.com/v4/latest/USD"

// Client fetches the USD to INR rate from an exchangerate-api style endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (c *Client) FetchUSDINR(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate API error %d: %s", resp.StatusCode, string(data))
	}

	var out latestResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal response: %w", err)
	}
	rate, ok := out.Rates["INR"]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("INR rate missing from response")
	}
	return rate, nil
}
