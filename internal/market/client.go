package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.binance.com"

// Client fetches market data from the Binance public REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a market data client. An empty baseURL selects the
// public production endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKlines fetches candlestick data for a symbol and interval.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, &FetchError{Op: "klines", Symbol: symbol, Err: err}
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, &FetchError{Op: "klines", Symbol: symbol, Err: fmt.Errorf("parsing klines: %w", err)}
	}

	candles := make([]Candle, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 7 {
			continue
		}
		candles = append(candles, Candle{
			OpenTime:  int64(toFloat(raw[0])),
			Open:      toFloat(raw[1]),
			High:      toFloat(raw[2]),
			Low:       toFloat(raw[3]),
			Close:     toFloat(raw[4]),
			Volume:    toFloat(raw[5]),
			CloseTime: int64(toFloat(raw[6])),
		})
	}

	return candles, nil
}

// GetCurrentPrice fetches the latest traded price for a symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?%s", c.baseURL, params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, &FetchError{Op: "price", Symbol: symbol, Err: err}
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, &FetchError{Op: "price", Symbol: symbol, Err: fmt.Errorf("parsing ticker: %w", err)}
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, &FetchError{Op: "price", Symbol: symbol, Err: fmt.Errorf("parsing price %q: %w", ticker.Price, err)}
	}

	return price, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
