// Package httpapi implements the MarketData port against the data-sync
// service's REST API (/simtrade/trading-days, /simtrade/daily-bars).
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"simtrade/internal/model"
)

// Client is a thin HTTP client for the data-sync service.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the given service base URL, e.g.
// "http://localhost:8787".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TradingDays fetches the exchange calendar for [start, end], inclusive.
func (c *Client) TradingDays(ctx context.Context, start, end string) ([]string, error) {
	q := url.Values{}
	q.Set("start", start)
	q.Set("end", end)

	var days []string
	if err := c.getJSON(ctx, "/simtrade/trading-days", q, &days); err != nil {
		return nil, fmt.Errorf("trading days %s..%s: %w", start, end, err)
	}
	return days, nil
}

// dailyBarsResponse mirrors the service payload: bars keyed by the symbols
// as given in the request (e.g. "CN:000001").
type dailyBarsResponse struct {
	Bars map[string][]model.Bar `json:"bars"`
}

// DailyBars fetches one day's bar per symbol in a single batched call.
// Symbols without a bar on that date are absent from the result.
func (c *Client) DailyBars(ctx context.Context, symbols []string, date string) (map[string]model.Bar, error) {
	if len(symbols) == 0 {
		return map[string]model.Bar{}, nil
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("start", date)
	q.Set("end", date)

	var resp dailyBarsResponse
	if err := c.getJSON(ctx, "/simtrade/daily-bars", q, &resp); err != nil {
		return nil, fmt.Errorf("daily bars on %s: %w", date, err)
	}

	out := make(map[string]model.Bar, len(resp.Bars))
	for sym, bars := range resp.Bars {
		for _, bar := range bars {
			if bar.Date != date {
				continue
			}
			bar.FillAvgPrice()
			out[sym] = bar
			break
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
