package fyers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/trade-assistant/internal/broker"
)

const (
	defaultBaseURL = "https://api-t1.fyers.in"
	requestTimeout = 10 * time.Second
)

// Client is a Fyers market-data REST client
type Client struct {
	clientID string
	http     *resty.Client
}

// NewClient creates a Fyers client. Requests authenticate with
// "clientID:accessToken" per the Fyers v3 data API.
func NewClient(clientID, accessToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Authorization", fmt.Sprintf("%s:%s", clientID, accessToken)).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		clientID: clientID,
		http:     httpClient,
	}
}

type quotesResponse struct {
	Status string `json:"s"`
	Code   int    `json:"code"`
	D      []struct {
		Name  string `json:"n"`
		Value struct {
			LastPrice float64 `json:"lp"`
			PrevClose float64 `json:"prev_close_price"`
			Open      float64 `json:"open_price"`
			High      float64 `json:"high_price"`
			Low       float64 `json:"low_price"`
			Volume    int64   `json:"volume"`
			Timestamp int64   `json:"tt"`
		} `json:"v"`
	} `json:"d"`
}

// Quote fetches the live quote for a symbol
func (c *Client) Quote(ctx context.Context, symbol string) (*broker.Quote, error) {
	var result quotesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbols", symbol).
		SetResult(&result).
		Get("/data/quotes")
	if err != nil {
		return nil, fmt.Errorf("fyers quote %s: %w", symbol, err)
	}
	if resp.IsError() || result.Status != "ok" || len(result.D) == 0 {
		return nil, broker.ErrNoData
	}

	v := result.D[0].Value
	if v.LastPrice <= 0 {
		return nil, broker.ErrNoData
	}
	return &broker.Quote{
		Symbol:    symbol,
		LastPrice: v.LastPrice,
		PrevClose: v.PrevClose,
		Open:      v.Open,
		High:      v.High,
		Low:       v.Low,
		Volume:    v.Volume,
		Timestamp: v.Timestamp,
	}, nil
}

type historyResponse struct {
	Status  string      `json:"s"`
	Candles [][]float64 `json:"candles"`
}

// History fetches daily candles for a symbol within the date range,
// oldest first
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) ([]broker.Candle, error) {
	var result historyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":      symbol,
			"resolution":  "D",
			"date_format": "1",
			"range_from":  from.Format("2006-01-02"),
			"range_to":    to.Format("2006-01-02"),
			"cont_flag":   "1",
		}).
		SetResult(&result).
		Get("/data/history")
	if err != nil {
		return nil, fmt.Errorf("fyers history %s: %w", symbol, err)
	}
	if resp.IsError() || result.Status != "ok" || len(result.Candles) == 0 {
		return nil, broker.ErrNoData
	}

	candles := make([]broker.Candle, 0, len(result.Candles))
	for _, row := range result.Candles {
		// [epoch, open, high, low, close, volume]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, broker.Candle{
			Timestamp: time.Unix(int64(row[0]), 0),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
			Volume:    int64(row[5]),
		})
	}
	if len(candles) == 0 {
		return nil, broker.ErrNoData
	}
	return candles, nil
}
