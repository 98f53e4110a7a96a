package broker

import (
	"context"
	"errors"
	"time"
)

// ErrNoData indicates the broker returned an empty or missing result for a
// symbol. Callers treat this as "no data", not as a hard failure.
var ErrNoData = errors.New("broker: no data")

// Quote is a live market snapshot for one symbol
type Quote struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	PrevClose float64 `json:"prev_close"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}

// Candle is one OHLCV bar
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Gateway supplies market data for a symbol. Implementations return
// ErrNoData when the upstream has nothing for the symbol.
type Gateway interface {
	// Quote returns the live quote for a symbol
	Quote(ctx context.Context, symbol string) (*Quote, error)

	// History returns daily candles for a symbol within the date range,
	// oldest first
	History(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error)
}

// LatestDailyCandle returns the most recent completed daily candle before
// today, looking back over the previous week to cover weekends and
// exchange holidays.
func LatestDailyCandle(ctx context.Context, g Gateway, symbol string, now time.Time) (*Candle, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	candles, err := g.History(ctx, symbol, today.AddDate(0, 0, -7), today.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	last := candles[len(candles)-1]
	return &last, nil
}

// QuoteSubscriber receives streaming quote updates
type QuoteSubscriber interface {
	OnQuote(quote Quote)
}
