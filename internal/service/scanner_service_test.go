package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trade-assistant/internal/broker"
	"github.com/trade-assistant/internal/risk"
)

type fakeGateway struct {
	quotes  map[string]broker.Quote
	candles map[string][]broker.Candle
}

func (f *fakeGateway) Quote(_ context.Context, symbol string) (*broker.Quote, error) {
	quote, ok := f.quotes[symbol]
	if !ok {
		return nil, broker.ErrNoData
	}
	return &quote, nil
}

func (f *fakeGateway) History(_ context.Context, symbol string, _, _ time.Time) ([]broker.Candle, error) {
	candles, ok := f.candles[symbol]
	if !ok {
		return nil, broker.ErrNoData
	}
	return candles, nil
}

func TestClassifyCandle(t *testing.T) {
	tests := []struct {
		name                   string
		open, high, low, close float64
		want                   string
	}{
		// body 6, range 8: body_pct 75, chg_pct 6
		{"strong bullish", 100, 107, 99, 106, StrengthStrongBullish},
		{"strong bearish", 106, 107, 99, 100, StrengthStrongBearish},
		// body 4, range 10: body_pct 40, chg_pct 0.4
		{"medium bullish", 1000, 1008, 998, 1004, StrengthBullish},
		{"medium bearish", 1004, 1008, 998, 1000, StrengthBearish},
		// body 2, range 10: body_pct 20, chg_pct 0.2
		{"neutral doji", 1000, 1006, 996, 1002, StrengthNeutral},
		// small body but large move relative to open
		{"gap move counts", 10, 10.5, 9.2, 10.25, StrengthStrongBullish},
		// zero range falls back to direction only
		{"zero range up", 100, 100, 100, 100.0001, StrengthBullish},
		{"zero range flat", 100, 100, 100, 100, StrengthNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCandle(tt.open, tt.high, tt.low, tt.close))
		})
	}
}

func TestIsFlatOpen(t *testing.T) {
	assert.True(t, IsFlatOpen(106.5, 106, 1.0))
	assert.True(t, IsFlatOpen(106, 106, 1.0))
	assert.False(t, IsFlatOpen(108, 106, 1.0))
	assert.False(t, IsFlatOpen(100, 0, 1.0))
	assert.True(t, IsFlatOpen(100.5, 100, 1.0))
}

func TestScanSetupsFindsEligibleSymbol(t *testing.T) {
	gateway := &fakeGateway{
		quotes: map[string]broker.Quote{
			"NSE:RELIANCE-EQ": {Symbol: "NSE:RELIANCE-EQ", LastPrice: 106.5, PrevClose: 106, Volume: 1200},
			"NSE:TCS-EQ":      {Symbol: "NSE:TCS-EQ", LastPrice: 1002, PrevClose: 1002, Volume: 900},
		},
		candles: map[string][]broker.Candle{
			// strong bullish close, flat open
			"NSE:RELIANCE-EQ": {{Open: 100, High: 107, Low: 99, Close: 106}},
			// neutral close, no setup
			"NSE:TCS-EQ": {{Open: 1000, High: 1006, Low: 996, Close: 1002}},
		},
	}
	svc := NewScannerService(gateway, gateway, nil)

	results, err := svc.ScanSetups(context.Background(), 1, ScanRequest{
		Symbols: []string{"NSE:TCS-EQ", "NSE:RELIANCE-EQ"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// eligible symbols sort first
	first := results[0]
	assert.Equal(t, "NSE:RELIANCE-EQ", first.Symbol)
	assert.True(t, first.Eligible)
	assert.True(t, first.FlatOpen)
	assert.Equal(t, StrengthStrongBullish, first.PrevCloseType)
	assert.Equal(t, "Setup Ready", first.Signal)
	assert.Equal(t, risk.StrategyOneHourSetup, first.Pattern)

	second := results[1]
	assert.Equal(t, "NSE:TCS-EQ", second.Symbol)
	assert.False(t, second.Eligible)
	assert.True(t, second.FlatOpen)
	assert.Equal(t, "Wait for Signal", second.Signal)
	assert.Empty(t, second.Pattern)
}

func TestScanSetupsStrongCloseNeedsFlatOpen(t *testing.T) {
	gateway := &fakeGateway{
		quotes: map[string]broker.Quote{
			// gapped 3% above the prior close
			"NSE:INFY-EQ": {Symbol: "NSE:INFY-EQ", LastPrice: 109.2, PrevClose: 106},
		},
		candles: map[string][]broker.Candle{
			"NSE:INFY-EQ": {{Open: 100, High: 107, Low: 99, Close: 106}},
		},
	}
	svc := NewScannerService(gateway, gateway, nil)

	results, err := svc.ScanSetups(context.Background(), 1, ScanRequest{
		Symbols: []string{"NSE:INFY-EQ"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].FlatOpen)
	assert.False(t, results[0].Eligible)
	assert.Equal(t, "Wait for Signal", results[0].Signal)
}

func TestScanSetupsSkipsFailedSymbols(t *testing.T) {
	gateway := &fakeGateway{
		quotes: map[string]broker.Quote{
			"NSE:RELIANCE-EQ": {Symbol: "NSE:RELIANCE-EQ", LastPrice: 106, PrevClose: 106},
		},
		candles: map[string][]broker.Candle{
			"NSE:RELIANCE-EQ": {{Open: 100, High: 107, Low: 99, Close: 106}},
		},
	}
	svc := NewScannerService(gateway, gateway, nil)

	results, err := svc.ScanSetups(context.Background(), 1, ScanRequest{
		Symbols: []string{"NSE:RELIANCE-EQ", "NSE:MISSING-EQ"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "NSE:RELIANCE-EQ", results[0].Symbol)
}

func TestScanSetupsRejectsUnknownUniverse(t *testing.T) {
	svc := NewScannerService(&fakeGateway{}, &fakeGateway{}, nil)

	_, err := svc.ScanSetups(context.Background(), 1, ScanRequest{Universe: "smallcaps"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "smallcaps")
}

func TestRSI(t *testing.T) {
	// 15 rising closes: all gains, RSI pegs at 100
	rising := make([]float64, 15)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	rsi, ok := RSI(rising, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)

	// alternating equal gains and losses settle near 50
	alternating := make([]float64, 30)
	for i := range alternating {
		if i%2 == 0 {
			alternating[i] = 100
		} else {
			alternating[i] = 101
		}
	}
	rsi, ok = RSI(alternating, 14)
	require.True(t, ok)
	assert.InDelta(t, 50, rsi, 5)

	_, ok = RSI([]float64{100, 101}, 14)
	assert.False(t, ok)
}

func TestScanCacheKeyCoversFullSymbolList(t *testing.T) {
	base := scanCacheKey("setup", []string{"NSE:RELIANCE-EQ", "NSE:TCS-EQ"}, 1.0)

	// same length and first symbol, different tail
	other := scanCacheKey("setup", []string{"NSE:RELIANCE-EQ", "NSE:INFY-EQ"}, 1.0)
	assert.NotEqual(t, base, other)

	// identical list yields the same key
	same := scanCacheKey("setup", []string{"NSE:RELIANCE-EQ", "NSE:TCS-EQ"}, 1.0)
	assert.Equal(t, base, same)

	// tolerance and scan kind are part of the key
	assert.NotEqual(t, base, scanCacheKey("setup", []string{"NSE:RELIANCE-EQ", "NSE:TCS-EQ"}, 2.0))
	assert.NotEqual(t, base, scanCacheKey("momentum", []string{"NSE:RELIANCE-EQ", "NSE:TCS-EQ"}, 1.0))
}

func TestScanMomentumLabelsRSI(t *testing.T) {
	closes := make([]broker.Candle, 20)
	for i := range closes {
		closes[i] = broker.Candle{Close: 100 + float64(i)}
	}
	gateway := &fakeGateway{
		quotes: map[string]broker.Quote{
			"NSE:RELIANCE-EQ": {Symbol: "NSE:RELIANCE-EQ", LastPrice: 120, PrevClose: 119},
		},
		candles: map[string][]broker.Candle{
			"NSE:RELIANCE-EQ": closes,
		},
	}
	svc := NewScannerService(gateway, gateway, nil)

	results, err := svc.ScanMomentum(context.Background(), 1, ScanRequest{
		Symbols: []string{"NSE:RELIANCE-EQ"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].RSI)
	assert.Equal(t, "Overbought", results[0].Pattern)
}
