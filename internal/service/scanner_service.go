package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trade-assistant/internal/broker"
	"github.com/trade-assistant/internal/risk"
)

const (
	// DefaultFlatOpenTolerance is the percent distance from the prior
	// close within which the open counts as flat.
	DefaultFlatOpenTolerance = 1.0

	scanCacheTTL     = 60 * time.Second
	scanSnapshotTTL  = 24 * time.Hour
	rsiPeriod        = 14
	rsiLookbackDays  = 40
	signalSetupReady = "Setup Ready"
	signalWait       = "Wait for Signal"
)

// Candle strength labels, direction combined with tier.
const (
	StrengthStrongBullish = "Strong Bullish"
	StrengthStrongBearish = "Strong Bearish"
	StrengthBullish       = "Bullish"
	StrengthBearish       = "Bearish"
	StrengthNeutral       = "Neutral"
)

// ScanRequest selects the universe and tuning for a scan
type ScanRequest struct {
	Universe  string   `json:"universe"`
	Symbols   []string `json:"symbols"`
	Tolerance float64  `json:"tolerance"`
}

// SetupResult is one symbol's outcome from the one-hour-setup scan
type SetupResult struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	Volume        int64   `json:"volume"`
	PrevCloseType string  `json:"prevCloseType"`
	Signal        string  `json:"signal"`
	FlatOpen      bool    `json:"flatOpen"`
	Eligible      bool    `json:"eligible"`
	Pattern       string  `json:"pattern"`
}

// MomentumResult is one symbol's outcome from the generic momentum scan
type MomentumResult struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Change  float64 `json:"change"`
	Volume  int64   `json:"volume"`
	RSI     float64 `json:"rsi"`
	Pattern string  `json:"pattern"`
}

// ScannerService classifies symbols against the one-hour setup: a strong
// prior daily close followed by a flat open. Results are cached in Redis
// and snapshotted there as a best-effort audit record.
type ScannerService struct {
	gateway broker.Gateway
	quotes  PriceSource
	redis   *redis.Client // optional, nil disables cache and snapshots
}

// NewScannerService creates a new ScannerService. redisClient may be nil.
func NewScannerService(gateway broker.Gateway, quotes PriceSource, redisClient *redis.Client) *ScannerService {
	return &ScannerService{
		gateway: gateway,
		quotes:  quotes,
		redis:   redisClient,
	}
}

// ClassifyCandle labels the prior day's candle by direction and strength.
func ClassifyCandle(open, high, low, close float64) string {
	body := math.Abs(close - open)
	candleRange := high - low

	if candleRange == 0 {
		switch {
		case close > open:
			return StrengthBullish
		case close < open:
			return StrengthBearish
		default:
			return StrengthNeutral
		}
	}

	bodyPct := body / candleRange * 100
	chgPct := 0.0
	if open != 0 {
		chgPct = math.Abs(close-open) / open * 100
	}

	bullish := close > open
	switch {
	case bodyPct > 50 || chgPct > 2:
		if bullish {
			return StrengthStrongBullish
		}
		return StrengthStrongBearish
	case bodyPct > 30 || chgPct > 1:
		if bullish {
			return StrengthBullish
		}
		return StrengthBearish
	default:
		return StrengthNeutral
	}
}

// IsFlatOpen reports whether the current price sits within tolerance
// percent of the prior close.
func IsFlatOpen(currentPrice, prevClose, tolerancePct float64) bool {
	if prevClose == 0 {
		return false
	}
	return math.Abs(currentPrice-prevClose)/prevClose*100 <= tolerancePct
}

// ScanSetups runs the one-hour-setup scan over the requested universe.
// Per-symbol failures are skipped, not propagated.
func (s *ScannerService) ScanSetups(ctx context.Context, userID uint, req ScanRequest) ([]SetupResult, error) {
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = universeFor(req.Universe)
	}
	if len(symbols) == 0 {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown scan universe %q", req.Universe)}
	}

	tolerance := req.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultFlatOpenTolerance
	}

	cacheKey := scanCacheKey("setup", symbols, tolerance)
	if cached, ok := s.cachedResults(ctx, cacheKey); ok {
		return cached, nil
	}

	now := time.Now()
	results := make([]SetupResult, 0, len(symbols))
	for _, symbol := range symbols {
		result, err := s.scanSymbol(ctx, symbol, tolerance, now)
		if err != nil {
			continue
		}
		results = append(results, *result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Eligible && !results[j].Eligible
	})

	s.cacheResults(ctx, cacheKey, results)
	s.snapshotResults(ctx, userID, "setup", results)
	return results, nil
}

func (s *ScannerService) scanSymbol(ctx context.Context, symbol string, tolerance float64, now time.Time) (*SetupResult, error) {
	candle, err := broker.LatestDailyCandle(ctx, s.gateway, symbol, now)
	if err != nil {
		return nil, err
	}

	quote, err := s.quotes.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	strength := ClassifyCandle(candle.Open, candle.High, candle.Low, candle.Close)
	flat := IsFlatOpen(quote.LastPrice, candle.Close, tolerance)
	eligible := flat &&
		(strength == StrengthStrongBullish || strength == StrengthStrongBearish)

	signal := signalWait
	pattern := ""
	if eligible {
		signal = signalSetupReady
		pattern = risk.StrategyOneHourSetup
	}

	change := 0.0
	if quote.PrevClose != 0 {
		change = (quote.LastPrice - quote.PrevClose) / quote.PrevClose * 100
	}

	return &SetupResult{
		Symbol:        symbol,
		Price:         quote.LastPrice,
		Change:        change,
		Volume:        quote.Volume,
		PrevCloseType: strength,
		Signal:        signal,
		FlatOpen:      flat,
		Eligible:      eligible,
		Pattern:       pattern,
	}, nil
}

// ScanMomentum runs the generic quote scan with a Wilder RSI over daily
// closes. Per-symbol failures are skipped.
func (s *ScannerService) ScanMomentum(ctx context.Context, userID uint, req ScanRequest) ([]MomentumResult, error) {
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = universeFor(req.Universe)
	}
	if len(symbols) == 0 {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown scan universe %q", req.Universe)}
	}

	now := time.Now()
	results := make([]MomentumResult, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.quotes.Quote(ctx, symbol)
		if err != nil {
			continue
		}

		candles, err := s.gateway.History(ctx, symbol, now.AddDate(0, 0, -rsiLookbackDays), now)
		if err != nil {
			continue
		}
		closes := make([]float64, 0, len(candles))
		for _, c := range candles {
			closes = append(closes, c.Close)
		}

		rsi, ok := RSI(closes, rsiPeriod)
		if !ok {
			continue
		}

		pattern := "Neutral"
		switch {
		case rsi >= 70:
			pattern = "Overbought"
		case rsi <= 30:
			pattern = "Oversold"
		}

		change := 0.0
		if quote.PrevClose != 0 {
			change = (quote.LastPrice - quote.PrevClose) / quote.PrevClose * 100
		}

		results = append(results, MomentumResult{
			Symbol:  symbol,
			Price:   quote.LastPrice,
			Change:  change,
			Volume:  quote.Volume,
			RSI:     rsi,
			Pattern: pattern,
		})
	}

	s.snapshotResults(ctx, userID, "momentum", results)
	return results, nil
}

// RSI computes Wilder's relative strength index over the closing prices.
// Returns false when there are not enough samples.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// scanCacheKey hashes the full symbol list so scans only share a cache
// entry when they cover exactly the same symbols and tolerance.
func scanCacheKey(kind string, symbols []string, tolerance float64) string {
	h := fnv.New64a()
	for _, symbol := range symbols {
		h.Write([]byte(symbol))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("scan:%s:%x:%.2f", kind, h.Sum64(), tolerance)
}

func (s *ScannerService) cachedResults(ctx context.Context, key string) ([]SetupResult, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var results []SetupResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false
	}
	return results, true
}

func (s *ScannerService) cacheResults(ctx context.Context, key string, results []SetupResult) {
	if s.redis == nil || len(results) == 0 {
		return
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, scanCacheTTL).Err(); err != nil {
		log.Printf("[Scanner] cache write failed: %v", err)
	}
}

// snapshotResults stores the scan outcome as a dated document. Failures
// are logged only; snapshots are not part of the scan contract.
func (s *ScannerService) snapshotResults(ctx context.Context, userID uint, kind string, results interface{}) {
	if s.redis == nil {
		return
	}
	doc := map[string]interface{}{
		"user_id":    userID,
		"scan_type":  kind,
		"results":    results,
		"created_at": time.Now().Format(time.RFC3339),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	key := fmt.Sprintf("scans:%d:%s:%d", userID, kind, time.Now().UnixNano())
	if err := s.redis.Set(ctx, key, raw, scanSnapshotTTL).Err(); err != nil {
		log.Printf("[Scanner] snapshot write failed: %v", err)
	}
}
