package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trade-assistant/internal/broker"
)

const (
	quoteCacheTTL = 5 * time.Second
	quoteKeyFmt   = "quote:%s"
)

// QuoteService caches live quotes on top of the broker gateway. Streaming
// ticks land in an in-memory map mirrored to Redis; reads fall back to the
// gateway when the cache has nothing fresh.
type QuoteService struct {
	gateway broker.Gateway
	redis   *redis.Client // optional, nil disables the mirror

	quotes    map[string]broker.Quote
	updatedAt map[string]time.Time
	quotesMux sync.RWMutex
}

// NewQuoteService creates a new QuoteService. redisClient may be nil.
func NewQuoteService(gateway broker.Gateway, redisClient *redis.Client) *QuoteService {
	return &QuoteService{
		gateway:   gateway,
		redis:     redisClient,
		quotes:    make(map[string]broker.Quote),
		updatedAt: make(map[string]time.Time),
	}
}

// OnQuote implements broker.QuoteSubscriber for the streaming feed
func (s *QuoteService) OnQuote(quote broker.Quote) {
	s.quotesMux.Lock()
	s.quotes[quote.Symbol] = quote
	s.updatedAt[quote.Symbol] = time.Now()
	s.quotesMux.Unlock()

	if s.redis == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := fmt.Sprintf(quoteKeyFmt, quote.Symbol)
	s.redis.HSet(ctx, key, map[string]interface{}{
		"last_price": quote.LastPrice,
		"prev_close": quote.PrevClose,
		"open":       quote.Open,
		"high":       quote.High,
		"low":        quote.Low,
		"volume":     quote.Volume,
		"timestamp":  quote.Timestamp,
	})
	s.redis.Expire(ctx, key, quoteCacheTTL)
}

// Quote returns the live quote for a symbol, serving from the cache when a
// streamed tick is fresh enough
func (s *QuoteService) Quote(ctx context.Context, symbol string) (*broker.Quote, error) {
	s.quotesMux.RLock()
	quote, ok := s.quotes[symbol]
	fresh := ok && time.Since(s.updatedAt[symbol]) < quoteCacheTTL
	s.quotesMux.RUnlock()

	if fresh {
		return &quote, nil
	}

	// never serve a tick older than the TTL; a dead feed must surface as
	// an error so callers skip the symbol instead of acting on old data
	live, err := s.gateway.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.quotesMux.Lock()
	s.quotes[symbol] = *live
	s.updatedAt[symbol] = time.Now()
	s.quotesMux.Unlock()

	return live, nil
}
