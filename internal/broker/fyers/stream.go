package fyers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/trade-assistant/internal/broker"
)

const (
	defaultStreamURL     = "wss://api-t1.fyers.in/socket/v3/data"
	pingInterval         = 30 * time.Second
	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10
)

// Stream is a Fyers market-data WebSocket client. Ticks are forwarded to
// the configured subscriber as broker.Quote updates.
type Stream struct {
	url      string
	clientID string
	token    string

	conn        *websocket.Conn
	connMux     sync.RWMutex
	isConnected bool

	subscriber broker.QuoteSubscriber
	subMux     sync.RWMutex

	subscribed    map[string]bool
	subscribedMux sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectAttempts int
}

// NewStream creates a Fyers WebSocket stream client
func NewStream(clientID, accessToken, url string) *Stream {
	if url == "" {
		url = defaultStreamURL
	}
	return &Stream{
		url:        url,
		clientID:   clientID,
		token:      accessToken,
		subscribed: make(map[string]bool),
	}
}

// SetSubscriber sets the quote update subscriber
func (s *Stream) SetSubscriber(subscriber broker.QuoteSubscriber) {
	s.subMux.Lock()
	defer s.subMux.Unlock()
	s.subscriber = subscriber
}

// IsConnected returns whether the WebSocket is connected
func (s *Stream) IsConnected() bool {
	s.connMux.RLock()
	defer s.connMux.RUnlock()
	return s.isConnected
}

// Connect establishes the WebSocket connection and starts the read loop
func (s *Stream) Connect(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.connect(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.messageLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return nil
}

func (s *Stream) connect() error {
	s.connMux.Lock()
	defer s.connMux.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := map[string][]string{
		"Authorization": {fmt.Sprintf("%s:%s", s.clientID, s.token)},
	}

	conn, _, err := dialer.Dial(s.url, header)
	if err != nil {
		return fmt.Errorf("failed to connect to market data stream: %w", err)
	}

	s.conn = conn
	s.isConnected = true
	s.reconnectAttempts = 0

	log.Printf("[Fyers] market data stream connected")

	// Resubscribe to previous symbols
	s.subscribedMux.RLock()
	symbols := make([]string, 0, len(s.subscribed))
	for symbol := range s.subscribed {
		symbols = append(symbols, symbol)
	}
	s.subscribedMux.RUnlock()

	if len(symbols) > 0 {
		go func() {
			if err := s.sendSubscribe(symbols); err != nil {
				log.Printf("[Fyers] resubscribe failed: %v", err)
			}
		}()
	}

	return nil
}

// Subscribe subscribes to quote updates for the given symbols
func (s *Stream) Subscribe(symbols []string) error {
	s.subscribedMux.Lock()
	for _, symbol := range symbols {
		s.subscribed[symbol] = true
	}
	s.subscribedMux.Unlock()

	return s.sendSubscribe(symbols)
}

func (s *Stream) sendSubscribe(symbols []string) error {
	s.connMux.RLock()
	defer s.connMux.RUnlock()

	if !s.isConnected || s.conn == nil {
		return fmt.Errorf("stream not connected")
	}

	msg := map[string]interface{}{
		"T":       "SUB_DATA",
		"SLIST":   symbols,
		"SUB_T":   1,
		"channel": "quotes",
	}
	return s.conn.WriteJSON(msg)
}

// Close stops the stream and closes the connection
func (s *Stream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}

	s.connMux.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.isConnected = false
	s.connMux.Unlock()

	s.wg.Wait()
	return nil
}

type tickMessage struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"ltp"`
	PrevClose float64 `json:"prev_close_price"`
	Open      float64 `json:"open_price"`
	High      float64 `json:"high_price"`
	Low       float64 `json:"low_price"`
	Volume    int64   `json:"vol_traded_today"`
	Timestamp int64   `json:"exch_feed_time"`
}

func (s *Stream) messageLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.connMux.RLock()
		conn := s.conn
		s.connMux.RUnlock()

		if conn == nil {
			if !s.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			log.Printf("[Fyers] read error: %v", err)
			s.markDisconnected()
			if !s.reconnect() {
				return
			}
			continue
		}

		var tick tickMessage
		if err := json.Unmarshal(data, &tick); err != nil || tick.Symbol == "" {
			continue
		}
		if tick.Type != "" && tick.Type != "sf" {
			// control frames and acks carry no quote data
			continue
		}

		s.subMux.RLock()
		subscriber := s.subscriber
		s.subMux.RUnlock()

		if subscriber != nil && tick.LastPrice > 0 {
			subscriber.OnQuote(broker.Quote{
				Symbol:    tick.Symbol,
				LastPrice: tick.LastPrice,
				PrevClose: tick.PrevClose,
				Open:      tick.Open,
				High:      tick.High,
				Low:       tick.Low,
				Volume:    tick.Volume,
				Timestamp: tick.Timestamp,
			})
		}
	}
}

func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.connMux.RLock()
			conn := s.conn
			connected := s.isConnected
			s.connMux.RUnlock()

			if connected && conn != nil {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Printf("[Fyers] ping failed: %v", err)
				}
			}
		}
	}
}

func (s *Stream) markDisconnected() {
	s.connMux.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.isConnected = false
	s.connMux.Unlock()
}

func (s *Stream) reconnect() bool {
	for s.reconnectAttempts < maxReconnectAttempts {
		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(reconnectDelay):
		}

		s.reconnectAttempts++
		log.Printf("[Fyers] reconnecting (attempt %d/%d)", s.reconnectAttempts, maxReconnectAttempts)

		if err := s.connect(); err != nil {
			log.Printf("[Fyers] reconnect failed: %v", err)
			continue
		}
		return true
	}

	log.Printf("[Fyers] giving up after %d reconnect attempts", maxReconnectAttempts)
	return false
}
