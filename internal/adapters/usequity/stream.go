package usequity

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"

	"github.com/fincept/gateway/internal/domain"
)

// streamClient owns the adapter's streaming connection, grounded on
// aristath-sentinel's MarketStatusWebSocket: a dedicated read goroutine,
// a reconnect loop guarded against concurrent entry, and exponential
// backoff (base 500ms, cap 30s, ±20% jitter per §4.B).
type streamClient struct {
	adapter *Adapter

	mu   sync.Mutex
	conn *websocket.Conn

	reconnecting sync.Mutex
}

func newStreamClient(a *Adapter) *streamClient {
	return &streamClient{adapter: a}
}

func (s *streamClient) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	go s.readLoop(ctx)
	return nil
}

func (s *streamClient) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.adapter.cfg.StreamURL, nil)
	if err != nil {
		return err
	}

	auth := map[string]any{
		"action": "auth",
		"key":    s.adapter.apiKey,
		"secret": s.adapter.apiSecret,
	}
	data, _ := json.Marshal(auth)
	if err := conn.Write(dialCtx, websocket.MessageText, data); err != nil {
		conn.Close(websocket.StatusInternalError, "auth write failed")
		return err
	}

	s.conn = conn
	return nil
}

func (s *streamClient) readLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.adapter.log.Warn("usequity", "streaming read failed, reconnecting", map[string]any{"error": err.Error()})
			if !s.reconnect(ctx) {
				return
			}
			continue
		}
		s.handleFrame(data)
	}
}

func (s *streamClient) handleFrame(data []byte) {
	var ticks []wireStreamTick
	if err := json.Unmarshal(data, &ticks); err != nil {
		var single wireStreamTick
		if err := json.Unmarshal(data, &single); err != nil {
			return
		}
		ticks = []wireStreamTick{single}
	}

	for _, t := range ticks {
		if t.Symbol == "" {
			continue
		}
		entry, ok := s.adapter.entryBySymbol(t.Symbol)
		if !ok {
			continue
		}

		tick := domain.Tick{
			BrokerID:    s.adapter.cfg.BrokerID,
			Symbol:      entry.Symbol,
			Exchange:    entry.Exchange,
			Bid:         decimal.NewFromFloat(t.Bid),
			Ask:         decimal.NewFromFloat(t.Ask),
			LastPrice:   decimal.NewFromFloat(t.Price),
			Volume:      t.Size,
			TimestampMs: time.Now().UnixMilli(),
		}

		select {
		case s.adapter.ticksCh <- tick:
		default:
			s.adapter.log.Warn("usequity", "tick channel full, dropping", map[string]any{"symbol": tick.Symbol})
		}
	}
}

func (s *streamClient) reconnect(ctx context.Context) bool {
	if !s.reconnecting.TryLock() {
		s.reconnecting.Lock()
		s.reconnecting.Unlock()
		return ctx.Err() == nil
	}
	defer s.reconnecting.Unlock()

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close(websocket.StatusNormalClosure, "reconnecting")
		s.conn = nil
	}
	s.mu.Unlock()

	const base = 500 * time.Millisecond
	const capDelay = 30 * time.Second
	delay := base

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(jitter(delay)):
		}

		if err := s.connect(ctx); err == nil {
			s.resubscribeAll(ctx)
			return true
		}

		delay = time.Duration(math.Min(float64(delay)*2, float64(capDelay)))
	}
}

func jitter(d time.Duration) time.Duration {
	spread := float64(d) * 0.2
	offset := (rand.Float64()*2 - 1) * spread
	return d + time.Duration(offset)
}

func (s *streamClient) resubscribeAll(ctx context.Context) {
	s.adapter.sessionMu.RLock()
	entries := make([]domain.SubscriptionEntry, 0, len(s.adapter.session.SubscriptionTable))
	for _, e := range s.adapter.session.SubscriptionTable {
		entries = append(entries, e)
	}
	s.adapter.sessionMu.RUnlock()

	if len(entries) == 0 {
		return
	}
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		symbols = append(symbols, e.Symbol)
	}
	_ = s.sendSubscribe(ctx, symbols)
}

func (s *streamClient) sendSubscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	msg := map[string]any{"action": "subscribe", "trades": symbols, "quotes": symbols}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *streamClient) sendUnsubscribe(ctx context.Context, symbol string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	msg := map[string]any{"action": "unsubscribe", "trades": []string{symbol}, "quotes": []string{symbol}}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *streamClient) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close(websocket.StatusNormalClosure, "closing")
		s.conn = nil
	}
}

func (a *Adapter) entryBySymbol(symbol string) (domain.SubscriptionEntry, bool) {
	a.sessionMu.RLock()
	defer a.sessionMu.RUnlock()
	for _, e := range a.session.SubscriptionTable {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return domain.SubscriptionEntry{}, false
}

// Subscribe implements ports.BrokerAdapter.
func (a *Adapter) Subscribe(ctx context.Context, symbol string, exchange domain.Exchange, mode domain.StreamMode) error {
	key := symbol + "|" + string(exchange)
	entry := domain.SubscriptionEntry{SubscriptionID: uuid.NewString(), Symbol: symbol, Exchange: exchange, Mode: mode}

	a.sessionMu.Lock()
	a.session.SubscriptionTable[key] = entry
	a.sessionMu.Unlock()

	a.stream.mu.Lock()
	connected := a.stream.conn != nil
	a.stream.mu.Unlock()
	if !connected {
		if err := a.stream.Start(ctx); err != nil {
			return err
		}
	}
	return a.stream.sendSubscribe(ctx, []string{symbol})
}

// Unsubscribe implements ports.BrokerAdapter.
func (a *Adapter) Unsubscribe(ctx context.Context, symbol string, exchange domain.Exchange) error {
	key := symbol + "|" + string(exchange)

	a.sessionMu.Lock()
	_, ok := a.session.SubscriptionTable[key]
	if ok {
		delete(a.session.SubscriptionTable, key)
	}
	a.sessionMu.Unlock()

	if !ok {
		return nil
	}
	return a.stream.sendUnsubscribe(ctx, symbol)
}
