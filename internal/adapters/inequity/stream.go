package inequity

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/fincept/gateway/internal/domain"
)

// streamClient owns the adapter's streaming connection: a dedicated read
// goroutine, a reconnect loop guarded against concurrent entry, and
// exponential backoff (base 500ms, cap 30s, ±20% jitter per §4.B), mirroring
// the saxoeu/usequity streaming clients but over gorilla/websocket with this
// broker's signed-header handshake instead of a bearer header.
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

	headers := http.Header{}
	for k, v := range s.adapter.signRequest(http.MethodGet, "/feed", nil) {
		headers.Set(k, v)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.adapter.cfg.WSURL, headers)
	if err != nil {
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

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.adapter.log.Warn("inequity", "streaming read failed, reconnecting", map[string]any{"error": err.Error()})
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
		entry, ok := s.adapter.entryBySubscriptionID(strconv.FormatInt(t.InstrumentToken, 10))
		if !ok {
			continue
		}

		tick := domain.Tick{
			BrokerID:    s.adapter.cfg.BrokerID,
			Symbol:      entry.Symbol,
			Exchange:    entry.Exchange,
			Bid:         decimalFromFloat(t.Bid),
			Ask:         decimalFromFloat(t.Ask),
			LastPrice:   decimalFromFloat(t.LastPrice),
			Volume:      t.Volume,
			TimestampMs: time.Now().UnixMilli(),
		}

		select {
		case s.adapter.ticksCh <- tick:
		default:
			s.adapter.log.Warn("inequity", "tick channel full, dropping", map[string]any{"symbol": tick.Symbol})
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
		s.conn.Close()
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

	for _, e := range entries {
		_ = s.sendSubscribe(e.SubscriptionID)
	}
}

func (s *streamClient) sendSubscribe(instrumentToken string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	msg := map[string]any{"a": "subscribe", "v": []string{instrumentToken}}
	return conn.WriteJSON(msg)
}

func (s *streamClient) sendUnsubscribe(instrumentToken string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	msg := map[string]any{"a": "unsubscribe", "v": []string{instrumentToken}}
	return conn.WriteJSON(msg)
}

func (s *streamClient) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Subscribe implements ports.BrokerAdapter. The Indian broker's streaming
// protocol subscribes by numeric instrument token rather than symbol, so
// the subscription id doubles as that token once the instrument is
// resolved via the master-contract cache.
func (a *Adapter) Subscribe(ctx context.Context, symbol string, exchange domain.Exchange, mode domain.StreamMode) error {
	inst, ok := a.resolveInstrument(ctx, symbol, exchange)
	token := inst.InstrumentID
	if !ok || token == "" {
		token = symbol
	}

	key := symbol + "|" + string(exchange)
	entry := domain.SubscriptionEntry{SubscriptionID: token, Symbol: symbol, Exchange: exchange, Mode: mode}

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
	return a.stream.sendSubscribe(token)
}

// Unsubscribe implements ports.BrokerAdapter.
func (a *Adapter) Unsubscribe(ctx context.Context, symbol string, exchange domain.Exchange) error {
	key := symbol + "|" + string(exchange)

	a.sessionMu.Lock()
	entry, ok := a.session.SubscriptionTable[key]
	if ok {
		delete(a.session.SubscriptionTable, key)
	}
	a.sessionMu.Unlock()

	if !ok {
		return nil
	}
	return a.stream.sendUnsubscribe(entry.SubscriptionID)
}
