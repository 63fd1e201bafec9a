package saxoeu

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/fincept/gateway/internal/domain"
)

// streamClient owns the adapter's single streaming WebSocket connection. It
// is adapted from the teacher's SaxoWebSocketClient: a reader goroutine
// does nothing but read frames off the wire, a processor goroutine decodes
// and dispatches them, and the two communicate over buffered channels so a
// slow decode never blocks the socket read loop. Reconnection uses
// exponential backoff per §4.B (base 500ms, cap 30s, ±20% jitter) and
// resubscribes every entry in the adapter's subscription table afterwards.
type streamClient struct {
	adapter *Adapter

	mu        sync.Mutex
	conn      *websocket.Conn
	contextID string

	incoming chan []byte

	reconnecting sync.Mutex // held for the duration of one reconnect attempt
}

func newStreamClient(a *Adapter) *streamClient {
	return &streamClient{
		adapter:   a,
		contextID: uuid.NewString(),
		incoming:  make(chan []byte, 256),
	}
}

// Start dials the streaming endpoint and launches the reader/processor
// pair. It returns once the initial connection succeeds; reconnection from
// then on happens in the background.
func (s *streamClient) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	go s.readLoop(ctx)
	go s.processLoop(ctx)
	return nil
}

func (s *streamClient) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	url := fmt.Sprintf("%s/streamingws/connect?contextId=%s", s.adapter.cfg.WebSocketURL, s.contextID)
	header := http.Header{}
	if tok, err := s.adapter.currentToken(ctx); err == nil {
		header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
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
			s.adapter.log.Warn("saxoeu", "streaming read failed, reconnecting", map[string]any{"error": err.Error()})
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		select {
		case s.incoming <- data:
		case <-ctx.Done():
			return
		default:
			s.adapter.log.Warn("saxoeu", "streaming backlog full, dropping frame", nil)
		}
	}
}

func (s *streamClient) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.incoming:
			s.handleFrame(data)
		}
	}
}

// handleFrame decodes one streaming price update into a domain.Tick. Saxo's
// wire envelope nests the payload per reference id; this adapter only
// needs the price fields, matched against the subscription table by
// reference id to recover symbol/exchange.
func (s *streamClient) handleFrame(data []byte) {
	var envelope struct {
		ReferenceID string  `json:"ReferenceId"`
		Quote       struct {
			Bid float64 `json:"Bid"`
			Ask float64 `json:"Ask"`
			Mid float64 `json:"Mid"`
		} `json:"Quote"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}

	entry, ok := s.adapter.entryBySubscriptionID(envelope.ReferenceID)
	if !ok {
		return
	}

	tick := domain.Tick{
		BrokerID:    s.adapter.cfg.BrokerID,
		Symbol:      entry.Symbol,
		Exchange:    entry.Exchange,
		Bid:         decimal.NewFromFloat(envelope.Quote.Bid),
		Ask:         decimal.NewFromFloat(envelope.Quote.Ask),
		LastPrice:   decimal.NewFromFloat(envelope.Quote.Mid),
		TimestampMs: time.Now().UnixMilli(),
	}

	select {
	case s.adapter.ticksCh <- tick:
	default:
		s.adapter.log.Warn("saxoeu", "tick channel full, dropping", map[string]any{"symbol": tick.Symbol})
	}
}

// reconnect re-dials with exponential backoff and resubscribes every
// entry the subscription table held at the moment of disconnect. Returns
// false if ctx was cancelled before a connection could be reestablished.
func (s *streamClient) reconnect(ctx context.Context) bool {
	if !s.reconnecting.TryLock() {
		// another goroutine is already reconnecting; wait for it.
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

		delay *= 2
		if delay > capDelay {
			delay = capDelay
		}
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
		if err := s.subscribeWire(ctx, e); err != nil {
			s.adapter.log.Warn("saxoeu", "resubscribe failed", map[string]any{"symbol": e.Symbol, "error": err.Error()})
		}
	}
}

// subscribeWire opens a REST subscription against the active streaming
// context; Saxo's model requires a REST call per reference id before the
// socket starts delivering frames for it.
func (s *streamClient) subscribeWire(ctx context.Context, entry domain.SubscriptionEntry) error {
	inst, ok := s.adapter.resolveInstrument(ctx, entry.Symbol, entry.Exchange)
	if !ok {
		return fmt.Errorf("saxoeu: cannot subscribe %s: instrument not resolved", entry.Symbol)
	}

	body := map[string]any{
		"ContextId":   s.contextID,
		"ReferenceId": entry.SubscriptionID,
		"Arguments": map[string]any{
			"Uics":      inst.InstrumentID,
			"AssetType": "Stock",
		},
	}
	_, err := s.adapter.doRequest(ctx, http.MethodPost, "/trade/v1/prices/subscriptions", body)
	return err
}

func (s *streamClient) unsubscribeWire(ctx context.Context, subscriptionID string) error {
	path := fmt.Sprintf("/trade/v1/prices/subscriptions/%s/%s", s.contextID, subscriptionID)
	_, err := s.adapter.doRequest(ctx, http.MethodDelete, path, nil)
	return err
}

func (s *streamClient) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Subscribe implements ports.BrokerAdapter.
func (a *Adapter) Subscribe(ctx context.Context, symbol string, exchange domain.Exchange, mode domain.StreamMode) error {
	key := symbol + "|" + string(exchange)
	subID := uuid.NewString()
	entry := domain.SubscriptionEntry{SubscriptionID: subID, Symbol: symbol, Exchange: exchange, Mode: mode}

	a.sessionMu.Lock()
	a.session.SubscriptionTable[key] = entry
	a.sessionMu.Unlock()

	if a.stream.conn == nil {
		if err := a.stream.Start(ctx); err != nil {
			return err
		}
	}
	return a.stream.subscribeWire(ctx, entry)
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
	return a.stream.unsubscribeWire(ctx, entry.SubscriptionID)
}
