// Package streaming implements the Streaming Aggregator (spec §4.G): it
// sits on top of the Broker Adapters, deduplicates/ref-counts
// subscriptions, fans per-adapter ticks into one unified channel, and
// emits a synthetic SourceStalled event after a period of silence from a
// broker.
//
// The subscription bookkeeping shape (ref-counted subscriptions) is
// grounded directly on the teacher's
// adapter/websocket/subscription_manager.go; the staleness
// monitoring shape is grounded on adapter/websocket/connection_manager.go,
// both generalized from one adapter's subscription table to a
// cross-adapter aggregator.
package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/metrics"
	"github.com/fincept/gateway/internal/ports"
)

// Registry resolves a broker id to its adapter.
type Registry interface {
	Adapters() []ports.BrokerAdapter
	Get(brokerID string) (ports.BrokerAdapter, bool)
}

// Event is emitted on the aggregator's unified channel. Exactly one of
// Tick or Stalled is set.
type Event struct {
	Tick    *domain.Tick
	Stalled *StalledSource
}

// StalledSource is the synthetic event emitted after StalledAfter of
// silence from a broker.
type StalledSource struct {
	BrokerID string
	Since    time.Time
}

type subscriptionKey struct {
	brokerID string
	symbol   string
	exchange domain.Exchange
}

// Aggregator is the Streaming Aggregator.
type Aggregator struct {
	registry     Registry
	log          ports.Logger
	stalledAfter time.Duration

	mu          sync.Mutex
	refCounts   map[subscriptionKey]int
	activeCount map[string]int // brokerID -> count of distinct ref-counted subscriptions
	lastTickAt  map[string]time.Time // brokerID -> last tick observed
	lastSymbol  map[string]map[string]int64 // brokerID -> symbol -> last timestamp_ms, for per-(broker,symbol) ordering

	out    chan Event
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *metrics.Recorder
}

// New constructs an Aggregator. stalledAfter defaults to 10s per §4.G.
func New(registry Registry, log ports.Logger, stalledAfter time.Duration) *Aggregator {
	if stalledAfter <= 0 {
		stalledAfter = 10 * time.Second
	}
	return &Aggregator{
		registry:     registry,
		log:          log,
		stalledAfter: stalledAfter,
		refCounts:    make(map[subscriptionKey]int),
		activeCount:  make(map[string]int),
		lastTickAt:   make(map[string]time.Time),
		lastSymbol:   make(map[string]map[string]int64),
		out:          make(chan Event, 256),
	}
}

// SetMetrics attaches a recorder for active-subscription observations. A
// nil recorder (the default) makes every observation a no-op.
func (a *Aggregator) SetMetrics(rec *metrics.Recorder) {
	a.metrics = rec
}

// Events returns the unified event channel.
func (a *Aggregator) Events() <-chan Event { return a.out }

// Start begins fan-in goroutines for every registered adapter plus a
// staleness monitor.
func (a *Aggregator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, adapter := range a.registry.Adapters() {
		a.wg.Add(1)
		go a.fanIn(runCtx, adapter)
	}

	a.wg.Add(1)
	go a.monitorStaleness(runCtx)
}

// Stop halts all fan-in and monitoring goroutines.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Aggregator) fanIn(ctx context.Context, adapter ports.BrokerAdapter) {
	defer a.wg.Done()
	ticks := adapter.Ticks()
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			a.handleTick(tick)
		}
	}
}

// handleTick enforces the per-(broker,symbol) strictly-monotonic ordering
// guarantee: out-of-order ticks are dropped, never reordered.
func (a *Aggregator) handleTick(tick domain.Tick) {
	a.mu.Lock()
	bySymbol, ok := a.lastSymbol[tick.BrokerID]
	if !ok {
		bySymbol = make(map[string]int64)
		a.lastSymbol[tick.BrokerID] = bySymbol
	}
	if last, ok := bySymbol[tick.Symbol]; ok && tick.TimestampMs <= last {
		a.mu.Unlock()
		return
	}
	bySymbol[tick.Symbol] = tick.TimestampMs
	a.lastTickAt[tick.BrokerID] = time.Now()
	a.mu.Unlock()

	a.emit(Event{Tick: &tick})
}

// emit is lossy-latest under backpressure: if out cannot accept, drop the
// oldest already-queued tick for that (broker,symbol) rather than the
// newest arriving one.
func (a *Aggregator) emit(ev Event) {
	select {
	case a.out <- ev:
		return
	default:
	}

	if ev.Tick != nil {
		a.dropOldestFor(*ev.Tick)
	}
	select {
	case a.out <- ev:
	default:
	}
}

// dropOldestFor drains one queued event for the same (broker,symbol) to
// make room, preferring to discard stale data over the newest tick.
func (a *Aggregator) dropOldestFor(newTick domain.Tick) {
	select {
	case old := <-a.out:
		if old.Tick == nil || old.Tick.BrokerID != newTick.BrokerID || old.Tick.Symbol != newTick.Symbol {
			// Not a match: put it back at the front isn't possible on a
			// plain channel, so re-queue it; this is a rare race under
			// heavy backpressure across many symbols.
			select {
			case a.out <- old:
			default:
			}
		}
	default:
	}
}

func (a *Aggregator) monitorStaleness(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.stalledAfter / 2)
	defer ticker.Stop()

	notified := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			now := time.Now()
			for brokerID, last := range a.lastTickAt {
				if now.Sub(last) >= a.stalledAfter {
					if !notified[brokerID] {
						notified[brokerID] = true
						a.emit(Event{Stalled: &StalledSource{BrokerID: brokerID, Since: last}})
					}
				} else {
					notified[brokerID] = false
				}
			}
			a.mu.Unlock()
		}
	}
}

// Subscribe ref-counts the (broker,symbol,exchange) subscription: if a
// subscription is already held, this is a no-op besides the ref count.
func (a *Aggregator) Subscribe(ctx context.Context, brokerID, symbol string, exchange domain.Exchange, mode domain.StreamMode) error {
	key := subscriptionKey{brokerID: brokerID, symbol: symbol, exchange: exchange}

	a.mu.Lock()
	count := a.refCounts[key]
	a.refCounts[key] = count + 1
	var active int
	if count == 0 {
		a.activeCount[brokerID]++
		active = a.activeCount[brokerID]
	}
	a.mu.Unlock()

	if count == 0 {
		a.metrics.SetActiveSubscriptions(brokerID, active)
	}

	if count > 0 {
		return nil
	}

	adapter, ok := a.registry.Get(brokerID)
	if !ok {
		return ErrUnknownBroker(brokerID)
	}
	return adapter.Subscribe(ctx, symbol, exchange, mode)
}

// Unsubscribe decrements the ref count and only forwards Unsubscribe to
// the adapter once it reaches zero. Idempotent: unsubscribing with no
// outstanding ref is a no-op, never an error.
func (a *Aggregator) Unsubscribe(ctx context.Context, brokerID, symbol string, exchange domain.Exchange) error {
	key := subscriptionKey{brokerID: brokerID, symbol: symbol, exchange: exchange}

	a.mu.Lock()
	count, ok := a.refCounts[key]
	if !ok || count <= 0 {
		a.mu.Unlock()
		return nil
	}
	count--
	var active int
	if count <= 0 {
		delete(a.refCounts, key)
		a.activeCount[brokerID]--
		active = a.activeCount[brokerID]
	} else {
		a.refCounts[key] = count
	}
	a.mu.Unlock()

	if count > 0 {
		return nil
	}
	a.metrics.SetActiveSubscriptions(brokerID, active)

	adapter, ok := a.registry.Get(brokerID)
	if !ok {
		return nil
	}
	return adapter.Unsubscribe(ctx, symbol, exchange)
}

// ErrUnknownBroker is returned when Subscribe targets an unregistered broker.
type ErrUnknownBroker string

func (e ErrUnknownBroker) Error() string { return "streaming: unknown broker " + string(e) }
