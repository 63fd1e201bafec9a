// Package orchestrator implements the Broker Orchestrator (spec §4.D):
// concurrent fan-out/fan-in across the set of active adapters, with
// per-call deadlines and per-broker error isolation.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/metrics"
	"github.com/fincept/gateway/internal/ports"
)

// Registry is the read-only adapter lookup the Orchestrator depends on;
// *auth.Manager satisfies this.
type Registry interface {
	Adapters() []ports.BrokerAdapter
	Get(brokerID string) (ports.BrokerAdapter, bool)
}

// Orchestrator maintains the active-broker set and fans operations out
// across it.
type Orchestrator struct {
	registry Registry
	deadline time.Duration

	mu     sync.RWMutex
	active map[string]bool

	metrics *metrics.Recorder
}

// New constructs an Orchestrator. fanOutDeadline defaults to 5s per §4.D.
func New(registry Registry, fanOutDeadline time.Duration) *Orchestrator {
	if fanOutDeadline <= 0 {
		fanOutDeadline = 5 * time.Second
	}
	return &Orchestrator{registry: registry, deadline: fanOutDeadline, active: make(map[string]bool)}
}

// SetMetrics attaches a recorder for fan-out and order-routing
// observations. A nil recorder (the default) makes every observation a
// no-op.
func (o *Orchestrator) SetMetrics(rec *metrics.Recorder) {
	o.metrics = rec
}

// Enable marks a broker active; it becomes visible to routing/aggregation.
func (o *Orchestrator) Enable(brokerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[brokerID] = true
}

// Disable marks a broker inactive; it becomes invisible to routing/aggregation.
func (o *Orchestrator) Disable(brokerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, brokerID)
}

// ActiveBrokerIDs returns the currently active broker ids.
func (o *Orchestrator) ActiveBrokerIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.active))
	for id := range o.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (o *Orchestrator) activeAdapters() map[string]ports.BrokerAdapter {
	o.mu.RLock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	out := make(map[string]ports.BrokerAdapter, len(ids))
	for _, id := range ids {
		if a, ok := o.registry.Get(id); ok {
			out[id] = a
		}
	}
	return out
}

func (o *Orchestrator) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.deadline)
}

// fanOut runs fn for every active adapter concurrently and materializes
// results/errors into per-broker buckets; the goroutines write into those
// shared maps only while holding a mutex. The whole call's wall-clock time
// is recorded against rec under operation, regardless of outcome.
func fanOut[T any](ctx context.Context, rec *metrics.Recorder, operation string, adapters map[string]ports.BrokerAdapter, fn func(context.Context, ports.BrokerAdapter) (T, error)) (map[string]T, map[string]error) {
	start := time.Now()
	defer func() { rec.ObserveFanOutLatency(operation, time.Since(start)) }()

	results := make(map[string]T, len(adapters))
	errs := make(map[string]error, len(adapters))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for id, adapter := range adapters {
		id, adapter := id, adapter
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fn(ctx, adapter)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[id] = err
				return
			}
			results[id] = res
		}()
	}
	wg.Wait()
	return results, errs
}

// GetAllOrders fans GetOrders out across all active adapters.
func (o *Orchestrator) GetAllOrders(ctx context.Context) (map[string][]domain.Order, map[string]error) {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()
	return fanOut(ctx, o.metrics, "get_all_orders", o.activeAdapters(), func(ctx context.Context, a ports.BrokerAdapter) ([]domain.Order, error) {
		return a.GetOrders(ctx)
	})
}

// GetAllPositions fans GetPositions out across all active adapters.
func (o *Orchestrator) GetAllPositions(ctx context.Context) (map[string][]domain.Position, map[string]error) {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()
	return fanOut(ctx, o.metrics, "get_all_positions", o.activeAdapters(), func(ctx context.Context, a ports.BrokerAdapter) ([]domain.Position, error) {
		return a.GetPositions(ctx)
	})
}

// GetAllHoldings fans GetHoldings out across all active adapters.
func (o *Orchestrator) GetAllHoldings(ctx context.Context) (map[string][]domain.Holding, map[string]error) {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()
	return fanOut(ctx, o.metrics, "get_all_holdings", o.activeAdapters(), func(ctx context.Context, a ports.BrokerAdapter) ([]domain.Holding, error) {
		return a.GetHoldings(ctx)
	})
}

// GetAllFunds fans GetFunds out across all active adapters.
func (o *Orchestrator) GetAllFunds(ctx context.Context) (map[string]domain.Funds, map[string]error) {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()
	return fanOut(ctx, o.metrics, "get_all_funds", o.activeAdapters(), func(ctx context.Context, a ports.BrokerAdapter) (domain.Funds, error) {
		return a.GetFunds(ctx)
	})
}

// MultiBrokerResult is the outcome of PlaceMultiBrokerOrder.
type MultiBrokerResult struct {
	Success bool
	Results map[string]domain.OrderResult
	Errors  map[string]error
}

// PlaceMultiBrokerOrder fans PlaceOrder out to the given brokers (or every
// active broker if brokers is empty) concurrently.
func (o *Orchestrator) PlaceMultiBrokerOrder(ctx context.Context, order domain.OrderInput, brokers []string) MultiBrokerResult {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	targets := o.selectAdapters(brokers)
	results, errs := fanOut(ctx, o.metrics, "place_multi_broker_order", targets, func(ctx context.Context, a ports.BrokerAdapter) (domain.OrderResult, error) {
		return a.PlaceOrder(ctx, order)
	})

	success := len(errs) == 0
	for id, r := range results {
		status := "filled"
		if !r.Success {
			success = false
			status = "rejected"
		}
		o.metrics.ObserveOrderRouted(id, status)
	}
	for id := range errs {
		o.metrics.ObserveOrderRouted(id, "error")
	}
	return MultiBrokerResult{Success: success, Results: results, Errors: errs}
}

func (o *Orchestrator) selectAdapters(brokers []string) map[string]ports.BrokerAdapter {
	if len(brokers) == 0 {
		return o.activeAdapters()
	}
	out := make(map[string]ports.BrokerAdapter, len(brokers))
	for _, id := range brokers {
		if a, ok := o.registry.Get(id); ok {
			out[id] = a
		}
	}
	return out
}

// QuoteComparison is the result of CompareQuotes.
type QuoteComparison struct {
	Data    map[string]domain.Quote
	Latency map[string]time.Duration
	Errors  map[string]error
}

// CompareQuotes fans GetQuote out across all active adapters, measuring
// per-broker latency.
func (o *Orchestrator) CompareQuotes(ctx context.Context, symbol string, exchange domain.Exchange) QuoteComparison {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	adapters := o.activeAdapters()
	latency := make(map[string]time.Duration, len(adapters))
	var latMu sync.Mutex

	data, errs := fanOut(ctx, o.metrics, "compare_quotes", adapters, func(ctx context.Context, a ports.BrokerAdapter) (domain.Quote, error) {
		start := time.Now()
		q, err := a.GetQuote(ctx, symbol, exchange)
		latMu.Lock()
		latency[a.BrokerID()] = time.Since(start)
		latMu.Unlock()
		return q, err
	})

	return QuoteComparison{Data: data, Latency: latency, Errors: errs}
}

// DepthComparison is the result of CompareMarketDepth.
type DepthComparison struct {
	Data    map[string]domain.MarketDepth
	Latency map[string]time.Duration
	Errors  map[string]error
}

// CompareMarketDepth fans GetMarketDepth out across all active adapters.
func (o *Orchestrator) CompareMarketDepth(ctx context.Context, symbol string, exchange domain.Exchange) DepthComparison {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	adapters := o.activeAdapters()
	latency := make(map[string]time.Duration, len(adapters))
	var latMu sync.Mutex

	data, errs := fanOut(ctx, o.metrics, "compare_market_depth", adapters, func(ctx context.Context, a ports.BrokerAdapter) (domain.MarketDepth, error) {
		start := time.Now()
		d, err := a.GetMarketDepth(ctx, symbol, exchange)
		latMu.Lock()
		latency[a.BrokerID()] = time.Since(start)
		latMu.Unlock()
		return d, err
	})

	return DepthComparison{Data: data, Latency: latency, Errors: errs}
}

// BestBrokerByPrice picks the broker with the best effective price for
// side: lowest ask for BUY, highest bid for SELL. Ties broken by lower
// latency, then lexicographically by broker id.
func (c QuoteComparison) BestBrokerByPrice(side domain.Side) (string, bool) {
	type candidate struct {
		id    string
		price float64
		lat   time.Duration
	}
	candidates := make([]candidate, 0, len(c.Data))
	for id, q := range c.Data {
		price := q.Ask
		if side == domain.SideSell {
			price = q.Bid
		}
		f, _ := price.Float64()
		candidates = append(candidates, candidate{id: id, price: f, lat: c.Latency[id]})
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.price != b.price {
			if side == domain.SideSell {
				return a.price > b.price
			}
			return a.price < b.price
		}
		if a.lat != b.lat {
			return a.lat < b.lat
		}
		return a.id < b.id
	})
	return candidates[0].id, true
}

// BestBrokerByLatency picks the broker with lowest measured latency, ties
// broken lexicographically.
func (c QuoteComparison) BestBrokerByLatency() (string, bool) {
	type candidate struct {
		id  string
		lat time.Duration
	}
	candidates := make([]candidate, 0, len(c.Latency))
	for id, lat := range c.Latency {
		candidates = append(candidates, candidate{id: id, lat: lat})
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].lat != candidates[j].lat {
			return candidates[i].lat < candidates[j].lat
		}
		return candidates[i].id < candidates[j].id
	})
	return candidates[0].id, true
}
