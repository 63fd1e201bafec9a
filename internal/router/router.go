// Package router implements the Order Router (spec §4.F): routing
// strategies, smart-route heuristic, and batch execution. Modify/Cancel
// bypass routing entirely (callers address (broker_id, order_id) directly).
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/metrics"
	"github.com/fincept/gateway/internal/orchestrator"
	"github.com/fincept/gateway/internal/plugin"
	"github.com/fincept/gateway/internal/ports"
)

// Registry resolves a broker id to its adapter.
type Registry interface {
	Get(brokerID string) (ports.BrokerAdapter, bool)
}

// CustomSelector is the caller-provided pure function for RoutingStrategy
// CUSTOM: it inspects a quote comparison and returns the chosen broker id,
// or false if none qualifies.
type CustomSelector func(comparison orchestrator.QuoteComparison) (string, bool)

// RouteConfig configures a single Route call.
type RouteConfig struct {
	Strategy       domain.RoutingStrategy
	Brokers        []string // broker set for PARALLEL and ROUND_ROBIN; empty = all active
	FallbackBroker string   // used by BEST_PRICE and BEST_LATENCY when comparison yields no broker
	Custom         CustomSelector
}

// Router is the Order Router.
type Router struct {
	registry     Registry
	orch         *orchestrator.Orchestrator
	pipeline     *plugin.Pipeline
	notif        ports.Notifier
	log          ports.Logger

	rrMu    sync.Mutex
	rrIndex map[string]uint64 // round-robin cursor, keyed by the broker-set signature

	metrics *metrics.Recorder
}

// New constructs a Router.
func New(registry Registry, orch *orchestrator.Orchestrator, pipeline *plugin.Pipeline, notif ports.Notifier, log ports.Logger) *Router {
	return &Router{registry: registry, orch: orch, pipeline: pipeline, notif: notif, log: log, rrIndex: make(map[string]uint64)}
}

// SetMetrics attaches a recorder for order-routing observations. A nil
// recorder (the default) makes every observation a no-op.
func (r *Router) SetMetrics(rec *metrics.Recorder) {
	r.metrics = rec
}

// RouteResult is the unified result returned to the caller.
type RouteResult struct {
	Success  bool
	BrokerID string
	Result   domain.OrderResult
	Multi    *orchestrator.MultiBrokerResult // populated for PARALLEL
}

// SmartRoute applies the rule table from §4.F: quantity>1000 → PARALLEL,
// MARKET → BEST_LATENCY, otherwise BEST_PRICE.
func SmartRoute(order domain.OrderInput) domain.RoutingStrategy {
	switch {
	case order.Quantity > 1000:
		return domain.StrategyParallel
	case domain.NormalizeOrderType(order.Type) == domain.OrderTypeMarket:
		return domain.StrategyBestLatency
	default:
		return domain.StrategyBestPrice
	}
}

// Route runs the full order lifecycle through the router: PRE_ORDER hooks,
// strategy execution, POST_ORDER hooks.
func (r *Router) Route(ctx context.Context, order domain.OrderInput, cfg RouteConfig) (RouteResult, error) {
	if err := order.Validate(); err != nil {
		return RouteResult{}, apperrors.Wrap(apperrors.KindInvalidInput, "", err)
	}

	pc := &plugin.Context{HookType: domain.HookPreOrder, Order: &order}
	r.pipeline.Run(ctx, pc)
	pc.ApplyModifications()

	if pc.Cancelled() {
		synthetic, _ := pc.SyntheticResult()
		res := RouteResult{Success: synthetic.Success, BrokerID: pc.CancelledBy(), Result: synthetic}
		r.runPostOrder(ctx, res)
		return res, nil
	}

	res, err := r.execute(ctx, order, cfg)
	if err != nil {
		r.notif.Error("Order Failed", err.Error(), res.BrokerID)
		return res, err
	}

	r.runPostOrder(ctx, res)
	return res, nil
}

func (r *Router) runPostOrder(ctx context.Context, res RouteResult) {
	pc := &plugin.Context{HookType: domain.HookPostOrder, Result: &res.Result}
	r.pipeline.Run(ctx, pc)
}

func (r *Router) execute(ctx context.Context, order domain.OrderInput, cfg RouteConfig) (RouteResult, error) {
	switch cfg.Strategy {
	case domain.StrategyParallel:
		return r.routeParallel(ctx, order, cfg.Brokers)
	case domain.StrategyBestPrice:
		return r.routeBestPrice(ctx, order, cfg)
	case domain.StrategyBestLatency:
		return r.routeBestLatency(ctx, order, cfg)
	case domain.StrategyRoundRobin:
		return r.routeRoundRobin(ctx, order, cfg.Brokers)
	case domain.StrategyCustom:
		return r.routeCustom(ctx, order, cfg)
	default:
		return RouteResult{}, fmt.Errorf("router: unknown strategy %q", cfg.Strategy)
	}
}

func (r *Router) routeParallel(ctx context.Context, order domain.OrderInput, brokers []string) (RouteResult, error) {
	multi := r.orch.PlaceMultiBrokerOrder(ctx, order, brokers)
	return RouteResult{Success: multi.Success, Multi: &multi}, nil
}

func (r *Router) placeOn(ctx context.Context, brokerID string, order domain.OrderInput) (RouteResult, error) {
	adapter, ok := r.registry.Get(brokerID)
	if !ok {
		return RouteResult{}, fmt.Errorf("router: unknown broker %q", brokerID)
	}

	start := time.Now()
	res, err := adapter.PlaceOrder(ctx, order)
	r.metrics.ObserveOrderLatency(brokerID, time.Since(start))

	if err != nil {
		r.metrics.ObserveOrderRouted(brokerID, "error")
		return RouteResult{BrokerID: brokerID, Result: res}, err
	}
	status := "rejected"
	if res.Success {
		status = "filled"
	}
	r.metrics.ObserveOrderRouted(brokerID, status)
	return RouteResult{Success: res.Success, BrokerID: brokerID, Result: res}, nil
}

func (r *Router) routeBestPrice(ctx context.Context, order domain.OrderInput, cfg RouteConfig) (RouteResult, error) {
	cmp := r.orch.CompareQuotes(ctx, order.NormalizedSymbol(), order.Exchange)
	brokerID, ok := cmp.BestBrokerByPrice(order.Side)
	if !ok {
		if cfg.FallbackBroker != "" {
			return r.placeOn(ctx, cfg.FallbackBroker, order)
		}
		return RouteResult{}, apperrors.New(apperrors.KindInternal, "", "best-price comparison yielded no broker and no fallback was configured")
	}
	return r.placeOn(ctx, brokerID, order)
}

func (r *Router) routeBestLatency(ctx context.Context, order domain.OrderInput, cfg RouteConfig) (RouteResult, error) {
	cmp := r.orch.CompareQuotes(ctx, order.NormalizedSymbol(), order.Exchange)
	brokerID, ok := cmp.BestBrokerByLatency()
	if !ok {
		if cfg.FallbackBroker != "" {
			return r.placeOn(ctx, cfg.FallbackBroker, order)
		}
		return RouteResult{}, apperrors.New(apperrors.KindInternal, "", "latency comparison yielded no broker and no fallback was configured")
	}
	return r.placeOn(ctx, brokerID, order)
}

func (r *Router) routeRoundRobin(ctx context.Context, order domain.OrderInput, brokers []string) (RouteResult, error) {
	if len(brokers) == 0 {
		brokers = r.orch.ActiveBrokerIDs()
	}
	if len(brokers) == 0 {
		return RouteResult{}, apperrors.New(apperrors.KindInternal, "", "round-robin has no broker set")
	}

	key := fmt.Sprintf("%v", brokers)
	r.rrMu.Lock()
	idx := r.rrIndex[key]
	r.rrIndex[key] = idx + 1
	r.rrMu.Unlock()

	brokerID := brokers[int(idx%uint64(len(brokers)))]
	return r.placeOn(ctx, brokerID, order)
}

func (r *Router) routeCustom(ctx context.Context, order domain.OrderInput, cfg RouteConfig) (RouteResult, error) {
	if cfg.Custom == nil {
		return RouteResult{}, apperrors.New(apperrors.KindInvalidInput, "", "CUSTOM strategy requires a selector function")
	}
	cmp := r.orch.CompareQuotes(ctx, order.NormalizedSymbol(), order.Exchange)
	brokerID, ok := cfg.Custom(cmp)
	if !ok {
		return RouteResult{}, apperrors.New(apperrors.KindInternal, "", "custom selector did not choose a broker")
	}
	return r.placeOn(ctx, brokerID, order)
}

// BatchResult pairs each input order with its routing outcome, preserving
// input order.
type BatchResult struct {
	Order  domain.OrderInput
	Result RouteResult
	Err    error
}

// RouteBatch routes every order concurrently, returning results in input order.
func (r *Router) RouteBatch(ctx context.Context, orders []domain.OrderInput, cfg RouteConfig) []BatchResult {
	out := make([]BatchResult, len(orders))
	var wg sync.WaitGroup
	for i, order := range orders {
		wg.Add(1)
		go func(i int, order domain.OrderInput) {
			defer wg.Done()
			res, err := r.Route(ctx, order, cfg)
			out[i] = BatchResult{Order: order, Result: res, Err: err}
		}(i, order)
	}
	wg.Wait()
	return out
}

// ModifyOrder bypasses routing: the caller addresses (broker_id, order_id)
// directly. Never retried automatically.
func (r *Router) ModifyOrder(ctx context.Context, brokerID, orderID string, mod domain.OrderModification) (domain.OrderResult, error) {
	adapter, ok := r.registry.Get(brokerID)
	if !ok {
		return domain.OrderResult{}, fmt.Errorf("router: unknown broker %q", brokerID)
	}
	return adapter.ModifyOrder(ctx, orderID, mod)
}

// CancelOrder bypasses routing: the caller addresses (broker_id, order_id)
// directly. Never retried automatically.
func (r *Router) CancelOrder(ctx context.Context, brokerID, orderID string) (domain.OrderResult, error) {
	adapter, ok := r.registry.Get(brokerID)
	if !ok {
		return domain.OrderResult{}, fmt.Errorf("router: unknown broker %q", brokerID)
	}
	return adapter.CancelOrder(ctx, orderID)
}
