package router

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/orchestrator"
	"github.com/fincept/gateway/internal/plugin"
	"github.com/fincept/gateway/internal/ports"
)

type nullLogger struct{}

func (nullLogger) Debug(string, string, map[string]any) {}
func (nullLogger) Info(string, string, map[string]any)  {}
func (nullLogger) Warn(string, string, map[string]any)  {}
func (nullLogger) Error(string, string, map[string]any) {}

type recordingNotifier struct {
	errors []string
}

func (n *recordingNotifier) Info(title, message, brokerID string)    {}
func (n *recordingNotifier) Success(title, message, brokerID string) {}
func (n *recordingNotifier) Warning(title, message, brokerID string) {}
func (n *recordingNotifier) Error(title, message, brokerID string) {
	n.errors = append(n.errors, title)
}

type stubAdapter struct {
	id         string
	placeOrder func(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error)
}

func (s *stubAdapter) BrokerID() string { return s.id }
func (s *stubAdapter) Authenticate(ctx context.Context, credentials []byte) (domain.AuthResponse, error) {
	return domain.AuthResponse{}, apperrors.NotSupported(s.id, "Authenticate")
}
func (s *stubAdapter) RefreshToken(ctx context.Context) (domain.AuthResponse, error) {
	return domain.AuthResponse{}, apperrors.NotSupported(s.id, "RefreshToken")
}
func (s *stubAdapter) GetOAuthURL(clientID string) (string, error) {
	return "", apperrors.NotSupported(s.id, "GetOAuthURL")
}
func (s *stubAdapter) ExchangeCodeForToken(ctx context.Context, code, clientID, clientSecret, redirectURI string) (domain.AuthResponse, error) {
	return domain.AuthResponse{}, apperrors.NotSupported(s.id, "ExchangeCodeForToken")
}
func (s *stubAdapter) PlaceOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	if s.placeOrder != nil {
		return s.placeOrder(ctx, order)
	}
	return domain.OrderResult{Success: true, OrderID: s.id + "-1"}, nil
}
func (s *stubAdapter) ModifyOrder(ctx context.Context, orderID string, mod domain.OrderModification) (domain.OrderResult, error) {
	return domain.OrderResult{Success: true, OrderID: orderID}, nil
}
func (s *stubAdapter) CancelOrder(ctx context.Context, orderID string) (domain.OrderResult, error) {
	return domain.OrderResult{Success: true, OrderID: orderID}, nil
}
func (s *stubAdapter) PlaceSmartOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	return domain.OrderResult{}, apperrors.NotSupported(s.id, "PlaceSmartOrder")
}
func (s *stubAdapter) CancelAllOrders(ctx context.Context) (domain.BulkResult, error) {
	return domain.BulkResult{}, apperrors.NotSupported(s.id, "CancelAllOrders")
}
func (s *stubAdapter) CloseAllPositions(ctx context.Context) (domain.BulkResult, error) {
	return domain.BulkResult{}, apperrors.NotSupported(s.id, "CloseAllPositions")
}
func (s *stubAdapter) GetOrders(ctx context.Context) ([]domain.Order, error) { return nil, nil }
func (s *stubAdapter) GetTrades(ctx context.Context) ([]domain.Order, error) { return nil, nil }
func (s *stubAdapter) GetPositions(ctx context.Context) ([]domain.Position, error) { return nil, nil }
func (s *stubAdapter) GetHoldings(ctx context.Context) ([]domain.Holding, error) { return nil, nil }
func (s *stubAdapter) GetFunds(ctx context.Context) (domain.Funds, error) { return domain.Funds{}, nil }
func (s *stubAdapter) CalculateMargin(ctx context.Context, orders []domain.OrderInput) (domain.MarginEstimate, error) {
	return domain.MarginEstimate{}, nil
}
func (s *stubAdapter) GetQuote(ctx context.Context, symbol string, exchange domain.Exchange) (domain.Quote, error) {
	return domain.Quote{}, apperrors.NotSupported(s.id, "GetQuote")
}
func (s *stubAdapter) GetOHLCV(ctx context.Context, symbol string, exchange domain.Exchange, timeframe string, from, to time.Time) ([]domain.Candle, error) {
	return nil, apperrors.NotSupported(s.id, "GetOHLCV")
}
func (s *stubAdapter) GetMarketDepth(ctx context.Context, symbol string, exchange domain.Exchange) (domain.MarketDepth, error) {
	return domain.MarketDepth{}, apperrors.NotSupported(s.id, "GetMarketDepth")
}
func (s *stubAdapter) Subscribe(ctx context.Context, symbol string, exchange domain.Exchange, mode domain.StreamMode) error {
	return nil
}
func (s *stubAdapter) Unsubscribe(ctx context.Context, symbol string, exchange domain.Exchange) error {
	return nil
}
func (s *stubAdapter) Ticks() <-chan domain.Tick { return nil }
func (s *stubAdapter) AuthEvents() <-chan ports.AuthStatus { return nil }

var _ ports.BrokerAdapter = (*stubAdapter)(nil)

type stubRegistry struct {
	adapters map[string]ports.BrokerAdapter
}

func (r *stubRegistry) Get(brokerID string) (ports.BrokerAdapter, bool) {
	a, ok := r.adapters[brokerID]
	return a, ok
}
func (r *stubRegistry) Adapters() []ports.BrokerAdapter {
	out := make([]ports.BrokerAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

func newTestRouter(adapters ...*stubAdapter) (*Router, *stubRegistry) {
	reg := &stubRegistry{adapters: make(map[string]ports.BrokerAdapter)}
	for _, a := range adapters {
		reg.adapters[a.id] = a
	}
	orch := orchestrator.New(reg, time.Second)
	for id := range reg.adapters {
		orch.Enable(id)
	}
	pipeline := plugin.New(nullLogger{})
	return New(reg, orch, pipeline, &recordingNotifier{}, nullLogger{}), reg
}

func TestSmartRoute_LargeQuantityGoesParallel(t *testing.T) {
	strategy := SmartRoute(domain.OrderInput{Quantity: 5000, Type: domain.OrderTypeLimit})
	assert.Equal(t, domain.StrategyParallel, strategy)
}

func TestSmartRoute_MarketOrderGoesBestLatency(t *testing.T) {
	strategy := SmartRoute(domain.OrderInput{Quantity: 10, Type: domain.OrderTypeMarket})
	assert.Equal(t, domain.StrategyBestLatency, strategy)
}

func TestSmartRoute_DefaultGoesBestPrice(t *testing.T) {
	strategy := SmartRoute(domain.OrderInput{Quantity: 10, Type: domain.OrderTypeLimit, Price: decimal.NewFromInt(10)})
	assert.Equal(t, domain.StrategyBestPrice, strategy)
}

func TestRoute_ParallelFansOutToAllBrokers(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "a"}, &stubAdapter{id: "b"})

	order := domain.OrderInput{Symbol: "ABC", Quantity: 5000, Type: domain.OrderTypeMarket}
	res, err := r.Route(context.Background(), order, RouteConfig{Strategy: domain.StrategyParallel})

	require.NoError(t, err)
	require.NotNil(t, res.Multi)
	assert.True(t, res.Success)
	assert.Len(t, res.Multi.Results, 2)
}

func TestRoute_RoundRobin_CyclesThroughBrokers(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "a"}, &stubAdapter{id: "b"})

	order := domain.OrderInput{Symbol: "ABC", Quantity: 1, Type: domain.OrderTypeMarket}
	cfg := RouteConfig{Strategy: domain.StrategyRoundRobin, Brokers: []string{"a", "b"}}

	first, err := r.Route(context.Background(), order, cfg)
	require.NoError(t, err)
	second, err := r.Route(context.Background(), order, cfg)
	require.NoError(t, err)

	assert.NotEqual(t, first.BrokerID, second.BrokerID)
}

func TestRoute_BestPrice_FallsBackWhenNoComparisonData(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "only"})

	order := domain.OrderInput{Symbol: "ABC", Quantity: 1, Type: domain.OrderTypeLimit, Price: decimal.NewFromInt(10)}
	cfg := RouteConfig{Strategy: domain.StrategyBestPrice, FallbackBroker: "only"}

	res, err := r.Route(context.Background(), order, cfg)
	require.NoError(t, err)
	assert.Equal(t, "only", res.BrokerID)
}

func TestRoute_BestPrice_NoFallbackErrors(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "only"})

	order := domain.OrderInput{Symbol: "ABC", Quantity: 1, Type: domain.OrderTypeLimit, Price: decimal.NewFromInt(10)}
	cfg := RouteConfig{Strategy: domain.StrategyBestPrice}

	_, err := r.Route(context.Background(), order, cfg)
	assert.Error(t, err)
}

func TestRoute_PreOrderCancelShortCircuitsBrokerCall(t *testing.T) {
	reg := &stubRegistry{adapters: map[string]ports.BrokerAdapter{}}
	orch := orchestrator.New(reg, time.Second)
	pipeline := plugin.New(nullLogger{})
	pipeline.Register(&plugin.Plugin{
		ID: "blocker", Type: domain.HookPreOrder, Enabled: true,
		Run: func(ctx context.Context, pc *plugin.Context) error {
			pc.Cancel(domain.OrderResult{Success: true, OrderID: "paper-1"})
			return nil
		},
	})
	r := New(reg, orch, pipeline, &recordingNotifier{}, nullLogger{})

	order := domain.OrderInput{Symbol: "ABC", Quantity: 1, Type: domain.OrderTypeMarket}
	res, err := r.Route(context.Background(), order, RouteConfig{Strategy: domain.StrategyBestPrice})

	require.NoError(t, err)
	assert.Equal(t, "paper-1", res.Result.OrderID)
}

func TestRoute_InvalidOrderIsRejectedBeforeHooks(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "a"})

	_, err := r.Route(context.Background(), domain.OrderInput{Symbol: "ABC", Quantity: 0}, RouteConfig{Strategy: domain.StrategyBestPrice})
	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestRouteBatch_PreservesInputOrder(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "a"})

	orders := []domain.OrderInput{
		{Symbol: "ONE", Quantity: 1, Type: domain.OrderTypeMarket},
		{Symbol: "TWO", Quantity: 2, Type: domain.OrderTypeMarket},
	}
	cfg := RouteConfig{Strategy: domain.StrategyRoundRobin, Brokers: []string{"a"}}

	results := r.RouteBatch(context.Background(), orders, cfg)

	require.Len(t, results, 2)
	assert.Equal(t, "ONE", results[0].Order.Symbol)
	assert.Equal(t, "TWO", results[1].Order.Symbol)
}

func TestModifyOrder_UnknownBrokerErrors(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "a"})

	_, err := r.ModifyOrder(context.Background(), "unknown", "order-1", domain.OrderModification{})
	assert.Error(t, err)
}

func TestCancelOrder_DelegatesToAdapter(t *testing.T) {
	r, _ := newTestRouter(&stubAdapter{id: "a"})

	res, err := r.CancelOrder(context.Background(), "a", "order-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "order-1", res.OrderID)
}
