package usequity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincept/gateway/internal/domain"
)

type nullLogger struct{}

func (nullLogger) Debug(string, string, map[string]any) {}
func (nullLogger) Info(string, string, map[string]any)  {}
func (nullLogger) Warn(string, string, map[string]any)  {}
func (nullLogger) Error(string, string, map[string]any) {}

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := New(Config{BrokerID: "usequity", BaseURL: srv.URL}, nullLogger{}, nil)
	_, err := a.Authenticate(context.Background(), mustMarshalBlob(t, domain.CredentialBlob{APIKey: "key", APISecret: "secret"}))
	require.NoError(t, err)
	return a
}

func mustMarshalBlob(t *testing.T, blob domain.CredentialBlob) []byte {
	t.Helper()
	b, err := domain.MarshalBlob(blob)
	require.NoError(t, err)
	return b
}

func TestAdapter_PlaceOrder_SuccessReturnsOrderID(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/orders", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(wireOrder{ID: "order-1", Status: "accepted"})
	}))

	res, err := a.PlaceOrder(context.Background(), domain.OrderInput{
		Symbol: "AAPL", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 10, Validity: domain.ValidityDay,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "order-1", res.OrderID)
}

func TestAdapter_PlaceOrder_InvalidInputNeverReachesBroker(t *testing.T) {
	called := false
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	_, err := a.PlaceOrder(context.Background(), domain.OrderInput{Symbol: "AAPL", Side: domain.SideBuy, Quantity: 0})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestAdapter_PlaceOrder_BrokerRejectionMapsToCanonicalKind(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(wireErrorResponse{Code: 40310000, Message: "insufficient funds"})
	}))

	res, err := a.PlaceOrder(context.Background(), domain.OrderInput{
		Symbol: "AAPL", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 10, Validity: domain.ValidityDay,
	})
	assert.Error(t, err)
	assert.False(t, res.Success)
}

func TestAdapter_PlaceOrder_TooManyRequestsMapsToRateLimited(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(wireErrorResponse{Message: "slow down"})
	}))

	_, err := a.PlaceOrder(context.Background(), domain.OrderInput{
		Symbol: "AAPL", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 10, Validity: domain.ValidityDay,
	})
	assert.Error(t, err)
}

func TestAdapter_CancelOrder_Success(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	}))

	res, err := a.CancelOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestAdapter_GetOrders_MapsWireFieldsToDomain(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]wireOrder{
			{ID: "1", Symbol: "AAPL", Side: "buy", Type: "market", Status: "filled", Qty: "10", FilledQty: "10", LimitPrice: "0"},
		})
	}))

	orders, err := a.GetOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "1", orders[0].ID)
	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.Equal(t, domain.StatusFilled, orders[0].Status)
	assert.Equal(t, int64(10), orders[0].FilledQty)
}

func TestAdapter_RefreshToken_FailsWhenNeverAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	a := New(Config{BrokerID: "usequity", BaseURL: srv.URL}, nullLogger{}, nil)
	_, err := a.RefreshToken(context.Background())
	assert.Error(t, err)
}

func TestAdapter_GetOAuthURL_NotSupported(t *testing.T) {
	a := New(Config{BrokerID: "usequity"}, nullLogger{}, nil)
	_, err := a.GetOAuthURL("client")
	assert.Error(t, err)
}
