package saxoeu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/ports"
	"github.com/fincept/gateway/internal/ratelimit"
)

type nullLogger struct{}

func (nullLogger) Debug(string, string, map[string]any) {}
func (nullLogger) Info(string, string, map[string]any)  {}
func (nullLogger) Warn(string, string, map[string]any)  {}
func (nullLogger) Error(string, string, map[string]any) {}

type fakeCache struct {
	inst domain.Instrument
	ok   bool
}

func (c fakeCache) Lookup(ctx context.Context, brokerID, symbol string, exchange domain.Exchange) (domain.Instrument, bool, error) {
	return c.inst, c.ok, nil
}

var noLimits = ratelimit.Config{BurstCapacity: 1000, PerSecond: 1000}

func newTestAdapter(t *testing.T, baseURL string, cache *fakeCache) *Adapter {
	t.Helper()
	var c ports.MasterContractCache
	if cache != nil {
		c = *cache
	}
	a := New(Config{BrokerID: "saxoeu", BaseURL: baseURL}, nullLogger{}, noLimits, c)

	blob, err := domain.MarshalBlob(domain.CredentialBlob{
		AccessToken:  "initial-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = a.Authenticate(context.Background(), blob)
	require.NoError(t, err)
	return a
}

func TestAdapter_Authenticate_InstallsTokenFromBlob(t *testing.T) {
	a := New(Config{BrokerID: "saxoeu"}, nullLogger{}, noLimits, nil)
	blob, err := domain.MarshalBlob(domain.CredentialBlob{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	res, err := a.Authenticate(context.Background(), blob)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tok", res.AccessToken)
}

func TestAdapter_Authenticate_EmptyAccessTokenRequiresOAuthLogin(t *testing.T) {
	a := New(Config{BrokerID: "saxoeu"}, nullLogger{}, noLimits, nil)
	blob, err := domain.MarshalBlob(domain.CredentialBlob{})
	require.NoError(t, err)

	res, err := a.Authenticate(context.Background(), blob)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestAdapter_GetOAuthURL_BuildsAuthorizeURL(t *testing.T) {
	a := New(Config{BrokerID: "saxoeu", AuthURL: "https://sim.saxobank.com/authorize", ClientID: "cfg-client"}, nullLogger{}, noLimits, nil)
	u, err := a.GetOAuthURL("my-client-id")
	require.NoError(t, err)
	assert.Contains(t, u, "https://sim.saxobank.com/authorize")
	assert.Contains(t, u, "client_id=my-client-id")
}

func TestAdapter_ExchangeCodeForToken_FailsWithoutExpiresIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "token_type": "bearer"})
	}))
	defer srv.Close()

	a := New(Config{BrokerID: "saxoeu", TokenURL: srv.URL}, nullLogger{}, noLimits, nil)
	_, err := a.ExchangeCodeForToken(context.Background(), "code", "client", "secret", "https://redirect")
	assert.Error(t, err)
}

func TestAdapter_ExchangeCodeForToken_SucceedsWithExpiresIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "bearer", "expires_in": 1200})
	}))
	defer srv.Close()

	a := New(Config{BrokerID: "saxoeu", TokenURL: srv.URL}, nullLogger{}, noLimits, nil)
	res, err := a.ExchangeCodeForToken(context.Background(), "code", "client", "secret", "https://redirect")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tok", res.AccessToken)
}

func TestAdapter_RefreshToken_FailsWhenNeverAuthenticated(t *testing.T) {
	a := New(Config{BrokerID: "saxoeu"}, nullLogger{}, noLimits, nil)
	_, err := a.RefreshToken(context.Background())
	assert.Error(t, err)
}

func TestAdapter_RefreshToken_ExchangesExpiredTokenForFreshOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh-token", "token_type": "bearer", "expires_in": 1200})
	}))
	defer srv.Close()

	a := newTestAdapter(t, "", nil)
	a.cfg.TokenURL = srv.URL

	res, err := a.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "fresh-token", res.AccessToken)
}

func TestAdapter_PlaceOrder_SuccessReturnsOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade/v2/orders", r.URL.Path)
		assert.Equal(t, "Bearer initial-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(wireOrderResponse{OrderID: "order-1"})
	}))
	defer srv.Close()

	cache := &fakeCache{inst: domain.Instrument{InstrumentID: "211"}, ok: true}
	a := newTestAdapter(t, srv.URL, cache)

	res, err := a.PlaceOrder(context.Background(), domain.OrderInput{
		Symbol: "VOD", Exchange: domain.Exchange("LSE"), Side: domain.SideBuy,
		Type: domain.OrderTypeMarket, Quantity: 100, Validity: domain.ValidityDay,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "order-1", res.OrderID)
}

func TestAdapter_PlaceOrder_InvalidInputNeverReachesBroker(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.PlaceOrder(context.Background(), domain.OrderInput{Symbol: "VOD", Side: domain.SideBuy, Quantity: 0})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestAdapter_PlaceOrder_InstrumentNotFoundWhenCacheMisses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("broker should not be called when instrument resolution fails")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, &fakeCache{ok: false})
	res, err := a.PlaceOrder(context.Background(), domain.OrderInput{
		Symbol: "UNKNOWN", Exchange: domain.Exchange("LSE"), Side: domain.SideBuy,
		Type: domain.OrderTypeMarket, Quantity: 1, Validity: domain.ValidityDay,
	})
	assert.Error(t, err)
	assert.False(t, res.Success)
}

func TestAdapter_PlaceOrder_BrokerRejectionMapsToCanonicalKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(wireErrorResponse{ErrorCode: "OrderRejected.InsufficientFunds", Message: "not enough cash"})
	}))
	defer srv.Close()

	cache := &fakeCache{inst: domain.Instrument{InstrumentID: "211"}, ok: true}
	a := newTestAdapter(t, srv.URL, cache)

	res, err := a.PlaceOrder(context.Background(), domain.OrderInput{
		Symbol: "VOD", Exchange: domain.Exchange("LSE"), Side: domain.SideBuy,
		Type: domain.OrderTypeMarket, Quantity: 100, Validity: domain.ValidityDay,
	})
	assert.Error(t, err)
	assert.False(t, res.Success)
}

func TestAdapter_CancelOrder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	res, err := a.CancelOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestAdapter_GetOrders_MapsWireFieldsToDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wireOpenOrdersResponse{Data: []wireOpenOrder{
			{OrderID: "1", Symbol: "VOD", BuySell: "Buy", OrderType: "Market", Status: "Filled", Amount: 100, FilledAmount: 100},
		}})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	orders, err := a.GetOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "1", orders[0].ID)
	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.Equal(t, domain.StatusFilled, orders[0].Status)
}

func TestAdapter_PlaceThenCancel_MockServerCapturesBothRequests(t *testing.T) {
	mock := newMockServer()
	defer mock.Close()
	mock.SetResponse(http.MethodPost, "/trade/v2/orders", http.StatusCreated, wireOrderResponse{OrderID: "98765"})
	mock.SetResponse(http.MethodDelete, "/trade/v2/orders/98765", http.StatusOK, map[string]string{"Message": "cancelled"})

	cache := &fakeCache{inst: domain.Instrument{InstrumentID: "211"}, ok: true}
	a := newTestAdapter(t, mock.BaseURL(), cache)

	placed, err := a.PlaceOrder(context.Background(), domain.OrderInput{
		Symbol: "VOD", Exchange: domain.Exchange("LSE"), Side: domain.SideBuy,
		Type: domain.OrderTypeMarket, Quantity: 50, Validity: domain.ValidityDay,
	})
	require.NoError(t, err)
	require.Equal(t, "98765", placed.OrderID)

	cancelled, err := a.CancelOrder(context.Background(), placed.OrderID)
	require.NoError(t, err)
	assert.True(t, cancelled.Success)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, http.MethodDelete, reqs[1].Method)
	assert.True(t, strings.HasPrefix(reqs[1].Path, "/trade/v2/orders/98765"))
}

func TestMockServer_UnconfiguredRouteReturnsNotFoundEnvelope(t *testing.T) {
	mock := newMockServer()
	defer mock.Close()

	a := newTestAdapter(t, mock.BaseURL(), nil)
	_, err := a.CancelOrder(context.Background(), "does-not-exist")
	assert.Error(t, err)
}
