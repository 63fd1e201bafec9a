package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/ports"
)

type nullLogger struct{}

func (nullLogger) Debug(string, string, map[string]any) {}
func (nullLogger) Info(string, string, map[string]any)  {}
func (nullLogger) Warn(string, string, map[string]any)  {}
func (nullLogger) Error(string, string, map[string]any) {}

type recordingNotifier struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (n *recordingNotifier) Info(title, message, brokerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, title)
}
func (n *recordingNotifier) Success(title, message, brokerID string) {}
func (n *recordingNotifier) Warning(title, message, brokerID string) {}
func (n *recordingNotifier) Error(title, message, brokerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, title)
}

type memCredsStore struct {
	mu   sync.Mutex
	blob map[string][]byte
}

func newMemCredsStore() *memCredsStore { return &memCredsStore{blob: map[string][]byte{}} }

func (s *memCredsStore) Load(ctx context.Context, brokerID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blob[brokerID]
	if !ok {
		return nil, errors.New("no credentials stored")
	}
	return b, nil
}
func (s *memCredsStore) Store(ctx context.Context, brokerID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob[brokerID] = blob
	return nil
}
func (s *memCredsStore) Delete(ctx context.Context, brokerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blob, brokerID)
	return nil
}

var _ ports.CredentialsStore = (*memCredsStore)(nil)

type fakeAuthAdapter struct {
	id             string
	authenticateFn func(ctx context.Context, credentials []byte) (domain.AuthResponse, error)
	refreshFn      func(ctx context.Context) (domain.AuthResponse, error)
}

func (f *fakeAuthAdapter) BrokerID() string { return f.id }
func (f *fakeAuthAdapter) Authenticate(ctx context.Context, credentials []byte) (domain.AuthResponse, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(ctx, credentials)
	}
	return domain.AuthResponse{Success: true, ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (f *fakeAuthAdapter) RefreshToken(ctx context.Context) (domain.AuthResponse, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx)
	}
	return domain.AuthResponse{Success: true, ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (f *fakeAuthAdapter) GetOAuthURL(clientID string) (string, error) {
	return "", apperrors.NotSupported(f.id, "GetOAuthURL")
}
func (f *fakeAuthAdapter) ExchangeCodeForToken(ctx context.Context, code, clientID, clientSecret, redirectURI string) (domain.AuthResponse, error) {
	return domain.AuthResponse{}, apperrors.NotSupported(f.id, "ExchangeCodeForToken")
}
func (f *fakeAuthAdapter) PlaceOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	return domain.OrderResult{}, apperrors.NotSupported(f.id, "PlaceOrder")
}
func (f *fakeAuthAdapter) ModifyOrder(ctx context.Context, orderID string, mod domain.OrderModification) (domain.OrderResult, error) {
	return domain.OrderResult{}, apperrors.NotSupported(f.id, "ModifyOrder")
}
func (f *fakeAuthAdapter) CancelOrder(ctx context.Context, orderID string) (domain.OrderResult, error) {
	return domain.OrderResult{}, apperrors.NotSupported(f.id, "CancelOrder")
}
func (f *fakeAuthAdapter) PlaceSmartOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	return domain.OrderResult{}, apperrors.NotSupported(f.id, "PlaceSmartOrder")
}
func (f *fakeAuthAdapter) CancelAllOrders(ctx context.Context) (domain.BulkResult, error) {
	return domain.BulkResult{}, apperrors.NotSupported(f.id, "CancelAllOrders")
}
func (f *fakeAuthAdapter) CloseAllPositions(ctx context.Context) (domain.BulkResult, error) {
	return domain.BulkResult{}, apperrors.NotSupported(f.id, "CloseAllPositions")
}
func (f *fakeAuthAdapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	return nil, apperrors.NotSupported(f.id, "GetOrders")
}
func (f *fakeAuthAdapter) GetTrades(ctx context.Context) ([]domain.Order, error) {
	return nil, apperrors.NotSupported(f.id, "GetTrades")
}
func (f *fakeAuthAdapter) GetPositions(ctx context.Context) ([]domain.Position, error) {
	return nil, apperrors.NotSupported(f.id, "GetPositions")
}
func (f *fakeAuthAdapter) GetHoldings(ctx context.Context) ([]domain.Holding, error) {
	return nil, apperrors.NotSupported(f.id, "GetHoldings")
}
func (f *fakeAuthAdapter) GetFunds(ctx context.Context) (domain.Funds, error) {
	return domain.Funds{}, apperrors.NotSupported(f.id, "GetFunds")
}
func (f *fakeAuthAdapter) CalculateMargin(ctx context.Context, orders []domain.OrderInput) (domain.MarginEstimate, error) {
	return domain.MarginEstimate{}, apperrors.NotSupported(f.id, "CalculateMargin")
}
func (f *fakeAuthAdapter) GetQuote(ctx context.Context, symbol string, exchange domain.Exchange) (domain.Quote, error) {
	return domain.Quote{}, apperrors.NotSupported(f.id, "GetQuote")
}
func (f *fakeAuthAdapter) GetOHLCV(ctx context.Context, symbol string, exchange domain.Exchange, timeframe string, from, to time.Time) ([]domain.Candle, error) {
	return nil, apperrors.NotSupported(f.id, "GetOHLCV")
}
func (f *fakeAuthAdapter) GetMarketDepth(ctx context.Context, symbol string, exchange domain.Exchange) (domain.MarketDepth, error) {
	return domain.MarketDepth{}, apperrors.NotSupported(f.id, "GetMarketDepth")
}
func (f *fakeAuthAdapter) Subscribe(ctx context.Context, symbol string, exchange domain.Exchange, mode domain.StreamMode) error {
	return apperrors.NotSupported(f.id, "Subscribe")
}
func (f *fakeAuthAdapter) Unsubscribe(ctx context.Context, symbol string, exchange domain.Exchange) error {
	return apperrors.NotSupported(f.id, "Unsubscribe")
}
func (f *fakeAuthAdapter) Ticks() <-chan domain.Tick           { return nil }
func (f *fakeAuthAdapter) AuthEvents() <-chan ports.AuthStatus { return nil }

var _ ports.BrokerAdapter = (*fakeAuthAdapter)(nil)

func TestManager_InitializeBroker_PublishesAuthenticatedStatus(t *testing.T) {
	creds := newMemCredsStore()
	require.NoError(t, creds.Store(context.Background(), "saxoeu", []byte("blob")))

	m := New(Config{}, creds, nullLogger{}, &recordingNotifier{})
	m.Register(&fakeAuthAdapter{id: "saxoeu"})

	var got ports.AuthStatus
	m.OnAuthStatusChange(func(s ports.AuthStatus) { got = s })

	require.NoError(t, m.InitializeBroker(context.Background(), "saxoeu"))
	assert.True(t, got.Authenticated)
	assert.Equal(t, domain.AuthStateAuthenticated, got.State)
}

func TestManager_InitializeBroker_MissingCredentialsErrors(t *testing.T) {
	creds := newMemCredsStore()
	m := New(Config{}, creds, nullLogger{}, &recordingNotifier{})
	m.Register(&fakeAuthAdapter{id: "saxoeu"})

	err := m.InitializeBroker(context.Background(), "saxoeu")
	assert.Error(t, err)
}

func TestManager_InitializeBroker_UnknownBrokerErrors(t *testing.T) {
	creds := newMemCredsStore()
	m := New(Config{}, creds, nullLogger{}, &recordingNotifier{})

	err := m.InitializeBroker(context.Background(), "unknown")
	assert.Error(t, err)
}

func TestManager_InitializeAll_IsolatesPerBrokerErrors(t *testing.T) {
	creds := newMemCredsStore()
	require.NoError(t, creds.Store(context.Background(), "ok", []byte("blob")))

	m := New(Config{}, creds, nullLogger{}, &recordingNotifier{})
	m.Register(&fakeAuthAdapter{id: "ok"})
	m.Register(&fakeAuthAdapter{id: "missing-creds"})

	errs := m.InitializeAll(context.Background())
	assert.Len(t, errs, 1)
	assert.Contains(t, errs, "missing-creds")
}

func TestManager_Tick_RefreshesWhenPastRefreshLead(t *testing.T) {
	creds := newMemCredsStore()
	refreshed := make(chan struct{}, 1)

	m := New(Config{RefreshLead: time.Hour}, creds, nullLogger{}, &recordingNotifier{})
	adapter := &fakeAuthAdapter{id: "saxoeu", refreshFn: func(ctx context.Context) (domain.AuthResponse, error) {
		select {
		case refreshed <- struct{}{}:
		default:
		}
		return domain.AuthResponse{Success: true, ExpiresAt: time.Now().Add(2 * time.Hour)}, nil
	}}
	m.Register(adapter)

	m.mu.Lock()
	m.adapters["saxoeu"].expiresAt = time.Now().Add(30 * time.Minute)
	m.mu.Unlock()

	m.tick(context.Background())

	select {
	case <-refreshed:
	default:
		t.Fatal("expected RefreshToken to be invoked")
	}
}

func TestManager_Tick_SkipsAdaptersNotYetDue(t *testing.T) {
	creds := newMemCredsStore()
	called := false

	m := New(Config{RefreshLead: time.Minute}, creds, nullLogger{}, &recordingNotifier{})
	adapter := &fakeAuthAdapter{id: "saxoeu", refreshFn: func(ctx context.Context) (domain.AuthResponse, error) {
		called = true
		return domain.AuthResponse{}, nil
	}}
	m.Register(adapter)

	m.mu.Lock()
	m.adapters["saxoeu"].expiresAt = time.Now().Add(time.Hour)
	m.mu.Unlock()

	m.tick(context.Background())
	assert.False(t, called)
}

func TestManager_RefreshOne_NotifiesAfterMaxConsecutiveFailures(t *testing.T) {
	creds := newMemCredsStore()
	notif := &recordingNotifier{}
	m := New(Config{MaxConsecutiveFail: 2, FailureBackoff: time.Millisecond}, creds, nullLogger{}, notif)
	adapter := &fakeAuthAdapter{id: "saxoeu", refreshFn: func(ctx context.Context) (domain.AuthResponse, error) {
		return domain.AuthResponse{}, errors.New("refresh failed")
	}}
	m.Register(adapter)

	reg := m.adapters["saxoeu"]
	m.refreshOne(context.Background(), reg)
	assert.Empty(t, notif.errors)

	m.refreshOne(context.Background(), reg)
	assert.Len(t, notif.errors, 1)
}

func TestManager_StartStop_RunsRefreshLoopWithoutPanicking(t *testing.T) {
	creds := newMemCredsStore()
	m := New(Config{}, creds, nullLogger{}, &recordingNotifier{})
	m.Register(&fakeAuthAdapter{id: "saxoeu"})

	require.NoError(t, m.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)
	m.Stop()
}
