package usequity

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/metrics"
	"github.com/fincept/gateway/internal/ports"
	"github.com/fincept/gateway/internal/ratelimit"
)

// Adapter is the US cash-equity broker adapter.
type Adapter struct {
	cfg     Config
	log     ports.Logger
	http    *resty.Client
	limiter *ratelimit.AdapterLimiter
	cache   ports.MasterContractCache

	credMu   sync.RWMutex
	apiKey   string
	apiSecret string
	connected bool

	sessionMu sync.RWMutex
	session   domain.BrokerSession

	ticksCh chan domain.Tick
	authCh  chan ports.AuthStatus

	stream *streamClient

	metrics *metrics.Recorder
}

var _ ports.BrokerAdapter = (*Adapter)(nil)

// New constructs a US adapter. cache may be nil, in which case instrument
// lookups always miss (InstrumentNotFound).
func New(cfg Config, log ports.Logger, cache ports.MasterContractCache) *Adapter {
	cfg = cfg.withDefaults()
	a := &Adapter{
		cfg:     cfg,
		log:     log,
		http:    newRestyClient(cfg),
		limiter: ratelimit.NewAdapterLimiter(limiterDefaults(), limiterDefaults(), limiterDefaults()),
		cache:   cache,
		session: domain.BrokerSession{BrokerID: cfg.BrokerID, SubscriptionTable: make(map[string]domain.SubscriptionEntry)},
		ticksCh: make(chan domain.Tick, 256),
		authCh:  make(chan ports.AuthStatus, 16),
	}
	a.stream = newStreamClient(a)
	return a
}

// SetMetrics attaches a recorder for rate-limit wait/reject observations. A
// nil recorder (the default) makes every observation a no-op.
func (a *Adapter) SetMetrics(rec *metrics.Recorder) {
	a.metrics = rec
}

// waitRateLimit blocks on bucket and records the wait time and, on
// cancellation, a rejection, both labeled by category (e.g. "orders",
// "quotes").
func (a *Adapter) waitRateLimit(ctx context.Context, bucket *ratelimit.Bucket, category string) error {
	start := time.Now()
	err := bucket.Wait(ctx)
	a.metrics.ObserveRateLimitWait(a.cfg.BrokerID, category, time.Since(start))
	if err != nil {
		a.metrics.IncRateLimitRejected(a.cfg.BrokerID, category)
	}
	return err
}

// BrokerID implements ports.BrokerAdapter.
func (a *Adapter) BrokerID() string { return a.cfg.BrokerID }

// Ticks implements ports.BrokerAdapter.
func (a *Adapter) Ticks() <-chan domain.Tick { return a.ticksCh }

// AuthEvents implements ports.BrokerAdapter.
func (a *Adapter) AuthEvents() <-chan ports.AuthStatus { return a.authCh }

// Authenticate installs a static API key/secret pair. There is no token
// exchange or expiry: this broker family authenticates every request with
// the key and secret sent as a header pair rather than a bearer token.
func (a *Adapter) Authenticate(ctx context.Context, credentials []byte) (domain.AuthResponse, error) {
	blob, err := domain.UnmarshalBlob(credentials)
	if err != nil {
		return domain.AuthResponse{}, apperrors.Wrap(apperrors.KindInvalidInput, a.cfg.BrokerID, err)
	}
	if blob.APIKey == "" || blob.APISecret == "" {
		return domain.AuthResponse{Success: false, Message: "api key/secret required"}, nil
	}

	a.credMu.Lock()
	a.apiKey = blob.APIKey
	a.apiSecret = blob.APISecret
	a.connected = true
	a.credMu.Unlock()

	a.publishAuthEvent(true, nil)
	return domain.AuthResponse{Success: true}, nil
}

// RefreshToken is a no-op success: static credentials never expire. The
// Auth Manager's refresh scheduler simply never has work to do for this
// broker (TokenExpiresAt is left zero).
func (a *Adapter) RefreshToken(ctx context.Context) (domain.AuthResponse, error) {
	a.credMu.RLock()
	ok := a.connected
	a.credMu.RUnlock()
	if !ok {
		return domain.AuthResponse{}, apperrors.New(apperrors.KindNoRefreshToken, a.cfg.BrokerID, "not authenticated")
	}
	return domain.AuthResponse{Success: true}, nil
}

// GetOAuthURL is not supported: this broker authenticates via static keys.
func (a *Adapter) GetOAuthURL(clientID string) (string, error) {
	return "", apperrors.NotSupported(a.cfg.BrokerID, "GetOAuthURL")
}

// ExchangeCodeForToken is not supported: this broker authenticates via
// static keys.
func (a *Adapter) ExchangeCodeForToken(ctx context.Context, code, clientID, clientSecret, redirectURI string) (domain.AuthResponse, error) {
	return domain.AuthResponse{}, apperrors.NotSupported(a.cfg.BrokerID, "ExchangeCodeForToken")
}

func (a *Adapter) authHeaders() map[string]string {
	a.credMu.RLock()
	defer a.credMu.RUnlock()
	return map[string]string{
		a.cfg.APIKeyHeader:    a.apiKey,
		a.cfg.APISecretHeader: a.apiSecret,
	}
}

func (a *Adapter) publishAuthEvent(ok bool, err error) {
	state := domain.AuthStateAuthenticated
	if !ok {
		state = domain.AuthStateFailed
	}
	select {
	case a.authCh <- ports.AuthStatus{BrokerID: a.cfg.BrokerID, Authenticated: ok, State: state, Err: err}:
	default:
		a.log.Warn("usequity", "auth event channel full, dropping", map[string]any{"broker_id": a.cfg.BrokerID})
	}
}

func (a *Adapter) resolveInstrument(ctx context.Context, symbol string, exchange domain.Exchange) (domain.Instrument, bool) {
	if a.cache == nil {
		return domain.Instrument{}, false
	}
	inst, ok, err := a.cache.Lookup(ctx, a.cfg.BrokerID, symbol, exchange)
	if err != nil {
		a.log.Warn("usequity", "master contract lookup failed", map[string]any{"symbol": symbol, "error": err.Error()})
		return domain.Instrument{}, false
	}
	return inst, ok
}

func (a *Adapter) entryBySubscriptionID(subscriptionID string) (domain.SubscriptionEntry, bool) {
	a.sessionMu.RLock()
	defer a.sessionMu.RUnlock()
	for _, e := range a.session.SubscriptionTable {
		if e.SubscriptionID == subscriptionID {
			return e, true
		}
	}
	return domain.SubscriptionEntry{}, false
}
