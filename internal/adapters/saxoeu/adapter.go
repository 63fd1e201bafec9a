package saxoeu

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/metrics"
	"github.com/fincept/gateway/internal/ports"
	"github.com/fincept/gateway/internal/ratelimit"
)

// authEvent is the internal shape published on the adapter's auth-events
// channel; translated to ports.AuthStatus at the channel boundary.
type authEvent struct {
	brokerID      string
	authenticated bool
	expiry        time.Time
	err           error
}

// Adapter is the European cash-equity broker adapter.
type Adapter struct {
	cfg    Config
	log    ports.Logger
	client *http.Client
	limiter *ratelimit.AdapterLimiter
	cache  ports.MasterContractCache

	auth authState

	sessionMu sync.RWMutex
	session   domain.BrokerSession

	ticksCh chan domain.Tick
	authCh  chan ports.AuthStatus

	stream *streamClient

	metrics *metrics.Recorder
}

var _ ports.BrokerAdapter = (*Adapter)(nil)

// New constructs a European adapter. cache may be nil, in which case
// instrument lookups always miss (InstrumentNotFound).
func New(cfg Config, log ports.Logger, limits ratelimit.Config, cache ports.MasterContractCache) *Adapter {
	a := &Adapter{
		cfg:     cfg,
		log:     log,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: ratelimit.NewAdapterLimiter(limits, limits, limits),
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

func (a *Adapter) publishAuthEvent(ev authEvent) {
	state := domain.AuthStateAuthenticated
	if !ev.authenticated {
		state = domain.AuthStateFailed
	}
	select {
	case a.authCh <- ports.AuthStatus{BrokerID: ev.brokerID, Authenticated: ev.authenticated, TokenExpiry: ev.expiry, State: state, Err: ev.err}:
	default:
		a.log.Warn("saxoeu", "auth event channel full, dropping", map[string]any{"broker_id": ev.brokerID})
	}
}

func (a *Adapter) accountKey() string {
	a.auth.mu.RLock()
	defer a.auth.mu.RUnlock()
	return a.auth.accountKey
}

func (a *Adapter) setAccountKey(key string) {
	a.auth.mu.Lock()
	a.auth.accountKey = key
	a.auth.mu.Unlock()
}

// entryBySubscriptionID reverses the subscription table, which is keyed by
// symbol|exchange, to find the entry for an adapter-assigned reference id
// echoed back on the streaming socket.
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

func (a *Adapter) resolveInstrument(ctx context.Context, symbol string, exchange domain.Exchange) (domain.Instrument, bool) {
	if a.cache == nil {
		return domain.Instrument{}, false
	}
	inst, ok, err := a.cache.Lookup(ctx, a.cfg.BrokerID, symbol, exchange)
	if err != nil {
		a.log.Warn("saxoeu", "master contract lookup failed", map[string]any{"symbol": symbol, "error": err.Error()})
		return domain.Instrument{}, false
	}
	return inst, ok
}
