// Package ports declares the external-collaborator interfaces the gateway
// core talks to: the per-broker adapter contract, credential persistence,
// HTTP/WebSocket transports, logging/notification sinks, and the
// master-contract lookup. Concrete implementations live in other packages
// (internal/adapters/*, internal/credstore, internal/logging, ...).
package ports

import (
	"context"
	"time"

	"github.com/fincept/gateway/internal/domain"
)

// BrokerAdapter is the fixed capability set every per-broker implementation
// must provide. A broker lacking a capability returns an
// apperrors.NotSupported error (kind KindNotSupported) rather than
// omitting the method.
type BrokerAdapter interface {
	// Identity
	BrokerID() string

	// Auth lifecycle
	Authenticate(ctx context.Context, credentials []byte) (domain.AuthResponse, error)
	RefreshToken(ctx context.Context) (domain.AuthResponse, error)
	GetOAuthURL(clientID string) (string, error)
	ExchangeCodeForToken(ctx context.Context, code, clientID, clientSecret, redirectURI string) (domain.AuthResponse, error)

	// Order lifecycle
	PlaceOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error)
	ModifyOrder(ctx context.Context, orderID string, mod domain.OrderModification) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (domain.OrderResult, error)
	PlaceSmartOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error)
	CancelAllOrders(ctx context.Context) (domain.BulkResult, error)
	CloseAllPositions(ctx context.Context) (domain.BulkResult, error)

	// Aggregate reads
	GetOrders(ctx context.Context) ([]domain.Order, error)
	GetTrades(ctx context.Context) ([]domain.Order, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
	GetHoldings(ctx context.Context) ([]domain.Holding, error)
	GetFunds(ctx context.Context) (domain.Funds, error)
	CalculateMargin(ctx context.Context, orders []domain.OrderInput) (domain.MarginEstimate, error)

	// Market data
	GetQuote(ctx context.Context, symbol string, exchange domain.Exchange) (domain.Quote, error)
	GetOHLCV(ctx context.Context, symbol string, exchange domain.Exchange, timeframe string, from, to time.Time) ([]domain.Candle, error)
	GetMarketDepth(ctx context.Context, symbol string, exchange domain.Exchange) (domain.MarketDepth, error)

	// Streaming
	Subscribe(ctx context.Context, symbol string, exchange domain.Exchange, mode domain.StreamMode) error
	Unsubscribe(ctx context.Context, symbol string, exchange domain.Exchange) error
	Ticks() <-chan domain.Tick

	// AuthEvents streams session state changes for the Auth Manager's
	// observer dispatch.
	AuthEvents() <-chan AuthStatus
}

// AuthStatus is published by an adapter whenever its session state changes.
type AuthStatus struct {
	BrokerID      string
	Authenticated bool
	UserID        string
	TokenExpiry   time.Time
	State         domain.AuthState
	Err           error
}

// CredentialsStore persists opaque per-broker credential blobs. The Auth
// Manager treats the blob as opaque bytes; adapters decode their own
// format from it.
type CredentialsStore interface {
	Load(ctx context.Context, brokerID string) ([]byte, error)
	Store(ctx context.Context, brokerID string, blob []byte) error
	Delete(ctx context.Context, brokerID string) error
}

// HTTPResponse is the normalized result of an HTTPTransport.Request call.
type HTTPResponse struct {
	Status    int
	Headers   map[string]string
	Body      []byte
	ElapsedMs int64
}

// HTTPTransport is the request/response port for broker HTTP calls. No
// package in this module implements or calls it: the bundled adapters use
// their own HTTP clients, and the latency used by routing decisions is
// measured by orchestrator.CompareQuotes.
type HTTPTransport interface {
	Request(ctx context.Context, method, url string, headers map[string]string, body []byte) (HTTPResponse, error)
}

// WSFrame is a single inbound or outbound WebSocket message.
type WSFrame struct {
	Binary bool
	Data   []byte
}

// WebSocketConn is a duplex connection returned by WebSocketTransport.Open.
type WebSocketConn interface {
	Send(ctx context.Context, frame WSFrame) error
	Receive(ctx context.Context) (WSFrame, error)
	Close() error
}

// WebSocketTransport opens duplex streaming connections.
type WebSocketTransport interface {
	Open(ctx context.Context, url string, subprotocols []string, headers map[string]string) (WebSocketConn, error)
}

// Logger is the structured logging sink the core emits to.
type Logger interface {
	Debug(category, message string, data map[string]any)
	Info(category, message string, data map[string]any)
	Warn(category, message string, data map[string]any)
	Error(category, message string, data map[string]any)
}

// Notifier is the user-notification sink the core emits to.
type Notifier interface {
	Info(title, message, brokerID string)
	Success(title, message, brokerID string)
	Warning(title, message, brokerID string)
	Error(title, message, brokerID string)
}

// MasterContractCache resolves a canonical symbol to its venue-specific
// instrument identity.
type MasterContractCache interface {
	Lookup(ctx context.Context, brokerID, symbol string, exchange domain.Exchange) (domain.Instrument, bool, error)
}
