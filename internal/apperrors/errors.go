// Package apperrors defines the canonical error taxonomy shared by every
// broker adapter, the orchestrator, and the router (spec §7). Adapters
// translate broker-specific error codes into one of these Kinds using a
// per-broker error table (errorCodeTable in internal/adapters/*/mapping.go).
package apperrors

import "fmt"

// Kind is one of the canonical error kinds.
type Kind string

const (
	KindInvalidInput          Kind = "InvalidInput"
	KindInstrumentNotFound    Kind = "InstrumentNotFound"
	KindInvalidToken          Kind = "InvalidToken"
	KindTokenExpired          Kind = "TokenExpired"
	KindMFARequired           Kind = "MFARequired"
	KindUnauthorized          Kind = "Unauthorized"
	KindInsufficientFunds     Kind = "InsufficientFunds"
	KindInvalidOrder          Kind = "InvalidOrder"
	KindRejected              Kind = "Rejected"
	KindMarketClosed          Kind = "MarketClosed"
	KindInstrumentNotTradable Kind = "InstrumentNotTradable"
	KindRateLimited           Kind = "RateLimited"
	KindTooManyRequests       Kind = "TooManyRequests"
	KindNetworkError          Kind = "NetworkError"
	KindTimeout               Kind = "Timeout"
	KindNotSupported          Kind = "NotSupported"
	KindNotConnected          Kind = "NotConnected"
	KindOrderNotFound         Kind = "OrderNotFound"
	KindNotModifiable         Kind = "NotModifiable"
	KindAlreadyTerminal       Kind = "AlreadyTerminal"
	KindNoRefreshToken        Kind = "NoRefreshToken"
	KindInvalidCode           Kind = "InvalidCode"
	KindTokenExpiryUnknown    Kind = "TokenExpiryUnknown"
	KindInternal              Kind = "Internal"
)

// retryableKinds mirrors the §7 "Recovered locally?" column: read
// operations on these kinds may be retried by the caller (up to 3x,
// backoff 100/400/1200ms per §4.B); mutating calls are never auto-retried
// regardless of kind.
var retryableKinds = map[Kind]bool{
	KindRateLimited:     true,
	KindTooManyRequests: true,
	KindNetworkError:    true,
	KindTimeout:         true,
}

// Error is the canonical error shape returned across adapter and core
// boundaries: {kind, message, retryable, broker_id?}.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	BrokerID  string
	cause     error
}

func (e *Error) Error() string {
	if e.BrokerID != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.BrokerID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a canonical error, deriving Retryable from the kind's
// default policy.
func New(kind Kind, brokerID, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: retryableKinds[kind], BrokerID: brokerID}
}

// Wrap attaches a canonical kind to an underlying error, preserving it for
// errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, brokerID string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Retryable: retryableKinds[kind], BrokerID: brokerID, cause: err}
}

// NotSupported is the error every adapter returns for a capability it
// lacks, per §9: "returns NotSupported rather than being absent from the
// vtable."
func NotSupported(brokerID, operation string) *Error {
	return New(KindNotSupported, brokerID, fmt.Sprintf("%s is not supported by this broker", operation))
}

// KindOf extracts the canonical Kind from err, defaulting to KindInternal
// for errors that did not originate from this package.
func KindOf(err error) Kind {
	var ce *Error
	if asError(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err, if it is a canonical Error, is marked
// retryable. Non-canonical errors are treated as not retryable.
func IsRetryable(err error) bool {
	var ce *Error
	if asError(err, &ce) {
		return ce.Retryable
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		unwrappable, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrappable.Unwrap()
	}
	return false
}
