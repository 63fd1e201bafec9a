package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderInput is the canonical order a client submits to the gateway.
type OrderInput struct {
	Symbol       string
	Exchange     Exchange
	Side         Side
	Type         OrderType
	Quantity     int64
	Price        decimal.Decimal
	TriggerPrice decimal.Decimal
	Product      Product
	Validity     Validity
	Tag          string

	// StopLoss and TakeProfit, when non-nil, turn this into a bracket
	// ("smart") order; see PlaceSmartOrder.
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}

// Validate enforces the canonical order invariants from the data model.
func (o OrderInput) Validate() error {
	o.Type = NormalizeOrderType(o.Type)
	if o.Quantity <= 0 {
		return fmt.Errorf("domain: quantity must be positive, got %d", o.Quantity)
	}
	if len(o.Tag) > 64 {
		return fmt.Errorf("domain: tag length %d exceeds 64", len(o.Tag))
	}
	if o.Type.RequiresPrice() && o.Price.IsZero() {
		return fmt.Errorf("domain: order type %s requires a price", o.Type)
	}
	if o.Type.RequiresTrigger() && o.TriggerPrice.IsZero() {
		return fmt.Errorf("domain: order type %s requires a trigger_price", o.Type)
	}
	return nil
}

// NormalizedSymbol returns the upper-cased symbol, as the canonical model
// requires.
func (o OrderInput) NormalizedSymbol() string {
	return strings.ToUpper(strings.TrimSpace(o.Symbol))
}

// IsBracket reports whether this order carries SL/TP legs.
func (o OrderInput) IsBracket() bool {
	return o.StopLoss != nil || o.TakeProfit != nil
}

// Order is the observed (post-placement) view of an order: the input plus
// broker-assigned and lifecycle fields.
type Order struct {
	OrderInput

	ID              string
	BrokerID        string
	Status          OrderStatus
	FilledQty       int64
	AvgFillPrice    decimal.Decimal
	PlacedAt        time.Time
	UpdatedAt       time.Time
	ExchangeOrderID string
	StatusMessage   string
}

// PendingQty is quantity minus filled_qty, per the data-model invariant
// pending_qty + filled_qty == quantity.
func (o Order) PendingQty() int64 {
	return o.Quantity - o.FilledQty
}

// OrderResult is the outcome of a mutating broker call (place/modify/cancel).
type OrderResult struct {
	Success bool
	OrderID string
	Message string
}

// OrderModification carries the editable subset of fields for ModifyOrder.
type OrderModification struct {
	Quantity     *int64
	Price        *decimal.Decimal
	TriggerPrice *decimal.Decimal
	Validity     *Validity
}

// BulkResult aggregates the outcome of a CancelAllOrders/CloseAllPositions
// call: it never fails globally, only per item.
type BulkResult struct {
	Total   int
	OK      int
	Failed  int
	PerItem map[string]OrderResult
}

// AuthResponse is returned by Authenticate, RefreshToken and
// ExchangeCodeForToken.
type AuthResponse struct {
	Success     bool
	Message     string
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}
