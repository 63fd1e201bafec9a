// Package papertrading implements the paper-trading interception contract
// (spec §4.E, §9, scenario S4). Only the interception contract is in
// scope here; a real fill simulator's internals are an external
// collaborator per §1.
package papertrading

import (
	"context"
	"fmt"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/orchestrator"
	"github.com/fincept/gateway/internal/plugin"
	"github.com/shopspring/decimal"
)

// BrokerID is the synthetic broker id returned for intercepted orders.
const BrokerID = "paper"

// QuoteSource fetches a read-only price for simulating a fill. The
// orchestrator's CompareQuotes satisfies this without ever placing a real
// order.
type QuoteSource interface {
	CompareQuotes(ctx context.Context, symbol string, exchange domain.Exchange) orchestrator.QuoteComparison
}

// Simulator fills an order against the best currently observed quote.
type Simulator struct {
	quotes QuoteSource
}

// NewSimulator constructs a paper-trading simulator over quotes.
func NewSimulator(quotes QuoteSource) *Simulator {
	return &Simulator{quotes: quotes}
}

// Fill simulates execution of order, returning the price it would have
// filled at. It never calls PlaceOrder on any adapter.
func (s *Simulator) Fill(ctx context.Context, order domain.OrderInput) (decimal.Decimal, error) {
	cmp := s.quotes.CompareQuotes(ctx, order.NormalizedSymbol(), order.Exchange)
	brokerID, ok := cmp.BestBrokerByPrice(order.Side)
	if !ok {
		return decimal.Zero, fmt.Errorf("papertrading: no quote available to simulate a fill for %s", order.NormalizedSymbol())
	}
	q := cmp.Data[brokerID]
	if order.Side == domain.SideBuy {
		return q.Ask, nil
	}
	return q.Bid, nil
}

// Plugin returns a PRE_ORDER plugin that intercepts every order routed
// through it: it simulates a fill and cancels the real order, supplying a
// synthetic success result tagged with BrokerID.
func Plugin(sim *Simulator) *plugin.Plugin {
	return &plugin.Plugin{
		ID:      BrokerID,
		Name:    "Paper Trading Interceptor",
		Type:    domain.HookPreOrder,
		Version: "1.0.0",
		Enabled: true,
		Run: func(ctx context.Context, pc *plugin.Context) error {
			if pc.Order == nil {
				return nil
			}
			price, err := sim.Fill(ctx, *pc.Order)
			if err != nil {
				return err
			}
			pc.Cancel(domain.OrderResult{
				Success: true,
				OrderID: fmt.Sprintf("paper-%s-%d", pc.Order.NormalizedSymbol(), pc.Order.Quantity),
				Message: fmt.Sprintf("simulated fill at %s", price.String()),
			})
			return nil
		},
	}
}
