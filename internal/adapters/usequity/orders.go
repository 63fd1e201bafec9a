package usequity

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
)

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// handleRestyError translates a non-2xx resty response into a canonical
// error via errorCodeTable, following the saxoeu adapter's doRequest
// pattern but built directly on resty's own SetError-populated struct.
func (a *Adapter) handleRestyError(status int, werr wireErrorResponse) error {
	if status >= http.StatusInternalServerError {
		return apperrors.New(apperrors.KindNetworkError, a.cfg.BrokerID, fmt.Sprintf("broker returned %d: %s", status, werr.Message))
	}
	if status == http.StatusTooManyRequests {
		return apperrors.New(apperrors.KindTooManyRequests, a.cfg.BrokerID, werr.Message)
	}
	if kind, ok := errorCodeTable[werr.Code]; ok {
		return apperrors.New(apperrors.Kind(kind), a.cfg.BrokerID, werr.Message)
	}
	return apperrors.New(apperrors.KindRejected, a.cfg.BrokerID, fmt.Sprintf("%s (code=%d, status=%d)", werr.Message, werr.Code, status))
}

// PlaceOrder implements the common algorithm from §4.B.
func (a *Adapter) PlaceOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	if err := a.waitRateLimit(ctx, a.limiter.Orders, "orders"); err != nil {
		return domain.OrderResult{}, apperrors.New(apperrors.KindRateLimited, a.cfg.BrokerID, "rate limit wait cancelled")
	}
	if err := order.Validate(); err != nil {
		return domain.OrderResult{}, apperrors.Wrap(apperrors.KindInvalidInput, a.cfg.BrokerID, err)
	}

	wireReq := wireOrderRequest{
		Symbol:        order.NormalizedSymbol(),
		Qty:           order.Quantity,
		Side:          sideToWireStr(order.Side),
		Type:          orderTypeToWireStr(order.Type),
		TimeInForce:   validityToWireStr(order.Validity),
		ClientOrderID: order.Tag,
	}
	if order.Type.RequiresPrice() {
		wireReq.LimitPrice, _ = order.Price.Float64()
	}
	if order.Type.RequiresTrigger() {
		wireReq.StopPrice, _ = order.TriggerPrice.Float64()
	}

	var wo wireOrder
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetBody(wireReq).SetResult(&wo).SetError(&werr).Post("/v2/orders")
	if err != nil {
		return domain.OrderResult{Success: false}, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		e := a.handleRestyError(resp.StatusCode(), werr)
		return domain.OrderResult{Success: false, Message: e.Error()}, e
	}

	return domain.OrderResult{Success: true, OrderID: wo.ID, Message: "order placed"}, nil
}

// PlaceSmartOrder implements bracket orders, mirroring saxoeu's
// parent-plus-legs approach since this broker family has no native OCO
// primitive exposed through this adapter's scope.
func (a *Adapter) PlaceSmartOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	parent, err := a.PlaceOrder(ctx, order)
	if err != nil || !parent.Success || !order.IsBracket() {
		return parent, err
	}

	if order.StopLoss != nil {
		leg := order
		leg.Type = domain.OrderTypeStopLimit
		leg.Price = *order.StopLoss
		leg.TriggerPrice = *order.StopLoss
		leg.Side = opposite(order.Side)
		leg.Tag = parent.OrderID
		if _, err := a.PlaceOrder(ctx, leg); err != nil {
			a.log.Warn("usequity", "stop-loss leg failed", map[string]any{"parent_order_id": parent.OrderID, "error": err.Error()})
		}
	}
	if order.TakeProfit != nil {
		leg := order
		leg.Type = domain.OrderTypeLimit
		leg.Price = *order.TakeProfit
		leg.Side = opposite(order.Side)
		leg.Tag = parent.OrderID
		if _, err := a.PlaceOrder(ctx, leg); err != nil {
			a.log.Warn("usequity", "take-profit leg failed", map[string]any{"parent_order_id": parent.OrderID, "error": err.Error()})
		}
	}
	return parent, nil
}

func opposite(s domain.Side) domain.Side {
	if s == domain.SideBuy {
		return domain.SideSell
	}
	return domain.SideBuy
}

// ModifyOrder implements §4.B ModifyOrder. Never retried automatically.
func (a *Adapter) ModifyOrder(ctx context.Context, orderID string, mod domain.OrderModification) (domain.OrderResult, error) {
	patch := map[string]any{}
	if mod.Quantity != nil {
		patch["qty"] = *mod.Quantity
	}
	if mod.Price != nil {
		f, _ := mod.Price.Float64()
		patch["limit_price"] = f
	}
	if mod.TriggerPrice != nil {
		f, _ := mod.TriggerPrice.Float64()
		patch["stop_price"] = f
	}

	var wo wireOrder
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetBody(patch).SetResult(&wo).SetError(&werr).Patch("/v2/orders/" + orderID)
	if err != nil {
		return domain.OrderResult{Success: false}, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		e := a.handleRestyError(resp.StatusCode(), werr)
		return domain.OrderResult{Success: false, Message: e.Error()}, e
	}
	return domain.OrderResult{Success: true, OrderID: orderID, Message: "order modified"}, nil
}

// CancelOrder implements §4.B CancelOrder. Never retried automatically.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (domain.OrderResult, error) {
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetError(&werr).Delete("/v2/orders/" + orderID)
	if err != nil {
		return domain.OrderResult{Success: false}, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		e := a.handleRestyError(resp.StatusCode(), werr)
		return domain.OrderResult{Success: false, Message: e.Error()}, e
	}
	return domain.OrderResult{Success: true, OrderID: orderID, Message: "order cancelled"}, nil
}

// GetOrders implements §4.B GetOrders.
func (a *Adapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	var wos []wireOrder
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetResult(&wos).SetError(&werr).Get("/v2/orders?status=all")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		return nil, a.handleRestyError(resp.StatusCode(), werr)
	}

	out := make([]domain.Order, 0, len(wos))
	for _, o := range wos {
		out = append(out, domain.Order{
			OrderInput: domain.OrderInput{
				Symbol:   o.Symbol,
				Side:     wireToSideVal(o.Side),
				Type:     wireToOrderTypeVal(o.Type),
				Quantity: parseInt(o.Qty),
				Price:    parseDecimal(o.LimitPrice),
			},
			ID:           o.ID,
			BrokerID:     a.cfg.BrokerID,
			Status:       wireToStatusVal(o.Status),
			FilledQty:    parseInt(o.FilledQty),
			AvgFillPrice: parseDecimal(o.FilledAvgPrice),
			UpdatedAt:    o.UpdatedAt,
			Tag:          o.ClientOrderID,
		})
	}
	return out, nil
}

// GetTrades filters GetOrders to filled/partially-filled entries, as this
// broker family exposes fills through the same orders endpoint.
func (a *Adapter) GetTrades(ctx context.Context) ([]domain.Order, error) {
	orders, err := a.GetOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := orders[:0]
	for _, o := range orders {
		if o.FilledQty > 0 {
			out = append(out, o)
		}
	}
	return out, nil
}

// CancelAllOrders implements §4.B: fans out per-item and aggregates a
// BulkResult; never fails globally.
func (a *Adapter) CancelAllOrders(ctx context.Context) (domain.BulkResult, error) {
	orders, err := a.GetOrders(ctx)
	if err != nil {
		return domain.BulkResult{}, err
	}
	result := domain.BulkResult{Total: len(orders), PerItem: make(map[string]domain.OrderResult, len(orders))}
	for _, o := range orders {
		if o.Status.IsTerminal() {
			continue
		}
		res, err := a.CancelOrder(ctx, o.ID)
		if err != nil || !res.Success {
			result.Failed++
		} else {
			result.OK++
		}
		result.PerItem[o.ID] = res
	}
	return result, nil
}

// CloseAllPositions implements §4.B: fans out per-item and aggregates a
// BulkResult; never fails globally.
func (a *Adapter) CloseAllPositions(ctx context.Context) (domain.BulkResult, error) {
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return domain.BulkResult{}, err
	}
	result := domain.BulkResult{Total: len(positions), PerItem: make(map[string]domain.OrderResult, len(positions))}
	for _, p := range positions {
		side := domain.SideSell
		if p.Quantity < 0 {
			side = domain.SideBuy
		}
		qty := p.Quantity
		if qty < 0 {
			qty = -qty
		}
		res, err := a.PlaceOrder(ctx, domain.OrderInput{
			Symbol: p.Symbol, Side: side, Type: domain.OrderTypeMarket, Quantity: qty, Validity: domain.ValidityDay,
		})
		if err != nil || !res.Success {
			result.Failed++
		} else {
			result.OK++
		}
		result.PerItem[p.Symbol] = res
	}
	return result, nil
}

// CalculateMargin reads the account's margin figures directly; this
// broker does not support pre-trade what-if margin calculation, so it
// reports current account margin as the best available estimate.
func (a *Adapter) CalculateMargin(ctx context.Context, orders []domain.OrderInput) (domain.MarginEstimate, error) {
	var acct wireAccount
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetResult(&acct).SetError(&werr).Get("/v2/account")
	if err != nil {
		return domain.MarginEstimate{}, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		return domain.MarginEstimate{}, a.handleRestyError(resp.StatusCode(), werr)
	}
	return domain.MarginEstimate{
		TotalMargin:   parseDecimal(acct.MaintenanceMargin),
		InitialMargin: parseDecimal(acct.InitialMargin),
	}, nil
}
