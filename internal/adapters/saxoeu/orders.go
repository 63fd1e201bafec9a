package saxoeu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
)

// doRequest wraps every broker call: it attaches the bearer token, measures
// latency, and on non-2xx status maps the broker's error body through the
// per-broker error table, following the teacher's doRequest in saxo.go.
func (a *Adapter) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	tok, err := a.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInvalidInput, a.cfg.BrokerID, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		a.log.Debug("saxoeu", "request ok", map[string]any{"path": path, "elapsed_ms": elapsed.Milliseconds()})
		return data, nil
	}

	return nil, a.handleErrorResponse(resp.StatusCode, data)
}

func (a *Adapter) handleErrorResponse(status int, body []byte) error {
	var werr wireErrorResponse
	_ = json.Unmarshal(body, &werr)

	if status >= 500 {
		return apperrors.New(apperrors.KindNetworkError, a.cfg.BrokerID, fmt.Sprintf("broker returned %d: %s", status, werr.Message))
	}
	if status == http.StatusTooManyRequests {
		return apperrors.New(apperrors.KindTooManyRequests, a.cfg.BrokerID, werr.Message)
	}

	if kind, ok := errorCodeTable[werr.ErrorCode]; ok {
		return apperrors.New(apperrors.Kind(kind), a.cfg.BrokerID, werr.Message)
	}
	return apperrors.New(apperrors.KindRejected, a.cfg.BrokerID, fmt.Sprintf("%s (code=%s, status=%d)", werr.Message, werr.ErrorCode, status))
}

// PlaceOrder implements the common algorithm from §4.B: resolve
// instrument, build venue request, send, map response.
func (a *Adapter) PlaceOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	if err := a.waitRateLimit(ctx, a.limiter.Orders, "orders"); err != nil {
		return domain.OrderResult{}, apperrors.New(apperrors.KindRateLimited, a.cfg.BrokerID, "rate limit wait cancelled")
	}
	if err := order.Validate(); err != nil {
		return domain.OrderResult{}, apperrors.Wrap(apperrors.KindInvalidInput, a.cfg.BrokerID, err)
	}

	inst, ok := a.resolveInstrument(ctx, order.NormalizedSymbol(), order.Exchange)
	if !ok {
		return domain.OrderResult{Success: false}, apperrors.New(apperrors.KindInstrumentNotFound, a.cfg.BrokerID, order.NormalizedSymbol())
	}
	uic, err := parseUIC(inst.InstrumentID)
	if err != nil {
		return domain.OrderResult{Success: false}, apperrors.New(apperrors.KindInstrumentNotFound, a.cfg.BrokerID, "invalid instrument id: "+inst.InstrumentID)
	}

	wireReq := wireOrderRequest{
		UIC:       uic,
		AssetType: "Stock",
		Amount:    order.Quantity,
		BuySell:   sideToWireStr(order.Side),
		OrderType: orderTypeToWireStr(order.Type),
		AccountKey: a.accountKey(),
		ExternalReference: order.Tag,
	}
	if order.Type.RequiresPrice() {
		wireReq.OrderPrice, _ = order.Price.Float64()
	}
	if order.Type.RequiresTrigger() {
		wireReq.TriggerPrice, _ = order.TriggerPrice.Float64()
	}
	wireReq.OrderDuration.DurationType = validityToWireStr(order.Validity)

	data, err := a.doRequest(ctx, http.MethodPost, "/trade/v2/orders", wireReq)
	if err != nil {
		return domain.OrderResult{Success: false, Message: err.Error()}, err
	}

	var resp wireOrderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.OrderResult{Success: false}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}
	return domain.OrderResult{Success: true, OrderID: resp.OrderID, Message: "order placed"}, nil
}

// PlaceSmartOrder implements bracket orders: the parent is placed, then the
// SL/TP legs are placed at once as separate opposite-side orders tagged with
// the parent's order id. The legs are not linked to the parent at the
// broker, and a failed leg is logged without failing the call.
func (a *Adapter) PlaceSmartOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	parent, err := a.PlaceOrder(ctx, order)
	if err != nil || !parent.Success {
		return parent, err
	}
	if !order.IsBracket() {
		return parent, nil
	}

	if order.StopLoss != nil {
		leg := order
		leg.Type = domain.OrderTypeStopLimit
		leg.Price = *order.StopLoss
		leg.TriggerPrice = *order.StopLoss
		leg.Side = opposite(order.Side)
		leg.Tag = parent.OrderID
		if _, err := a.PlaceOrder(ctx, leg); err != nil {
			a.log.Warn("saxoeu", "stop-loss leg failed", map[string]any{"parent_order_id": parent.OrderID, "error": err.Error()})
		}
	}
	if order.TakeProfit != nil {
		leg := order
		leg.Type = domain.OrderTypeLimit
		leg.Price = *order.TakeProfit
		leg.Side = opposite(order.Side)
		leg.Tag = parent.OrderID
		if _, err := a.PlaceOrder(ctx, leg); err != nil {
			a.log.Warn("saxoeu", "take-profit leg failed", map[string]any{"parent_order_id": parent.OrderID, "error": err.Error()})
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
	patch := map[string]any{"OrderId": orderID, "AccountKey": a.accountKey()}
	if mod.Quantity != nil {
		patch["Amount"] = *mod.Quantity
	}
	if mod.Price != nil {
		f, _ := mod.Price.Float64()
		patch["OrderPrice"] = f
	}
	if mod.TriggerPrice != nil {
		f, _ := mod.TriggerPrice.Float64()
		patch["StopLimitPrice"] = f
	}

	_, err := a.doRequest(ctx, http.MethodPatch, "/trade/v2/orders", patch)
	if err != nil {
		return domain.OrderResult{Success: false, Message: err.Error()}, err
	}
	return domain.OrderResult{Success: true, OrderID: orderID, Message: "order modified"}, nil
}

// CancelOrder implements §4.B CancelOrder. Never retried automatically.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (domain.OrderResult, error) {
	path := fmt.Sprintf("/trade/v2/orders/%s?AccountKey=%s", orderID, a.accountKey())
	_, err := a.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return domain.OrderResult{Success: false, Message: err.Error()}, err
	}
	return domain.OrderResult{Success: true, OrderID: orderID, Message: "order cancelled"}, nil
}

// GetOrders implements §4.B GetOrders.
func (a *Adapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/trade/v2/orders?AccountKey="+a.accountKey(), nil)
	if err != nil {
		return nil, err
	}
	var resp wireOpenOrdersResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Order, 0, len(resp.Data))
	for _, o := range resp.Data {
		out = append(out, domain.Order{
			OrderInput: domain.OrderInput{
				Symbol: o.Symbol,
				Side:   wireToSideVal(o.BuySell),
				Type:   wireToOrderTypeVal(o.OrderType),
				Quantity: o.Amount,
				Price:  decimal.NewFromFloat(o.Price),
			},
			ID:              o.OrderID,
			BrokerID:        a.cfg.BrokerID,
			Status:          wireToStatusVal(o.Status),
			FilledQty:       o.FilledAmount,
			ExchangeOrderID: o.ExchangeOrderID,
			UpdatedAt:       o.LastChanged,
		})
	}
	return out, nil
}

// GetTrades returns filled/partially-filled orders; Saxo has no separate
// trades endpoint distinct from the orders list in this adapter's scope,
// so it filters GetOrders the way the teacher's callers already do.
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
			Symbol: p.Symbol, Exchange: p.Exchange, Side: side,
			Type: domain.OrderTypeMarket, Quantity: qty, Product: p.Product, Validity: domain.ValidityDay,
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

// CalculateMargin reads the account's current margin figures from the
// balances endpoint: TotalMargin is the margin used by open positions and
// InitialMargin is the margin available for trading. The orders argument is
// not used; no margin is computed for the given orders.
func (a *Adapter) CalculateMargin(ctx context.Context, orders []domain.OrderInput) (domain.MarginEstimate, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/port/v1/balances/me?AccountKey="+a.accountKey(), nil)
	if err != nil {
		return domain.MarginEstimate{}, err
	}
	var bal wireAccountBalance
	if err := json.Unmarshal(data, &bal); err != nil {
		return domain.MarginEstimate{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}
	return domain.MarginEstimate{
		TotalMargin:   decimal.NewFromFloat(bal.MarginUsedByCurrentPositions),
		InitialMargin: decimal.NewFromFloat(bal.MarginAvailableForTrading),
	}, nil
}

func parseUIC(instrumentID string) (int, error) {
	var uic int
	_, err := fmt.Sscanf(instrumentID, "%d", &uic)
	return uic, err
}
