package inequity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
)

// doRequest wraps every broker call: it signs the request, measures
// latency, and on non-2xx status maps the broker's error body through
// errorCodeTable, following saxoeu's doRequest pattern over a
// retryablehttp.Client instead of a bare *http.Client. Only GET requests
// are retried; every other method is sent exactly once.
func (a *Adapter) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInvalidInput, a.cfg.BrokerID, err)
		}
		bodyBytes = b
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bodyBytes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.signRequest(method, path, bodyBytes) {
		req.Header.Set(k, v)
	}

	client := a.http
	if method != http.MethodGet {
		client = &retryablehttp.Client{
			HTTPClient: a.http.HTTPClient,
			Logger:     a.http.Logger,
			CheckRetry: func(context.Context, *http.Response, error) (bool, error) { return false, nil },
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
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
		a.log.Debug("inequity", "request ok", map[string]any{"path": path, "elapsed_ms": elapsed.Milliseconds()})
		return data, nil
	}
	return nil, a.handleErrorResponse(resp.StatusCode, data)
}

func (a *Adapter) handleErrorResponse(status int, body []byte) error {
	var werr wireErrorResponse
	_ = json.Unmarshal(body, &werr)

	if status >= http.StatusInternalServerError {
		return apperrors.New(apperrors.KindNetworkError, a.cfg.BrokerID, werr.Message)
	}
	if status == http.StatusTooManyRequests {
		return apperrors.New(apperrors.KindTooManyRequests, a.cfg.BrokerID, werr.Message)
	}
	if kind, ok := errorCodeTable[werr.ErrorType]; ok {
		return apperrors.New(apperrors.Kind(kind), a.cfg.BrokerID, werr.Message)
	}
	return apperrors.New(apperrors.KindRejected, a.cfg.BrokerID, werr.Message)
}

// PlaceOrder implements the common algorithm from §4.B.
func (a *Adapter) PlaceOrder(ctx context.Context, order domain.OrderInput) (domain.OrderResult, error) {
	if err := a.waitRateLimit(ctx, a.limiter.Orders, "orders"); err != nil {
		return domain.OrderResult{}, apperrors.New(apperrors.KindRateLimited, a.cfg.BrokerID, "rate limit wait cancelled")
	}
	if err := order.Validate(); err != nil {
		return domain.OrderResult{}, apperrors.Wrap(apperrors.KindInvalidInput, a.cfg.BrokerID, err)
	}

	req := wireOrderRequest{
		Symbol:          order.NormalizedSymbol(),
		Exchange:        string(order.Exchange),
		TransactionType: sideToWire(order.Side),
		OrderType:       orderTypeToWire(order.Type),
		Quantity:        order.Quantity,
		Product:         productToWire(order.Product),
		Validity:        validityToWire(order.Validity),
		Tag:             order.Tag,
	}
	if order.Type.RequiresPrice() {
		req.Price, _ = order.Price.Float64()
	}
	if order.Type.RequiresTrigger() {
		req.TriggerPrice, _ = order.TriggerPrice.Float64()
	}

	data, err := a.doRequest(ctx, http.MethodPost, "/orders/regular", req)
	if err != nil {
		return domain.OrderResult{Success: false, Message: err.Error()}, err
	}

	var wo wireOrderResponse
	if err := json.Unmarshal(data, &wo); err != nil {
		return domain.OrderResult{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}
	return domain.OrderResult{Success: true, OrderID: wo.OrderID, Message: "order placed"}, nil
}

// PlaceSmartOrder implements bracket orders, mirroring saxoeu/usequity's
// parent-plus-legs approach.
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
			a.log.Warn("inequity", "stop-loss leg failed", map[string]any{"parent_order_id": parent.OrderID, "error": err.Error()})
		}
	}
	if order.TakeProfit != nil {
		leg := order
		leg.Type = domain.OrderTypeLimit
		leg.Price = *order.TakeProfit
		leg.Side = opposite(order.Side)
		leg.Tag = parent.OrderID
		if _, err := a.PlaceOrder(ctx, leg); err != nil {
			a.log.Warn("inequity", "take-profit leg failed", map[string]any{"parent_order_id": parent.OrderID, "error": err.Error()})
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
		patch["quantity"] = *mod.Quantity
	}
	if mod.Price != nil {
		f, _ := mod.Price.Float64()
		patch["price"] = f
	}
	if mod.TriggerPrice != nil {
		f, _ := mod.TriggerPrice.Float64()
		patch["trigger_price"] = f
	}
	if mod.Validity != nil {
		patch["validity"] = validityToWire(*mod.Validity)
	}

	_, err := a.doRequest(ctx, http.MethodPut, "/orders/regular/"+orderID, patch)
	if err != nil {
		return domain.OrderResult{Success: false, Message: err.Error()}, err
	}
	return domain.OrderResult{Success: true, OrderID: orderID, Message: "order modified"}, nil
}

// CancelOrder implements §4.B CancelOrder. Never retried automatically.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (domain.OrderResult, error) {
	_, err := a.doRequest(ctx, http.MethodDelete, "/orders/regular/"+orderID, nil)
	if err != nil {
		return domain.OrderResult{Success: false, Message: err.Error()}, err
	}
	return domain.OrderResult{Success: true, OrderID: orderID, Message: "order cancelled"}, nil
}

// GetOrders implements §4.B GetOrders.
func (a *Adapter) GetOrders(ctx context.Context) ([]domain.Order, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}

	var wos []wireOrder
	if err := json.Unmarshal(data, &wos); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Order, 0, len(wos))
	for _, o := range wos {
		out = append(out, domain.Order{
			OrderInput: domain.OrderInput{
				Symbol:   o.Symbol,
				Exchange: domain.Exchange(o.Exchange),
				Side:     wireToSide(o.TransactionType),
				Type:     wireToOrderType(o.OrderType),
				Quantity: o.Quantity,
				Price:    decimal.NewFromFloat(o.Price),
			},
			ID:              o.OrderID,
			BrokerID:        a.cfg.BrokerID,
			ExchangeOrderID: o.ExchangeOrderID,
			Status:          wireToStatus(o.Status),
			FilledQty:       o.FilledQuantity,
			AvgFillPrice:    decimal.NewFromFloat(o.AveragePrice),
			UpdatedAt:       o.OrderTimestamp,
			StatusMessage:   o.StatusMessage,
		})
	}
	return out, nil
}

// GetTrades filters GetOrders to entries with any fill, as this broker
// exposes fills through the same orders endpoint.
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
			Symbol: p.Symbol, Exchange: p.Exchange, Side: side, Type: domain.OrderTypeMarket,
			Quantity: qty, Product: p.Product, Validity: domain.ValidityDay,
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

// CalculateMargin uses the broker's pre-trade order-margin endpoint,
// summing the SPAN+exposure total across every leg in orders.
func (a *Adapter) CalculateMargin(ctx context.Context, orders []domain.OrderInput) (domain.MarginEstimate, error) {
	reqs := make([]wireOrderMarginRequest, 0, len(orders))
	for _, o := range orders {
		price, _ := o.Price.Float64()
		reqs = append(reqs, wireOrderMarginRequest{
			Exchange:        string(o.Exchange),
			TradingSymbol:   o.NormalizedSymbol(),
			TransactionType: sideToWire(o.Side),
			Quantity:        o.Quantity,
			Price:           price,
			OrderType:       orderTypeToWire(o.Type),
			Product:         productToWire(o.Product),
		})
	}

	data, err := a.doRequest(ctx, http.MethodPost, "/margins/orders", reqs)
	if err != nil {
		return domain.MarginEstimate{}, err
	}

	var resps []wireOrderMarginResponse
	if err := json.Unmarshal(data, &resps); err != nil {
		return domain.MarginEstimate{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	total := decimal.Zero
	for _, r := range resps {
		total = total.Add(decimal.NewFromFloat(r.Total))
	}
	return domain.MarginEstimate{TotalMargin: total, InitialMargin: total}, nil
}
