package inequity

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
)

// GetPositions implements §4.B GetPositions.
func (a *Adapter) GetPositions(ctx context.Context) ([]domain.Position, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/portfolio/positions", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Net []wirePosition `json:"net"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Position, 0, len(resp.Net))
	for _, p := range resp.Net {
		out = append(out, domain.Position{
			Symbol:    p.Symbol,
			Exchange:  domain.Exchange(p.Exchange),
			Product:   wireToProduct(p.Product),
			Quantity:  p.Quantity,
			BuyQty:    p.BuyQuantity,
			SellQty:   p.SellQuantity,
			BuyValue:  decimal.NewFromFloat(p.BuyValue),
			SellValue: decimal.NewFromFloat(p.SellValue),
			AvgPrice:  decimal.NewFromFloat(p.AveragePrice),
			LastPrice: decimal.NewFromFloat(p.LastPrice),
			PnL:       decimal.NewFromFloat(p.PnL),
			DayPnL:    decimal.NewFromFloat(p.DayChange),
		})
	}
	return out, nil
}

// GetHoldings implements §4.B GetHoldings (T+n delivery holdings,
// distinct from intraday positions for this broker family).
func (a *Adapter) GetHoldings(ctx context.Context) ([]domain.Holding, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/portfolio/holdings", nil)
	if err != nil {
		return nil, err
	}

	var whs []wireHolding
	if err := json.Unmarshal(data, &whs); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Holding, 0, len(whs))
	for _, h := range whs {
		invested := decimal.NewFromFloat(h.AveragePrice).Mul(decimal.NewFromInt(h.Quantity))
		current := decimal.NewFromFloat(h.LastPrice).Mul(decimal.NewFromInt(h.Quantity))
		pnl := current.Sub(invested)
		pnlPct := decimal.Zero
		if !invested.IsZero() {
			pnlPct = pnl.Div(invested).Mul(decimal.NewFromInt(100))
		}
		out = append(out, domain.Holding{
			Symbol:        h.Symbol,
			Exchange:      domain.Exchange(h.Exchange),
			Quantity:      h.Quantity,
			AvgPrice:      decimal.NewFromFloat(h.AveragePrice),
			LastPrice:     decimal.NewFromFloat(h.LastPrice),
			InvestedValue: invested,
			CurrentValue:  current,
			PnL:           pnl,
			PnLPct:        pnlPct,
			ISIN:          h.ISIN,
			PledgedQty:    h.PledgedQty,
			CollateralQty: h.CollateralQty,
			T1Qty:         h.T1Quantity,
		})
	}
	return out, nil
}

// GetFunds implements §4.B GetFunds.
func (a *Adapter) GetFunds(ctx context.Context) (domain.Funds, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/user/margins", nil)
	if err != nil {
		return domain.Funds{}, err
	}

	var wm wireMargins
	if err := json.Unmarshal(data, &wm); err != nil {
		return domain.Funds{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	return domain.Funds{
		AvailableCash:   decimal.NewFromFloat(wm.Equity.Available.Cash),
		UsedMargin:      decimal.NewFromFloat(wm.Equity.Utilised.Debits),
		AvailableMargin: decimal.NewFromFloat(wm.Equity.Net),
		TotalBalance:    decimal.NewFromFloat(wm.Equity.Available.Cash + wm.Equity.Available.CollateralFunds),
		Currency:        "INR",
		Collateral:      decimal.NewFromFloat(wm.Equity.Available.CollateralFunds),
		UnrealizedPnL:   decimal.NewFromFloat(wm.Equity.Utilised.M2MUnrealised),
		RealizedPnL:     decimal.NewFromFloat(wm.Equity.Utilised.M2MRealised),
	}, nil
}
