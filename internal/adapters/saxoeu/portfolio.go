package saxoeu

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
	data, err := a.doRequest(ctx, http.MethodGet, "/port/v1/positions?AccountKey="+a.accountKey(), nil)
	if err != nil {
		return nil, err
	}
	var resp wireOpenPositionsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Position, 0, len(resp.Data))
	for _, p := range resp.Data {
		avg := decimal.NewFromFloat(p.OpenPrice)
		last := decimal.NewFromFloat(p.CurrentPrice)
		out = append(out, domain.Position{
			Symbol:    p.Symbol,
			Quantity:  p.Amount,
			AvgPrice:  avg,
			LastPrice: last,
			PnL:       decimal.NewFromFloat(p.ProfitLossOnTrade),
			Product:   domain.ProductIntraday,
		})
	}
	return out, nil
}

// GetHoldings implements §4.B GetHoldings.
func (a *Adapter) GetHoldings(ctx context.Context) ([]domain.Holding, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/port/v1/positions?AccountKey="+a.accountKey()+"&FieldGroups=PositionBase", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []wireHolding `json:"Data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Holding, 0, len(resp.Data))
	for _, h := range resp.Data {
		avg := decimal.NewFromFloat(h.OpenPrice)
		last := decimal.NewFromFloat(h.CurrentPrice)
		invested := avg.Mul(decimal.NewFromInt(h.Amount))
		current := decimal.NewFromFloat(h.MarketValue)
		out = append(out, domain.Holding{
			Symbol:        h.Symbol,
			Quantity:      h.Amount,
			AvgPrice:      avg,
			LastPrice:     last,
			InvestedValue: invested,
			CurrentValue:  current,
			PnL:           current.Sub(invested),
			ISIN:          h.ISIN,
		})
	}
	return out, nil
}

// GetFunds implements §4.B GetFunds.
func (a *Adapter) GetFunds(ctx context.Context) (domain.Funds, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/port/v1/balances/me?AccountKey="+a.accountKey(), nil)
	if err != nil {
		return domain.Funds{}, err
	}
	var bal wireAccountBalance
	if err := json.Unmarshal(data, &bal); err != nil {
		return domain.Funds{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	return domain.Funds{
		AvailableCash:   decimal.NewFromFloat(bal.CashBalance),
		UsedMargin:      decimal.NewFromFloat(bal.MarginUsedByCurrentPositions),
		AvailableMargin: decimal.NewFromFloat(bal.MarginAvailableForTrading),
		TotalBalance:    decimal.NewFromFloat(bal.TotalValue),
		Currency:        bal.Currency,
		UnrealizedPnL:   decimal.NewFromFloat(bal.UnrealizedMarginProfitLoss),
	}, nil
}
