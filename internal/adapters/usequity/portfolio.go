package usequity

import (
	"context"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
)

// GetPositions implements §4.B GetPositions.
func (a *Adapter) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var wps []wirePosition
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetResult(&wps).SetError(&werr).Get("/v2/positions")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		return nil, a.handleRestyError(resp.StatusCode(), werr)
	}

	out := make([]domain.Position, 0, len(wps))
	for _, p := range wps {
		out = append(out, domain.Position{
			Symbol:    p.Symbol,
			Quantity:  parseInt(p.Qty),
			AvgPrice:  parseDecimal(p.AvgEntryPrice),
			LastPrice: parseDecimal(p.CurrentPrice),
			PnL:       parseDecimal(p.UnrealizedPL),
			PnLPct:    parseDecimal(p.UnrealizedPLPC),
			Product:   domain.ProductCash,
		})
	}
	return out, nil
}

// GetHoldings mirrors GetPositions: this broker family settles cash
// positions immediately (no distinct T+n holdings state), so holdings are
// derived one-to-one from positions for cross-broker API parity.
func (a *Adapter) GetHoldings(ctx context.Context) ([]domain.Holding, error) {
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Holding, 0, len(positions))
	for _, p := range positions {
		invested := p.AvgPrice.Mul(decimalFromInt(p.Quantity))
		current := p.LastPrice.Mul(decimalFromInt(p.Quantity))
		out = append(out, domain.Holding{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			AvgPrice:      p.AvgPrice,
			LastPrice:     p.LastPrice,
			InvestedValue: invested,
			CurrentValue:  current,
			PnL:           p.PnL,
			PnLPct:        p.PnLPct,
		})
	}
	return out, nil
}

// GetFunds implements §4.B GetFunds.
func (a *Adapter) GetFunds(ctx context.Context) (domain.Funds, error) {
	var acct wireAccount
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetResult(&acct).SetError(&werr).Get("/v2/account")
	if err != nil {
		return domain.Funds{}, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		return domain.Funds{}, a.handleRestyError(resp.StatusCode(), werr)
	}

	return domain.Funds{
		AvailableCash:   parseDecimal(acct.Cash),
		UsedMargin:      parseDecimal(acct.MaintenanceMargin),
		AvailableMargin: parseDecimal(acct.BuyingPower),
		TotalBalance:    parseDecimal(acct.PortfolioValue),
		Currency:        acct.Currency,
		UnrealizedPnL:   parseDecimal(acct.UnrealizedPL),
	}, nil
}
