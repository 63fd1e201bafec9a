package usequity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
)

// GetQuote implements §4.B GetQuote.
func (a *Adapter) GetQuote(ctx context.Context, symbol string, exchange domain.Exchange) (domain.Quote, error) {
	if err := a.waitRateLimit(ctx, a.limiter.Quotes, "quotes"); err != nil {
		return domain.Quote{}, apperrors.New(apperrors.KindRateLimited, a.cfg.BrokerID, "rate limit wait cancelled")
	}

	var wq wireQuote
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetResult(&wq).SetError(&werr).Get("/v2/stocks/" + symbol + "/quotes/latest")
	if err != nil {
		return domain.Quote{}, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		return domain.Quote{}, a.handleRestyError(resp.StatusCode(), werr)
	}

	return domain.Quote{
		Symbol:      symbol,
		Exchange:    exchange,
		Bid:         decimal.NewFromFloat(wq.BidPrice),
		BidQty:      wq.BidSize,
		Ask:         decimal.NewFromFloat(wq.AskPrice),
		AskQty:      wq.AskSize,
		LastPrice:   decimal.NewFromFloat(wq.LastPrice),
		Volume:      wq.Volume,
		TimestampMs: wq.Timestamp.UnixMilli(),
	}, nil
}

// GetOHLCV implements §4.B GetOHLCV.
func (a *Adapter) GetOHLCV(ctx context.Context, symbol string, exchange domain.Exchange, interval string, from, to time.Time) ([]domain.Candle, error) {
	var resp struct {
		Bars []wireBar `json:"bars"`
	}
	var werr wireErrorResponse
	r, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetQueryParams(map[string]string{
			"timeframe": timeframeParam(interval),
			"start":     from.Format(time.RFC3339),
			"end":       to.Format(time.RFC3339),
		}).
		SetResult(&resp).SetError(&werr).Get("/v2/stocks/" + symbol + "/bars")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if r.StatusCode() >= 300 {
		return nil, a.handleRestyError(r.StatusCode(), werr)
	}

	out := make([]domain.Candle, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		out = append(out, domain.Candle{
			Open:        decimal.NewFromFloat(b.Open),
			High:        decimal.NewFromFloat(b.High),
			Low:         decimal.NewFromFloat(b.Low),
			Close:       decimal.NewFromFloat(b.Close),
			Volume:      b.Volume,
			TimestampMs: b.Timestamp.UnixMilli(),
		})
	}
	return out, nil
}

func timeframeParam(interval string) string {
	switch interval {
	case "1m":
		return "1Min"
	case "5m":
		return "5Min"
	case "15m":
		return "15Min"
	case "1h":
		return "1Hour"
	case "1d":
		return "1Day"
	default:
		return "1Min"
	}
}

// GetMarketDepth implements §4.B GetMarketDepth.
func (a *Adapter) GetMarketDepth(ctx context.Context, symbol string, exchange domain.Exchange) (domain.MarketDepth, error) {
	var wd wireMarketDepth
	var werr wireErrorResponse
	resp, err := a.http.R().SetContext(ctx).SetHeaders(a.authHeaders()).
		SetResult(&wd).SetError(&werr).Get("/v2/stocks/" + symbol + "/book")
	if err != nil {
		return domain.MarketDepth{}, apperrors.Wrap(apperrors.KindNetworkError, a.cfg.BrokerID, err)
	}
	if resp.StatusCode() >= 300 {
		return domain.MarketDepth{}, a.handleRestyError(resp.StatusCode(), werr)
	}

	depth := domain.MarketDepth{Symbol: symbol, Exchange: exchange}
	for _, b := range wd.Bids {
		depth.Bids = append(depth.Bids, domain.DepthLevel{Price: decimal.NewFromFloat(b.Price), Quantity: b.Size})
	}
	for _, ak := range wd.Asks {
		depth.Asks = append(depth.Asks, domain.DepthLevel{Price: decimal.NewFromFloat(ak.Price), Quantity: ak.Size})
	}
	return depth, nil
}
