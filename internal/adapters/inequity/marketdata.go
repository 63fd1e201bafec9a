package inequity

import (
	"context"
	"encoding/json"
	"net/http"
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

	path := "/quote/full?symbol=" + string(exchange) + ":" + symbol
	data, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Quote{}, err
	}

	var wq wireQuote
	if err := json.Unmarshal(data, &wq); err != nil {
		return domain.Quote{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	q := domain.Quote{
		Symbol:      symbol,
		Exchange:    exchange,
		LastPrice:   decimal.NewFromFloat(wq.LastPrice),
		Open:        decimal.NewFromFloat(wq.OHLC.Open),
		High:        decimal.NewFromFloat(wq.OHLC.High),
		Low:         decimal.NewFromFloat(wq.OHLC.Low),
		PreviousClose: decimal.NewFromFloat(wq.OHLC.Close),
		Volume:      wq.Volume,
		TimestampMs: time.Now().UnixMilli(),
	}
	if len(wq.Depth.Buy) > 0 {
		q.Bid = decimal.NewFromFloat(wq.Depth.Buy[0].Price)
		q.BidQty = int64(wq.Depth.Buy[0].Quantity)
	}
	if len(wq.Depth.Sell) > 0 {
		q.Ask = decimal.NewFromFloat(wq.Depth.Sell[0].Price)
		q.AskQty = int64(wq.Depth.Sell[0].Quantity)
	}
	return q, nil
}

func intervalParam(interval string) string {
	switch interval {
	case "1m":
		return "minute"
	case "5m":
		return "5minute"
	case "15m":
		return "15minute"
	case "1h":
		return "60minute"
	case "1d":
		return "day"
	default:
		return "minute"
	}
}

// GetOHLCV implements §4.B GetOHLCV.
func (a *Adapter) GetOHLCV(ctx context.Context, symbol string, exchange domain.Exchange, interval string, from, to time.Time) ([]domain.Candle, error) {
	path := "/instruments/historical/" + string(exchange) + ":" + symbol + "/" + intervalParam(interval) +
		"?from=" + from.Format("2006-01-02") + "&to=" + to.Format("2006-01-02")
	data, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Candles []wireCandle `json:"candles"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		out = append(out, domain.Candle{
			Open:        decimal.NewFromFloat(c.Open),
			High:        decimal.NewFromFloat(c.High),
			Low:         decimal.NewFromFloat(c.Low),
			Close:       decimal.NewFromFloat(c.Close),
			Volume:      c.Volume,
			TimestampMs: c.Timestamp.UnixMilli(),
		})
	}
	return out, nil
}

// GetMarketDepth implements §4.B GetMarketDepth.
func (a *Adapter) GetMarketDepth(ctx context.Context, symbol string, exchange domain.Exchange) (domain.MarketDepth, error) {
	path := "/quote/full?symbol=" + string(exchange) + ":" + symbol
	data, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.MarketDepth{}, err
	}

	var wq wireQuote
	if err := json.Unmarshal(data, &wq); err != nil {
		return domain.MarketDepth{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	depth := domain.MarketDepth{Symbol: symbol, Exchange: exchange}
	for _, b := range wq.Depth.Buy {
		depth.Bids = append(depth.Bids, domain.DepthLevel{Price: decimal.NewFromFloat(b.Price), Quantity: int64(b.Quantity), Orders: b.Orders})
	}
	for _, s := range wq.Depth.Sell {
		depth.Asks = append(depth.Asks, domain.DepthLevel{Price: decimal.NewFromFloat(s.Price), Quantity: int64(s.Quantity), Orders: s.Orders})
	}
	return depth, nil
}
