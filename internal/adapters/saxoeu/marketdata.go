package saxoeu

import (
	"context"
	"encoding/json"
	"fmt"
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
	inst, ok := a.resolveInstrument(ctx, symbol, exchange)
	if !ok {
		return domain.Quote{}, apperrors.New(apperrors.KindInstrumentNotFound, a.cfg.BrokerID, symbol)
	}

	path := fmt.Sprintf("/trade/v1/infoprices?Uic=%s&AssetType=Stock", inst.InstrumentID)
	data, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Quote{}, err
	}
	var wp wirePrice
	if err := json.Unmarshal(data, &wp); err != nil {
		return domain.Quote{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	return domain.Quote{
		Symbol:      symbol,
		Exchange:    exchange,
		Bid:         decimal.NewFromFloat(wp.Quote.Bid),
		Ask:         decimal.NewFromFloat(wp.Quote.Ask),
		LastPrice:   decimal.NewFromFloat(wp.Quote.Mid),
		High:        decimal.NewFromFloat(wp.PriceInfo.High),
		Low:         decimal.NewFromFloat(wp.PriceInfo.Low),
		TimestampMs: wp.LastUpdated.UnixMilli(),
	}, nil
}

// GetOHLCV implements §4.B GetOHLCV.
func (a *Adapter) GetOHLCV(ctx context.Context, symbol string, exchange domain.Exchange, interval string, from, to time.Time) ([]domain.Candle, error) {
	inst, ok := a.resolveInstrument(ctx, symbol, exchange)
	if !ok {
		return nil, apperrors.New(apperrors.KindInstrumentNotFound, a.cfg.BrokerID, symbol)
	}

	horizon := saxoHorizon(interval)
	path := fmt.Sprintf("/chart/v1/charts?Uic=%s&AssetType=Stock&Horizon=%d&Count=1200", inst.InstrumentID, horizon)
	data, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Time   time.Time `json:"Time"`
			Open   float64   `json:"Open"`
			High   float64   `json:"High"`
			Low    float64   `json:"Low"`
			Close  float64   `json:"CloseAsk"`
			Volume float64   `json:"Volume"`
		} `json:"Data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	out := make([]domain.Candle, 0, len(resp.Data))
	for _, c := range resp.Data {
		out = append(out, domain.Candle{
			Open:        decimal.NewFromFloat(c.Open),
			High:        decimal.NewFromFloat(c.High),
			Low:         decimal.NewFromFloat(c.Low),
			Close:       decimal.NewFromFloat(c.Close),
			Volume:      int64(c.Volume),
			TimestampMs: c.Time.UnixMilli(),
		})
	}
	return out, nil
}

func saxoHorizon(interval string) int {
	switch interval {
	case "1m":
		return 1
	case "5m":
		return 5
	case "15m":
		return 15
	case "1h":
		return 60
	case "1d":
		return 1440
	default:
		return 1
	}
}

// GetMarketDepth implements §4.B GetMarketDepth.
func (a *Adapter) GetMarketDepth(ctx context.Context, symbol string, exchange domain.Exchange) (domain.MarketDepth, error) {
	inst, ok := a.resolveInstrument(ctx, symbol, exchange)
	if !ok {
		return domain.MarketDepth{}, apperrors.New(apperrors.KindInstrumentNotFound, a.cfg.BrokerID, symbol)
	}

	path := fmt.Sprintf("/trade/v1/infoprices?Uic=%s&AssetType=Stock&FieldGroups=MarketDepth", inst.InstrumentID)
	data, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.MarketDepth{}, err
	}

	var resp struct {
		MarketDepth struct {
			Bid []struct {
				Price float64 `json:"Price"`
				Size  int64   `json:"Size"`
			} `json:"Bid"`
			Ask []struct {
				Price float64 `json:"Price"`
				Size  int64   `json:"Size"`
			} `json:"Ask"`
		} `json:"MarketDepth"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.MarketDepth{}, apperrors.Wrap(apperrors.KindInternal, a.cfg.BrokerID, err)
	}

	depth := domain.MarketDepth{Symbol: symbol, Exchange: exchange}
	for _, b := range resp.MarketDepth.Bid {
		depth.Bids = append(depth.Bids, domain.DepthLevel{Price: decimal.NewFromFloat(b.Price), Quantity: b.Size})
	}
	for _, ak := range resp.MarketDepth.Ask {
		depth.Asks = append(depth.Asks, domain.DepthLevel{Price: decimal.NewFromFloat(ak.Price), Quantity: ak.Size})
	}
	return depth, nil
}
