package domain

import (
	"github.com/shopspring/decimal"
)

// Quote is a top-of-book price snapshot for a single symbol.
type Quote struct {
	Symbol        string
	Exchange      Exchange
	LastPrice     decimal.Decimal
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	PreviousClose decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Bid           decimal.Decimal
	BidQty        int64
	Ask           decimal.Decimal
	AskQty        int64
	Volume        int64
	TimestampMs   int64
}

// DepthLevel is a single price/quantity rung in a MarketDepth book.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity int64
	Orders   int
}

// MarketDepth is an ordered order-book snapshot: Bids descending by price,
// Asks ascending.
type MarketDepth struct {
	Symbol   string
	Exchange Exchange
	Bids     []DepthLevel
	Asks     []DepthLevel
}

// IsWellOrdered checks the depth-ordering invariant from the testable
// properties: bids strictly non-increasing, asks strictly non-decreasing,
// best bid < best ask whenever both exist.
func (d MarketDepth) IsWellOrdered() bool {
	for i := 1; i < len(d.Bids); i++ {
		if d.Bids[i].Price.GreaterThan(d.Bids[i-1].Price) {
			return false
		}
	}
	for i := 1; i < len(d.Asks); i++ {
		if d.Asks[i].Price.LessThan(d.Asks[i-1].Price) {
			return false
		}
	}
	if len(d.Bids) > 0 && len(d.Asks) > 0 {
		if d.Bids[0].Price.GreaterThanOrEqual(d.Asks[0].Price) {
			return false
		}
	}
	return true
}

// Candle is one OHLCV bar for a given timeframe.
type Candle struct {
	TimestampMs int64
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      int64
}

// Tick is a single real-time price update delivered over the streaming
// channel. BrokerID lets consumers de-prefer stale sources.
type Tick struct {
	BrokerID    string
	Symbol      string
	Exchange    Exchange
	LastPrice   decimal.Decimal
	Bid         decimal.Decimal
	Ask         decimal.Decimal
	Volume      int64
	TimestampMs int64
}
