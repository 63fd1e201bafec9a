package usequity

import "time"

// wireOrderRequest is the broker-dialect order shape sent on PlaceOrder.
// Field names follow the lower_snake_case convention common to US
// cash-equity brokers in this family.
type wireOrderRequest struct {
	Symbol      string  `json:"symbol"`
	Qty         int64   `json:"qty"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	TimeInForce string  `json:"time_in_force"`
	LimitPrice  float64 `json:"limit_price,omitempty"`
	StopPrice   float64 `json:"stop_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type wireOrder struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Qty           string    `json:"qty"`
	FilledQty     string    `json:"filled_qty"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	LimitPrice    string    `json:"limit_price"`
	FilledAvgPrice string   `json:"filled_avg_price"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type wireErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wirePosition struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	MarketValue   string `json:"market_value"`
	UnrealizedPL  string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

type wireAccount struct {
	Cash               string `json:"cash"`
	PortfolioValue     string `json:"portfolio_value"`
	BuyingPower        string `json:"buying_power"`
	InitialMargin      string `json:"initial_margin"`
	MaintenanceMargin  string `json:"maintenance_margin"`
	Currency           string `json:"currency"`
	UnrealizedPL       string `json:"unrealized_pl"`
}

type wireQuote struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	BidSize   int64     `json:"bid_size"`
	AskPrice  float64   `json:"ask_price"`
	AskSize   int64     `json:"ask_size"`
	LastPrice float64   `json:"last_price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

type wireBar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    int64     `json:"v"`
}

type wireDepthLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

type wireMarketDepth struct {
	Symbol string           `json:"symbol"`
	Bids   []wireDepthLevel `json:"bids"`
	Asks   []wireDepthLevel `json:"asks"`
}

// wireStreamTick mirrors the broker's streaming trade/quote envelope.
type wireStreamTick struct {
	Type   string  `json:"T"`
	Symbol string  `json:"S"`
	Bid    float64 `json:"bp"`
	Ask    float64 `json:"ap"`
	Price  float64 `json:"p"`
	Size   int64   `json:"s"`
}
