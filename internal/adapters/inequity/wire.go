package inequity

import "time"

// wireOrderRequest is the broker-dialect order shape, following the
// transaction_type/order_type/product/validity vocabulary common to
// Indian discount-broker REST APIs.
type wireOrderRequest struct {
	Symbol          string  `json:"tradingsymbol"`
	Exchange        string  `json:"exchange"`
	TransactionType string  `json:"transaction_type"`
	OrderType       string  `json:"order_type"`
	Quantity        int64   `json:"quantity"`
	Price           float64 `json:"price,omitempty"`
	TriggerPrice    float64 `json:"trigger_price,omitempty"`
	Product         string  `json:"product"`
	Validity        string  `json:"validity"`
	Tag             string  `json:"tag,omitempty"`
}

type wireOrderResponse struct {
	OrderID string `json:"order_id"`
}

type wireErrorResponse struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

type wireOrder struct {
	OrderID         string    `json:"order_id"`
	ExchangeOrderID string    `json:"exchange_order_id"`
	Symbol          string    `json:"tradingsymbol"`
	Exchange        string    `json:"exchange"`
	TransactionType string    `json:"transaction_type"`
	OrderType       string    `json:"order_type"`
	Quantity        int64     `json:"quantity"`
	FilledQuantity  int64     `json:"filled_quantity"`
	Price           float64   `json:"price"`
	AveragePrice    float64   `json:"average_price"`
	Status          string    `json:"status"`
	StatusMessage   string    `json:"status_message"`
	OrderTimestamp  time.Time `json:"order_timestamp"`
}

type wirePosition struct {
	Symbol       string  `json:"tradingsymbol"`
	Exchange     string  `json:"exchange"`
	Product      string  `json:"product"`
	Quantity     int64   `json:"quantity"`
	BuyQuantity  int64   `json:"buy_quantity"`
	SellQuantity int64   `json:"sell_quantity"`
	BuyValue     float64 `json:"buy_value"`
	SellValue    float64 `json:"sell_value"`
	AveragePrice float64 `json:"average_price"`
	LastPrice    float64 `json:"last_price"`
	PnL          float64 `json:"pnl"`
	DayChange    float64 `json:"day_change"`
}

type wireHolding struct {
	Symbol        string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	ISIN          string  `json:"isin"`
	Quantity      int64   `json:"quantity"`
	T1Quantity    int64   `json:"t1_quantity"`
	PledgedQty    int64   `json:"pledged_quantity"`
	CollateralQty int64   `json:"collateral_quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
}

type wireMargins struct {
	Equity struct {
		Available struct {
			Cash           float64 `json:"cash"`
			IntradayPayin  float64 `json:"intraday_payin"`
			CollateralFunds float64 `json:"collateral"`
		} `json:"available"`
		Utilised struct {
			Debits float64 `json:"debits"`
			M2MUnrealised float64 `json:"m2m_unrealised"`
			M2MRealised   float64 `json:"m2m_realised"`
		} `json:"utilised"`
		Net float64 `json:"net"`
	} `json:"equity"`
}

type wireOrderMarginRequest struct {
	Exchange        string  `json:"exchange"`
	TradingSymbol   string  `json:"tradingsymbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int64   `json:"quantity"`
	Price           float64 `json:"price"`
	OrderType       string  `json:"order_type"`
	Product         string  `json:"product"`
}

type wireOrderMarginResponse struct {
	Total   float64 `json:"total"`
	SPAN    float64 `json:"span"`
	Exposure float64 `json:"exposure"`
}

type wireQuote struct {
	LastPrice float64 `json:"last_price"`
	Volume    int64   `json:"volume"`
	OHLC      struct {
		Open  float64 `json:"open"`
		High  float64 `json:"high"`
		Low   float64 `json:"low"`
		Close float64 `json:"close"`
	} `json:"ohlc"`
	Depth struct {
		Buy []struct {
			Price    float64 `json:"price"`
			Quantity int64   `json:"quantity"`
			Orders   int     `json:"orders"`
		} `json:"buy"`
		Sell []struct {
			Price    float64 `json:"price"`
			Quantity int64   `json:"quantity"`
			Orders   int     `json:"orders"`
		} `json:"sell"`
	} `json:"depth"`
}

type wireCandle struct {
	Timestamp time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// wireStreamTick mirrors the broker's binary-derived, JSON-projected
// streaming tick (the real wire protocol is a packed binary frame; this
// adapter's scope treats it as an already-decoded JSON envelope).
type wireStreamTick struct {
	InstrumentToken int64   `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
	Bid             float64 `json:"bid"`
	Ask             float64 `json:"ask"`
	Volume          int64   `json:"volume"`
}
