// Package saxoeu is the European cash-equity broker adapter. It is
// directly adapted from the teacher repository's Saxo adapter: OAuth2 +
// gorilla/websocket, HTTP request/response shapes, and the
// reader/processor streaming architecture are all kept, generalized from
// the teacher's FX/CFD domain to the gateway's cash-equity canonical model.
package saxoeu

import "time"

// wireOrderRequest is the broker-dialect order shape sent on PlaceOrder.
type wireOrderRequest struct {
	UIC          int     `json:"Uic"`
	AssetType    string  `json:"AssetType"`
	Amount       int64   `json:"Amount"`
	BuySell      string  `json:"BuySell"`
	OrderType    string  `json:"OrderType"`
	OrderPrice   float64 `json:"OrderPrice,omitempty"`
	TriggerPrice float64 `json:"StopLimitPrice,omitempty"`
	OrderDuration struct {
		DurationType string `json:"DurationType"`
	} `json:"OrderDuration"`
	ManualOrder bool   `json:"ManualOrder"`
	AccountKey  string `json:"AccountKey"`
	ExternalReference string `json:"ExternalReference,omitempty"`
}

// wireOrderResponse is returned on successful placement.
type wireOrderResponse struct {
	OrderID string `json:"OrderId"`
}

// wireErrorResponse is the broker's error envelope.
type wireErrorResponse struct {
	ErrorCode    string `json:"ErrorCode"`
	Message      string `json:"Message"`
	ModelState   map[string][]string `json:"ModelState,omitempty"`
}

// wireOpenOrder is one element of the open-orders list response.
type wireOpenOrder struct {
	OrderID       string  `json:"OrderId"`
	UIC           int     `json:"Uic"`
	Symbol        string  `json:"Symbol"`
	AssetType     string  `json:"AssetType"`
	Amount        int64   `json:"Amount"`
	FilledAmount  int64   `json:"FilledAmount"`
	BuySell       string  `json:"BuySell"`
	OrderType     string  `json:"OrderType"`
	Price         float64 `json:"Price"`
	Status        string  `json:"Status"`
	AccountKey    string  `json:"AccountKey"`
	ExchangeOrderID string `json:"ExchangeOrderId"`
	LastChanged   time.Time `json:"LastChanged"`
}

type wireOpenOrdersResponse struct {
	Data []wireOpenOrder `json:"Data"`
}

// wirePosition mirrors the teacher's SaxoOpenPosition shape.
type wirePosition struct {
	Symbol        string  `json:"Symbol"`
	AssetType     string  `json:"AssetType"`
	Amount        int64   `json:"Amount"`
	OpenPrice     float64 `json:"OpenPrice"`
	CurrentPrice  float64 `json:"CurrentPrice"`
	ProfitLossOnTrade float64 `json:"ProfitLossOnTrade"`
}

type wireOpenPositionsResponse struct {
	Data []wirePosition `json:"Data"`
}

// wireHolding mirrors a settled holding line (Saxo doesn't distinguish
// holdings from positions the way Indian brokers do; the adapter maps
// long-delivery positions into domain.Holding for cross-broker parity).
type wireHolding struct {
	Symbol        string  `json:"Symbol"`
	Amount        int64   `json:"Amount"`
	OpenPrice     float64 `json:"OpenPrice"`
	CurrentPrice  float64 `json:"CurrentPrice"`
	MarketValue   float64 `json:"MarketValue"`
	ISIN          string  `json:"Isin"`
}

// wirePrice mirrors the teacher's SaxoPriceResponse.
type wirePrice struct {
	LastUpdated time.Time `json:"LastUpdated"`
	Quote       struct {
		Ask       float64 `json:"Ask"`
		Bid       float64 `json:"Bid"`
		Mid       float64 `json:"Mid"`
		PriceTypeAsk string `json:"PriceTypeAsk"`
	} `json:"Quote"`
	PriceInfo struct {
		High float64 `json:"High"`
		Low  float64 `json:"Low"`
	} `json:"PriceInfo"`
}

// wireAccountBalance mirrors the teacher's SaxoBalance.
type wireAccountBalance struct {
	CashBalance      float64 `json:"CashBalance"`
	TotalValue       float64 `json:"TotalValue"`
	MarginAvailableForTrading float64 `json:"MarginAvailableForTrading"`
	MarginUsedByCurrentPositions float64 `json:"MarginUsedByCurrentPositions"`
	Currency         string  `json:"Currency"`
	UnrealizedMarginProfitLoss float64 `json:"UnrealizedMarginProfitLoss"`
}

// wireClientInfo mirrors the teacher's SaxoClientInfo, used to resolve the
// ClientKey required for order/portfolio subscriptions.
type wireClientInfo struct {
	ClientKey string `json:"ClientKey"`
	ClientID  string `json:"ClientId"`
}

// wireTokenExtra captures the OAuth token-exchange extra fields the
// teacher's calcRefreshTokenExpiry reads; unlike the teacher, a missing
// ExpiresIn here is treated as a hard failure (Open Question #2).
type wireTokenExtra struct {
	ExpiresIn             int `json:"expires_in"`
	RefreshTokenExpiresIn int `json:"refresh_token_expires_in"`
}
