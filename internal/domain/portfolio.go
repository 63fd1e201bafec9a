package domain

import "github.com/shopspring/decimal"

// Position is an intraday/open position as reported by a broker.
type Position struct {
	Symbol    string
	Exchange  Exchange
	Product   Product
	Quantity  int64 // signed: positive long, negative short
	BuyQty    int64
	SellQty   int64
	BuyValue  decimal.Decimal
	SellValue decimal.Decimal
	AvgPrice  decimal.Decimal
	LastPrice decimal.Decimal
	PnL       decimal.Decimal
	PnLPct    decimal.Decimal
	DayPnL    decimal.Decimal
}

// Holding is a settled portfolio line item (T+n delivery holdings).
type Holding struct {
	Symbol        string
	Exchange      Exchange
	Quantity      int64
	AvgPrice      decimal.Decimal
	LastPrice     decimal.Decimal
	InvestedValue decimal.Decimal
	CurrentValue  decimal.Decimal
	PnL           decimal.Decimal
	PnLPct        decimal.Decimal
	ISIN          string
	PledgedQty    int64
	CollateralQty int64
	T1Qty         int64
}

// Funds is the account's cash/margin summary.
type Funds struct {
	AvailableCash   decimal.Decimal
	UsedMargin      decimal.Decimal
	AvailableMargin decimal.Decimal
	TotalBalance    decimal.Decimal
	Currency        string
	Collateral      decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	RealizedPnL     decimal.Decimal
}

// MarginEstimate is returned by CalculateMargin.
type MarginEstimate struct {
	TotalMargin   decimal.Decimal
	InitialMargin decimal.Decimal
}
