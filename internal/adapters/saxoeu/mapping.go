package saxoeu

import "github.com/fincept/gateway/internal/domain"

// Mapping tables are total (§4.A): every canonical value has a defined
// broker string, every recognized broker string maps back to a canonical
// value, and unrecognized broker strings fall back to a documented
// default. These tables are the primary unit of adapter testing.

var sideToWire = map[domain.Side]string{
	domain.SideBuy:  "Buy",
	domain.SideSell: "Sell",
}

var wireToSide = map[string]domain.Side{
	"Buy":  domain.SideBuy,
	"Sell": domain.SideSell,
}

func sideToWireStr(s domain.Side) string {
	if v, ok := sideToWire[s]; ok {
		return v
	}
	return "Buy"
}

func wireToSideVal(s string) domain.Side {
	if v, ok := wireToSide[s]; ok {
		return v
	}
	return domain.SideBuy
}

var orderTypeToWire = map[domain.OrderType]string{
	domain.OrderTypeMarket:            "Market",
	domain.OrderTypeLimit:             "Limit",
	domain.OrderTypeStop:              "Stop",
	domain.OrderTypeStopLimit:         "StopLimit",
	domain.OrderTypeStopLossMarket:    "StopIfTraded",
	domain.OrderTypeTrailingStop:      "TrailingStop",
	domain.OrderTypeTrailingStopLimit: "TrailingStopLimit",
}

var wireToOrderType = map[string]domain.OrderType{
	"Market":            domain.OrderTypeMarket,
	"Limit":             domain.OrderTypeLimit,
	"Stop":              domain.OrderTypeStop,
	"StopLimit":         domain.OrderTypeStopLimit,
	"StopIfTraded":      domain.OrderTypeStopLossMarket,
	"TrailingStop":      domain.OrderTypeTrailingStop,
	"TrailingStopLimit": domain.OrderTypeTrailingStopLimit,
}

func orderTypeToWireStr(t domain.OrderType) string {
	if v, ok := orderTypeToWire[domain.NormalizeOrderType(t)]; ok {
		return v
	}
	return "Market"
}

func wireToOrderTypeVal(s string) domain.OrderType {
	if v, ok := wireToOrderType[s]; ok {
		return v
	}
	return domain.OrderTypeMarket
}

var validityToWire = map[domain.Validity]string{
	domain.ValidityDay: "DayOrder",
	domain.ValidityIOC: "ImmediateOrCancel",
	domain.ValidityGTC: "GoodTillCancel",
	domain.ValidityGTD: "GoodTillDate",
	domain.ValidityFOK: "FillOrKill",
}

func validityToWireStr(v domain.Validity) string {
	if s, ok := validityToWire[v]; ok {
		return s
	}
	return "DayOrder"
}

var wireStatusToCanonical = map[string]domain.OrderStatus{
	"Working":         domain.StatusOpen,
	"Placed":          domain.StatusPending,
	"PartiallyFilled": domain.StatusPartiallyFilled,
	"Filled":          domain.StatusFilled,
	"Cancelled":       domain.StatusCancelled,
	"Rejected":        domain.StatusRejected,
	"Expired":         domain.StatusExpired,
}

func wireToStatusVal(s string) domain.OrderStatus {
	if v, ok := wireStatusToCanonical[s]; ok {
		return v
	}
	return domain.StatusPending
}

var errorCodeTable = map[string]string{
	"OrderRejected.InsufficientFunds": "InsufficientFunds",
	"OrderRejected.InvalidOrder":      "InvalidOrder",
	"OrderRejected.MarketClosed":      "MarketClosed",
	"InstrumentNotFound":              "InstrumentNotFound",
	"NotAuthorized":                   "Unauthorized",
	"TokenExpired":                    "TokenExpired",
	"TooManyRequests":                 "TooManyRequests",
}
