package usequity

import "github.com/fincept/gateway/internal/domain"

var sideToWire = map[domain.Side]string{
	domain.SideBuy:  "buy",
	domain.SideSell: "sell",
}

var wireToSide = map[string]domain.Side{
	"buy":  domain.SideBuy,
	"sell": domain.SideSell,
}

func sideToWireStr(s domain.Side) string {
	if v, ok := sideToWire[s]; ok {
		return v
	}
	return "buy"
}

func wireToSideVal(s string) domain.Side {
	if v, ok := wireToSide[s]; ok {
		return v
	}
	return domain.SideBuy
}

var orderTypeToWire = map[domain.OrderType]string{
	domain.OrderTypeMarket:    "market",
	domain.OrderTypeLimit:     "limit",
	domain.OrderTypeStop:      "stop",
	domain.OrderTypeStopLimit: "stop_limit",
}

var wireToOrderType = map[string]domain.OrderType{
	"market":     domain.OrderTypeMarket,
	"limit":      domain.OrderTypeLimit,
	"stop":       domain.OrderTypeStop,
	"stop_limit": domain.OrderTypeStopLimit,
}

func orderTypeToWireStr(t domain.OrderType) string {
	if v, ok := orderTypeToWire[domain.NormalizeOrderType(t)]; ok {
		return v
	}
	return "market"
}

func wireToOrderTypeVal(s string) domain.OrderType {
	if v, ok := wireToOrderType[s]; ok {
		return v
	}
	return domain.OrderTypeMarket
}

var validityToWire = map[domain.Validity]string{
	domain.ValidityDay: "day",
	domain.ValidityIOC: "ioc",
	domain.ValidityGTC: "gtc",
	domain.ValidityFOK: "fok",
	domain.ValidityOPG: "opg",
	domain.ValidityCLS: "cls",
}

func validityToWireStr(v domain.Validity) string {
	if s, ok := validityToWire[v]; ok {
		return s
	}
	return "day"
}

var wireStatusToCanonical = map[string]domain.OrderStatus{
	"new":              domain.StatusPending,
	"accepted":         domain.StatusOpen,
	"partially_filled": domain.StatusPartiallyFilled,
	"filled":           domain.StatusFilled,
	"canceled":         domain.StatusCancelled,
	"rejected":         domain.StatusRejected,
	"expired":          domain.StatusExpired,
}

func wireToStatusVal(s string) domain.OrderStatus {
	if v, ok := wireStatusToCanonical[s]; ok {
		return v
	}
	return domain.StatusPending
}

// errorCodeTable maps the broker's numeric error codes onto canonical
// apperrors.Kind strings; codes follow the teacher-adjacent broker family
// convention of 4xx-range application codes distinct from the HTTP status.
var errorCodeTable = map[int]string{
	40310000: "InsufficientFunds",
	40010001: "InvalidOrder",
	42210000: "MarketClosed",
	40410000: "InstrumentNotFound",
	40110000: "Unauthorized",
	42910000: "TooManyRequests",
}
