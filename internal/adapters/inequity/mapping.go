package inequity

import "github.com/fincept/gateway/internal/domain"

func sideToWire(s domain.Side) string {
	if s == domain.SideSell {
		return "SELL"
	}
	return "BUY"
}

func wireToSide(s string) domain.Side {
	if s == "SELL" {
		return domain.SideSell
	}
	return domain.SideBuy
}

func orderTypeToWire(t domain.OrderType) string {
	switch domain.NormalizeOrderType(t) {
	case domain.OrderTypeLimit:
		return "LIMIT"
	case domain.OrderTypeStop:
		return "SL-M"
	case domain.OrderTypeStopLimit:
		return "SL"
	default:
		return "MARKET"
	}
}

func wireToOrderType(t string) domain.OrderType {
	switch t {
	case "LIMIT":
		return domain.OrderTypeLimit
	case "SL-M":
		return domain.OrderTypeStop
	case "SL":
		return domain.OrderTypeStopLimit
	default:
		return domain.OrderTypeMarket
	}
}

func productToWire(p domain.Product) string {
	switch p {
	case domain.ProductMIS:
		return "MIS"
	case domain.ProductNRML:
		return "NRML"
	default:
		return "CNC"
	}
}

func wireToProduct(p string) domain.Product {
	switch p {
	case "MIS":
		return domain.ProductMIS
	case "NRML":
		return domain.ProductNRML
	default:
		return domain.ProductCNC
	}
}

func validityToWire(v domain.Validity) string {
	if v == domain.ValidityIOC {
		return "IOC"
	}
	return "DAY"
}

func wireToStatus(s string) domain.OrderStatus {
	switch s {
	case "OPEN", "TRIGGER PENDING":
		return domain.StatusOpen
	case "OPEN PENDING", "VALIDATION PENDING", "PUT ORDER REQ RECEIVED":
		return domain.StatusPending
	case "COMPLETE":
		return domain.StatusFilled
	case "CANCELLED", "CANCELLED AMO":
		return domain.StatusCancelled
	case "REJECTED":
		return domain.StatusRejected
	case "EXPIRED":
		return domain.StatusExpired
	default:
		return domain.StatusPending
	}
}

// errorCodeTable maps the broker's error_type strings onto canonical
// apperrors.Kind values; the values are plain Kind strings so the adapter's
// error path can construct apperrors.Kind(...) directly without a second
// translation table.
var errorCodeTable = map[string]string{
	"TokenException":        "InvalidToken",
	"GeneralException":      "Internal",
	"OrderException":        "Rejected",
	"InputException":        "InvalidInput",
	"DataException":         "NetworkError",
	"NetworkException":      "NetworkError",
	"PermissionException":   "Unauthorized",
	"MarginException":       "InsufficientFunds",
	"HoldingException":      "Rejected",
	"InstrumentException":   "InstrumentNotFound",
	"MarketClosedException": "MarketClosed",
	"RateLimitException":    "TooManyRequests",
}
