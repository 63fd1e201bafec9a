package saxoeu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fincept/gateway/internal/domain"
)

func TestSideToWireStr_RoundTripsKnownValues(t *testing.T) {
	for side, wire := range sideToWire {
		assert.Equal(t, wire, sideToWireStr(side))
		assert.Equal(t, side, wireToSideVal(wire))
	}
}

func TestSideToWireStr_UnknownFallsBackToBuy(t *testing.T) {
	assert.Equal(t, "Buy", sideToWireStr(domain.Side("bogus")))
}

func TestWireToSideVal_UnknownFallsBackToBuy(t *testing.T) {
	assert.Equal(t, domain.SideBuy, wireToSideVal("bogus"))
}

func TestOrderTypeToWireStr_RoundTripsKnownValues(t *testing.T) {
	for ot, wire := range orderTypeToWire {
		assert.Equal(t, wire, orderTypeToWireStr(ot))
		assert.Equal(t, ot, wireToOrderTypeVal(wire))
	}
}

func TestOrderTypeToWireStr_UnknownFallsBackToMarket(t *testing.T) {
	assert.Equal(t, "Market", orderTypeToWireStr(domain.OrderType("bogus")))
}

func TestWireToOrderTypeVal_UnknownFallsBackToMarket(t *testing.T) {
	assert.Equal(t, domain.OrderTypeMarket, wireToOrderTypeVal("bogus"))
}

func TestValidityToWireStr_RoundTripsKnownValues(t *testing.T) {
	for v, wire := range validityToWire {
		assert.Equal(t, wire, validityToWireStr(v))
	}
}

func TestValidityToWireStr_UnknownFallsBackToDayOrder(t *testing.T) {
	assert.Equal(t, "DayOrder", validityToWireStr(domain.Validity("bogus")))
}

func TestWireToStatusVal_RoundTripsKnownValues(t *testing.T) {
	for wire, status := range wireStatusToCanonical {
		assert.Equal(t, status, wireToStatusVal(wire))
	}
}

func TestWireToStatusVal_UnknownFallsBackToPending(t *testing.T) {
	assert.Equal(t, domain.StatusPending, wireToStatusVal("bogus"))
}

func TestErrorCodeTable_ContainsExpectedCanonicalCodes(t *testing.T) {
	assert.Equal(t, "InsufficientFunds", errorCodeTable["OrderRejected.InsufficientFunds"])
	assert.Equal(t, "TokenExpired", errorCodeTable["TokenExpired"])
	assert.Equal(t, "TooManyRequests", errorCodeTable["TooManyRequests"])
}
