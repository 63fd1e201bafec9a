package papertrading

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/orchestrator"
	"github.com/fincept/gateway/internal/plugin"
)

type fakeQuoteSource struct {
	cmp orchestrator.QuoteComparison
}

func (f *fakeQuoteSource) CompareQuotes(ctx context.Context, symbol string, exchange domain.Exchange) orchestrator.QuoteComparison {
	return f.cmp
}

func TestSimulator_Fill_BuyFillsAtBestAsk(t *testing.T) {
	source := &fakeQuoteSource{cmp: orchestrator.QuoteComparison{
		Data: map[string]domain.Quote{
			"saxoeu": {Ask: decimal.NewFromFloat(101.0), Bid: decimal.NewFromFloat(100.0)},
		},
	}}
	sim := NewSimulator(source)

	price, err := sim.Fill(context.Background(), domain.OrderInput{Symbol: "AAPL", Side: domain.SideBuy})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(101.0).Equal(price))
}

func TestSimulator_Fill_SellFillsAtBestBid(t *testing.T) {
	source := &fakeQuoteSource{cmp: orchestrator.QuoteComparison{
		Data: map[string]domain.Quote{
			"saxoeu": {Ask: decimal.NewFromFloat(101.0), Bid: decimal.NewFromFloat(100.0)},
		},
	}}
	sim := NewSimulator(source)

	price, err := sim.Fill(context.Background(), domain.OrderInput{Symbol: "AAPL", Side: domain.SideSell})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(100.0).Equal(price))
}

func TestSimulator_Fill_NoQuoteDataErrors(t *testing.T) {
	source := &fakeQuoteSource{cmp: orchestrator.QuoteComparison{Data: map[string]domain.Quote{}}}
	sim := NewSimulator(source)

	_, err := sim.Fill(context.Background(), domain.OrderInput{Symbol: "AAPL", Side: domain.SideBuy})
	assert.Error(t, err)
}

func TestPlugin_Run_CancelsWithSyntheticPaperResult(t *testing.T) {
	source := &fakeQuoteSource{cmp: orchestrator.QuoteComparison{
		Data: map[string]domain.Quote{
			"saxoeu": {Ask: decimal.NewFromFloat(101.0), Bid: decimal.NewFromFloat(100.0)},
		},
	}}
	sim := NewSimulator(source)
	pl := Plugin(sim)

	order := domain.OrderInput{Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10}
	pc := &plugin.Context{HookType: domain.HookPreOrder, Order: &order}

	require.NoError(t, pl.Run(context.Background(), pc))
	require.True(t, pc.Cancelled())
	res, ok := pc.SyntheticResult()
	require.True(t, ok)
	assert.True(t, res.Success)
	assert.Contains(t, res.OrderID, "paper-AAPL")
}
