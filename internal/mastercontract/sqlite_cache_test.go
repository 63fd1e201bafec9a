package mastercontract

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincept/gateway/internal/domain"
)

func openTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master.db")
	c, err := OpenSQLiteCache(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLiteCache_Lookup_MissReturnsFalse(t *testing.T) {
	c := openTestCache(t)

	_, found, err := c.Lookup(context.Background(), "saxoeu", "AAPL", domain.Exchange("NASDAQ"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteCache_UpsertThenLookup_RoundTrips(t *testing.T) {
	c := openTestCache(t)

	inst := domain.Instrument{
		Symbol:       "AAPL",
		Exchange:     domain.Exchange("NASDAQ"),
		InstrumentID: "211",
		LotSize:      1,
		TickSize:     "0.01",
	}
	require.NoError(t, c.Upsert(context.Background(), "saxoeu", inst))

	got, found, err := c.Lookup(context.Background(), "saxoeu", "AAPL", domain.Exchange("NASDAQ"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "211", got.InstrumentID)
	assert.Equal(t, int64(1), got.LotSize)
	assert.Equal(t, "0.01", got.TickSize)
}

func TestSQLiteCache_Upsert_OverwritesOnConflict(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, "saxoeu", domain.Instrument{Symbol: "AAPL", Exchange: domain.Exchange("NASDAQ"), InstrumentID: "1", LotSize: 1, TickSize: "0.01"}))
	require.NoError(t, c.Upsert(ctx, "saxoeu", domain.Instrument{Symbol: "AAPL", Exchange: domain.Exchange("NASDAQ"), InstrumentID: "2", LotSize: 5, TickSize: "0.05"}))

	got, found, err := c.Lookup(ctx, "saxoeu", "AAPL", domain.Exchange("NASDAQ"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2", got.InstrumentID)
	assert.Equal(t, int64(5), got.LotSize)
}

func TestSQLiteCache_Lookup_IsolatesByBrokerID(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, "saxoeu", domain.Instrument{Symbol: "AAPL", Exchange: domain.Exchange("NASDAQ"), InstrumentID: "1", LotSize: 1, TickSize: "0.01"}))

	_, found, err := c.Lookup(ctx, "usequity", "AAPL", domain.Exchange("NASDAQ"))
	require.NoError(t, err)
	assert.False(t, found)
}
