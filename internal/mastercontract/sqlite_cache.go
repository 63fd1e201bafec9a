// Package mastercontract provides reference implementations of the
// Master-Contract Cache port (spec §4.I): a local snapshot backed by
// sqlite, and a loader that refreshes that snapshot from S3. Both are
// reference external collaborators — the core only calls Lookup.
package mastercontract

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/ports"
)

// SQLiteCache is a local snapshot of symbol -> instrument mappings.
type SQLiteCache struct {
	db *sql.DB
}

var _ ports.MasterContractCache = (*SQLiteCache)(nil)

// OpenSQLiteCache opens (and migrates, if needed) the snapshot database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mastercontract: open %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS instruments (
	broker_id     TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	exchange      TEXT NOT NULL,
	instrument_id TEXT NOT NULL,
	lot_size      INTEGER NOT NULL,
	tick_size     TEXT NOT NULL,
	PRIMARY KEY (broker_id, symbol, exchange)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("mastercontract: migrate: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *SQLiteCache) Close() error { return c.db.Close() }

// Lookup implements ports.MasterContractCache.
func (c *SQLiteCache) Lookup(ctx context.Context, brokerID, symbol string, exchange domain.Exchange) (domain.Instrument, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT instrument_id, lot_size, tick_size FROM instruments WHERE broker_id = ? AND symbol = ? AND exchange = ?`,
		brokerID, symbol, string(exchange))

	var inst domain.Instrument
	inst.Symbol = symbol
	inst.Exchange = exchange
	if err := row.Scan(&inst.InstrumentID, &inst.LotSize, &inst.TickSize); err != nil {
		if err == sql.ErrNoRows {
			return domain.Instrument{}, false, nil
		}
		return domain.Instrument{}, false, fmt.Errorf("mastercontract: lookup: %w", err)
	}
	return inst, true, nil
}

// Upsert writes or replaces one instrument mapping, used by the snapshot
// refresh loader (see s3_loader.go) after it parses a downloaded master
// contract file.
func (c *SQLiteCache) Upsert(ctx context.Context, brokerID string, inst domain.Instrument) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO instruments (broker_id, symbol, exchange, instrument_id, lot_size, tick_size)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(broker_id, symbol, exchange) DO UPDATE SET
			instrument_id = excluded.instrument_id,
			lot_size = excluded.lot_size,
			tick_size = excluded.tick_size`,
		brokerID, inst.Symbol, string(inst.Exchange), inst.InstrumentID, inst.LotSize, inst.TickSize)
	if err != nil {
		return fmt.Errorf("mastercontract: upsert: %w", err)
	}
	return nil
}
