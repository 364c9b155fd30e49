package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS fills (
	id          TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	price       TEXT NOT NULL,
	fee         TEXT NOT NULL DEFAULT '0',
	filled_at   DATETIME NOT NULL,
	is_option   BOOLEAN NOT NULL DEFAULT 0,
	multiplier  INTEGER NOT NULL DEFAULT 1,
	position_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol);
CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);

CREATE TABLE IF NOT EXISTS positions (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	side           TEXT NOT NULL,
	status         TEXT NOT NULL,
	quantity       INTEGER NOT NULL,
	open_price     TEXT NOT NULL,
	close_price    TEXT,
	open_time      DATETIME NOT NULL,
	close_time     DATETIME,
	open_fee       TEXT NOT NULL DEFAULT '0',
	close_fee      TEXT NOT NULL DEFAULT '0',
	realized_pnl   TEXT NOT NULL DEFAULT '0',
	net_pnl        TEXT NOT NULL DEFAULT '0',
	holding_ns     INTEGER NOT NULL DEFAULT 0,
	open_fill_id   TEXT NOT NULL REFERENCES fills(id),
	close_fill_id  TEXT REFERENCES fills(id)
);

CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_run ON positions(run_id);

CREATE TABLE IF NOT EXISTS match_runs (
	id                TEXT PRIMARY KEY,
	mode              TEXT NOT NULL,
	ran_at            DATETIME NOT NULL,
	total_fills       INTEGER NOT NULL,
	positions_created INTEGER NOT NULL,
	closed_count      INTEGER NOT NULL,
	open_count        INTEGER NOT NULL,
	symbols_processed INTEGER NOT NULL,
	warnings          TEXT NOT NULL DEFAULT '[]'
);
`
