package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	session_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	requested INTEGER NOT NULL,
	executed INTEGER NOT NULL,
	price REAL NOT NULL,
	date DATETIME NOT NULL,
	timestamp DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	session_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	cash REAL NOT NULL,
	total_value REAL NOT NULL,
	daily_return REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	session_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	tickers TEXT NOT NULL,
	strategies TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	initial_capital REAL NOT NULL,
	final_value REAL NOT NULL,
	total_return REAL NOT NULL,
	created DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, date);
`
