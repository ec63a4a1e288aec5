package storage

const schema = `
CREATE TABLE IF NOT EXISTS metro_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT,
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL,
	affected_stations TEXT NOT NULL DEFAULT '{}',
	extended_closing TEXT,
	active INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_metro_events_processed ON metro_events(processed);

CREATE TABLE IF NOT EXISTS station_status (
	station_id TEXT PRIMARY KEY,
	status_type_id INTEGER NOT NULL,
	description TEXT,
	message TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS station_status_backup (
	event_id INTEGER NOT NULL,
	station_id TEXT NOT NULL,
	prev_status_type_id INTEGER NOT NULL,
	prev_description TEXT,
	prev_message TEXT,
	PRIMARY KEY (event_id, station_id)
);

CREATE TABLE IF NOT EXISTS status_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	station_id TEXT NOT NULL,
	status_type_id INTEGER NOT NULL,
	description TEXT,
	message TEXT,
	changed_at TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_status_history_processed ON status_history(processed);
`
