package ledger

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ledger_blocks (
	block_index BIGINT PRIMARY KEY,
	block_timestamp TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	previous_hash TEXT NOT NULL,
	nonce BIGINT NOT NULL DEFAULT 0,
	hash TEXT NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS ledger_events (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	actor TEXT NOT NULL,
	event_type TEXT NOT NULL,
	from_status TEXT,
	to_status TEXT,
	note TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	block_index BIGINT NOT NULL UNIQUE REFERENCES ledger_blocks (block_index),
	block_hash TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_events_entity ON ledger_events (entity_type, entity_id, block_index)`,
}

const blockColumns = `block_index, block_timestamp, event_type, payload, previous_hash, nonce, hash`
