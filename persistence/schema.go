package persistence

// schema is the sqlite DDL, applied idempotently at boot and by `worldsimd
// migrate`. Column layout mirrors the Go structs field-for-field (EXPANSION
// 3.1): Vec3/Vec2XZ fields are flattened to REAL columns rather than
// serialized, so spatial range queries (listAgentsInRadius) run as plain SQL
// predicates instead of a full table scan plus in-process filter.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	pos_x REAL NOT NULL DEFAULT 0,
	pos_y REAL NOT NULL DEFAULT 0,
	pos_z REAL NOT NULL DEFAULT 0,
	target_x REAL NOT NULL DEFAULT 0,
	target_y REAL NOT NULL DEFAULT 0,
	target_z REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'idle',
	last_seen_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_owner ON agents(owner_id);
CREATE INDEX IF NOT EXISTS idx_agents_pos ON agents(pos_x, pos_z);

CREATE TABLE IF NOT EXISTS primitives (
	id TEXT PRIMARY KEY,
	owner_agent_id TEXT NOT NULL,
	owner_agent_name TEXT NOT NULL,
	shape TEXT NOT NULL,
	pos_x REAL NOT NULL,
	pos_y REAL NOT NULL,
	pos_z REAL NOT NULL,
	rot_x REAL NOT NULL DEFAULT 0,
	rot_y REAL NOT NULL DEFAULT 0,
	rot_z REAL NOT NULL DEFAULT 0,
	scale_x REAL NOT NULL,
	scale_y REAL NOT NULL,
	scale_z REAL NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_primitives_owner ON primitives(owner_agent_id);
CREATE INDEX IF NOT EXISTS idx_primitives_pos ON primitives(pos_x, pos_z);

CREATE TABLE IF NOT EXISTS credits (
	agent_id TEXT PRIMARY KEY,
	balance INTEGER NOT NULL DEFAULT 0,
	last_refill_at DATETIME
);

CREATE TABLE IF NOT EXISTS blueprint_plans (
	agent_id TEXT PRIMARY KEY,
	blueprint_name TEXT NOT NULL,
	anchor_x REAL NOT NULL,
	anchor_z REAL NOT NULL,
	all_primitives_yaml TEXT NOT NULL,
	phases_yaml TEXT NOT NULL,
	total_primitives INTEGER NOT NULL,
	placed_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	next_index INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	agent_name TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS terminal_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS directives (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	created_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS directive_votes (
	directive_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	PRIMARY KEY (directive_id, agent_id)
);

CREATE TABLE IF NOT EXISTS used_tx_hashes (
	tx_hash TEXT PRIMARY KEY,
	used_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS entry_fees (
	agent_id TEXT PRIMARY KEY,
	paid_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_memory (
	agent_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (agent_id, key)
);
`
