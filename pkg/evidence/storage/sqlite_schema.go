package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the evidence database schema.
const Schema = `
-- Decision records table
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL,

    -- Timestamps (Unix nanoseconds, UTC)
    decided_time INTEGER NOT NULL,
    recorded_time INTEGER NOT NULL,

    -- Decision summary
    context TEXT NOT NULL,
    outcome TEXT NOT NULL,
    chosen_plan_id TEXT,
    candidate_count INTEGER NOT NULL,
    survivor_count INTEGER NOT NULL,

    -- Policy provenance
    policy_version TEXT,
    policy_hash TEXT,
    policy_source TEXT,

    -- Integrity
    trace_hash TEXT NOT NULL,
    trace TEXT NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_decisions_decided_time ON decisions(decided_time);
CREATE INDEX IF NOT EXISTS idx_decisions_decision_id ON decisions(decision_id);
CREATE INDEX IF NOT EXISTS idx_decisions_context ON decisions(context);
CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(outcome);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

// recordColumns lists the decisions columns in scan order.
const recordColumns = `id, decision_id, decided_time, recorded_time,
    context, outcome, chosen_plan_id, candidate_count, survivor_count,
    policy_version, policy_hash, policy_source, trace_hash, trace`
