// CLAUDE:SUMMARY DDL for the tool-call audit table.
package observability

import "database/sql"

// Schema is the complete DDL for the audit tables. Call Init(db) to apply it,
// or embed the constant in your own schema management.
const Schema = `
CREATE TABLE IF NOT EXISTS tool_calls (
    call_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    tool TEXT NOT NULL,
    transport TEXT,
    request_id TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    error_code TEXT,
    status TEXT NOT NULL DEFAULT 'success',
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_tool_time
    ON tool_calls(tool, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_tool_calls_timestamp
    ON tool_calls(timestamp DESC);
`

// Init applies the schema.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
