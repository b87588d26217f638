// CLAUDE:SUMMARY Async tool-call audit trail backed by SQLite with batching, queries, retention cleanup.
// Package observability persists a tool-call audit trail.
//
// Writes are buffered and flushed in batches so a slow disk never sits on the
// request path. The trail answers "which tools ran, how long, what failed"
// after the fact; it is not a metrics system.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/archiviste/dbopen"
	"github.com/hazyhaar/archiviste/idgen"
	"github.com/hazyhaar/archiviste/kit"
)

// CallEntry is one recorded tool invocation.
type CallEntry struct {
	CallID     string
	Timestamp  time.Time
	Tool       string
	Transport  string
	RequestID  string
	DurationMs int64
	ErrorCode  string
	Status     string // "success" or "error"
}

// CallFilter controls Query results.
type CallFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Tool      string
	Status    string
	Limit     int // default 100
	Offset    int
}

// ToolStat aggregates the trail per tool.
type ToolStat struct {
	Tool          string
	Calls         int64
	Errors        int64
	AvgDurationMs float64
}

// Recorder persists tool-call entries asynchronously.
type Recorder struct {
	db    *sql.DB
	newID idgen.Generator
	ch    chan *CallEntry
	stop  chan struct{}
	done  chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithIDGenerator sets a custom ID generator for call IDs.
func WithIDGenerator(gen idgen.Generator) RecorderOption {
	return func(r *Recorder) { r.newID = gen }
}

// NewRecorder creates an async recorder. Recommended bufferSize: 1000.
// The schema must already be applied, see Init.
func NewRecorder(db *sql.DB, bufferSize int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		db:    db,
		newID: idgen.Prefixed("call_", idgen.Default),
		ch:    make(chan *CallEntry, bufferSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	go r.flushLoop()
	return r
}

// Record queues one tool call for persistence. Never blocks: when the buffer
// is full the entry is dropped with a log line, the caller's request must not
// wait on the audit trail.
func (r *Recorder) Record(ctx context.Context, tool string, durationMS int64, errCode string) {
	entry := &CallEntry{
		CallID:     r.newID(),
		Timestamp:  time.Now(),
		Tool:       tool,
		Transport:  kit.GetTransport(ctx),
		RequestID:  kit.GetRequestID(ctx),
		DurationMs: durationMS,
		ErrorCode:  errCode,
		Status:     "success",
	}
	if errCode != "" {
		entry.Status = "error"
	}
	select {
	case r.ch <- entry:
	default:
		slog.Warn("observability: audit buffer full, entry dropped", "tool", tool)
	}
}

// Log inserts an entry synchronously. Tests and backfills use it; the request
// path goes through Record.
func (r *Recorder) Log(ctx context.Context, entry *CallEntry) error {
	if entry.CallID == "" {
		entry.CallID = r.newID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Status == "" {
		entry.Status = "success"
		if entry.ErrorCode != "" {
			entry.Status = "error"
		}
	}
	return r.insert(ctx, entry)
}

// Query retrieves entries matching the filter, newest first.
func (r *Recorder) Query(ctx context.Context, f *CallFilter) ([]*CallEntry, error) {
	q := `SELECT call_id, timestamp, tool, transport, request_id,
		duration_ms, error_code, status
		FROM tool_calls WHERE 1=1`
	var args []any

	if f.StartTime != nil {
		q += " AND timestamp >= ?"
		args = append(args, f.StartTime.Unix())
	}
	if f.EndTime != nil {
		q += " AND timestamp <= ?"
		args = append(args, f.EndTime.Unix())
	}
	if f.Tool != "" {
		q += " AND tool = ?"
		args = append(args, f.Tool)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	q += " ORDER BY timestamp DESC"

	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " LIMIT ?"
	args = append(args, limit)
	if f.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	var entries []*CallEntry
	for rows.Next() {
		var e CallEntry
		var ts int64
		var transport, requestID, errorCode sql.NullString
		if err := rows.Scan(&e.CallID, &ts, &e.Tool, &transport, &requestID,
			&e.DurationMs, &errorCode, &e.Status); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.Transport = transport.String
		e.RequestID = requestID.String
		e.ErrorCode = errorCode.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Stats aggregates the trail per tool, busiest first.
func (r *Recorder) Stats(ctx context.Context) ([]ToolStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tool, COUNT(*),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
			AVG(duration_ms)
		FROM tool_calls GROUP BY tool ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("tool stats: %w", err)
	}
	defer rows.Close()

	var stats []ToolStat
	for rows.Next() {
		var s ToolStat
		if err := rows.Scan(&s.Tool, &s.Calls, &s.Errors, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scan tool stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than retentionDays.
func (r *Recorder) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	result, err := dbopen.Exec(ctx, r.db, "DELETE FROM tool_calls WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup tool calls: %w", err)
	}
	return result.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine.
func (r *Recorder) Close() error {
	close(r.stop)
	<-r.done
	return nil
}

func (r *Recorder) flushLoop() {
	defer close(r.done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	batch := make([]*CallEntry, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := dbopen.RunTx(ctx, r.db, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, insertSQL)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, e := range batch {
				if _, err := stmt.ExecContext(ctx, insertArgs(e)...); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			slog.Error("observability: audit flush failed", "error", err, "batch", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-r.stop:
			// drain channel
			for {
				select {
				case e := <-r.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-r.ch:
			batch = append(batch, e)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

const insertSQL = `INSERT INTO tool_calls
	(call_id, timestamp, tool, transport, request_id, duration_ms, error_code, status)
	VALUES (?,?,?,?,?,?,?,?)`

func insertArgs(e *CallEntry) []any {
	return []any{e.CallID, e.Timestamp.Unix(), e.Tool, e.Transport, e.RequestID,
		e.DurationMs, e.ErrorCode, e.Status}
}

func (r *Recorder) insert(ctx context.Context, e *CallEntry) error {
	_, err := dbopen.Exec(ctx, r.db, insertSQL, insertArgs(e)...)
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("tool_calls table missing, call observability.Init first: %w", err)
	}
	return err
}
