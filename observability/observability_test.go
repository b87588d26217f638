package observability

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/archiviste/dbopen"
	"github.com/hazyhaar/archiviste/kit"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	r := NewRecorder(db, 16)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestLog_QueryRoundTrip(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	err := r.Log(ctx, &CallEntry{
		Tool:       "archiviste_check_availability",
		Transport:  "stdio",
		DurationMs: 42,
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := r.Query(ctx, &CallFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Tool != "archiviste_check_availability" {
		t.Fatalf("tool: got %q", e.Tool)
	}
	if e.Status != "success" {
		t.Fatalf("status: got %q, want success", e.Status)
	}
	if e.CallID == "" {
		t.Fatal("call id not filled")
	}
	if e.DurationMs != 42 {
		t.Fatalf("duration: got %d", e.DurationMs)
	}
}

func TestLog_ErrorCodeSetsStatus(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	if err := r.Log(ctx, &CallEntry{Tool: "archiviste_get_content", ErrorCode: "not_archived"}); err != nil {
		t.Fatal(err)
	}

	entries, err := r.Query(ctx, &CallFilter{Status: "error"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("error entries: got %d, want 1", len(entries))
	}
	if entries[0].ErrorCode != "not_archived" {
		t.Fatalf("error_code: got %q", entries[0].ErrorCode)
	}
}

func TestRecord_FlushesOnClose(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	r := NewRecorder(db, 16)

	ctx := kit.WithTransport(context.Background(), "http")
	ctx = kit.WithRequestID(ctx, "req_123")
	r.Record(ctx, "archiviste_list_snapshots", 7, "")
	r.Record(ctx, "archiviste_list_snapshots", 9, "upstream_error")

	// Close drains the buffer, so both entries must be visible afterwards.
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := r.Query(context.Background(), &CallFilter{Tool: "archiviste_list_snapshots"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Transport != "http" {
			t.Fatalf("transport: got %q", e.Transport)
		}
		if e.RequestID != "req_123" {
			t.Fatalf("request_id: got %q", e.RequestID)
		}
	}
}

func TestQuery_FilterByTool(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	for _, tool := range []string{"a", "a", "b"} {
		if err := r.Log(ctx, &CallEntry{Tool: tool}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := r.Query(ctx, &CallFilter{Tool: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("filtered entries: got %d, want 2", len(entries))
	}
}

func TestStats(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	calls := []CallEntry{
		{Tool: "a", DurationMs: 10},
		{Tool: "a", DurationMs: 30, ErrorCode: "rate_limited"},
		{Tool: "b", DurationMs: 5},
	}
	for i := range calls {
		if err := r.Log(ctx, &calls[i]); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats: got %d tools, want 2", len(stats))
	}
	if stats[0].Tool != "a" || stats[0].Calls != 2 || stats[0].Errors != 1 {
		t.Fatalf("stats[0]: %+v", stats[0])
	}
	if stats[0].AvgDurationMs != 20 {
		t.Fatalf("avg duration: got %v, want 20", stats[0].AvgDurationMs)
	}
}

func TestCleanup_RemovesOldEntries(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	old := &CallEntry{Tool: "a", Timestamp: time.Now().AddDate(0, 0, -60)}
	fresh := &CallEntry{Tool: "a"}
	if err := r.Log(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := r.Log(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	deleted, err := r.Cleanup(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("deleted: got %d, want 1", deleted)
	}

	entries, err := r.Query(ctx, &CallFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("remaining entries: got %d, want 1", len(entries))
	}
}
