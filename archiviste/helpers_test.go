package archiviste

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

// nopLimiter admits everything; rate limiting has its own tests.
type nopLimiter struct{}

func (nopLimiter) Acquire(context.Context, string) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService wires a Service against a fake upstream. Handlers receive
// the raw path: archived URLs embed "//", so no ServeMux path cleaning.
func newTestService(t *testing.T, h http.HandlerFunc) *Service {
	t.Helper()
	upstream := httptest.NewServer(h)
	t.Cleanup(upstream.Close)

	logger := discardLogger()
	client := wbclient.New(wbclient.Config{
		AvailabilityURL: upstream.URL + "/available",
		CDXURL:          upstream.URL + "/cdx",
		WebURL:          upstream.URL + "/web",
		MaxRetries:      1,
		Sleep:           func(context.Context, time.Duration) error { return nil },
	}, nopLimiter{}, logger)

	store := cache.New(filepath.Join(t.TempDir(), "cache.json"))
	svc, err := New(Config{}, logger, WithClient(client), WithCache(store))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// cdxBody builds a CDX JSON payload with the default header row.
func cdxBody(t *testing.T, rows [][]string) []byte {
	t.Helper()
	all := append([][]string{{"timestamp", "original", "mimetype", "statuscode", "digest", "length"}}, rows...)
	data, err := json.Marshal(all)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// emptyAvailability is the "no capture" availability payload.
func emptyAvailability(t *testing.T, w http.ResponseWriter, url string) {
	writeJSON(t, w, map[string]any{"url": url, "archived_snapshots": map[string]any{}})
}
