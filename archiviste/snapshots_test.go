package archiviste

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

func TestListSnapshots(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("collapse"); got != "timestamp:8" {
			t.Errorf("collapse: got %q, want timestamp:8", got)
		}
		if got := q.Get("from"); got != "20190101000000" {
			t.Errorf("from: got %q", got)
		}
		if got := q.Get("filter"); got != "statuscode:200" {
			t.Errorf("default status filter: got %q", got)
		}
		w.Write(cdxBody(t, [][]string{
			{"20190105000000", "http://example.com/", "text/html", "200", "AAA", "100"},
			{"20190212000000", "http://example.com/", "text/html", "200", "BBB", "150"},
			{"20190320000000", "http://example.com/", "text/html", "200", "CCC", "120"},
		}))
	})

	list, err := svc.ListSnapshots(context.Background(), "example.com", ListOptions{
		From:     "2019-01-01",
		Collapse: "daily",
	})
	if err != nil {
		t.Fatal(err)
	}
	if list.TotalSnapshots != 3 {
		t.Fatalf("total: got %d", list.TotalSnapshots)
	}
	if list.DateRange.First != "20190105000000" || list.DateRange.Last != "20190320000000" {
		t.Fatalf("date range: %+v", list.DateRange)
	}
	if got := list.Snapshots[1].Length; got != 150 {
		t.Fatalf("length: got %d", got)
	}
}

func TestListSnapshots_StatusFilter(t *testing.T) {
	// WHAT: an explicit status narrows the filter; "any" removes it so
	// redirect and error captures come back too.
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch got := r.URL.Query().Get("filter"); got {
		case "statuscode:301":
			w.Write(cdxBody(t, [][]string{
				{"20190320000000", "http://example.com/old", "text/html", "301", "CCC", "0"},
			}))
		case "":
			w.Write(cdxBody(t, [][]string{
				{"20190105000000", "http://example.com/", "text/html", "200", "AAA", "100"},
				{"20190320000000", "http://example.com/old", "text/html", "301", "CCC", "0"},
			}))
		default:
			t.Errorf("filter: got %q", got)
		}
	})

	list, err := svc.ListSnapshots(context.Background(), "example.com", ListOptions{StatusFilter: "301"})
	if err != nil {
		t.Fatal(err)
	}
	if list.TotalSnapshots != 1 || list.Snapshots[0].StatusCode != "301" {
		t.Fatalf("filtered list: %+v", list.Snapshots)
	}

	list, err = svc.ListSnapshots(context.Background(), "example.com", ListOptions{StatusFilter: "any"})
	if err != nil {
		t.Fatal(err)
	}
	if list.TotalSnapshots != 2 {
		t.Fatalf("unfiltered total: got %d, want 2", list.TotalSnapshots)
	}
}

func TestListSnapshots_BadCollapse(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected")
	})

	_, err := svc.ListSnapshots(context.Background(), "example.com", ListOptions{Collapse: "hourly"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestFindClosestSnapshot_SameDay(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") != "20200615000000" || q.Get("to") != "20200615235959" {
			t.Errorf("window: from=%q to=%q", q.Get("from"), q.Get("to"))
		}
		w.Write(cdxBody(t, [][]string{
			{"20200615060000", "http://example.com/", "text/html", "200", "AAA", "1"},
			{"20200615110000", "http://example.com/", "text/html", "200", "BBB", "1"},
			{"20200615230000", "http://example.com/", "text/html", "200", "CCC", "1"},
		}))
	})

	snap, err := svc.FindClosestSnapshot(context.Background(), "example.com", "20200615120000")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Timestamp != "20200615110000" {
		t.Fatalf("closest: got %s, want 20200615110000", snap.Timestamp)
	}
}

func TestFindClosestSnapshot_WidensToYear(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") == "20200615000000" {
			// Empty day window forces the year-wide retry.
			w.Write(cdxBody(t, nil))
			return
		}
		if q.Get("from") != "20200101000000" || q.Get("to") != "20201231235959" {
			t.Errorf("year window: from=%q to=%q", q.Get("from"), q.Get("to"))
		}
		if q.Get("collapse") != "timestamp:6" {
			t.Errorf("collapse: got %q", q.Get("collapse"))
		}
		w.Write(cdxBody(t, [][]string{
			{"20200301000000", "http://example.com/", "text/html", "200", "AAA", "1"},
			{"20200901000000", "http://example.com/", "text/html", "200", "BBB", "1"},
		}))
	})

	snap, err := svc.FindClosestSnapshot(context.Background(), "example.com", "20200615120000")
	if err != nil {
		t.Fatal(err)
	}
	// Numeric distance: |20200901000000-20200615120000| < |20200615120000-20200301000000|.
	if snap.Timestamp != "20200901000000" {
		t.Fatalf("closest: got %s, want 20200901000000", snap.Timestamp)
	}
}

func TestFindClosestSnapshot_NothingInYear(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(cdxBody(t, nil))
	})

	_, err := svc.FindClosestSnapshot(context.Background(), "example.com", "20200615120000")
	if !errors.Is(err, wbclient.ErrNotArchived) {
		t.Fatalf("want ErrNotArchived, got %v", err)
	}
}
