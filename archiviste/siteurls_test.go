package archiviste

import (
	"context"
	"net/http"
	"testing"
)

func siteRows() [][]string {
	return [][]string{
		{"20150101000000", "http://example.com/", "text/html", "200", "A1", "100"},
		{"20160101000000", "http://example.com/", "text/html", "200", "A2", "100"},
		{"20170101000000", "http://example.com/", "text/html", "200", "A3", "100"},
		{"20160301000000", "http://example.com/blog/post-1", "text/html", "200", "B1", "200"},
		{"20160401000000", "http://example.com/blog/post-1", "text/html", "200", "B2", "200"},
		{"20160501000000", "http://example.com/style.css", "text/css", "200", "C1", "50"},
		{"20160601000000", "http://shop.example.com/cart", "text/html", "200", "D1", "300"},
		{"20160701000000", "http://api.v2.example.com/users", "application/json", "200", "E1", "20"},
	}
}

func TestGetSiteURLs_Aggregation(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("matchType") != "domain" {
			t.Errorf("matchType: got %q", q.Get("matchType"))
		}
		if q.Get("collapse") != "" {
			t.Errorf("counted query must be uncollapsed, got collapse=%q", q.Get("collapse"))
		}
		w.Write(cdxBody(t, siteRows()))
	})

	// No explicit sort: counted results default to descending capture count.
	res, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{
		IncludeCounts: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Domain != "example.com" {
		t.Fatalf("domain: got %q", res.Domain)
	}
	if res.TotalURLs != 5 {
		t.Fatalf("total urls: got %d, want 5", res.TotalURLs)
	}
	if res.TotalCaptures != 8 {
		t.Fatalf("total captures: got %d, want 8", res.TotalCaptures)
	}

	// Most captured URL first.
	if res.URLs[0].URL != "http://example.com/" || res.URLs[0].CaptureCount != 3 {
		t.Fatalf("urls[0]: %+v", res.URLs[0])
	}
	if res.URLs[0].FirstCapture != "20150101000000" || res.URLs[0].LastCapture != "20170101000000" {
		t.Fatalf("urls[0] range: %+v", res.URLs[0])
	}

	// Subdomain extraction takes the label nearest the base domain.
	if len(res.Subdomains) != 2 || res.Subdomains[0] != "shop" || res.Subdomains[1] != "v2" {
		t.Fatalf("subdomains: %v", res.Subdomains)
	}

	wantPaths := map[string]int{"blog": 1, "style.css": 1, "cart": 1, "users": 1}
	for _, nc := range res.PathStructure {
		if wantPaths[nc.Name] != nc.Count {
			t.Fatalf("path bucket %q: got %d", nc.Name, nc.Count)
		}
		delete(wantPaths, nc.Name)
	}
	if len(wantPaths) != 0 {
		t.Fatalf("missing path buckets: %v", wantPaths)
	}

	if res.MimeTypes[0].Name != "text/html" || res.MimeTypes[0].Count != 3 {
		t.Fatalf("mime[0]: %+v", res.MimeTypes[0])
	}
}

func TestGetSiteURLs_CollapsedWithoutCounts(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("collapse") != "urlkey" {
			t.Errorf("collapse: got %q, want urlkey", q.Get("collapse"))
		}
		if q.Get("limit") != "2" {
			t.Errorf("limit: got %q, want 2", q.Get("limit"))
		}
		w.Write(cdxBody(t, siteRows()[:2]))
	})

	res, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.URLs) != 1 {
		t.Fatalf("urls: got %d", len(res.URLs))
	}
}

func TestGetSiteURLs_SubdomainFilter(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(cdxBody(t, siteRows()))
	})

	res, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{
		Subdomain:     "shop",
		IncludeCounts: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.URLs) != 1 || res.URLs[0].URL != "http://shop.example.com/cart" {
		t.Fatalf("filtered urls: %+v", res.URLs)
	}
	if res.TotalCaptures != 1 {
		t.Fatalf("total captures: got %d", res.TotalCaptures)
	}
}

func TestGetSiteURLs_ResumeKeyAndTruncation(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		rows := append([][]string{{"timestamp", "original", "mimetype", "statuscode", "digest", "length"}}, siteRows()...)
		rows = append(rows, []string{}, []string{"", "com,example)/+20160701000000"})
		writeJSON(t, w, rows)
	})

	res, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{
		Limit:         2,
		IncludeCounts: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truncated {
		t.Fatal("expected truncated")
	}
	if res.ResumeKey != "com,example)/+20160701000000" {
		t.Fatalf("resume key: got %q", res.ResumeKey)
	}
	// Limit applies to the URL list only, after aggregation.
	if len(res.URLs) != 2 {
		t.Fatalf("urls: got %d, want 2", len(res.URLs))
	}
	if res.TotalURLs != 5 {
		t.Fatalf("total urls unaffected by limit: got %d", res.TotalURLs)
	}
}

func TestGetSiteURLs_SortOldest(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(cdxBody(t, siteRows()))
	})

	res, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{
		IncludeCounts: true,
		SortBy:        "oldest",
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(res.URLs); i++ {
		if res.URLs[i-1].FirstCapture > res.URLs[i].FirstCapture {
			t.Fatalf("not sorted oldest-first at %d: %+v", i, res.URLs)
		}
	}
}

func TestGetSiteURLs_QueryDefaults(t *testing.T) {
	// WHAT: a bare discovery query ships the successful-capture filter and the
	// default URL limit; date range and MIME filter pass straight through.
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q["filter"]; len(got) != 2 || got[0] != "statuscode:200" || got[1] != "mimetype:text/html" {
			t.Errorf("filters: got %v", got)
		}
		if got := q.Get("limit"); got != "1000" {
			t.Errorf("limit: got %q, want 1000", got)
		}
		if q.Get("from") != "20190101000000" || q.Get("to") != "20201231000000" {
			t.Errorf("range: from=%q to=%q", q.Get("from"), q.Get("to"))
		}
		w.Write(cdxBody(t, siteRows()))
	})

	if _, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{
		From:       "2019-01-01",
		To:         "2020-12-31",
		MimeFilter: "text/html",
	}); err != nil {
		t.Fatal(err)
	}
}

func TestGetSiteURLs_StatusFilterAny(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["filter"]; len(got) != 0 {
			t.Errorf("filters: got %v, want none", got)
		}
		w.Write(cdxBody(t, siteRows()))
	})

	if _, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{StatusFilter: "any"}); err != nil {
		t.Fatal(err)
	}
}

func TestGetSiteURLs_ExcludeSubdomains(t *testing.T) {
	// WHAT: include_subdomains=false narrows the domain query to the bare
	// host.
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("matchType"); got != "host" {
			t.Errorf("matchType: got %q, want host", got)
		}
		w.Write(cdxBody(t, siteRows()[:3]))
	})

	exclude := false
	res, err := svc.GetSiteURLs(context.Background(), "example.com", SiteURLsOptions{IncludeSubdomains: &exclude})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Subdomains) != 0 {
		t.Fatalf("subdomains: %v, want none", res.Subdomains)
	}
}
