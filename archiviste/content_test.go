package archiviste

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

const archivedPage = `<!DOCTYPE html>
<html lang="en">
<head>
<title>Widget Shop</title>
<meta name="description" content="Widgets for every need">
<script>alert("tracking")</script>
</head>
<body>
<h1>Widget Shop</h1>
<p>The <b>finest</b> widgets since 1998.</p>
<a href="/catalog">Catalog</a>
</body>
</html>`

func contentService(t *testing.T, page string) *Service {
	t.Helper()
	return newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/web/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if !strings.Contains(r.URL.Path, "id_/") {
			t.Errorf("raw fetch must use the id_ suffix, path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
}

func TestGetContent_HTMLSanitized(t *testing.T) {
	svc := contentService(t, archivedPage)

	res, err := svc.GetContent(context.Background(), "http://example.com", "20200615000000", ContentOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "html" {
		t.Fatalf("format: got %q", res.Format)
	}
	if strings.Contains(res.Content, "<script") {
		t.Fatal("script must be stripped")
	}
	if !strings.Contains(res.Content, "finest") {
		t.Fatal("body text must survive sanitization")
	}
	if res.ByteCount != len(archivedPage) {
		t.Fatalf("byte count: got %d, want %d", res.ByteCount, len(archivedPage))
	}
}

func TestGetContent_Text(t *testing.T) {
	svc := contentService(t, archivedPage)

	res, err := svc.GetContent(context.Background(), "http://example.com", "20200615000000", ContentOptions{Format: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Content, "alert") {
		t.Fatal("script text must not leak into plain text")
	}
	if !strings.Contains(res.Content, "finest widgets") {
		t.Fatalf("text: %q", res.Content)
	}
}

func TestGetContent_Markdown(t *testing.T) {
	svc := contentService(t, archivedPage)

	res, err := svc.GetContent(context.Background(), "http://example.com", "20200615000000", ContentOptions{Format: "markdown"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Content, "# Widget Shop") {
		t.Fatalf("h1 not converted: %q", res.Content)
	}
	if !strings.Contains(res.Content, "**finest**") {
		t.Fatalf("bold not converted: %q", res.Content)
	}
}

func TestGetContent_Metadata(t *testing.T) {
	svc := contentService(t, archivedPage)

	res, err := svc.GetContent(context.Background(), "http://example.com", "20200615000000", ContentOptions{Format: "metadata"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "" {
		t.Fatal("metadata format must not carry content")
	}
	if res.Metadata == nil || res.Metadata.Title != "Widget Shop" {
		t.Fatalf("metadata: %+v", res.Metadata)
	}
	if res.Metadata.Description != "Widgets for every need" {
		t.Fatalf("description: %q", res.Metadata.Description)
	}
	if len(res.Metadata.H1) != 1 || res.Metadata.H1[0] != "Widget Shop" {
		t.Fatalf("h1: %v", res.Metadata.H1)
	}
}

func TestGetContent_NotesRedirectedCapture(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "20200615000000id_") {
			http.Redirect(w, r, "/web/20200618090000id_/http://example.com", http.StatusFound)
			return
		}
		w.Write([]byte(archivedPage))
	})

	res, err := svc.GetContent(context.Background(), "http://example.com", "20200615000000", ContentOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.ResolvedTimestamp != "20200618090000" {
		t.Fatalf("resolved: got %q", res.ResolvedTimestamp)
	}
	if res.Note == "" || !strings.Contains(res.Note, "20200618090000") {
		t.Fatalf("note: %q", res.Note)
	}
}

func TestGetContent_BadFormat(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected")
	})

	_, err := svc.GetContent(context.Background(), "http://example.com", "20200615000000", ContentOptions{Format: "pdf"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestGetContent_NotArchived(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := svc.GetContent(context.Background(), "http://example.com", "20200615000000", ContentOptions{})
	if !errors.Is(err, ErrNotArchived) {
		t.Fatalf("want ErrNotArchived, got %v", err)
	}
}
