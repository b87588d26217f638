// CLAUDE:SUMMARY Timestamp normalization and www-variant derivation tests.
package archiviste

import (
	"errors"
	"testing"
)

// WHAT: canonicalization of the timestamp input forms callers actually send.
// WHY: every operation keys caches and upstream queries on the 14-digit form.
func TestNormalizeTimestamp(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"20200115123045", "20200115123045"},
		{"2020011512304599", "20200115123045"}, // over-long digits truncated
		{"2020", "20200000000000"},
		{"202001", "20200100000000"},
		{"2020-01-15", "20200115000000"},
		{"2020-01-15 12:30:45", "20200115123045"},
		{"2020-01-15T12:30:45", "20200115123045"},
		{"not a date", "not a date"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeTimestamp(c.in); got != c.want {
			t.Errorf("NormalizeTimestamp(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWWWVariant(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://example.com", "http://www.example.com/"},
		{"http://www.example.com", "http://example.com/"},
		{"https://www.example.com/path", "https://example.com/path"},
		{"example.com", "http://www.example.com/"},
	}
	for _, c := range cases {
		got, err := wwwVariant(c.in)
		if err != nil {
			t.Fatalf("wwwVariant(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("wwwVariant(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "ftp://example.com", "http://"} {
		if _, err := parseTarget(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("parseTarget(%q): want ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestStripProtocol(t *testing.T) {
	if got := stripProtocol("https://example.com/a"); got != "example.com/a" {
		t.Errorf("stripProtocol = %q", got)
	}
	if got := stripProtocol("example.com"); got != "example.com" {
		t.Errorf("stripProtocol bare = %q", got)
	}
}
