package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNanoID(t *testing.T) {
	// WHAT: requested length, base-36 alphabet, no collisions at small scale.
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if len(id) != 12 {
			t.Fatalf("length = %d, want 12 (%q)", len(id), id)
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("unexpected character %q in %q", c, id)
			}
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDv7_SortableAndValid(t *testing.T) {
	// WHY: audit call IDs rely on v7 time ordering for index locality.
	gen := UUIDv7()
	prev := ""
	for i := 0; i < 100; i++ {
		id := gen()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("invalid UUID %q: %v", id, err)
		}
		if prev != "" && id <= prev {
			t.Fatalf("not monotonic at %d: %q after %q", i, id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("call_", NanoID(8))
	id := gen()
	if !strings.HasPrefix(id, "call_") {
		t.Fatalf("expected prefix 'call_', got %q", id)
	}
	if len(id) != len("call_")+8 {
		t.Fatalf("length = %d, want %d", len(id), len("call_")+8)
	}
}

func TestDefault_IsUUIDv7(t *testing.T) {
	id := Default()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("Default produced invalid UUID: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("version = %d, want 7", u.Version())
	}
}
