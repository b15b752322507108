package util

import (
	"strings"
	"testing"
)

func TestNewIDIsPrefixedAndUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewID("t")
		if !strings.HasPrefix(id, "t") {
			t.Fatalf("expected prefix t, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewIDIsMonotonic(t *testing.T) {
	prev := NewID("")
	for i := 0; i < 200; i++ {
		next := NewID("")
		if next <= prev {
			t.Fatalf("expected %q > %q", next, prev)
		}
		prev = next
	}
}
