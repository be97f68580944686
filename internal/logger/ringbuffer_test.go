package logger

import (
	"strconv"
	"testing"
)

func TestEntryRingWrapAround(t *testing.T) {
	ring := newEntryRing(3)

	if got := ring.snapshot(); len(got) != 0 {
		t.Fatalf("empty ring returned %d entries", len(got))
	}

	for i := 0; i < 5; i++ {
		ring.push(LogEntry{Message: strconv.Itoa(i)})
	}

	got := ring.snapshot()
	if len(got) != 3 {
		t.Fatalf("snapshot returned %d entries, want 3", len(got))
	}
	for i, want := range []string{"2", "3", "4"} {
		if got[i].Message != want {
			t.Errorf("entry %d = %q, want %q", i, got[i].Message, want)
		}
	}
}

func TestEntryRingPartialFill(t *testing.T) {
	ring := newEntryRing(4)
	ring.push(LogEntry{Message: "a"})
	ring.push(LogEntry{Message: "b"})

	got := ring.snapshot()
	if len(got) != 2 || got[0].Message != "a" || got[1].Message != "b" {
		t.Fatalf("snapshot = %v, want [a b]", got)
	}
}
