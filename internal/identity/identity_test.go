package identity

import (
	"strings"
	"testing"
)

func TestAssigner_SlugFromHint(t *testing.T) {
	a := New()

	id := a.Assign("events/2024-01-15 Standup.md")
	if id != "2024-01-15-standup" {
		t.Errorf("Assign() = %q, want slug of the basename", id)
	}
	if !a.Reserved(id) {
		t.Error("assigned id not reserved")
	}
}

func TestAssigner_CollisionsGetSuffixes(t *testing.T) {
	a := New()

	first := a.Assign("events/meeting.md")
	second := a.Assign("other/meeting.md")
	third := a.Assign("third/meeting.md")

	if first != "meeting" {
		t.Errorf("first = %q", first)
	}
	if second != "meeting-2" || third != "meeting-3" {
		t.Errorf("collision ids = %q, %q, want counter suffixes", second, third)
	}
}

func TestAssigner_ReleaseReturnsIDToPool(t *testing.T) {
	a := New()

	id := a.Assign("events/meeting.md")
	a.Release(id)
	if a.Reserved(id) {
		t.Error("released id still reserved")
	}

	again := a.Assign("events/meeting.md")
	if again != id {
		t.Errorf("reassigned id = %q, want %q", again, id)
	}
}

func TestAssigner_EmptyHintFallsBackToUUID(t *testing.T) {
	a := New()

	id := a.Assign("")
	if id == "" {
		t.Fatal("Assign(\"\") returned empty id")
	}
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Errorf("id = %q, want a UUID", id)
	}
}

func TestAssigner_HintWithOnlySymbolsFallsBackToUUID(t *testing.T) {
	a := New()

	id := a.Assign("###.md")
	if len(id) != 36 {
		t.Errorf("id = %q, want a UUID for an unsluggable hint", id)
	}
}
