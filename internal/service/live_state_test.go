package service

import (
	"testing"
	"time"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

func TestLiveStoreStateExistsOnlyWhileOccupied(t *testing.T) {
	store := NewLiveStore()

	if _, ok := store.Get("room-1"); ok {
		t.Fatal("state must not exist before first occupancy")
	}

	a := NewConn("alice", "Alice")
	b := NewConn("bob", "Bob")
	store.AddConn("room-1", a)
	store.AddConn("room-1", b)

	if store.ActiveCount("room-1") != 2 {
		t.Fatalf("expected 2 active, got %d", store.ActiveCount("room-1"))
	}

	removed, emptied := store.RemoveConn("room-1", a.ID)
	if !removed || emptied {
		t.Fatalf("first removal: removed=%v emptied=%v", removed, emptied)
	}
	removed, emptied = store.RemoveConn("room-1", b.ID)
	if !removed || !emptied {
		t.Fatalf("last removal: removed=%v emptied=%v", removed, emptied)
	}
	if _, ok := store.Get("room-1"); ok {
		t.Error("state must be destroyed when the room drains")
	}

	// Unknown rooms and repeated removals are no-ops.
	if removed, _ := store.RemoveConn("room-1", b.ID); removed {
		t.Error("removal from a drained room must be a no-op")
	}
	if removed, _ := store.RemoveConn("nowhere", "x"); removed {
		t.Error("unknown room must be a no-op")
	}
}

func TestLiveStoreUserHasConnection(t *testing.T) {
	store := NewLiveStore()
	a := NewConn("alice", "Alice")
	store.AddConn("room-1", a)

	if !store.UserHasConnection("room-1", "alice") {
		t.Error("alice holds a connection")
	}
	if store.UserHasConnection("room-1", "bob") {
		t.Error("bob does not")
	}
	if store.UserHasConnection("room-2", "alice") {
		t.Error("wrong room")
	}
}

func TestLiveStateDocumentDefaults(t *testing.T) {
	s := newLiveState("room-1")

	doc := s.Document()
	if doc.Language != "javascript" || doc.Code != "" {
		t.Errorf("unexpected initial document: %+v", doc)
	}

	// Empty language keeps the previous one.
	s.SetCode("x", "python")
	s.SetCode("y", "")
	if doc := s.Document(); doc.Language != "python" || doc.Code != "y" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestFinishCompileBoundsHistory(t *testing.T) {
	s := newLiveState("room-1")

	for i := 0; i < 5; i++ {
		s.FinishCompile(model.CompileOutcome{TriggeredBy: "alice"}, 3)
	}
	if got := len(s.History()); got != 3 {
		t.Errorf("expected history of 3, got %d", got)
	}
	if cs := s.Compilation(); cs.InFlight || cs.Last == nil {
		t.Errorf("unexpected compile state: %+v", cs)
	}
}

func TestEvictStaleBoundary(t *testing.T) {
	s := newLiveState("room-1")
	now := time.Now()

	s.UpsertCursor("old", "Old", model.CursorPosition{}, nil, now.Add(-time.Minute))
	s.UpsertCursor("fresh", "Fresh", model.CursorPosition{}, nil, now)

	evicted := s.EvictStale(now.Add(-30 * time.Second))
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Errorf("expected [old] evicted, got %v", evicted)
	}
	if left := s.Cursors(); len(left) != 1 || left[0].UserID != "fresh" {
		t.Errorf("expected fresh cursor to remain, got %+v", left)
	}

	// A re-upsert after eviction revives presence.
	s.UpsertCursor("old", "Old", model.CursorPosition{Line: 1}, nil, now)
	if len(s.Cursors()) != 2 {
		t.Error("re-upserted cursor should be live again")
	}
}
