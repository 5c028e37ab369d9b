package service

import (
	"testing"

	"go.uber.org/zap"
)

func TestRegistryRegisterLookup(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	c := NewConn("u1", "Alice")
	reg.Register(c)

	got, ok := reg.Lookup(c.ID)
	if !ok {
		t.Fatal("expected connection to be found")
	}
	if got.UserID != "u1" || got.DisplayName != "Alice" {
		t.Errorf("unexpected session: %+v", got)
	}
	if reg.Count() != 1 {
		t.Errorf("expected 1 connection, got %d", reg.Count())
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	c := NewConn("u1", "Alice")
	reg.Register(c)
	reg.Unregister(c.ID)

	if _, ok := reg.Lookup(c.ID); ok {
		t.Error("connection should be gone after unregister")
	}

	// Unregistering twice is harmless.
	reg.Unregister(c.ID)
	if reg.Count() != 0 {
		t.Errorf("expected 0 connections, got %d", reg.Count())
	}
}

func TestRegistrySetRoom(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	c := NewConn("u1", "Alice")
	reg.Register(c)

	reg.SetRoom(c.ID, "room-1")
	if c.RoomKey() != "room-1" {
		t.Errorf("expected room-1, got %q", c.RoomKey())
	}

	reg.SetRoom(c.ID, "")
	if c.RoomKey() != "" {
		t.Errorf("expected empty room, got %q", c.RoomKey())
	}

	// Unknown connection is a no-op.
	reg.SetRoom("missing", "room-1")
}

func TestConnEnqueueAfterClose(t *testing.T) {
	c := NewConn("u1", "Alice")
	if !c.Enqueue([]byte("hi")) {
		t.Fatal("enqueue to open connection should succeed")
	}
	c.CloseSend()
	c.CloseSend() // idempotent
	if c.Enqueue([]byte("late")) {
		t.Error("enqueue after close should report failure")
	}
}

func TestConnEnqueueFullBufferDrops(t *testing.T) {
	c := NewConn("u1", "Alice")
	for i := 0; i < 256; i++ {
		if !c.Enqueue([]byte("x")) {
			t.Fatalf("buffer filled early at %d", i)
		}
	}
	if c.Enqueue([]byte("overflow")) {
		t.Error("expected overflow frame to be dropped")
	}
}
