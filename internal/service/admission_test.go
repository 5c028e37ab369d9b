package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/errs"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

type fixture struct {
	reg   *Registry
	live  *LiveStore
	store *memStore
	disp  *Dispatcher
	adm   *Admission
}

func newFixture() *fixture {
	cfg := testConfig()
	log := zap.NewNop()
	reg := NewRegistry(log)
	live := NewLiveStore()
	store := newMemStore()
	disp := NewDispatcher(cfg, log, live, store, nil)
	adm := NewAdmission(cfg, log, reg, store, live, disp)
	return &fixture{reg: reg, live: live, store: store, disp: disp, adm: adm}
}

func (f *fixture) connect(userID, name string) *Conn {
	c := NewConn(userID, name)
	f.reg.Register(c)
	return c
}

func TestJoinCreatesRoomAndLiveState(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")

	snap, err := f.adm.Join(context.Background(), a, "room-1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if snap.Room.RoomKey != "room-1" || snap.Room.CreatedBy != "alice" {
		t.Errorf("unexpected room view: %+v", snap.Room)
	}
	if snap.Document.Code != "" {
		t.Errorf("fresh room should have empty code, got %q", snap.Document.Code)
	}
	if len(snap.Peers) != 0 {
		t.Errorf("first joiner should see no peers, got %d", len(snap.Peers))
	}
	if f.live.ActiveCount("room-1") != 1 {
		t.Errorf("expected 1 active connection, got %d", f.live.ActiveCount("room-1"))
	}
	if a.RoomKey() != "room-1" {
		t.Errorf("connection room not set, got %q", a.RoomKey())
	}
	got := f.store.participants("room-1")
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("expected [alice] participants, got %v", got)
	}
}

func TestJoinRejectsMalformedRoom(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")

	for _, key := range []string{"", "   "} {
		_, err := f.adm.Join(context.Background(), a, key)
		if !errors.Is(err, errs.ErrInvalidRoom) {
			t.Errorf("key %q: expected ErrInvalidRoom, got %v", key, err)
		}
	}
	if f.live.ActiveCount("") != 0 {
		t.Error("no state should be created for a malformed key")
	}
}

func TestJoinStorageFailureNoPartialAdmission(t *testing.T) {
	f := newFixture()
	f.store.failAll = true
	a := f.connect("alice", "Alice")

	_, err := f.adm.Join(context.Background(), a, "room-1")
	if !errors.Is(err, errs.ErrJoinFailed) {
		t.Fatalf("expected ErrJoinFailed, got %v", err)
	}
	if f.live.ActiveCount("room-1") != 0 {
		t.Error("failed join must not add to the active set")
	}
	if a.RoomKey() != "" {
		t.Error("failed join must not set the connection's room")
	}
}

func TestSecondJoinerSeesPeerAndFirstIsNotified(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")
	b := f.connect("bob", "Bob")

	if _, err := f.adm.Join(context.Background(), a, "room-1"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	snap, err := f.adm.Join(context.Background(), b, "room-1")
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if len(snap.Peers) != 1 || snap.Peers[0].UserID != "alice" {
		t.Fatalf("expected alice as peer, got %+v", snap.Peers)
	}

	env := recvEvent(t, a, model.EvParticipantJoined, time.Second)
	var ev model.ParticipantEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Peer.UserID != "bob" {
		t.Errorf("expected bob in participant-joined, got %q", ev.Peer.UserID)
	}
}

func TestCapacityUnderConcurrentJoins(t *testing.T) {
	f := newFixture()

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, full := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := f.connect(fmt.Sprintf("user-%d", i), "User")
			_, err := f.adm.Join(context.Background(), c, "busy-room")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, errs.ErrRoomFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if admitted != 2 {
		t.Errorf("expected exactly 2 admitted, got %d", admitted)
	}
	if full != n-2 {
		t.Errorf("expected %d ROOM_FULL rejections, got %d", n-2, full)
	}
	if got := f.live.ActiveCount("busy-room"); got != 2 {
		t.Errorf("active set must hold 2, got %d", got)
	}
}

func TestRoomFullReportsCounts(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")
	b := f.connect("bob", "Bob")
	c := f.connect("carol", "Carol")

	ctx := context.Background()
	mustJoin(t, f, a, "room-1")
	mustJoin(t, f, b, "room-1")

	_, err := f.adm.Join(ctx, c, "room-1")
	if !errors.Is(err, errs.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if want := "2/2"; !strings.Contains(err.Error(), want) {
		t.Errorf("rejection should name counts %q, got %q", want, err.Error())
	}
}

func TestRejoinInPlaceIsIdempotent(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")

	mustJoin(t, f, a, "room-1")
	snap, err := f.adm.Join(context.Background(), a, "room-1")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if snap.Room.RoomKey != "room-1" {
		t.Errorf("unexpected snapshot: %+v", snap.Room)
	}
	if f.live.ActiveCount("room-1") != 1 {
		t.Errorf("rejoin must not double-count, got %d", f.live.ActiveCount("room-1"))
	}
}

func TestJoinMovesConnectionBetweenRooms(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")

	mustJoin(t, f, a, "room-1")
	mustJoin(t, f, a, "room-2")

	if a.RoomKey() != "room-2" {
		t.Errorf("expected room-2, got %q", a.RoomKey())
	}
	if f.live.ActiveCount("room-1") != 0 {
		t.Error("old room should have drained")
	}
	if f.live.ActiveCount("room-2") != 1 {
		t.Error("new room should hold the connection")
	}
}

func TestParticipantRejoinPrivilegedOverCapacity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Alice becomes a durable participant, then leaves.
	a1 := f.connect("alice", "Alice")
	mustJoin(t, f, a1, "room-1")
	f.adm.Leave(a1, "room-1")

	// Bob and Carol fill both slots.
	b := f.connect("bob", "Bob")
	c := f.connect("carol", "Carol")
	mustJoin(t, f, b, "room-1")
	mustJoin(t, f, c, "room-1")

	// Alice rejoins on a fresh connection: participant membership beats
	// the capacity gate.
	a2 := f.connect("alice", "Alice")
	if _, err := f.adm.Join(ctx, a2, "room-1"); err != nil {
		t.Fatalf("privileged rejoin rejected: %v", err)
	}
}

func TestRefreshWithLingeringConnectionIsPrivileged(t *testing.T) {
	f := newFixture()

	a1 := f.connect("alice", "Alice")
	b := f.connect("bob", "Bob")
	mustJoin(t, f, a1, "room-1")
	mustJoin(t, f, b, "room-1")

	// Alice's old tab has not been cleaned up yet, but her new
	// connection must still get in.
	a2 := f.connect("alice", "Alice")
	if _, err := f.adm.Join(context.Background(), a2, "room-1"); err != nil {
		t.Fatalf("refresh rejoin rejected: %v", err)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")
	b := f.connect("bob", "Bob")
	mustJoin(t, f, a, "room-1")
	mustJoin(t, f, b, "room-1")
	drain(b)

	f.adm.Leave(a, "room-1")
	recvEvent(t, b, model.EvParticipantLeft, time.Second)

	// Leaving again, and leaving a room never joined, broadcast nothing.
	f.adm.Leave(a, "room-1")
	f.adm.Leave(a, "other-room")
	expectNoEvent(t, b, model.EvParticipantLeft, 50*time.Millisecond)
}

func TestDepartureKeepsDurableParticipants(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")
	mustJoin(t, f, a, "room-1")
	f.adm.Leave(a, "room-1")

	got := f.store.participants("room-1")
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("leaving must not shrink participants, got %v", got)
	}
}

func TestLiveStateIsFreshAfterDrain(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")
	mustJoin(t, f, a, "room-1")

	ls, ok := f.live.Get("room-1")
	if !ok {
		t.Fatal("live state missing")
	}
	ls.SetCode("print(1)", "python")

	f.adm.Leave(a, "room-1")
	if _, ok := f.live.Get("room-1"); ok {
		t.Fatal("live state must be destroyed when the room drains")
	}

	b := f.connect("bob", "Bob")
	snap := mustJoin(t, f, b, "room-1")
	if snap.Document.Code != "" {
		t.Errorf("new occupancy must see fresh state, got code %q", snap.Document.Code)
	}
}

func TestDisconnectRunsDepartureCleanup(t *testing.T) {
	f := newFixture()
	a := f.connect("alice", "Alice")
	b := f.connect("bob", "Bob")
	mustJoin(t, f, a, "room-1")
	mustJoin(t, f, b, "room-1")
	drain(b)

	f.adm.Disconnect(a)

	recvEvent(t, b, model.EvParticipantLeft, time.Second)
	if _, ok := f.reg.Lookup(a.ID); ok {
		t.Error("disconnected session must leave the registry")
	}
	if f.live.ActiveCount("room-1") != 1 {
		t.Errorf("expected 1 active after disconnect, got %d", f.live.ActiveCount("room-1"))
	}

	// Cleanup is idempotent.
	f.adm.Disconnect(a)
}

func TestFullRoomScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := f.connect("alice", "Alice")
	b := f.connect("bob", "Bob")
	c := f.connect("carol", "Carol")

	mustJoin(t, f, a, "r1")
	mustJoin(t, f, b, "r1")
	recvEvent(t, a, model.EvParticipantJoined, time.Second)

	if _, err := f.adm.Join(ctx, c, "r1"); !errors.Is(err, errs.ErrRoomFull) {
		t.Fatalf("carol should be rejected, got %v", err)
	}
	if f.live.ActiveCount("r1") != 2 {
		t.Fatalf("active set must be unchanged, got %d", f.live.ActiveCount("r1"))
	}

	f.adm.Disconnect(a)
	recvEvent(t, b, model.EvParticipantLeft, time.Second)

	if _, err := f.adm.Join(ctx, c, "r1"); err != nil {
		t.Fatalf("carol retry should be admitted: %v", err)
	}
	if f.live.ActiveCount("r1") != 2 {
		t.Errorf("expected 2 active, got %d", f.live.ActiveCount("r1"))
	}
}

func mustJoin(t *testing.T, f *fixture, c *Conn, roomKey string) *model.RoomSnapshot {
	t.Helper()
	snap, err := f.adm.Join(context.Background(), c, roomKey)
	if err != nil {
		t.Fatalf("join %s -> %s: %v", c.UserID, roomKey, err)
	}
	return snap
}
