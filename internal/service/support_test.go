package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/config"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/errs"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

// memStore is an in-memory RoomStore. Find returns copies, like a real
// database read, so callers mutating the result don't touch stored state.
type memStore struct {
	mu       sync.Mutex
	rooms    map[string]*model.Room
	failAll  bool
	docSaves int
	ended    map[string]bool
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]*model.Room), ended: make(map[string]bool)}
}

func (m *memStore) copyOf(rec *model.Room) *model.Room {
	out := *rec
	out.Participants = append([]model.RoomParticipant(nil), rec.Participants...)
	return &out
}

func (m *memStore) Find(_ context.Context, roomKey string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("storage down")
	}
	rec, ok := m.rooms[roomKey]
	if !ok {
		return nil, errs.ErrRoomNotFound
	}
	return m.copyOf(rec), nil
}

func (m *memStore) FindOrCreate(ctx context.Context, roomKey, creatorID string, capacity int) (*model.Room, error) {
	if rec, err := m.Find(ctx, roomKey); err == nil {
		return rec, nil
	} else if !errors.Is(err, errs.ErrRoomNotFound) {
		return nil, err
	}
	return m.Create(ctx, roomKey, creatorID, capacity)
}

func (m *memStore) Create(_ context.Context, roomKey, creatorID string, capacity int) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("storage down")
	}
	rec := &model.Room{RoomKey: roomKey, CreatedBy: creatorID, Capacity: capacity, CreatedAt: time.Now()}
	m.rooms[roomKey] = rec
	return m.copyOf(rec), nil
}

func (m *memStore) AppendParticipant(_ context.Context, roomKey, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("storage down")
	}
	rec, ok := m.rooms[roomKey]
	if !ok {
		return errs.ErrRoomNotFound
	}
	for _, p := range rec.Participants {
		if p.UserID == userID {
			return nil
		}
	}
	rec.Participants = append(rec.Participants, model.RoomParticipant{
		RoomKey: roomKey, UserID: userID, JoinedAt: time.Now(),
	})
	return nil
}

func (m *memStore) SaveDocument(_ context.Context, roomKey string, doc model.DocumentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rooms[roomKey]
	if !ok {
		return errs.ErrRoomNotFound
	}
	rec.Code, rec.Language, rec.ProgramInput = doc.Code, doc.Language, doc.ProgramInput
	m.docSaves++
	return nil
}

func (m *memStore) MarkEnded(_ context.Context, roomKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended[roomKey] = true
	return nil
}

func (m *memStore) participants(roomKey string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rooms[roomKey]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(rec.Participants))
	for _, p := range rec.Participants {
		out = append(out, p.UserID)
	}
	return out
}

// fakeMirror records best-effort appends.
type fakeMirror struct {
	mu       sync.Mutex
	chat     []model.ChatRecord
	compiles []model.CompileOutcome
}

func (f *fakeMirror) AppendChat(_ context.Context, _ string, rec model.ChatRecord) {
	f.mu.Lock()
	f.chat = append(f.chat, rec)
	f.mu.Unlock()
}

func (f *fakeMirror) AppendCompile(_ context.Context, _ string, out model.CompileOutcome) {
	f.mu.Lock()
	f.compiles = append(f.compiles, out)
	f.mu.Unlock()
}

func testConfig() *config.Config {
	cfg := &config.Config{
		RoomCapacity:    2,
		CursorStaleTTL:  30 * time.Second,
		SweepInterval:   10 * time.Second,
		JoinNotifyDelay: time.Millisecond,
		JoinRetryDelay:  2 * time.Millisecond,
		HistoryLimit:    10,
	}
	return cfg
}

// recvEvent reads frames off a connection until it sees the wanted event
// or the timeout passes.
func recvEvent(t *testing.T, c *Conn, event string, timeout time.Duration) model.Envelope {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case frame, ok := <-c.Outbound():
			if !ok {
				t.Fatalf("connection closed while waiting for %q", event)
			}
			var env model.Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if env.Event == event {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", event)
		}
	}
}

// expectNoEvent asserts that no frame with the given event arrives within
// the window.
func expectNoEvent(t *testing.T, c *Conn, event string, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case frame, ok := <-c.Outbound():
			if !ok {
				return
			}
			var env model.Envelope
			_ = json.Unmarshal(frame, &env)
			if env.Event == event {
				t.Fatalf("unexpected %q frame", event)
			}
		case <-deadline:
			return
		}
	}
}

func drain(c *Conn) {
	for {
		select {
		case <-c.Outbound():
		default:
			return
		}
	}
}
