package service

import (
	"sync"
	"time"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/metrics"
)

type cursorEntry struct {
	displayName string
	position    model.CursorPosition
	selection   *model.CursorSelection
	lastSeen    time.Time
}

// LiveState is the in-memory shared state of one occupied room. It exists
// exactly while the room has at least one active connection.
type LiveState struct {
	roomKey string

	mu      sync.Mutex
	active  map[string]*Conn // connection ID -> session
	doc     model.DocumentState
	compile model.CompilationState
	history []model.CompileOutcome
	cursors map[string]*cursorEntry // user ID -> cursor
}

func newLiveState(roomKey string) *LiveState {
	return &LiveState{
		roomKey: roomKey,
		active:  make(map[string]*Conn),
		doc:     model.DocumentState{Language: "javascript"},
		cursors: make(map[string]*cursorEntry),
	}
}

// Conns returns a snapshot of the active sessions.
func (s *LiveState) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, 0, len(s.active))
	for _, c := range s.active {
		out = append(out, c)
	}
	return out
}

// HasUser reports whether userID holds any active connection in the room.
func (s *LiveState) HasUser(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.active {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Count returns the number of active connections.
func (s *LiveState) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// SetCode overwrites the shared document, last write wins.
func (s *LiveState) SetCode(code, language string) {
	s.mu.Lock()
	s.doc.Code = code
	if language != "" {
		s.doc.Language = language
	}
	s.mu.Unlock()
}

// SetInput overwrites the shared program input, last write wins.
func (s *LiveState) SetInput(input string) {
	s.mu.Lock()
	s.doc.ProgramInput = input
	s.mu.Unlock()
}

// Document returns the current shared document.
func (s *LiveState) Document() model.DocumentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// StartCompile marks a compilation in flight.
func (s *LiveState) StartCompile(userID string) {
	s.mu.Lock()
	s.compile.InFlight = true
	s.compile.StartedBy = userID
	s.mu.Unlock()
}

// FinishCompile clears the in-flight flag, records the outcome, and
// appends it to the bounded history (oldest evicted first).
func (s *LiveState) FinishCompile(out model.CompileOutcome, historyLimit int) {
	s.mu.Lock()
	s.compile.InFlight = false
	s.compile.StartedBy = ""
	s.compile.Last = &out
	s.history = append(s.history, out)
	if historyLimit > 0 && len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.mu.Unlock()
}

// History returns the bounded list of recent compile outcomes, oldest
// first.
func (s *LiveState) History() []model.CompileOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CompileOutcome(nil), s.history...)
}

// Compilation returns the current compile state.
func (s *LiveState) Compilation() model.CompilationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compile
}

// UpsertCursor records a user's cursor with lastSeen = now.
func (s *LiveState) UpsertCursor(userID, displayName string, pos model.CursorPosition, sel *model.CursorSelection, now time.Time) {
	s.mu.Lock()
	s.cursors[userID] = &cursorEntry{
		displayName: displayName,
		position:    pos,
		selection:   sel,
		lastSeen:    now,
	}
	s.mu.Unlock()
}

// RemoveCursor drops a user's cursor, if present.
func (s *LiveState) RemoveCursor(userID string) {
	s.mu.Lock()
	delete(s.cursors, userID)
	s.mu.Unlock()
}

// EvictStale removes cursors whose lastSeen is before cutoff and returns
// the evicted user IDs.
func (s *LiveState) EvictStale(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []string
	for uid, cur := range s.cursors {
		if cur.lastSeen.Before(cutoff) {
			delete(s.cursors, uid)
			evicted = append(evicted, uid)
		}
	}
	return evicted
}

// Cursors returns a snapshot of all live cursors.
func (s *LiveState) Cursors() []model.CursorView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CursorView, 0, len(s.cursors))
	for uid, cur := range s.cursors {
		out = append(out, model.CursorView{
			UserID:      uid,
			DisplayName: cur.displayName,
			Position:    cur.position,
			Selection:   cur.selection,
		})
	}
	return out
}

func (s *LiveState) addConn(c *Conn) {
	s.mu.Lock()
	s.active[c.ID] = c
	s.mu.Unlock()
}

func (s *LiveState) removeConn(connID string) (removed bool, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[connID]; !ok {
		return false, len(s.active) == 0
	}
	delete(s.active, connID)
	return true, len(s.active) == 0
}

// LiveStore owns all live room states. Membership changes go through the
// store so that state creation and destruction stay coupled to the active
// set: a state exists if and only if its active set is non-empty.
type LiveStore struct {
	mu    sync.RWMutex
	rooms map[string]*LiveState
}

// NewLiveStore creates an empty live state store.
func NewLiveStore() *LiveStore {
	return &LiveStore{rooms: make(map[string]*LiveState)}
}

// Get returns the live state of an occupied room.
func (ls *LiveStore) Get(roomKey string) (*LiveState, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	s, ok := ls.rooms[roomKey]
	return s, ok
}

// AddConn admits a connection, creating fresh state on first occupancy.
// The store lock is held across the membership change so a concurrent
// departure cannot destroy the state between lookup and add.
func (ls *LiveStore) AddConn(roomKey string, c *Conn) *LiveState {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	s, ok := ls.rooms[roomKey]
	if !ok {
		s = newLiveState(roomKey)
		ls.rooms[roomKey] = s
		metrics.ActiveRooms.Inc()
	}
	s.addConn(c)
	return s
}

// RemoveConn removes a connection and destroys the state when the active
// set empties. Idempotent: unknown rooms or connections are a no-op.
func (ls *LiveStore) RemoveConn(roomKey, connID string) (removed bool, emptied bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	s, ok := ls.rooms[roomKey]
	if !ok {
		return false, false
	}
	removed, empty := s.removeConn(connID)
	if empty {
		delete(ls.rooms, roomKey)
		metrics.ActiveRooms.Dec()
	}
	return removed, removed && empty
}

// ActiveCount returns the number of active connections in a room.
func (ls *LiveStore) ActiveCount(roomKey string) int {
	if s, ok := ls.Get(roomKey); ok {
		return s.Count()
	}
	return 0
}

// UserHasConnection reports whether userID already occupies a slot.
func (ls *LiveStore) UserHasConnection(roomKey, userID string) bool {
	if s, ok := ls.Get(roomKey); ok {
		return s.HasUser(userID)
	}
	return false
}

// Keys returns the occupied room keys, for the presence sweep.
func (ls *LiveStore) Keys() []string {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	out := make([]string, 0, len(ls.rooms))
	for k := range ls.rooms {
		out = append(out, k)
	}
	return out
}
