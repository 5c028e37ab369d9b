package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/config"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/errs"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/metrics"
)

// joinLock serializes admission decisions for one room. Refcounted so the
// entry disappears as soon as no decision is in flight.
type joinLock struct {
	mu   sync.Mutex
	refs int
}

// Admission owns room lookup/creation and enforces the capacity
// invariant. The per-room join lock exists because admission is the one
// path that performs storage I/O between reading and mutating the active
// set; without it two concurrent joins could both observe a free slot.
type Admission struct {
	cfg        *config.Config
	log        *zap.Logger
	registry   *Registry
	store      RoomStore
	live       *LiveStore
	dispatcher *Dispatcher

	lockMu sync.Mutex
	locks  map[string]*joinLock
}

// NewAdmission wires the admission controller.
func NewAdmission(cfg *config.Config, log *zap.Logger, registry *Registry, store RoomStore, live *LiveStore, dispatcher *Dispatcher) *Admission {
	return &Admission{
		cfg:        cfg,
		log:        log,
		registry:   registry,
		store:      store,
		live:       live,
		dispatcher: dispatcher,
		locks:      make(map[string]*joinLock),
	}
}

func (a *Admission) lockRoom(roomKey string) func() {
	a.lockMu.Lock()
	l, ok := a.locks[roomKey]
	if !ok {
		l = &joinLock{}
		a.locks[roomKey] = l
	}
	l.refs++
	a.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, roomKey)
		}
		a.lockMu.Unlock()
	}
}

// Join admits a connection into a room and returns the snapshot the
// joining client renders from, or a rejection error.
func (a *Admission) Join(ctx context.Context, conn *Conn, roomKey string) (*model.RoomSnapshot, error) {
	roomKey = strings.TrimSpace(roomKey)
	if roomKey == "" {
		metrics.JoinsRejected.WithLabelValues(errs.CodeInvalidRoom).Inc()
		return nil, errs.ErrInvalidRoom
	}

	// Rejoin-in-place: already a member of this exact room, re-running
	// admission would be a no-op, just rebuild the snapshot.
	if conn.RoomKey() == roomKey {
		rec, err := a.store.Find(ctx, roomKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrJoinFailed, err)
		}
		return a.buildSnapshot(rec, conn), nil
	}

	// A connection occupies at most one room at a time.
	if prev := conn.RoomKey(); prev != "" {
		a.Leave(conn, prev)
	}

	unlock := a.lockRoom(roomKey)
	defer unlock()

	rec, err := a.store.FindOrCreate(ctx, roomKey, conn.UserID, a.cfg.RoomCapacity)
	if err != nil {
		metrics.JoinsRejected.WithLabelValues(errs.CodeJoinError).Inc()
		return nil, fmt.Errorf("%w: %v", errs.ErrJoinFailed, err)
	}

	capacity := rec.Capacity
	if capacity <= 0 {
		capacity = a.cfg.RoomCapacity
	}

	// Ever-admitted participants, the creator, and users who already hold
	// a live connection are re-admitted regardless of occupancy.
	privileged := rec.CreatedBy == conn.UserID ||
		rec.HasParticipant(conn.UserID) ||
		a.live.UserHasConnection(roomKey, conn.UserID)

	if !privileged && a.live.ActiveCount(roomKey) >= capacity {
		// Departure cleanup runs outside this lock, so a peer that just
		// disconnected may still be counted. One bounded re-check absorbs
		// that window before rejecting.
		select {
		case <-time.After(a.cfg.JoinRetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", errs.ErrJoinFailed, ctx.Err())
		}
		if current := a.live.ActiveCount(roomKey); current >= capacity {
			metrics.JoinsRejected.WithLabelValues(errs.CodeRoomFull).Inc()
			a.log.Info("join rejected, room full",
				zap.String("room_key", roomKey),
				zap.String("user_id", conn.UserID),
				zap.Int("active", current),
				zap.Int("capacity", capacity))
			return nil, fmt.Errorf("%w: %d/%d connections", errs.ErrRoomFull, current, capacity)
		}
	}

	if !rec.HasParticipant(conn.UserID) {
		if err := a.store.AppendParticipant(ctx, roomKey, conn.UserID); err != nil {
			metrics.JoinsRejected.WithLabelValues(errs.CodeJoinError).Inc()
			return nil, fmt.Errorf("%w: %v", errs.ErrJoinFailed, err)
		}
		rec.Participants = append(rec.Participants, model.RoomParticipant{
			RoomKey:  roomKey,
			UserID:   conn.UserID,
			JoinedAt: time.Now(),
		})
	}

	a.live.AddConn(roomKey, conn)
	a.registry.SetRoom(conn.ID, roomKey)

	a.log.Info("connection admitted",
		zap.String("room_key", roomKey),
		zap.String("connection_id", conn.ID),
		zap.String("user_id", conn.UserID),
		zap.Int("active", a.live.ActiveCount(roomKey)))

	snap := a.buildSnapshot(rec, conn)

	// Peers hear about the arrival slightly after the joiner gets its
	// snapshot, giving the joining client time to finish local setup.
	// Intentional ordering, not accidental.
	peer := conn.PeerInfo()
	connID := conn.ID
	go func() {
		time.Sleep(a.cfg.JoinNotifyDelay)
		a.dispatcher.BroadcastExcept(roomKey, connID, model.EvParticipantJoined, model.ParticipantEvent{Peer: peer})
	}()

	return snap, nil
}

// Leave removes a connection from a room. Idempotent: leaving a room the
// connection is not in is a no-op and broadcasts nothing.
func (a *Admission) Leave(conn *Conn, roomKey string) {
	roomKey = strings.TrimSpace(roomKey)
	if roomKey == "" || conn.RoomKey() != roomKey {
		return
	}

	removed, emptied := a.live.RemoveConn(roomKey, conn.ID)
	a.registry.SetRoom(conn.ID, "")
	if !removed {
		return
	}

	a.log.Info("connection departed",
		zap.String("room_key", roomKey),
		zap.String("connection_id", conn.ID),
		zap.String("user_id", conn.UserID))

	if emptied {
		// Last one out: live state is already destroyed, stamp the
		// durable record best-effort.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.store.MarkEnded(ctx, roomKey); err != nil {
				a.log.Warn("mark room ended failed",
					zap.String("room_key", roomKey), zap.Error(err))
			}
		}()
		return
	}

	a.dispatcher.BroadcastExcept(roomKey, conn.ID, model.EvParticipantLeft, model.ParticipantEvent{Peer: conn.PeerInfo()})
}

// Disconnect runs unconditional cleanup for a closing connection. Must be
// idempotent and must not depend on any client acknowledgement.
func (a *Admission) Disconnect(conn *Conn) {
	if rk := conn.RoomKey(); rk != "" {
		a.Leave(conn, rk)
	}
	a.registry.Unregister(conn.ID)
	conn.CloseSend()
}

func (a *Admission) buildSnapshot(rec *model.Room, self *Conn) *model.RoomSnapshot {
	snap := &model.RoomSnapshot{
		Room:  RoomToView(rec),
		Peers: []model.PeerInfo{},
	}
	if ls, ok := a.live.Get(rec.RoomKey); ok {
		for _, c := range ls.Conns() {
			if c.ID != self.ID {
				snap.Peers = append(snap.Peers, c.PeerInfo())
			}
		}
		snap.Document = ls.Document()
		snap.Compilation = ls.Compilation()
		snap.Cursors = ls.Cursors()
		snap.CompileHistory = ls.History()
	}
	return snap
}
