package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/config"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

// ActivityMirror receives best-effort copies of room activity. Failures
// are the mirror's problem; the broadcast path never waits on it.
type ActivityMirror interface {
	AppendChat(ctx context.Context, roomKey string, rec model.ChatRecord)
	AppendCompile(ctx context.Context, roomKey string, out model.CompileOutcome)
}

// Dispatcher mutates live room state and fans events out to the room's
// active connections. Every handler follows validate, mutate, broadcast;
// durable mirrors run after the fact and never gate delivery.
type Dispatcher struct {
	cfg    *config.Config
	log    *zap.Logger
	live   *LiveStore
	store  RoomStore
	mirror ActivityMirror // nil when the mirror is unavailable
}

// NewDispatcher wires the dispatcher. mirror may be nil.
func NewDispatcher(cfg *config.Config, log *zap.Logger, live *LiveStore, store RoomStore, mirror ActivityMirror) *Dispatcher {
	return &Dispatcher{cfg: cfg, log: log, live: live, store: store, mirror: mirror}
}

// member validates that the sender currently occupies the named room and
// returns its live state. Events for rooms the sender is not in are
// dropped with a warning, they represent staleness, not client error.
func (d *Dispatcher) member(conn *Conn, roomKey string) (*LiveState, bool) {
	if conn.RoomKey() != roomKey {
		d.log.Warn("event for room the sender is not in",
			zap.String("room_key", roomKey),
			zap.String("connection_id", conn.ID))
		return nil, false
	}
	ls, ok := d.live.Get(roomKey)
	if !ok {
		d.log.Warn("event for room without live state", zap.String("room_key", roomKey))
	}
	return ls, ok
}

// CodeUpdate overwrites the shared code (last write wins) and fans it out
// to every other connection in the room.
func (d *Dispatcher) CodeUpdate(conn *Conn, in model.CodeUpdateIn) {
	ls, ok := d.member(conn, in.RoomKey)
	if !ok {
		return
	}
	ls.SetCode(in.Code, in.Language)
	d.BroadcastExcept(in.RoomKey, conn.ID, model.EvCodeUpdate, model.CodeUpdateOut{
		Code:     in.Code,
		Language: in.Language,
		From:     conn.PeerInfo(),
	})
	d.mirrorDocument(in.RoomKey, ls)
}

// InputUpdate overwrites the shared program input, same pattern as code.
func (d *Dispatcher) InputUpdate(conn *Conn, in model.InputUpdateIn) {
	ls, ok := d.member(conn, in.RoomKey)
	if !ok {
		return
	}
	ls.SetInput(in.Input)
	d.BroadcastExcept(in.RoomKey, conn.ID, model.EvInputUpdate, model.InputUpdateOut{
		Input: in.Input,
		From:  conn.PeerInfo(),
	})
	d.mirrorDocument(in.RoomKey, ls)
}

// CursorUpdate upserts the sender's cursor and fans it out to the other
// connections only, never echoed. Malformed positions are dropped
// silently with a warning.
func (d *Dispatcher) CursorUpdate(conn *Conn, in model.CursorUpdateIn) {
	ls, ok := d.member(conn, in.RoomKey)
	if !ok {
		return
	}
	var pos model.CursorPosition
	if err := json.Unmarshal(in.Position, &pos); err != nil || pos.Line < 0 || pos.Column < 0 {
		d.log.Warn("dropping malformed cursor position",
			zap.String("room_key", in.RoomKey),
			zap.String("user_id", conn.UserID))
		return
	}
	ls.UpsertCursor(conn.UserID, conn.DisplayName, pos, in.Selection, time.Now())
	d.BroadcastExcept(in.RoomKey, conn.ID, model.EvCursorUpdate, model.CursorView{
		UserID:      conn.UserID,
		DisplayName: conn.DisplayName,
		Position:    pos,
		Selection:   in.Selection,
	})
}

// CompileStart marks a compilation in flight and tells everyone in the
// room, the sender included, so all clients show the same indicator. It
// does not invoke any compiler, the triggering client does that.
func (d *Dispatcher) CompileStart(conn *Conn, roomKey string) {
	ls, ok := d.member(conn, roomKey)
	if !ok {
		return
	}
	ls.StartCompile(conn.UserID)
	d.Broadcast(roomKey, model.EvCompileStart, model.CompileStartOut{StartedBy: conn.PeerInfo()})
}

// CompileResult clears the in-flight flag, records the outcome, fans it
// out to everyone including the sender, and mirrors the bounded history.
func (d *Dispatcher) CompileResult(conn *Conn, in model.CompileResultIn) {
	ls, ok := d.member(conn, in.RoomKey)
	if !ok {
		return
	}
	out := model.CompileOutcome{
		Result:      in.Result,
		Error:       in.Error,
		TriggeredBy: conn.UserID,
		FinishedAt:  time.Now(),
	}
	ls.FinishCompile(out, d.cfg.HistoryLimit)
	d.Broadcast(in.RoomKey, model.EvCompileResult, out)
	if d.mirror != nil {
		go d.mirror.AppendCompile(context.Background(), in.RoomKey, out)
	}
}

// ChatMessage fans a message out to the other connections and mirrors it
// best-effort.
func (d *Dispatcher) ChatMessage(conn *Conn, in model.ChatMessageIn) {
	if _, ok := d.member(conn, in.RoomKey); !ok {
		return
	}
	now := time.Now()
	d.BroadcastExcept(in.RoomKey, conn.ID, model.EvChatMessage, model.ChatMessageOut{
		Content: in.Content,
		SentAt:  now.Format(time.RFC3339),
		From:    conn.PeerInfo(),
	})
	if d.mirror != nil {
		go d.mirror.AppendChat(context.Background(), in.RoomKey, model.ChatRecord{
			UserID:      conn.UserID,
			DisplayName: conn.DisplayName,
			Content:     in.Content,
			SentAt:      now,
		})
	}
}

// Broadcast delivers an event to every active connection in the room.
func (d *Dispatcher) Broadcast(roomKey, event string, payload any) {
	d.BroadcastExcept(roomKey, "", event, payload)
}

// BroadcastExcept delivers an event to every active connection except the
// named one. Slow consumers drop the frame rather than block the room.
func (d *Dispatcher) BroadcastExcept(roomKey, exceptConnID, event string, payload any) {
	ls, ok := d.live.Get(roomKey)
	if !ok {
		return
	}
	frame, err := model.NewEnvelope(event, payload)
	if err != nil {
		d.log.Error("marshal broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	for _, c := range ls.Conns() {
		if c.ID == exceptConnID {
			continue
		}
		if !c.Enqueue(frame) {
			d.log.Warn("send buffer full, frame dropped",
				zap.String("connection_id", c.ID),
				zap.String("event", event))
		}
	}
}

// RunSweeper evicts stale cursors on a fixed interval until ctx ends.
func (d *Dispatcher) RunSweeper(ctx context.Context) {
	t := time.NewTicker(d.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			d.SweepOnce(now)
		}
	}
}

// SweepOnce scans every occupied room and evicts cursors older than the
// staleness timeout, broadcasting a removal per eviction so clients drop
// the stale remote cursor.
func (d *Dispatcher) SweepOnce(now time.Time) {
	cutoff := now.Add(-d.cfg.CursorStaleTTL)
	for _, roomKey := range d.live.Keys() {
		ls, ok := d.live.Get(roomKey)
		if !ok {
			continue
		}
		for _, uid := range ls.EvictStale(cutoff) {
			d.log.Debug("stale cursor evicted",
				zap.String("room_key", roomKey),
				zap.String("user_id", uid))
			d.Broadcast(roomKey, model.EvCursorRemoved, model.CursorRemoved{UserID: uid})
		}
	}
}

// mirrorDocument pushes the current shared document to the durable record
// in the background; failure must not block or fail the broadcast.
func (d *Dispatcher) mirrorDocument(roomKey string, ls *LiveState) {
	doc := ls.Document()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.store.SaveDocument(ctx, roomKey, doc); err != nil {
			d.log.Warn("document mirror failed",
				zap.String("room_key", roomKey), zap.Error(err))
		}
	}()
}
