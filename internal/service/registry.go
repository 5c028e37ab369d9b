package service

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

// Conn is one live authenticated WebSocket connection. The outbound
// channel is drained by the handler's write pump; sends never block and
// drop when the peer cannot keep up.
type Conn struct {
	ID          string
	UserID      string
	DisplayName string

	mu      sync.Mutex
	roomKey string
	send    chan []byte
	closed  bool
}

// NewConn creates a session for a verified identity.
func NewConn(userID, displayName string) *Conn {
	return &Conn{
		ID:          uuid.New().String(),
		UserID:      userID,
		DisplayName: displayName,
		send:        make(chan []byte, 256),
	}
}

// PeerInfo is the identity shown to other connections.
func (c *Conn) PeerInfo() model.PeerInfo {
	return model.PeerInfo{ConnectionID: c.ID, UserID: c.UserID, DisplayName: c.DisplayName}
}

// RoomKey returns the room this connection currently occupies, or "".
func (c *Conn) RoomKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomKey
}

func (c *Conn) setRoom(key string) {
	c.mu.Lock()
	c.roomKey = key
	c.mu.Unlock()
}

// Enqueue queues an outbound frame without blocking. Returns false if the
// buffer is full or the connection is closed.
func (c *Conn) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Outbound is the channel the write pump drains. It is closed exactly
// once, by CloseSend.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// CloseSend closes the outbound channel. Safe to call more than once.
func (c *Conn) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Registry maps connection IDs to live sessions. It is the only owner of
// a session's current-room field.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	log   *zap.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{conns: make(map[string]*Conn), log: log}
}

// Register adds a session after successful authentication.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	r.conns[c.ID] = c
	r.mu.Unlock()
	r.log.Info("connection registered",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.UserID))
}

// Unregister removes a session on disconnect.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if ok {
		r.log.Info("connection unregistered",
			zap.String("connection_id", connID),
			zap.String("user_id", c.UserID))
	}
}

// Lookup finds a live session by connection ID.
func (r *Registry) Lookup(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// SetRoom records which room a connection occupies ("" for none).
func (r *Registry) SetRoom(connID, roomKey string) {
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if ok {
		c.setRoom(roomKey)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
