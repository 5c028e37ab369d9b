package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/config"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/errs"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/service"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/auth"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// CollabWSHandler handles WebSocket connections for /ws. A connection
// authenticates at the handshake, then drives the room core through a
// per-event dispatch table.
type CollabWSHandler struct {
	cfg        *config.Config
	log        *zap.Logger
	verifier   *auth.JWT
	registry   *service.Registry
	admission  *service.Admission
	dispatcher *service.Dispatcher
	relay      *service.Relay
	upgrader   websocket.Upgrader
}

// NewCollabWSHandler creates the WebSocket handler.
func NewCollabWSHandler(cfg *config.Config, log *zap.Logger, verifier *auth.JWT,
	registry *service.Registry, admission *service.Admission,
	dispatcher *service.Dispatcher, relay *service.Relay) *CollabWSHandler {
	return &CollabWSHandler{
		cfg:        cfg,
		log:        log,
		verifier:   verifier,
		registry:   registry,
		admission:  admission,
		dispatcher: dispatcher,
		relay:      relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WSReadBufferSize,
			WriteBufferSize: cfg.WSWriteBufferSize,
			// Browser clients connect cross-origin; REST CORS is enforced
			// separately and the handshake itself requires a valid token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and runs the connection loops. The
// credential is verified before the upgrade; a missing or invalid token
// refuses the connection and no events are processed.
func (h *CollabWSHandler) ServeWS(c *gin.Context) {
	tok := bearerToken(c)
	if tok == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credential", "code": errs.CodeAuthError})
		return
	}
	id, err := h.verifier.Verify(tok)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential", "code": errs.CodeAuthError})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := service.NewConn(id.UserID, id.DisplayName)
	h.registry.Register(conn)
	metrics.ActiveConnections.Inc()

	go h.writePump(ws, conn)
	h.readPump(ws, conn)

	// Transport closed, for any reason: unconditional cleanup.
	h.admission.Disconnect(conn)
	metrics.ActiveConnections.Dec()
	_ = ws.Close()
}

func (h *CollabWSHandler) readPump(ws *websocket.Conn, conn *service.Conn) {
	ws.SetReadLimit(h.cfg.WSMaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	handlers := h.dispatchTable(conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("read error", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			h.log.Warn("malformed frame dropped", zap.String("connection_id", conn.ID))
			continue
		}
		fn, ok := handlers[env.Event]
		if !ok {
			h.log.Warn("unknown event", zap.String("event", env.Event), zap.String("connection_id", conn.ID))
			continue
		}
		metrics.EventsTotal.WithLabelValues(env.Event).Inc()
		fn(env.Data)
	}
}

// dispatchTable builds the per-connection event table. The session is
// captured once at registration time; every handler receives it rather
// than reaching for ambient state.
func (h *CollabWSHandler) dispatchTable(conn *service.Conn) map[string]func(json.RawMessage) {
	return map[string]func(json.RawMessage){
		model.EvJoinRoom: func(data json.RawMessage) {
			var ref model.RoomRef
			_ = json.Unmarshal(data, &ref)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			snap, err := h.admission.Join(ctx, conn, ref.RoomKey)
			if err != nil {
				h.sendTo(conn, model.EvRoomError, model.RoomError{
					Code:    errs.Code(err),
					Message: err.Error(),
				})
				return
			}
			h.sendTo(conn, model.EvRoomJoined, snap)
		},
		model.EvLeaveRoom: func(data json.RawMessage) {
			var ref model.RoomRef
			_ = json.Unmarshal(data, &ref)
			h.admission.Leave(conn, ref.RoomKey)
		},
		model.EvCodeUpdate: func(data json.RawMessage) {
			var in model.CodeUpdateIn
			if json.Unmarshal(data, &in) == nil {
				h.dispatcher.CodeUpdate(conn, in)
			}
		},
		model.EvCursorUpdate: func(data json.RawMessage) {
			var in model.CursorUpdateIn
			if json.Unmarshal(data, &in) == nil {
				h.dispatcher.CursorUpdate(conn, in)
			}
		},
		model.EvInputUpdate: func(data json.RawMessage) {
			var in model.InputUpdateIn
			if json.Unmarshal(data, &in) == nil {
				h.dispatcher.InputUpdate(conn, in)
			}
		},
		model.EvCompileStart: func(data json.RawMessage) {
			var ref model.RoomRef
			if json.Unmarshal(data, &ref) == nil {
				h.dispatcher.CompileStart(conn, ref.RoomKey)
			}
		},
		model.EvCompileResult: func(data json.RawMessage) {
			var in model.CompileResultIn
			if json.Unmarshal(data, &in) == nil {
				h.dispatcher.CompileResult(conn, in)
			}
		},
		model.EvChatMessage: func(data json.RawMessage) {
			var in model.ChatMessageIn
			if json.Unmarshal(data, &in) == nil {
				h.dispatcher.ChatMessage(conn, in)
			}
		},
		model.EvCallOffer: func(data json.RawMessage) {
			var in model.SignalIn
			if json.Unmarshal(data, &in) == nil {
				h.relay.Call(conn, in)
			}
		},
		model.EvCallAnswer: func(data json.RawMessage) {
			var in model.SignalIn
			if json.Unmarshal(data, &in) == nil {
				h.relay.CallAccepted(conn, in)
			}
		},
		model.EvCallReject: func(data json.RawMessage) {
			var in model.SignalIn
			if json.Unmarshal(data, &in) == nil {
				h.relay.CallRejected(conn, in)
			}
		},
		model.EvIceCandidate: func(data json.RawMessage) {
			var in model.SignalIn
			if json.Unmarshal(data, &in) == nil {
				h.relay.IceCandidate(conn, in)
			}
		},
	}
}

func (h *CollabWSHandler) sendTo(conn *service.Conn, event string, payload any) {
	frame, err := model.NewEnvelope(event, payload)
	if err != nil {
		h.log.Error("marshal frame", zap.String("event", event), zap.Error(err))
		return
	}
	conn.Enqueue(frame)
}

func (h *CollabWSHandler) writePump(ws *websocket.Conn, conn *service.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case frame, ok := <-conn.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
