package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/errs"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/mirror"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/service"
)

// RoomHandler handles the REST API for durable room records.
type RoomHandler struct {
	store  service.RoomStore
	mirror *mirror.Mirror // nil when the mirror is unavailable
	log    *zap.Logger
}

// NewRoomHandler creates a room handler.
func NewRoomHandler(store service.RoomStore, m *mirror.Mirror, log *zap.Logger) *RoomHandler {
	return &RoomHandler{store: store, mirror: m, log: log}
}

// Create godoc
// POST /rooms — pre-create a room record to share with a peer.
func (h *RoomHandler) Create(c *gin.Context) {
	var req model.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "code": errs.CodeInvalidRoom})
		return
	}
	roomKey := strings.TrimSpace(req.RoomKey)
	if roomKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_key required", "code": errs.CodeInvalidRoom})
		return
	}
	creator := c.GetString(ctxUserID)
	rec, err := h.store.Create(c.Request.Context(), roomKey, creator, 2)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "room already exists"})
			return
		}
		h.log.Error("create room", zap.String("room_key", roomKey), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}
	c.JSON(http.StatusCreated, service.RoomToView(rec))
}

// Get godoc
// GET /rooms/:key — durable record with its ever-admitted participants.
func (h *RoomHandler) Get(c *gin.Context) {
	roomKey := c.Param("key")
	rec, err := h.store.Find(c.Request.Context(), roomKey)
	if err != nil {
		if errors.Is(err, errs.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		h.log.Error("get room", zap.String("room_key", roomKey), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get room"})
		return
	}
	c.JSON(http.StatusOK, service.RoomToView(rec))
}

// History godoc
// GET /rooms/:key/history — mirrored chat and compile activity. Empty
// when the mirror is down; the mirror is best effort by design.
func (h *RoomHandler) History(c *gin.Context) {
	roomKey := c.Param("key")
	out := model.RoomHistory{
		RoomKey:  roomKey,
		Chat:     []model.ChatRecord{},
		Compiles: []model.CompileOutcome{},
	}
	if h.mirror != nil {
		if chat, err := h.mirror.Chat(c.Request.Context(), roomKey); err == nil {
			out.Chat = chat
		} else {
			h.log.Warn("history chat read", zap.String("room_key", roomKey), zap.Error(err))
		}
		if compiles, err := h.mirror.Compiles(c.Request.Context(), roomKey); err == nil {
			out.Compiles = compiles
		} else {
			h.log.Warn("history compile read", zap.String("room_key", roomKey), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, out)
}
