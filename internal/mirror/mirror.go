// Package mirror keeps a best-effort copy of room activity in Redis.
// It plays the same role the recording side-channel plays for streams:
// fire-and-forget, failures logged and swallowed, never on the hot path.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/config"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

const chatLimit = 200

// Mirror appends bounded activity lists per room.
type Mirror struct {
	rdb          *redis.Client
	log          *zap.Logger
	compileLimit int
}

// New connects to Redis and verifies connectivity. Callers treat a
// connect failure as "mirror disabled", not fatal.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Mirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Mirror{rdb: rdb, log: log, compileLimit: cfg.HistoryLimit}, nil
}

// Close shuts down the Redis connection.
func (m *Mirror) Close() { _ = m.rdb.Close() }

// AppendChat records a chat message, keeping the newest chatLimit.
func (m *Mirror) AppendChat(ctx context.Context, roomKey string, rec model.ChatRecord) {
	m.push(ctx, chatKey(roomKey), rec, chatLimit)
}

// AppendCompile records a compile outcome, keeping the newest N.
func (m *Mirror) AppendCompile(ctx context.Context, roomKey string, out model.CompileOutcome) {
	m.push(ctx, compileKey(roomKey), out, m.compileLimit)
}

func (m *Mirror) push(ctx context.Context, key string, v any, limit int) {
	raw, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("mirror marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	pipe := m.rdb.Pipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, int64(limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		m.log.Warn("mirror append failed", zap.String("key", key), zap.Error(err))
	}
}

// Chat returns the mirrored chat for a room, newest first.
func (m *Mirror) Chat(ctx context.Context, roomKey string) ([]model.ChatRecord, error) {
	raws, err := m.rdb.LRange(ctx, chatKey(roomKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("mirror chat read: %w", err)
	}
	out := make([]model.ChatRecord, 0, len(raws))
	for _, raw := range raws {
		var rec model.ChatRecord
		if json.Unmarshal([]byte(raw), &rec) == nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Compiles returns the mirrored compile history for a room, newest first.
func (m *Mirror) Compiles(ctx context.Context, roomKey string) ([]model.CompileOutcome, error) {
	raws, err := m.rdb.LRange(ctx, compileKey(roomKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("mirror compile read: %w", err)
	}
	out := make([]model.CompileOutcome, 0, len(raws))
	for _, raw := range raws {
		var rec model.CompileOutcome
		if json.Unmarshal([]byte(raw), &rec) == nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func chatKey(roomKey string) string    { return "room:" + roomKey + ":chat" }
func compileKey(roomKey string) string { return "room:" + roomKey + ":compiles" }
