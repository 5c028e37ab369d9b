package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/errs"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

// RoomStore is the durable room record store. The live broadcast path
// only ever calls it best-effort; admission is the one consumer whose
// errors propagate.
type RoomStore interface {
	// Find returns the record with participants preloaded, or
	// errs.ErrRoomNotFound.
	Find(ctx context.Context, roomKey string) (*model.Room, error)
	// FindOrCreate lazily creates the record on first join of an unknown
	// room key, with capacity defaulted and creator set. A drained room
	// (ended_at set) is reopened.
	FindOrCreate(ctx context.Context, roomKey, creatorID string, capacity int) (*model.Room, error)
	// Create pre-creates a record, errs.ErrRoomFull-style conflicts map
	// to gorm.ErrDuplicatedKey.
	Create(ctx context.Context, roomKey, creatorID string, capacity int) (*model.Room, error)
	// AppendParticipant grows the ever-admitted set. Never shrinks.
	AppendParticipant(ctx context.Context, roomKey, userID string) error
	// SaveDocument mirrors the shared document, best effort.
	SaveDocument(ctx context.Context, roomKey string, doc model.DocumentState) error
	// MarkEnded stamps ended_at when the room drains, best effort.
	MarkEnded(ctx context.Context, roomKey string) error
}

// GormRoomStore implements RoomStore on PostgreSQL.
type GormRoomStore struct {
	db *gorm.DB
}

// NewGormRoomStore wraps an open gorm handle.
func NewGormRoomStore(db *gorm.DB) *GormRoomStore {
	return &GormRoomStore{db: db}
}

func (s *GormRoomStore) Find(ctx context.Context, roomKey string) (*model.Room, error) {
	var rec model.Room
	err := s.db.WithContext(ctx).Preload("Participants").
		Where("room_key = ?", roomKey).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	return &rec, nil
}

func (s *GormRoomStore) FindOrCreate(ctx context.Context, roomKey, creatorID string, capacity int) (*model.Room, error) {
	rec, err := s.Find(ctx, roomKey)
	if err == nil {
		if rec.EndedAt != nil {
			// Reopened by a fresh join.
			if uerr := s.db.WithContext(ctx).Model(rec).Update("ended_at", nil).Error; uerr == nil {
				rec.EndedAt = nil
			}
		}
		return rec, nil
	}
	if !errors.Is(err, errs.ErrRoomNotFound) {
		return nil, err
	}
	return s.Create(ctx, roomKey, creatorID, capacity)
}

func (s *GormRoomStore) Create(ctx context.Context, roomKey, creatorID string, capacity int) (*model.Room, error) {
	rec := &model.Room{
		ID:        uuid.New().String(),
		RoomKey:   roomKey,
		CreatedBy: creatorID,
		Capacity:  capacity,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return rec, nil
}

func (s *GormRoomStore) AppendParticipant(ctx context.Context, roomKey, userID string) error {
	p := &model.RoomParticipant{
		ID:       uuid.New().String(),
		RoomKey:  roomKey,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Already a participant, nothing to grow.
		return nil
	}
	if err != nil {
		return fmt.Errorf("append participant: %w", err)
	}
	return nil
}

func (s *GormRoomStore) SaveDocument(ctx context.Context, roomKey string, doc model.DocumentState) error {
	return s.db.WithContext(ctx).Model(&model.Room{}).
		Where("room_key = ?", roomKey).
		Updates(map[string]interface{}{
			"code":          doc.Code,
			"language":      doc.Language,
			"program_input": doc.ProgramInput,
		}).Error
}

func (s *GormRoomStore) MarkEnded(ctx context.Context, roomKey string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&model.Room{}).
		Where("room_key = ?", roomKey).
		Update("ended_at", now).Error
}

// RoomToView converts an entity to its API shape.
func RoomToView(rec *model.Room) model.RoomView {
	view := model.RoomView{
		RoomKey:   rec.RoomKey,
		CreatedBy: rec.CreatedBy,
		Capacity:  rec.Capacity,
		CreatedAt: rec.CreatedAt,
		EndedAt:   rec.EndedAt,
	}
	for _, p := range rec.Participants {
		view.Participants = append(view.Participants, model.ParticipantView{
			UserID:   p.UserID,
			JoinedAt: p.JoinedAt,
		})
	}
	return view
}
