package model

import "time"

// Room is the durable room record (GORM). The mirrored document columns
// (code, language, program_input) are best-effort copies of live state;
// the in-memory state is authoritative while any connection is active.
type Room struct {
	ID           string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RoomKey      string `gorm:"size:128;not null;uniqueIndex"`
	CreatedBy    string `gorm:"size:128;not null;index"`
	Capacity     int    `gorm:"not null;default:2"`
	Code         string `gorm:"type:text;not null;default:''"`
	Language     string `gorm:"size:32;not null;default:'javascript'"`
	ProgramInput string `gorm:"type:text;not null;default:''"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
	EndedAt      *time.Time `gorm:"column:ended_at"`

	Participants []RoomParticipant `gorm:"foreignKey:RoomKey;references:RoomKey"`
}

func (Room) TableName() string { return "rooms" }

// RoomParticipant records a user ever admitted to a room (GORM). Rows are
// only ever appended; leaving a room is not un-joining.
type RoomParticipant struct {
	ID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RoomKey  string    `gorm:"size:128;not null;index:idx_room_user,unique"`
	UserID   string    `gorm:"size:128;not null;index:idx_room_user,unique"`
	JoinedAt time.Time `gorm:"column:joined_at;not null"`
}

func (RoomParticipant) TableName() string { return "room_participants" }

// HasParticipant reports whether userID was ever admitted to the room.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
