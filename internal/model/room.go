package model

import "time"

// RoomView is the API view of a durable room record.
type RoomView struct {
	RoomKey      string            `json:"room_key"`
	CreatedBy    string            `json:"created_by"`
	Capacity     int               `json:"capacity"`
	Participants []ParticipantView `json:"participants"`
	CreatedAt    time.Time         `json:"created_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
}

// ParticipantView is one durable participant in API responses.
type ParticipantView struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// PeerInfo identifies another live connection in a room.
type PeerInfo struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
}

// DocumentState is the shared document portion of live room state.
type DocumentState struct {
	Code         string `json:"code"`
	Language     string `json:"language"`
	ProgramInput string `json:"program_input"`
}

// CompilationState is the compile portion of live room state.
type CompilationState struct {
	InFlight  bool            `json:"in_flight"`
	StartedBy string          `json:"started_by,omitempty"`
	Last      *CompileOutcome `json:"last,omitempty"`
}

// CompileOutcome is one finished compilation, as received from the
// triggering client and fanned out room-wide.
type CompileOutcome struct {
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	TriggeredBy string         `json:"triggered_by"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// CursorView is one remote cursor in snapshots and cursor-update events.
type CursorView struct {
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Position    CursorPosition  `json:"position"`
	Selection   *CursorSelection `json:"selection,omitempty"`
}

// CursorPosition is a line/column pair in the shared document.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// CursorSelection is an optional selected range.
type CursorSelection struct {
	Start CursorPosition `json:"start"`
	End   CursorPosition `json:"end"`
}

// RoomSnapshot is returned to a joining connection: the durable record,
// the other live peers, and the current shared state.
type RoomSnapshot struct {
	Room           RoomView         `json:"room"`
	Peers          []PeerInfo       `json:"peers"`
	Document       DocumentState    `json:"document"`
	Compilation    CompilationState `json:"compilation"`
	Cursors        []CursorView     `json:"cursors"`
	CompileHistory []CompileOutcome `json:"compile_history"`
}

// CreateRoomRequest is the body of POST /rooms.
type CreateRoomRequest struct {
	RoomKey string `json:"room_key" binding:"required"`
}

// RoomHistory is the response of GET /rooms/:key/history.
type RoomHistory struct {
	RoomKey  string           `json:"room_key"`
	Chat     []ChatRecord     `json:"chat"`
	Compiles []CompileOutcome `json:"compiles"`
}

// ChatRecord is one mirrored chat message.
type ChatRecord struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	SentAt      time.Time `json:"sent_at"`
}
