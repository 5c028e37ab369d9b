package model

import "encoding/json"

// Inbound WebSocket event names.
const (
	EvJoinRoom      = "join-room"
	EvLeaveRoom     = "leave-room"
	EvCodeUpdate    = "code-update"
	EvCursorUpdate  = "cursor-update"
	EvInputUpdate   = "input-update"
	EvCompileStart  = "compile-start"
	EvCompileResult = "compile-result"
	EvChatMessage   = "chat-message"
	EvCallOffer     = "call-offer"
	EvCallAnswer    = "call-answer"
	EvCallReject    = "call-reject"
	EvIceCandidate  = "ice-candidate"
)

// Outbound WebSocket event names.
const (
	EvRoomJoined        = "room-joined"
	EvRoomError         = "room-error"
	EvParticipantJoined = "participant-joined"
	EvParticipantLeft   = "participant-left"
	EvCursorRemoved     = "cursor-removed"
	EvIncomingCall      = "incoming-call"
	EvCallAccepted      = "call-accepted"
	EvCallRejected      = "call-rejected"
)

// Envelope is the wire frame for every WebSocket message, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send frame.
func NewEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// RoomRef names the room an event applies to.
type RoomRef struct {
	RoomKey string `json:"room_id"`
}

// CodeUpdateIn is the payload of an inbound code-update.
type CodeUpdateIn struct {
	RoomKey  string `json:"room_id"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// CodeUpdateOut is fanned out to the other connections in the room.
type CodeUpdateOut struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	From     PeerInfo `json:"from"`
}

// CursorUpdateIn is the payload of an inbound cursor-update. Position is
// raw JSON so that malformed line/column values can be dropped silently
// instead of failing the whole frame.
type CursorUpdateIn struct {
	RoomKey   string          `json:"room_id"`
	Position  json.RawMessage `json:"position"`
	Selection *CursorSelection `json:"selection,omitempty"`
}

// InputUpdateIn is the payload of an inbound input-update.
type InputUpdateIn struct {
	RoomKey string `json:"room_id"`
	Input   string `json:"input"`
}

// InputUpdateOut is fanned out to the other connections in the room.
type InputUpdateOut struct {
	Input string   `json:"input"`
	From  PeerInfo `json:"from"`
}

// CompileResultIn is the payload of an inbound compile-result. Exactly one
// of Result or Error is expected.
type CompileResultIn struct {
	RoomKey string         `json:"room_id"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CompileStartOut announces a compilation to every connection in the room.
type CompileStartOut struct {
	StartedBy PeerInfo `json:"started_by"`
}

// ChatMessageIn is the payload of an inbound chat-message.
type ChatMessageIn struct {
	RoomKey string `json:"room_id"`
	Content string `json:"content"`
}

// ChatMessageOut is fanned out to the other connections in the room.
type ChatMessageOut struct {
	Content string   `json:"content"`
	SentAt  string   `json:"sent_at"`
	From    PeerInfo `json:"from"`
}

// SignalIn is the payload of an inbound call-offer / call-answer /
// call-reject / ice-candidate. The SDP or candidate body is forwarded
// opaque and untouched.
type SignalIn struct {
	TargetConnectionID string          `json:"target_connection_id"`
	Offer              json.RawMessage `json:"offer,omitempty"`
	Answer             json.RawMessage `json:"answer,omitempty"`
	Candidate          json.RawMessage `json:"candidate,omitempty"`
	Reason             string          `json:"reason,omitempty"`
}

// SignalOut is the forwarded form delivered to the target connection.
type SignalOut struct {
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	From      PeerInfo        `json:"from"`
}

// ParticipantEvent announces a peer arriving or leaving.
type ParticipantEvent struct {
	Peer PeerInfo `json:"peer"`
}

// CursorRemoved announces a swept stale cursor.
type CursorRemoved struct {
	UserID string `json:"user_id"`
}

// RoomError is sent only to the connection whose request failed.
type RoomError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
