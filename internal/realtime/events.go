package realtime

import (
	"encoding/json"
	"time"
)

// Inbound event names (client to server).
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
)

// Outbound event names (server to client).
const (
	EventJoinedRoom = "joined_room"
	EventLeftRoom   = "left_room"
	EventNewMessage = "new_message"
	EventError      = "error"
)

// Frame is the wire envelope for both directions: an event name plus a
// type-specific payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinRoomRequest is the payload of a join_room event. Both fields are
// required; the room ID is opaque and deliberately not checked against the
// room directory.
type JoinRoomRequest struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

// LeaveRoomRequest is the payload of a leave_room event.
type LeaveRoomRequest struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

// SendMessageRequest is the payload of a send_message event. All three
// fields are required.
type SendMessageRequest struct {
	RoomID  string `json:"room_id"`
	Token   string `json:"token"`
	Content string `json:"content"`
}

// RoomUserPayload is broadcast as joined_room and left_room.
type RoomUserPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// NewMessagePayload is broadcast as new_message after a successful append.
// Timestamp carries the persisted record's creation time.
type NewMessagePayload struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is unicast to the connection whose event failed.
type ErrorPayload struct {
	Message string `json:"message"`
}
