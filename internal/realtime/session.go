package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"roomchat/backend/internal/hub"
	"roomchat/backend/internal/models"
)

// errInvalidData is the generic validation failure sent when a required
// field is missing or empty.
const errInvalidData = "Invalid data"

// Registry is the channel membership capability. The session never touches
// membership state except through these three calls; removal of a closed
// connection from all channels is the transport's responsibility.
type Registry interface {
	Subscribe(channel string, client hub.Client)
	Unsubscribe(channel string, client hub.Client)
	Broadcast(channel string, event hub.Event)
}

// TokenVerifier resolves a session token to a user ID or an error.
type TokenVerifier interface {
	Verify(token string) (uint, error)
}

// VerifierFunc adapts a plain function to the TokenVerifier interface.
type VerifierFunc func(token string) (uint, error)

func (f VerifierFunc) Verify(token string) (uint, error) { return f(token) }

// MessageLog is the durable append-only store consumed by the session.
type MessageLog interface {
	Append(roomID, userID uint, content string) (*models.Message, error)
}

// Presence records ephemeral room membership for presence queries. It is
// optional and advisory: failures are logged and never surfaced to the
// client or allowed to block an event.
type Presence interface {
	Join(ctx context.Context, roomID, userID string) error
	Leave(ctx context.Context, roomID, userID string) error
}

// Session handles the realtime events of a single connection. Each event is
// independent: validate, act, broadcast, with no state carried between
// invocations beyond channel membership held by the registry.
type Session struct {
	registry Registry
	verifier TokenVerifier
	messages MessageLog
	presence Presence // may be nil
	client   hub.Client
}

// NewSession creates a session for one connection's client queue.
func NewSession(registry Registry, verifier TokenVerifier, messages MessageLog, presence Presence, client hub.Client) *Session {
	return &Session{
		registry: registry,
		verifier: verifier,
		messages: messages,
		presence: presence,
		client:   client,
	}
}

// HandleJoin attaches the connection to the room's channel and announces
// the join to everyone on it, the joiner included. The room ID is not
// checked against the room directory: channel presence is ephemeral and
// independent of durable membership.
func (s *Session) HandleJoin(ctx context.Context, req JoinRoomRequest) {
	if req.RoomID == "" || req.Token == "" {
		s.sendError(errInvalidData)
		return
	}

	userID, err := s.verifier.Verify(req.Token)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	uid := formatUserID(userID)

	// Subscribe before broadcasting so the joiner receives its own
	// joined_room event.
	s.registry.Subscribe(req.RoomID, s.client)

	if s.presence != nil {
		if err := s.presence.Join(ctx, req.RoomID, uid); err != nil {
			log.Printf("realtime: presence join failed for room %s: %v", req.RoomID, err)
		}
	}

	s.registry.Broadcast(req.RoomID, hub.Event{
		Type:    EventJoinedRoom,
		Payload: RoomUserPayload{RoomID: req.RoomID, UserID: uid},
	})
}

// HandleLeave detaches the connection from the room's channel and notifies
// the remaining members.
func (s *Session) HandleLeave(ctx context.Context, req LeaveRoomRequest) {
	if req.RoomID == "" || req.Token == "" {
		s.sendError(errInvalidData)
		return
	}

	userID, err := s.verifier.Verify(req.Token)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	uid := formatUserID(userID)

	// Unsubscribe first: left_room goes to the remaining members only.
	s.registry.Unsubscribe(req.RoomID, s.client)

	if s.presence != nil {
		if err := s.presence.Leave(ctx, req.RoomID, uid); err != nil {
			log.Printf("realtime: presence leave failed for room %s: %v", req.RoomID, err)
		}
	}

	s.registry.Broadcast(req.RoomID, hub.Event{
		Type:    EventLeftRoom,
		Payload: RoomUserPayload{RoomID: req.RoomID, UserID: uid},
	})
}

// HandleSend validates, persists and fans out a chat message. Broadcast is
// strictly downstream of the commit: any failure up to and including the
// append results in a single unicast error and nothing on the channel.
// Persistence happens even when nobody joined the channel.
func (s *Session) HandleSend(ctx context.Context, req SendMessageRequest) {
	if req.RoomID == "" || req.Token == "" || req.Content == "" {
		s.sendError(errInvalidData)
		return
	}

	userID, err := s.verifier.Verify(req.Token)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	roomID, err := strconv.ParseUint(req.RoomID, 10, 32)
	if err != nil {
		s.sendError("invalid room id")
		return
	}

	message, err := s.messages.Append(uint(roomID), userID, req.Content)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	s.registry.Broadcast(req.RoomID, hub.Event{
		Type: EventNewMessage,
		Payload: NewMessagePayload{
			RoomID:    req.RoomID,
			UserID:    formatUserID(userID),
			Content:   message.Content,
			Timestamp: message.CreatedAt,
		},
	})
}

// sendError unicasts an error event to this connection only. The write is
// non-blocking: if the client's queue is full the frame is dropped, the
// same policy the hub applies to broadcasts.
func (s *Session) sendError(message string) {
	frame, err := json.Marshal(hub.Event{
		Type:    EventError,
		Payload: ErrorPayload{Message: message},
	})
	if err != nil {
		return
	}
	select {
	case s.client <- frame:
	default:
	}
}

func formatUserID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
