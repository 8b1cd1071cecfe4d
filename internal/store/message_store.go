package store

import (
	"time"

	"roomchat/backend/internal/models"

	"gorm.io/gorm"
)

// MessageStore is the append-only message log backed by the relational
// database. Rows are created once and never mutated.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore creates a MessageStore on top of the given database.
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append persists a new message and returns the stored record. The
// database-assigned ID and CreatedAt are authoritative. The room's
// last-activity timestamp is touched best-effort; a failure there does not
// fail the append.
func (s *MessageStore) Append(roomID, userID uint, content string) (*models.Message, error) {
	message := models.Message{
		RoomID:  roomID,
		UserID:  userID,
		Content: content,
	}

	if err := s.db.Create(&message).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	s.db.Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		Update("last_message_at", &now)

	return &message, nil
}
