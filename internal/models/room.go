package models

import (
	"time"

	"gorm.io/gorm"
)

// RoomType distinguishes 1:1 conversations from named group rooms.
type RoomType string

const (
	RoomTypePrivate RoomType = "private"
	RoomTypeGroup   RoomType = "group"
)

// ChatRoom represents a conversation. Group rooms carry a unique name;
// private rooms carry exactly two user references instead.
type ChatRoom struct {
	gorm.Model
	Name          *string  `gorm:"size:80;unique"` // nil for private rooms
	Type          RoomType `gorm:"size:20;not null"`
	Description   string   `gorm:"size:255"`
	AvatarURL     string   `gorm:"size:255"`
	LastMessageAt *time.Time

	// Private-room pair, stored with the lower user ID in User1ID so the
	// unique index holds one row per unordered pair.
	User1ID *uint `gorm:"uniqueIndex:idx_private_pair"`
	User2ID *uint `gorm:"uniqueIndex:idx_private_pair"`

	Participants []RoomParticipant `gorm:"foreignKey:RoomID"`
	Messages     []Message         `gorm:"foreignKey:RoomID"`
}
