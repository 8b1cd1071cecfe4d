package models

import "gorm.io/gorm"

// Message is an append-only chat message. CreatedAt is the authoritative
// timestamp assigned at persistence time; rows are never mutated.
type Message struct {
	gorm.Model
	RoomID  uint   `gorm:"not null;index"`
	UserID  uint   `gorm:"not null"`
	Content string `gorm:"type:text;not null"`

	User User `gorm:"foreignKey:UserID"`
}
