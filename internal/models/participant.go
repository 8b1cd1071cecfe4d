package models

import "time"

// ParticipantRole defines what a user may do inside a room.
type ParticipantRole string

const (
	// RoleMember is the default role for everyone after the first joiner.
	RoleMember ParticipantRole = "member"

	// RoleAdmin is granted to the first participant of a room and allows
	// changing roles and removing participants.
	RoleAdmin ParticipantRole = "admin"
)

// RoomParticipant links a user to a room with a role.
// The primary key is a composite of (UserID, RoomID) so a user appears
// at most once per room.
type RoomParticipant struct {
	UserID   uint            `gorm:"primaryKey"`
	RoomID   uint            `gorm:"primaryKey"`
	Role     ParticipantRole `gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt time.Time

	User User     `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Room ChatRoom `gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
