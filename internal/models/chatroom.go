package models

import "time"

// ChatRoom is a named channel that groups messages and members.
// Visibility is fixed at creation.
type ChatRoom struct {
	// ID is the database identifier of the room.
	ID uint `gorm:"primaryKey" json:"id"`
	// Name is the human readable room name.
	Name string `gorm:"size:100;not null" json:"name"`
	// Description is optional free text shown in room listings.
	Description string `gorm:"type:text" json:"description"`
	// IsPrivate restricts read and post access to existing members.
	IsPrivate bool `gorm:"not null;default:false" json:"is_private"`
	// CreatedBy is the user who created the room; the creator is always a member.
	CreatedBy uint `gorm:"not null" json:"created_by"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	Creator *User `gorm:"foreignKey:CreatedBy" json:"-"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }

// RoomMember is the durable membership record. A (room, user) pair exists at most once.
type RoomMember struct {
	ID       uint      `gorm:"primaryKey"`
	RoomID   uint      `gorm:"not null;uniqueIndex:idx_room_user"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_room_user"`
	JoinedAt time.Time `gorm:"autoCreateTime"`

	Room *ChatRoom `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	User *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (RoomMember) TableName() string { return "room_members" }

// RoomSummary is a room as listed to a particular user.
type RoomSummary struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
	IsMember    bool      `json:"is_member"`
}
