package models

import "time"

// DefaultMessageType is used when a client does not name a message kind.
const DefaultMessageType = "text"

// ChatHistory is a persisted chat message. ID is assigned by the database and
// CreatedAt at insert time; neither changes afterwards.
type ChatHistory struct {
	ID uint `gorm:"primaryKey"`
	// SenderID is the user who posted the message.
	SenderID uint `gorm:"not null;index"`
	// RoomID is the room the message belongs to.
	RoomID uint `gorm:"not null;index:idx_room_created,priority:1"`
	// Body is the message text.
	Body string `gorm:"column:message;type:text;not null"`
	// Kind is the message type, e.g. "text".
	Kind      string    `gorm:"column:message_type;size:20;not null;default:text"`
	CreatedAt time.Time `gorm:"index:idx_room_created,priority:2"`

	Sender *User     `gorm:"foreignKey:SenderID"`
	Room   *ChatRoom `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

func (ChatHistory) TableName() string { return "messages" }

// HistoryEntry is one row of a room history page, joined with its sender.
type HistoryEntry struct {
	ID          uint      `json:"id"`
	Message     string    `json:"message"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
	SenderID    uint      `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	AvatarURL   *string   `json:"avatar_url"`
}
