package models

import "time"

// User is a registered chat participant. Rows are owned by the identity
// store; the chat core only reads them to resolve display names.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	AvatarURL *string   `gorm:"size:255" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `gorm:"autoCreateTime" json:"last_seen"`
}

// Identity is what the identity verifier hands to a session or request
// after a credential has been accepted.
type Identity struct {
	UserID    uint
	UserName  string
	AvatarURL *string
}
