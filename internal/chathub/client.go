package chathub

import "roomchat/backend/internal/models"

// Client is the interface for one live connection (session). It abstracts the
// underlying transport so the router can fan out to any connection type.
type Client interface {
	// GetSessionID returns the identifier of this connection. A user may hold
	// several sessions at once; they are never deduplicated.
	GetSessionID() string
	// GetUserID returns the authenticated user behind the session.
	GetUserID() uint
	// GetUserName returns the display name captured at connection time.
	GetUserName() string
	// GetAvatarURL returns the user's avatar, if any.
	GetAvatarURL() *string
	// GetLanguage returns the language used for error texts sent to this session.
	GetLanguage() string

	// Deliver queues evt for the client without blocking. It returns false when
	// the event was dropped because the client is closed or its buffer is full.
	Deliver(evt models.OutboundEvent) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the outbound side down. It is safe to call more than once.
	Close()
}
