package chathub_test

import (
	"sync"

	"roomchat/backend/internal/models"
)

type MockClient struct {
	sessionID string
	userID    uint
	userName  string
	lang      string

	mu     sync.Mutex
	closed bool
	panics bool
	send   chan models.OutboundEvent
}

func newMockClient(sessionID string, userID uint, userName string) *MockClient {
	return newMockClientBuffered(sessionID, userID, userName, 256)
}

func newMockClientBuffered(sessionID string, userID uint, userName string, buffer int) *MockClient {
	return &MockClient{
		sessionID: sessionID,
		userID:    userID,
		userName:  userName,
		lang:      "en",
		send:      make(chan models.OutboundEvent, buffer),
	}
}

func (c *MockClient) GetSessionID() string { return c.sessionID }
func (c *MockClient) GetUserID() uint { return c.userID }
func (c *MockClient) GetUserName() string { return c.userName }
func (c *MockClient) GetAvatarURL() *string { return nil }
func (c *MockClient) GetLanguage() string { return c.lang }

func (c *MockClient) Deliver(evt models.OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.panics {
		panic("broken transport")
	}
	if c.closed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// received drains everything delivered so far.
func (c *MockClient) received() []models.OutboundEvent {
	var out []models.OutboundEvent
	for {
		select {
		case evt := <-c.send:
			out = append(out, evt)
		default:
			return out
		}
	}
}

// receivedOf drains and keeps only events named name.
func (c *MockClient) receivedOf(name string) []models.OutboundEvent {
	var out []models.OutboundEvent
	for _, evt := range c.received() {
		if evt.Event == name {
			out = append(out, evt)
		}
	}
	return out
}
