package handler_test

import (
	"context"
	"fmt"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertMembership(ctx context.Context, roomID, userID uint) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MockStore) AppendMessage(ctx context.Context, senderID, roomID uint, body, kind string) (*models.ChatHistory, error) {
	args := m.Called(ctx, senderID, roomID, body, kind)
	msg, _ := args.Get(0).(*models.ChatHistory)
	return msg, args.Error(1)
}

func (m *MockStore) FetchRoom(ctx context.Context, roomID uint) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*models.ChatRoom)
	return room, args.Error(1)
}

func (m *MockStore) FetchMembership(ctx context.Context, roomID, userID uint) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FetchHistory(ctx context.Context, roomID uint, page, pageSize int) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, roomID, page, pageSize)
	entries, _ := args.Get(0).([]models.HistoryEntry)
	return entries, args.Error(1)
}

func (m *MockStore) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStore) ListRoomsForUser(ctx context.Context, userID uint) ([]models.RoomSummary, error) {
	args := m.Called(ctx, userID)
	rooms, _ := args.Get(0).([]models.RoomSummary)
	return rooms, args.Error(1)
}

func (m *MockStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

// stubVerifier accepts the tokens it knows.
type stubVerifier map[string]models.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (models.Identity, error) {
	id, ok := s[token]
	if !ok {
		return models.Identity{}, fmt.Errorf("invalid token: %w", chaterr.ErrAuth)
	}
	return id, nil
}

// stubClient is a registered session that drops everything delivered to it.
type stubClient struct {
	sessionID string
	userID    uint
	userName  string
}

func (c *stubClient) GetSessionID() string { return c.sessionID }
func (c *stubClient) GetUserID() uint { return c.userID }
func (c *stubClient) GetUserName() string { return c.userName }
func (c *stubClient) GetAvatarURL() *string { return nil }
func (c *stubClient) GetLanguage() string { return "en" }
func (c *stubClient) Deliver(models.OutboundEvent) bool { return true }
func (c *stubClient) Run() {}
func (c *stubClient) Close() {}
