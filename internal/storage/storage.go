package storage

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the persistence gateway consumed by the chat core and the REST surface.
type Storage interface {
	InsertMembership(ctx context.Context, roomID, userID uint) error
	AppendMessage(ctx context.Context, senderID, roomID uint, body, kind string) (*models.ChatHistory, error)
	FetchRoom(ctx context.Context, roomID uint) (*models.ChatRoom, error)
	FetchMembership(ctx context.Context, roomID, userID uint) (bool, error)
	FetchHistory(ctx context.Context, roomID uint, page, pageSize int) ([]models.HistoryEntry, error)

	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	ListRoomsForUser(ctx context.Context, userID uint) ([]models.RoomSummary, error)

	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Now is the clock for every timestamp this package writes: UTC, truncated
// to the microsecond resolution of Postgres timestamps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// GormConfig is the gorm configuration shared by the server and the admin CLI.
func GormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true, NowFunc: Now}
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Log   *slog.Logger
}

// NewStorageService Constructor. rdb may be nil when the relay is disabled.
func NewStorageService(db *gorm.DB, rdb *redis.Client, log *slog.Logger) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Log:   log,
	}
}

// AutoMigrate creates the chat tables if they do not exist yet.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.RoomMember{},
		&models.ChatHistory{},
	)
}

// InsertMembership records that userID belongs to roomID. Inserting an
// existing pair is a no-op.
func (s *Service) InsertMembership(ctx context.Context, roomID, userID uint) error {
	member := models.RoomMember{RoomID: roomID, UserID: userID}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&member).Error
	return chaterr.Storage("insert membership", err)
}

// AppendMessage persists a message; the returned record carries the
// database-assigned ID. CreatedAt is stamped at the precision Postgres
// stores, so the returned record equals what a later history read yields.
func (s *Service) AppendMessage(ctx context.Context, senderID, roomID uint, body, kind string) (*models.ChatHistory, error) {
	msg := models.ChatHistory{
		SenderID:  senderID,
		RoomID:    roomID,
		Body:      body,
		Kind:      kind,
		CreatedAt: Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		s.Log.Error("Failed to save message", "room_id", roomID, "sender_id", senderID, "error", err)
		return nil, chaterr.Storage("append message", err)
	}
	return &msg, nil
}

// FetchRoom returns the room or nil when it does not exist.
func (s *Service) FetchRoom(ctx context.Context, roomID uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, chaterr.Storage("fetch room", err)
	}
	return &room, nil
}

func (s *Service) FetchMembership(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, chaterr.Storage("fetch membership", err)
	}
	return count > 0, nil
}

// FetchHistory returns one page of a room's history. Page 1 is the newest
// window; rows inside a page are in chronological order.
func (s *Service) FetchHistory(ctx context.Context, roomID uint, page, pageSize int) ([]models.HistoryEntry, error) {
	limit, offset := PageWindow(page, pageSize)

	var rows []models.HistoryEntry
	err := s.DB.WithContext(ctx).
		Table("messages AS m").
		Select("m.id, m.message, m.message_type, m.created_at, u.id AS sender_id, u.username AS sender_name, u.avatar_url").
		Joins("JOIN users u ON m.sender_id = u.id").
		Where("m.room_id = ?", roomID).
		Order("m.created_at DESC, m.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		s.Log.Error("Failed to get chat history", "room_id", roomID, "error", err)
		return nil, chaterr.Storage("fetch history", err)
	}
	slices.Reverse(rows)
	return rows, nil
}

// PageWindow converts a 1-based page and a page size into LIMIT/OFFSET.
func PageWindow(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return pageSize, (page - 1) * pageSize
}

// CreateRoom inserts the room and the creator's membership atomically.
func (s *Service) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Create(&models.RoomMember{RoomID: room.ID, UserID: room.CreatedBy}).Error
	})
	if err != nil {
		s.Log.Error("Failed to create room", "name", room.Name, "error", err)
		return chaterr.Storage("create room", err)
	}
	return nil
}

// ListRoomsForUser returns every public room plus the private rooms userID
// belongs to, newest first.
func (s *Service) ListRoomsForUser(ctx context.Context, userID uint) ([]models.RoomSummary, error) {
	var rooms []models.RoomSummary
	err := s.DB.WithContext(ctx).Raw(`
		SELECT DISTINCT cr.id, cr.name, cr.description, cr.is_private, cr.created_at,
		       rm.user_id IS NOT NULL AS is_member
		FROM chat_rooms cr
		LEFT JOIN room_members rm ON cr.id = rm.room_id AND rm.user_id = ?
		WHERE cr.is_private = false OR rm.user_id = ?
		ORDER BY cr.created_at DESC
	`, userID, userID).Scan(&rooms).Error
	if err != nil {
		return nil, chaterr.Storage("list rooms", err)
	}
	return rooms, nil
}

func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return chaterr.Storage("save user", s.DB.WithContext(ctx).Save(user).Error)
}

// GetUserByID returns the user or nil when no such user exists.
func (s *Service) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, chaterr.Storage("get user", err)
	}
	return &user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, chaterr.Storage("list users", err)
	}
	return users, nil
}
