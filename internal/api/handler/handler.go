package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"roomchat/backend/internal/access"
	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/identity"
	"roomchat/backend/internal/localization"
	"roomchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

// Store is the part of the persistence gateway the REST surface uses.
type Store interface {
	InsertMembership(ctx context.Context, roomID, userID uint) error
	FetchHistory(ctx context.Context, roomID uint, page, pageSize int) ([]models.HistoryEntry, error)
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	ListRoomsForUser(ctx context.Context, userID uint) ([]models.RoomSummary, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Policy answers access questions for REST reads and joins.
type Policy interface {
	CanRead(ctx context.Context, roomID, userID uint) (access.Decision, error)
	CanJoin(ctx context.Context, roomID, userID uint) (access.Decision, error)
}

// Handler holds everything the HTTP and WebSocket endpoints need.
type Handler struct {
	Router   *chathub.Router
	Store    Store
	Policy   Policy
	Verifier identity.Verifier
	Locale   *localization.Localizer
	Config   config.Config
	Log      *slog.Logger

	upgrader websocket.Upgrader
}

func NewHandler(router *chathub.Router, store Store, policy Policy, verifier identity.Verifier,
	locale *localization.Localizer, cfg config.Config, log *slog.Logger) *Handler {
	h := &Handler{
		Router:   router,
		Store:    store,
		Policy:   policy,
		Verifier: verifier,
		Locale:   locale,
		Config:   cfg,
		Log:      log,
	}

	origins, allowAll := cfg.Origins()
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			origin = strings.ToLower(strings.TrimRight(origin, "/"))
			for _, o := range origins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// language picks the caller's language from ?lang= or Accept-Language.
func (h *Handler) language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return h.Locale.Match(lang, h.Config.DefaultLanguage)
	}
	return h.Locale.Match(r.Header.Get("Accept-Language"), h.Config.DefaultLanguage)
}
