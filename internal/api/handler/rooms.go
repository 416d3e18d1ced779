package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type createRoomRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

type userResponse struct {
	ID       uint      `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	LastSeen time.Time `json:"last_seen"`
}

func roomParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("roomId"), 10, 64)
	if err != nil || id == 0 {
		return 0, chaterr.Validation("invalid room id %q", c.Param("roomId"))
	}
	return uint(id), nil
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "roomchat"})
}

// ListRooms returns public rooms plus the caller's private rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	id := identityFrom(c)
	rooms, err := h.Store.ListRoomsForUser(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if rooms == nil {
		rooms = []models.RoomSummary{}
	}
	c.JSON(http.StatusOK, rooms)
}

// GetMessages returns one page of room history, oldest first. Reading a
// public room makes the caller a member.
func (h *Handler) GetMessages(c *gin.Context) {
	id := identityFrom(c)
	roomID, err := roomParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	page := max(intQuery(c, "page", 1), 1)
	limit := min(max(intQuery(c, "limit", h.Config.HistoryPageSize), 1), h.Config.MaxHistoryPageSize)

	ctx := c.Request.Context()
	decision, err := h.Policy.CanRead(ctx, roomID, id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if decision.AutoJoinRequired {
		if err := h.Store.InsertMembership(ctx, roomID, id.UserID); err != nil {
			h.fail(c, err)
			return
		}
		h.Log.Info("User auto-joined public room", "user_id", id.UserID, "room_id", roomID)
	}

	history, err := h.Store.FetchHistory(ctx, roomID, page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if history == nil {
		history = []models.HistoryEntry{}
	}
	c.JSON(http.StatusOK, history)
}

// CreateRoom creates a room owned by the caller.
func (h *Handler) CreateRoom(c *gin.Context) {
	id := identityFrom(c)

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, chaterr.Validation("room name is required (max 100 characters)"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.fail(c, chaterr.Validation("room name is required (max 100 characters)"))
		return
	}

	room := &models.ChatRoom{
		Name:        name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatedBy:   id.UserID,
	}
	if err := h.Store.CreateRoom(c.Request.Context(), room); err != nil {
		h.fail(c, err)
		return
	}
	h.Log.Info("Room created", "room_id", room.ID, "name", room.Name, "private", room.IsPrivate, "user_id", id.UserID)
	c.JSON(http.StatusCreated, room)
}

// JoinRoom makes the caller a durable member of a public room. Members of a
// private room get a no-op success; everyone else is denied.
func (h *Handler) JoinRoom(c *gin.Context) {
	id := identityFrom(c)
	roomID, err := roomParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	decision, err := h.Policy.CanJoin(ctx, roomID, id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if decision.AutoJoinRequired {
		if err := h.Store.InsertMembership(ctx, roomID, id.UserID); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined room successfully", "room_id": roomID})
}

// RoomPresence lists the users with a live session joined to the room.
func (h *Handler) RoomPresence(c *gin.Context) {
	id := identityFrom(c)
	roomID, err := roomParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	decision, err := h.Policy.CanRead(c.Request.Context(), roomID, id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !decision.Allowed {
		h.fail(c, chaterr.ErrAccessDenied)
		return
	}

	online := h.Router.Registry().Presence(roomID)
	if online == nil {
		online = []models.PresenceEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "online": online})
}

// ListUsers returns every registered user.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Store.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(users, func(u models.User, _ int) userResponse {
		return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, LastSeen: u.LastSeen}
	}))
}
