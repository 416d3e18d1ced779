package handler

import (
	"fmt"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServeWebSocket authenticates the caller and upgrades the connection to a
// chat session. Browsers cannot set headers on upgrade, so the token may also
// come from ?token=.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := identity.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		h.fail(c, fmt.Errorf("access token required: %w", chaterr.ErrAuth))
		return
	}

	id, err := h.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	lang := h.language(c.Request)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.Log.Warn("WebSocket upgrade failed", "user_id", id.UserID, "error", err)
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Router, h.Log, uuid.NewString(), id, lang, chathub.ClientConfig{
		SendBuffer:     h.Config.SendBufferSize,
		MaxMessageSize: h.Config.MaxMessageSize,
		RatePerSecond:  float64(h.Config.RateLimitPerSecond),
		RateBurst:      h.Config.RateLimitBurst,
	})
	if err := h.Router.Connect(client); err != nil {
		h.Log.Error("Failed to register session", "user_id", id.UserID, "error", err)
		conn.Close()
		return
	}
	client.Run()
}
