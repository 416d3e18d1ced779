package handler

import (
	"fmt"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/identity"
	"roomchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthRequired verifies the bearer token and stores the caller's identity on
// the request context.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := identity.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			h.fail(c, fmt.Errorf("access token required: %w", chaterr.ErrAuth))
			return
		}

		id, err := h.Verifier.Verify(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identityFrom(c *gin.Context) models.Identity {
	id, _ := c.MustGet(identityKey).(models.Identity)
	return id
}
