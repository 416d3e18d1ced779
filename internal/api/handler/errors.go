package handler

import (
	"errors"
	"net/http"
	"strings"

	"roomchat/backend/internal/chaterr"

	"github.com/gin-gonic/gin"
)

func statusFor(kind chaterr.Kind) int {
	switch kind {
	case chaterr.KindAuth:
		return http.StatusUnauthorized
	case chaterr.KindNotFound:
		return http.StatusNotFound
	case chaterr.KindAccessDenied:
		return http.StatusForbidden
	case chaterr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail aborts the request with the status and message for err's kind.
// Validation errors carry their detail; storage failures never do.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := chaterr.KindOf(err)
	msg := h.Locale.GetString(h.language(c.Request), "error."+string(kind))
	if kind == chaterr.KindValidation {
		msg = strings.TrimPrefix(err.Error(), chaterr.ErrValidation.Error()+": ")
	}

	if kind == chaterr.KindStorage {
		h.Log.Error("Request failed", "path", c.FullPath(), "error", err)
	} else if !errors.Is(err, chaterr.ErrAuth) {
		h.Log.Debug("Request rejected", "path", c.FullPath(), "kind", kind, "error", err)
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"error": msg})
}
