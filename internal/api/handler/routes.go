package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Health)
	r.GET("/api", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	chat := r.Group("/api/chat", h.AuthRequired())
	chat.GET("/rooms", h.ListRooms)
	chat.POST("/rooms", h.CreateRoom)
	chat.GET("/rooms/:roomId/messages", h.GetMessages)
	chat.POST("/rooms/:roomId/join", h.JoinRoom)
	chat.GET("/rooms/:roomId/presence", h.RoomPresence)
	chat.GET("/users", h.ListUsers)
}
