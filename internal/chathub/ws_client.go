package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"roomchat/backend/internal/models"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer     = 256
	defaultMaxMessageSize = 8192
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	SessionID string
	UserID    uint
	UserName  string
	AvatarURL *string
	Language  string

	Conn   *websocket.Conn
	Router *Router
	Send   chan models.OutboundEvent

	log            *slog.Logger
	limiter        *rate.Limiter
	maxMessageSize int64

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// ClientConfig carries the per-connection limits.
type ClientConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	RatePerSecond  float64
	RateBurst      int
}

func NewWebSocketClient(conn *websocket.Conn, router *Router, log *slog.Logger,
	sessionID string, id models.Identity, lang string, cfg ClientConfig) *WebSocketClient {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketClient{
		SessionID:      sessionID,
		UserID:         id.UserID,
		UserName:       id.UserName,
		AvatarURL:      id.AvatarURL,
		Language:       lang,
		Conn:           conn,
		Router:         router,
		Send:           make(chan models.OutboundEvent, cfg.SendBuffer),
		log:            log.With("session_id", sessionID, "user_id", id.UserID),
		limiter:        rate.NewLimiter(limit, cfg.RateBurst),
		maxMessageSize: cfg.MaxMessageSize,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (c *WebSocketClient) GetSessionID() string { return c.SessionID }
func (c *WebSocketClient) GetUserID() uint { return c.UserID }
func (c *WebSocketClient) GetUserName() string { return c.UserName }
func (c *WebSocketClient) GetAvatarURL() *string { return c.AvatarURL }
func (c *WebSocketClient) GetLanguage() string { return c.Language }

// Deliver never blocks; a slow client loses the event instead of stalling the room.
func (c *WebSocketClient) Deliver(evt models.OutboundEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- evt:
		return true
	default:
		return false
	}
}

// Close closes the Send channel, which makes writePump close the socket.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.Send)
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Router.Disconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected websocket close", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.log.Warn("Rate limit exceeded, frame discarded", "size", len(frame))
			continue
		}

		if !c.Router.Dispatch(c.ctx, c, frame) {
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(evt)
			if err != nil {
				c.log.Error("Failed to encode outbound event", "event", evt.Event, "error", err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
