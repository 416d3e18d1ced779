package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Inbound event names.
const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventDisconnect  = "disconnect"
)

// Outbound event names.
const (
	EventNewMessage        = "new_message"
	EventUserJoined        = "user_joined"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventError             = "error"
)

// InboundEvent is one frame received from a client.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundEvent is one frame sent to a client. Data is encoded by the transport.
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

var errBadRoomRef = errors.New("room id must be a positive integer")

// RoomRef is a room id as sent by clients: 7, "7" or {"roomId": 7}.
type RoomRef uint

func (r *RoomRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			RoomID RoomRef `json:"roomId"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*r = obj.RoomID
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*r = 0
		return nil
	}
	raw := strings.Trim(string(b), `"`)
	if raw == "" {
		*r = 0
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return errBadRoomRef
	}
	*r = RoomRef(id)
	return nil
}

// SendMessageRequest is the payload of send_message.
type SendMessageRequest struct {
	RoomID      RoomRef `json:"roomId" validate:"required"`
	Message     string  `json:"message" validate:"required,max=4000"`
	MessageType string  `json:"messageType" validate:"omitempty,max=20"`
}

// NewMessagePayload is broadcast to every session joined to the room.
type NewMessagePayload struct {
	ID          uint      `json:"id"`
	SenderID    uint      `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Message     string    `json:"message"`
	MessageType string    `json:"messageType"`
	Timestamp   time.Time `json:"timestamp"`
	RoomID      uint      `json:"roomId"`
	AvatarURL   *string   `json:"avatarUrl"`
}

// UserJoinedPayload is sent to the other sessions of a room when a session joins it.
type UserJoinedPayload struct {
	UserID   uint   `json:"userId"`
	UserName string `json:"userName"`
	RoomID   uint   `json:"roomId"`
	Message  string `json:"message"`
}

// TypingPayload carries user_typing and user_stopped_typing.
type TypingPayload struct {
	UserID   uint   `json:"userId"`
	UserName string `json:"userName"`
	RoomID   uint   `json:"roomId"`
}

// ErrorPayload is sent only to the session whose operation failed.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// PresenceEntry is a user with at least one live session in a room.
type PresenceEntry struct {
	UserID   uint   `json:"userId"`
	UserName string `json:"userName"`
	Sessions int    `json:"sessions"`
}

// RelayEnvelope carries a room event between server instances.
type RelayEnvelope struct {
	Origin string          `json:"origin"`
	RoomID uint            `json:"roomId"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}
