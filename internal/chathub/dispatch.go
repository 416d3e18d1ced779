package chathub

import (
	"context"
	"encoding/json"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/models"
)

// HandlerFunc handles one inbound event for a session. Returned errors are
// reported to that session only.
type HandlerFunc func(ctx context.Context, r *Router, c Client, data json.RawMessage) error

var handlers = map[string]HandlerFunc{
	models.EventJoinRoom:    handleJoinRoom,
	models.EventSendMessage: handleSendMessage,
	models.EventTypingStart: handleTypingStart,
	models.EventTypingStop:  handleTypingStop,
	models.EventDisconnect:  handleDisconnect,
}

// Dispatch decodes one frame and runs its handler. It reports whether the
// session should keep reading.
func (r *Router) Dispatch(ctx context.Context, c Client, frame []byte) bool {
	var in models.InboundEvent
	if err := json.Unmarshal(frame, &in); err != nil {
		r.reportError(c, chaterr.Validation("malformed frame: %v", err))
		return true
	}

	h, ok := handlers[in.Event]
	if !ok {
		r.reportError(c, chaterr.Validation("unknown event %q", in.Event))
		return true
	}
	if err := h(ctx, r, c, in.Data); err != nil {
		r.reportError(c, err)
	}
	return in.Event != models.EventDisconnect
}

func roomFrom(data json.RawMessage) (uint, error) {
	var ref models.RoomRef
	if len(data) == 0 {
		return 0, chaterr.Validation("roomId is required")
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return 0, chaterr.Validation("invalid room reference: %v", err)
	}
	if ref == 0 {
		return 0, chaterr.Validation("roomId is required")
	}
	return uint(ref), nil
}

func handleJoinRoom(ctx context.Context, r *Router, c Client, data json.RawMessage) error {
	roomID, err := roomFrom(data)
	if err != nil {
		return err
	}
	return r.Join(ctx, c, roomID)
}

func handleSendMessage(ctx context.Context, r *Router, c Client, data json.RawMessage) error {
	var req models.SendMessageRequest
	if len(data) == 0 {
		return chaterr.Validation("message payload is required")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return chaterr.Validation("invalid message payload: %v", err)
	}
	_, err := r.Send(ctx, c, req)
	return err
}

func handleTypingStart(_ context.Context, r *Router, c Client, data json.RawMessage) error {
	roomID, err := roomFrom(data)
	if err != nil {
		return err
	}
	r.TypingStart(c, roomID)
	return nil
}

func handleTypingStop(_ context.Context, r *Router, c Client, data json.RawMessage) error {
	roomID, err := roomFrom(data)
	if err != nil {
		return err
	}
	r.TypingStop(c, roomID)
	return nil
}

func handleDisconnect(_ context.Context, r *Router, c Client, _ json.RawMessage) error {
	r.Disconnect(c)
	return nil
}
