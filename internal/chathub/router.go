package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"roomchat/backend/internal/access"
	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/localization"
	"roomchat/backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// Gateway is the persistence the router writes to.
type Gateway interface {
	InsertMembership(ctx context.Context, roomID, userID uint) error
	AppendMessage(ctx context.Context, senderID, roomID uint, body, kind string) (*models.ChatHistory, error)
}

// Authorizer answers the access questions the router asks before acting.
type Authorizer interface {
	CanRead(ctx context.Context, roomID, userID uint) (access.Decision, error)
	CanPost(ctx context.Context, roomID, userID uint) (access.Decision, error)
}

// Relay forwards room events between server instances.
type Relay interface {
	PublishEvent(ctx context.Context, env models.RelayEnvelope) error
	SubscribeEvents(ctx context.Context) (<-chan models.RelayEnvelope, error)
}

// Options tune a Router. Zero values pick sensible defaults.
type Options struct {
	// InstanceID tags relayed events so an instance skips its own.
	InstanceID string
	// TypingBacklogLimit drops typing indicators once a room has this many tasks waiting.
	TypingBacklogLimit int
	// DefaultLanguage is used for room-wide notices.
	DefaultLanguage string
	// Relay is optional; nil keeps fan-out local to this process.
	Relay Relay
}

// Router receives session events, applies access control, persists messages
// and fans events out to the sessions joined to a room. Every room-scoped
// operation runs on that room's sequential pipeline, which is what keeps
// persistence order and delivery order identical within a room.
type Router struct {
	log      *slog.Logger
	store    Gateway
	policy   Authorizer
	registry *SessionRegistry
	locale   *localization.Localizer
	validate *validator.Validate

	pipelines   *roomPipelines
	relay       Relay
	publisher   *relayPublisher
	instanceID  string
	typingLimit int
	lang        string
}

func NewRouter(log *slog.Logger, store Gateway, policy Authorizer, registry *SessionRegistry,
	locale *localization.Localizer, opts Options) *Router {
	if opts.TypingBacklogLimit <= 0 {
		opts.TypingBacklogLimit = 32
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	r := &Router{
		log:         log,
		store:       store,
		policy:      policy,
		registry:    registry,
		locale:      locale,
		validate:    validate,
		pipelines:   newRoomPipelines(log),
		relay:       opts.Relay,
		instanceID:  opts.InstanceID,
		typingLimit: opts.TypingBacklogLimit,
		lang:        opts.DefaultLanguage,
	}
	if opts.Relay != nil {
		r.publisher = newRelayPublisher(log, opts.Relay, relayQueueSize)
	}
	return r
}

// Registry exposes the live session registry (presence lookups, shutdown).
func (r *Router) Registry() *SessionRegistry {
	return r.registry
}

// Connect registers a newly authenticated session.
func (r *Router) Connect(c Client) error {
	if err := r.registry.Register(c); err != nil {
		return err
	}
	r.log.Info("User connected", "session_id", c.GetSessionID(), "user_id", c.GetUserID(), "user_name", c.GetUserName())
	return nil
}

// Disconnect removes the session from every room and closes it. Repeated
// calls are no-ops.
func (r *Router) Disconnect(c Client) {
	rooms, ok := r.registry.Unregister(c.GetSessionID())
	c.Close()
	if ok {
		r.log.Info("User disconnected", "session_id", c.GetSessionID(), "user_id", c.GetUserID(), "rooms", rooms)
	}
}

// Join adds the session to the room's broadcast group and tells the other
// sessions in the room. Joining a room twice is a no-op.
func (r *Router) Join(ctx context.Context, c Client, roomID uint) error {
	if roomID == 0 {
		return chaterr.Validation("roomId is required")
	}

	return r.do(ctx, roomID, func(ctx context.Context) error {
		if err := r.authorize(ctx, r.policy.CanRead, c, roomID); err != nil {
			return err
		}

		added, err := r.registry.AddRoom(c.GetSessionID(), roomID)
		if err != nil || !added {
			return err
		}
		r.log.Debug("User joined room", "session_id", c.GetSessionID(), "user_id", c.GetUserID(), "room_id", roomID)

		r.broadcast(roomID, models.OutboundEvent{
			Event: models.EventUserJoined,
			Data: models.UserJoinedPayload{
				UserID:   c.GetUserID(),
				UserName: c.GetUserName(),
				RoomID:   roomID,
				Message:  r.locale.Format(r.lang, "user_joined", c.GetUserName()),
			},
		}, c.GetSessionID())
		return nil
	})
}

// Send validates, authorizes and persists a message, then delivers it to
// every session joined to the room, the sender's included.
func (r *Router) Send(ctx context.Context, c Client, req models.SendMessageRequest) (*models.NewMessagePayload, error) {
	if err := r.validateSend(&req); err != nil {
		return nil, err
	}
	roomID := uint(req.RoomID)

	var sent *models.NewMessagePayload
	err := r.do(ctx, roomID, func(ctx context.Context) error {
		if err := r.authorize(ctx, r.policy.CanPost, c, roomID); err != nil {
			return err
		}

		msg, err := r.store.AppendMessage(ctx, c.GetUserID(), roomID, req.Message, req.MessageType)
		if err != nil {
			return err
		}

		sent = &models.NewMessagePayload{
			ID:          msg.ID,
			SenderID:    c.GetUserID(),
			SenderName:  c.GetUserName(),
			Message:     msg.Body,
			MessageType: msg.Kind,
			Timestamp:   msg.CreatedAt,
			RoomID:      roomID,
			AvatarURL:   c.GetAvatarURL(),
		}
		r.log.Debug("Message saved", "message_id", msg.ID, "room_id", roomID, "sender_id", c.GetUserID())

		r.broadcast(roomID, models.OutboundEvent{Event: models.EventNewMessage, Data: *sent}, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

func (r *Router) validateSend(req *models.SendMessageRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		req.Message = ""
	}
	if err := r.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return chaterr.Validation("%s is required", fe.Field())
			}
			return chaterr.Validation("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return chaterr.Validation("%v", err)
	}
	if req.MessageType == "" {
		req.MessageType = models.DefaultMessageType
	}
	return nil
}

// TypingStart and TypingStop relay an advisory indicator to the other sessions
// of a room the session has joined. They are silently ignored otherwise and
// may be dropped when the room is backlogged.
func (r *Router) TypingStart(c Client, roomID uint) {
	r.typing(c, roomID, models.EventUserTyping)
}

func (r *Router) TypingStop(c Client, roomID uint) {
	r.typing(c, roomID, models.EventUserStoppedTyping)
}

func (r *Router) typing(c Client, roomID uint, event string) {
	if !r.registry.IsJoined(c.GetSessionID(), roomID) {
		return
	}
	evt := models.OutboundEvent{
		Event: event,
		Data:  models.TypingPayload{UserID: c.GetUserID(), UserName: c.GetUserName(), RoomID: roomID},
	}
	queued := r.pipelines.submitBounded(roomID, r.typingLimit, func() {
		if !r.registry.IsJoined(c.GetSessionID(), roomID) {
			return
		}
		r.broadcast(roomID, evt, c.GetSessionID())
	})
	if !queued {
		r.log.Debug("Typing indicator dropped", "room_id", roomID, "session_id", c.GetSessionID())
	}
}

// authorize runs an access check and performs the auto-join it may ask for.
func (r *Router) authorize(ctx context.Context,
	check func(context.Context, uint, uint) (access.Decision, error), c Client, roomID uint) error {
	decision, err := check(ctx, roomID, c.GetUserID())
	if err != nil {
		return err
	}
	if decision.AutoJoinRequired {
		if err := r.store.InsertMembership(ctx, roomID, c.GetUserID()); err != nil {
			return err
		}
		r.log.Info("User auto-joined public room", "user_id", c.GetUserID(), "room_id", roomID)
	}
	return nil
}

// do runs fn on the room's pipeline and waits for it. fn gets a context that
// is not cancelled with the caller's, so an operation that already started
// runs to completion even if the client goes away.
func (r *Router) do(ctx context.Context, roomID uint, fn func(context.Context) error) error {
	taskCtx := context.WithoutCancel(ctx)
	done := make(chan error, 1)
	r.pipelines.submit(roomID, func() {
		done <- fn(taskCtx)
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// broadcast delivers evt to the room's current sessions except exclude and
// then queues it for the relay. Must run on the room's pipeline.
func (r *Router) broadcast(roomID uint, evt models.OutboundEvent, exclude string) {
	r.fanout(roomID, evt, exclude)
	r.publish(roomID, evt)
}

func (r *Router) fanout(roomID uint, evt models.OutboundEvent, exclude string) {
	targets := r.registry.SessionsInRoom(roomID)

	dropped := 0
	for _, target := range targets {
		if target.GetSessionID() == exclude {
			continue
		}
		if !r.deliver(target, evt) {
			dropped++
		}
	}
	if dropped > 0 {
		r.log.Warn("Broadcast not delivered to every session",
			"room_id", roomID, "event", evt.Event, "targets", len(targets), "dropped", dropped)
	}
}

// deliver isolates one recipient: a panic or full buffer only loses this delivery.
func (r *Router) deliver(c Client, evt models.OutboundEvent) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Recovered from panic while delivering", "session_id", c.GetSessionID(), "panic", rec)
			ok = false
		}
	}()
	return c.Deliver(evt)
}

func (r *Router) publish(roomID uint, evt models.OutboundEvent) {
	if r.publisher == nil {
		return
	}
	data, err := json.Marshal(evt.Data)
	if err != nil {
		r.log.Error("Failed to encode relay event", "room_id", roomID, "event", evt.Event, "error", err)
		return
	}

	env := models.RelayEnvelope{Origin: r.instanceID, RoomID: roomID, Event: evt.Event, Data: data}
	if !r.publisher.enqueue(env) {
		r.log.Warn("Relay queue unavailable, event stays local", "room_id", roomID, "event", evt.Event)
	}
}

// RunRelay consumes events published by other instances and fans them out to
// this instance's sessions until ctx is done. It returns immediately when no
// relay is configured.
func (r *Router) RunRelay(ctx context.Context) error {
	if r.relay == nil {
		return nil
	}
	events, err := r.relay.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	r.log.Info("Relay subscriber started", "instance_id", r.instanceID)

	for env := range events {
		r.receive(env)
	}
	return nil
}

func (r *Router) receive(env models.RelayEnvelope) {
	if env.Origin == r.instanceID || env.RoomID == 0 {
		return
	}
	evt := models.OutboundEvent{Event: env.Event, Data: env.Data}

	switch env.Event {
	case models.EventUserTyping, models.EventUserStoppedTyping:
		r.pipelines.submitBounded(env.RoomID, r.typingLimit, func() {
			r.fanout(env.RoomID, evt, "")
		})
	case models.EventNewMessage, models.EventUserJoined:
		r.pipelines.submit(env.RoomID, func() {
			r.fanout(env.RoomID, evt, "")
		})
	default:
		r.log.Warn("Ignoring relayed event", "event", env.Event, "origin", env.Origin)
	}
}

// reportError sends err to the originating session only.
func (r *Router) reportError(c Client, err error) {
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, context.Canceled) {
		return
	}

	kind := chaterr.KindOf(err)
	payload := models.ErrorPayload{
		Kind:    string(kind),
		Message: r.locale.GetString(c.GetLanguage(), "error."+string(kind)),
	}
	if kind == chaterr.KindValidation {
		payload.Detail = strings.TrimPrefix(err.Error(), chaterr.ErrValidation.Error()+": ")
	}

	if kind == chaterr.KindStorage {
		r.log.Error("Operation failed", "session_id", c.GetSessionID(), "user_id", c.GetUserID(), "error", err)
	} else {
		r.log.Debug("Operation rejected", "session_id", c.GetSessionID(), "kind", kind, "error", err)
	}
	r.deliver(c, models.OutboundEvent{Event: models.EventError, Data: payload})
}

// Shutdown disconnects every session, waits for in-flight room work and then
// flushes events still queued for the relay.
func (r *Router) Shutdown(ctx context.Context) error {
	for _, c := range r.registry.Clients() {
		r.Disconnect(c)
	}

	done := make(chan struct{})
	go func() {
		r.pipelines.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.publisher != nil {
		return r.publisher.close(ctx)
	}
	return nil
}
