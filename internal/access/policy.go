// Package access decides whether a user may read, join or post in a room.
// Decisions are computed from queried state only; performing an auto-join is
// left to the caller.
package access

import (
	"context"
	"fmt"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/models"
)

// RoomState is the slice of persisted state a decision depends on.
type RoomState struct {
	Exists    bool
	IsPrivate bool
	IsMember  bool
}

// Decision is the outcome of an allowed check. AutoJoinRequired tells the
// caller to insert the membership before proceeding.
type Decision struct {
	Allowed          bool
	AutoJoinRequired bool
}

// Evaluate applies the room visibility rules. It returns ErrNotFound for a
// missing room and ErrAccessDenied for a private room the user is not in.
func Evaluate(state RoomState) (Decision, error) {
	if !state.Exists {
		return Decision{}, chaterr.ErrNotFound
	}
	if state.IsPrivate {
		if !state.IsMember {
			return Decision{}, chaterr.ErrAccessDenied
		}
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: true, AutoJoinRequired: !state.IsMember}, nil
}

// Lookup is the part of the persistence gateway the policy reads from.
type Lookup interface {
	FetchRoom(ctx context.Context, roomID uint) (*models.ChatRoom, error)
	FetchMembership(ctx context.Context, roomID, userID uint) (bool, error)
}

// Policy evaluates access against live storage.
type Policy struct {
	store Lookup
}

func NewPolicy(store Lookup) *Policy {
	return &Policy{store: store}
}

// State queries the room and the user's membership.
func (p *Policy) State(ctx context.Context, roomID, userID uint) (RoomState, error) {
	room, err := p.store.FetchRoom(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	if room == nil {
		return RoomState{}, nil
	}
	member, err := p.store.FetchMembership(ctx, roomID, userID)
	if err != nil {
		return RoomState{}, err
	}
	return RoomState{Exists: true, IsPrivate: room.IsPrivate, IsMember: member}, nil
}

func (p *Policy) decide(ctx context.Context, roomID, userID uint) (Decision, error) {
	state, err := p.State(ctx, roomID, userID)
	if err != nil {
		return Decision{}, err
	}
	d, err := Evaluate(state)
	if err != nil {
		return d, fmt.Errorf("room %d: %w", roomID, err)
	}
	return d, nil
}

// CanRead covers history reads and joining a room's live broadcast group.
func (p *Policy) CanRead(ctx context.Context, roomID, userID uint) (Decision, error) {
	return p.decide(ctx, roomID, userID)
}

// CanJoin covers explicit durable joins. Members of a private room may
// "join" again as a no-op; everyone else is denied.
func (p *Policy) CanJoin(ctx context.Context, roomID, userID uint) (Decision, error) {
	return p.decide(ctx, roomID, userID)
}

// CanPost covers sending a message.
func (p *Policy) CanPost(ctx context.Context, roomID, userID uint) (Decision, error) {
	return p.decide(ctx, roomID, userID)
}
