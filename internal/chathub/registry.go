package chathub

import (
	"errors"
	"sort"
	"sync"

	"roomchat/backend/internal/models"

	"github.com/samber/lo"
)

var (
	ErrSessionExists   = errors.New("session already registered")
	ErrSessionNotFound = errors.New("session not registered")
)

type sessionEntry struct {
	client Client
	rooms  map[uint]struct{}
}

// SessionRegistry tracks live sessions and the rooms each one joined during
// its lifetime. This is live delivery state only; durable membership lives in
// storage.
//
// All mutations and snapshots go through one RWMutex, so a broadcast snapshot
// either contains a session with all its rooms or does not contain it at all.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	rooms    map[uint]map[string]Client
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*sessionEntry),
		rooms:    make(map[uint]map[string]Client),
	}
}

// Register adds a freshly connected session with an empty join set.
func (r *SessionRegistry) Register(c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[c.GetSessionID()]; ok {
		return ErrSessionExists
	}
	r.sessions[c.GetSessionID()] = &sessionEntry{client: c, rooms: make(map[uint]struct{})}
	return nil
}

// AddRoom puts the session into the room's live set. It reports false when the
// session was already there.
func (r *SessionRegistry) AddRoom(sessionID string, roomID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrSessionNotFound
	}
	if _, joined := entry.rooms[roomID]; joined {
		return false, nil
	}
	entry.rooms[roomID] = struct{}{}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Client)
		r.rooms[roomID] = members
	}
	members[sessionID] = entry.client
	return true, nil
}

// RemoveRoom takes the session out of one room's live set.
func (r *SessionRegistry) RemoveRoom(sessionID string, roomID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if _, joined := entry.rooms[roomID]; !joined {
		return false
	}
	delete(entry.rooms, roomID)
	r.dropFromRoom(sessionID, roomID)
	return true
}

// Unregister removes the session from every room at once and returns the
// rooms it had joined.
func (r *SessionRegistry) Unregister(sessionID string) ([]uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sessionID)

	rooms := lo.Keys(entry.rooms)
	for _, roomID := range rooms {
		r.dropFromRoom(sessionID, roomID)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms, true
}

func (r *SessionRegistry) dropFromRoom(sessionID string, roomID uint) {
	members := r.rooms[roomID]
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// IsJoined reports whether the session is in the room's live set.
func (r *SessionRegistry) IsJoined(sessionID string, roomID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	_, joined := entry.rooms[roomID]
	return joined
}

// SessionsInRoom returns a snapshot of the clients joined to roomID.
func (r *SessionRegistry) SessionsInRoom(roomID uint) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.rooms[roomID])
}

// SessionIDsInRoom is SessionsInRoom reduced to sorted session ids.
func (r *SessionRegistry) SessionIDsInRoom(roomID uint) []string {
	r.mu.RLock()
	ids := lo.Keys(r.rooms[roomID])
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Presence lists the users that currently have at least one session in roomID.
func (r *SessionRegistry) Presence(roomID uint) []models.PresenceEntry {
	byUser := make(map[uint]*models.PresenceEntry)
	for _, c := range r.SessionsInRoom(roomID) {
		p, ok := byUser[c.GetUserID()]
		if !ok {
			p = &models.PresenceEntry{UserID: c.GetUserID(), UserName: c.GetUserName()}
			byUser[c.GetUserID()] = p
		}
		p.Sessions++
	}

	out := lo.MapToSlice(byUser, func(_ uint, p *models.PresenceEntry) models.PresenceEntry { return *p })
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Lookup returns the client registered under sessionID.
func (r *SessionRegistry) Lookup(sessionID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return entry.client, true
}

// Clients returns every registered session.
func (r *SessionRegistry) Clients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapToSlice(r.sessions, func(_ string, e *sessionEntry) Client { return e.client })
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
