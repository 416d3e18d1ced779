package chathub_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/models"
)

type memberKey struct{ room, user uint }

// memStore is an in-memory gateway. It implements both chathub.Gateway and
// access.Lookup so tests can run the real policy against it.
type memStore struct {
	mu        sync.Mutex
	rooms     map[uint]models.ChatRoom
	members   map[memberKey]bool
	messages  []models.ChatHistory
	appendErr error
	appendHit func()
}

func newMemStore() *memStore {
	return &memStore{
		rooms:   make(map[uint]models.ChatRoom),
		members: make(map[memberKey]bool),
	}
}

func (s *memStore) addRoom(id uint, private bool, members ...uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = models.ChatRoom{ID: id, Name: "room", IsPrivate: private}
	for _, u := range members {
		s.members[memberKey{id, u}] = true
	}
}

func (s *memStore) isMember(roomID, userID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[memberKey{roomID, userID}]
}

func (s *memStore) stored(roomID uint) []models.ChatHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatHistory
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) InsertMembership(_ context.Context, roomID, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{roomID, userID}] = true
	return nil
}

func (s *memStore) AppendMessage(_ context.Context, senderID, roomID uint, body, kind string) (*models.ChatHistory, error) {
	if s.appendHit != nil {
		s.appendHit()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return nil, chaterr.Storage("append message", s.appendErr)
	}
	msg := models.ChatHistory{
		ID:        uint(len(s.messages) + 1),
		SenderID:  senderID,
		RoomID:    roomID,
		Body:      body,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *memStore) FetchRoom(_ context.Context, roomID uint) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (s *memStore) FetchMembership(_ context.Context, roomID, userID uint) (bool, error) {
	return s.isMember(roomID, userID), nil
}

// fakeRelay records published envelopes and lets tests inject remote ones.
type fakeRelay struct {
	mu        sync.Mutex
	published []models.RelayEnvelope
	publishFn func() error
	incoming  chan models.RelayEnvelope
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{incoming: make(chan models.RelayEnvelope, 16)}
}

func (f *fakeRelay) PublishEvent(_ context.Context, env models.RelayEnvelope) error {
	if f.publishFn != nil {
		if err := f.publishFn(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, env)
	return nil
}

func (f *fakeRelay) SubscribeEvents(ctx context.Context) (<-chan models.RelayEnvelope, error) {
	out := make(chan models.RelayEnvelope)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-f.incoming:
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeRelay) events() []models.RelayEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RelayEnvelope(nil), f.published...)
}

var errRelayDown = errors.New("relay down")

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
