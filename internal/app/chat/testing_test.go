package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"geochat/internal/app/user"
)

// fakeUserStore is an in-memory user.Store for coordinator and messenger
// tests.
type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]*user.User
	nearest *user.User
	findErr error
	saveErr error
	saves   int
}

func newFakeUserStore(users ...*user.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*user.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) FindByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) SavePresence(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.users[u.ID]; !ok {
		return user.ErrNotFound
	}
	copied := *u
	s.users[u.ID] = &copied
	s.saves++
	return nil
}

func (s *fakeUserStore) NearestAssigned(ctx context.Context, lon, lat, radiusMeters float64) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nearest, nil
}

func (s *fakeUserStore) CountByAssignedRoom(ctx context.Context, room string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, u := range s.users {
		if u.AssignedRoom == room {
			count++
		}
	}
	return count, nil
}

func (s *fakeUserStore) MarkOffline(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.IsOnline = false
	u.ConnectionID = ""
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) MembersWithPushToken(ctx context.Context, room string, excludeID string) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []user.User
	for _, u := range s.users {
		if u.ID == excludeID || u.PushToken == "" {
			continue
		}
		for _, r := range u.MyRooms {
			if r == room {
				members = append(members, *u)
				break
			}
		}
	}
	return members, nil
}

func (s *fakeUserStore) get(id string) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.users[id]
}

// fakeRoomStore is an in-memory RoomStore recording touches.
type fakeRoomStore struct {
	mu       sync.Mutex
	existing map[string]bool
	touched  []string
}

func newFakeRoomStore(existing ...string) *fakeRoomStore {
	s := &fakeRoomStore{existing: make(map[string]bool)}
	for _, key := range existing {
		s.existing[key] = true
	}
	return s
}

func (s *fakeRoomStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.existing[key], nil
}

func (s *fakeRoomStore) Touch(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.existing[key] = true
	s.touched = append(s.touched, key)
	return nil
}

// fakeMessageStore records inserted messages.
type fakeMessageStore struct {
	mu       sync.Mutex
	messages []Message
}

func (s *fakeMessageStore) Insert(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = "msg-1"
	}
	s.messages = append(s.messages, *m)
	return nil
}

// fakeReportStore records inserted reports.
type fakeReportStore struct {
	mu      sync.Mutex
	reports []Report
}

func (s *fakeReportStore) Insert(ctx context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, *r)
	return nil
}

// fakeNotifier records push deliveries.
type fakeNotifier struct {
	mu     sync.Mutex
	tokens []string
}

func (n *fakeNotifier) Send(ctx context.Context, deviceToken, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.tokens = append(n.tokens, deviceToken)
	return nil
}

// newTestClient builds a client with no transport; events pile up in the send
// channel for inspection.
func newTestClient(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()

	c := NewClient(nil, nil, userID)
	hub.Register(c)
	return c
}

// drainEvents decodes every frame queued on the client's send channel.
func drainEvents(t *testing.T, c *Client) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case frame := <-c.send:
			var e Event
			require.NoError(t, json.Unmarshal(frame, &e))
			events = append(events, e)
		default:
			return events
		}
	}
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

// findEvent returns the first event of the given type, or nil.
func findEvent(events []Event, t EventType) *Event {
	for i := range events {
		if events[i].Type == t {
			return &events[i]
		}
	}
	return nil
}
