package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geochat/internal/app/user"
	"geochat/internal/pkg/errs"
)

func newMessengerEnv(users *fakeUserStore) (*Messenger, *Hub, *fakeMessageStore, *fakeReportStore, *fakeNotifier) {
	hub := NewHub()
	messages := &fakeMessageStore{}
	reports := &fakeReportStore{}
	notifier := &fakeNotifier{}
	ms := NewMessenger(hub, users, messages, reports, notifier)
	return ms, hub, messages, reports, notifier
}

func TestNewMessageRequiresSeat(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada"})
	ms, hub, messages, _, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")

	cerr := ms.NewMessage(context.Background(), c, NewMessagePayload{RoomID: "lagos", Content: "hello"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotInRoom, cerr.Code)
	assert.Empty(t, messages.messages)
}

func TestNewMessageStoreFailureIsNotSeatingError(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"})
	users.findErr = errors.New("connection refused")
	ms, hub, messages, _, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")
	hub.JoinRoom(c, "lagos")

	cerr := ms.NewMessage(context.Background(), c, NewMessagePayload{RoomID: "lagos", Content: "hello"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrStoreFailure, cerr.Code)
	assert.Empty(t, messages.messages)
}

func TestNewMessageRejectsEmptyContent(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"})
	ms, hub, messages, _, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")
	hub.JoinRoom(c, "lagos")

	cerr := ms.NewMessage(context.Background(), c, NewMessagePayload{RoomID: "lagos", Content: "   "})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrEmptyMessage, cerr.Code)
	assert.Empty(t, messages.messages)
}

func TestNewMessageRejectsWrongRoom(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"})
	ms, hub, messages, _, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")
	hub.JoinRoom(c, "lagos")

	cerr := ms.NewMessage(context.Background(), c, NewMessagePayload{RoomID: "abuja", Content: "hello"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrWrongRoom, cerr.Code)
	assert.Empty(t, messages.messages)
}

func TestNewMessageRejectsBlockedSender(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos", IsBlocked: true})
	ms, hub, messages, _, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")
	hub.JoinRoom(c, "lagos")

	cerr := ms.NewMessage(context.Background(), c, NewMessagePayload{RoomID: "lagos", Content: "hello"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrUserBlocked, cerr.Code)
	assert.Empty(t, messages.messages)
}

func TestNewMessagePersistsAndBroadcasts(t *testing.T) {
	users := newFakeUserStore(
		&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos", MyRooms: []string{"lagos"}},
		&user.User{ID: "u2", Name: "Ben", AssignedRoom: "lagos", MyRooms: []string{"lagos"}, PushToken: "tok-ben"},
	)
	ms, hub, messages, _, notifier := newMessengerEnv(users)

	c1 := newTestClient(t, hub, "u1")
	c2 := newTestClient(t, hub, "u2")
	hub.JoinRoom(c1, "lagos")
	hub.JoinRoom(c2, "lagos")

	cerr := ms.NewMessage(context.Background(), c1, NewMessagePayload{RoomID: "Lagos ", Content: "hello room"})
	require.Nil(t, cerr)

	require.Len(t, messages.messages, 1)
	stored := messages.messages[0]
	assert.Equal(t, "u1", stored.SenderID)
	assert.Equal(t, "lagos", stored.Room)
	assert.Equal(t, "hello room", stored.Content)
	assert.Equal(t, "normal", stored.MessageType)

	// The room sees the message, the sender additionally gets the ack.
	require.NotNil(t, findEvent(drainEvents(t, c2), EventMessage))

	senderEvents := drainEvents(t, c1)
	require.NotNil(t, findEvent(senderEvents, EventMessage))
	sent := findEvent(senderEvents, EventMessageSent)
	require.NotNil(t, sent)

	var ack MessageSentPayload
	require.NoError(t, json.Unmarshal(sent.Payload, &ack))
	assert.Equal(t, stored.ID, ack.MessageID)

	// Push goes to the member with a registered device, never the sender.
	assert.Equal(t, []string{"tok-ben"}, notifier.tokens)
}

func TestNewMessageTagPrefixesContent(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"})
	ms, hub, messages, _, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")
	hub.JoinRoom(c, "lagos")

	cerr := ms.NewMessage(context.Background(), c, NewMessagePayload{RoomID: "lagos", Content: "free pizza", Tag: "event"})
	require.Nil(t, cerr)

	require.Len(t, messages.messages, 1)
	assert.Equal(t, "[event] free pizza", messages.messages[0].Content)
	assert.Equal(t, "event", messages.messages[0].MessageType)
}

func TestNewMessageDeliversMentions(t *testing.T) {
	users := newFakeUserStore(
		&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"},
		&user.User{ID: "u2", Name: "Ben", AssignedRoom: "lagos"},
	)
	ms, hub, messages, _, _ := newMessengerEnv(users)

	c1 := newTestClient(t, hub, "u1")
	c2 := newTestClient(t, hub, "u2")
	hub.JoinRoom(c1, "lagos")
	hub.JoinRoom(c2, "lagos")

	// The mentioned user's durable record must point at their live connection.
	u2 := users.get("u2")
	u2.ConnectionID = c2.ConnID()

	cerr := ms.NewMessage(context.Background(), c1, NewMessagePayload{
		RoomID:  "lagos",
		Content: "hey @[Ben](u2) look at this",
	})
	require.Nil(t, cerr)

	require.Len(t, messages.messages, 1)
	assert.Equal(t, []string{"u2"}, messages.messages[0].Mentions)

	mentioned := findEvent(drainEvents(t, c2), EventMentioned)
	require.NotNil(t, mentioned)

	var p MentionedPayload
	require.NoError(t, json.Unmarshal(mentioned.Payload, &p))
	assert.Equal(t, "Ada", p.From)
	assert.Equal(t, "lagos", p.RoomID)
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"none", "plain text", nil},
		{"single", "hi @[Ada](u1)", []string{"u1"}},
		{"multiple", "@[Ada](u1) and @[Ben](u2), listen", []string{"u1", "u2"}},
		{"unterminated", "hi @[Ada](u1 and @Ben u2", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMentions(tt.content))
		})
	}
}

func TestTypingBroadcast(t *testing.T) {
	users := newFakeUserStore(
		&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"},
		&user.User{ID: "u2", Name: "Ben", AssignedRoom: "lagos"},
	)
	ms, hub, _, _, _ := newMessengerEnv(users)

	c1 := newTestClient(t, hub, "u1")
	c2 := newTestClient(t, hub, "u2")
	hub.JoinRoom(c1, "lagos")
	hub.JoinRoom(c2, "lagos")

	require.Nil(t, ms.Typing(context.Background(), c1, TypingPayload{Status: true}))

	typing := findEvent(drainEvents(t, c2), EventUserTyping)
	require.NotNil(t, typing)

	var p UserTypingPayload
	require.NoError(t, json.Unmarshal(typing.Payload, &p))
	assert.Equal(t, "Ada", p.Name)
	assert.True(t, p.Status)
}

func TestReportAbuseValidation(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"})
	ms, hub, _, reports, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")
	hub.JoinRoom(c, "lagos")

	cerr := ms.ReportAbuse(context.Background(), c, ReportAbusePayload{Reason: "spam"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrInvalidReport, cerr.Code)

	cerr = ms.ReportAbuse(context.Background(), c, ReportAbusePayload{ReportedUserID: "u2", Reason: "  "})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrInvalidReport, cerr.Code)

	assert.Empty(t, reports.reports)
}

func TestReportAbusePersists(t *testing.T) {
	users := newFakeUserStore(&user.User{ID: "u1", Name: "Ada", AssignedRoom: "lagos"})
	ms, hub, _, reports, _ := newMessengerEnv(users)

	c := newTestClient(t, hub, "u1")
	hub.JoinRoom(c, "lagos")

	cerr := ms.ReportAbuse(context.Background(), c, ReportAbusePayload{
		ReportedUserID: "u2",
		Reason:         "  harassment ",
		RoomID:         "lagos",
	})
	require.Nil(t, cerr)

	require.Len(t, reports.reports, 1)
	r := reports.reports[0]
	assert.Equal(t, "u1", r.ReportedBy)
	assert.Equal(t, "u2", r.ReportedUser)
	assert.Equal(t, "harassment", r.Reason)

	success := findEvent(drainEvents(t, c), EventReportSuccess)
	require.NotNil(t, success)
}
