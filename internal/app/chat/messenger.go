/*
Package chat contains the real-time core: the connection hub, room assignment,
message fan-out, and 1:1 video-chat matchmaking.

This file defines the Messenger, which handles room-scoped content events:
messages with mentions and push fan-out, typing indicators, and abuse reports.
*/
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"geochat/internal/app/notify"
	"geochat/internal/app/user"
	"geochat/internal/pkg/errs"
	"geochat/internal/pkg/logx"
)

// mentionPattern matches the client mention syntax @[display name](userID)
// and captures the mentioned user ID.
var mentionPattern = regexp.MustCompile(`@\[[^\]]+\]\(([^)]+)\)`)

// extractMentions returns the user IDs referenced by mention syntax in the
// message content.
func extractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// Messenger handles message, typing, and report events for users seated in a
// room.
type Messenger struct {
	hub      *Hub
	users    user.Store
	messages MessageStore
	reports  ReportStore
	notifier notify.Notifier

	logger zerolog.Logger
}

// NewMessenger constructs a Messenger.
func NewMessenger(hub *Hub, users user.Store, messages MessageStore, reports ReportStore, notifier notify.Notifier) *Messenger {
	return &Messenger{
		hub:      hub,
		users:    users,
		messages: messages,
		reports:  reports,
		notifier: notifier,
		logger:   logx.Logger().With().Str("component", "Messenger").Logger(),
	}
}

// seatedUser loads the sender and verifies a current room assignment. A store
// failure is reported as such, never as a seating error.
func (ms *Messenger) seatedUser(ctx context.Context, userID string) (*user.User, *errs.CustomError) {
	u, err := ms.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, errs.NewError(errs.ErrNotInRoom)
		}
		ms.logger.Error().Err(err).Str("user_id", userID).Msg("User lookup failed.")
		return nil, errs.NewError(errs.ErrStoreFailure)
	}
	if u.AssignedRoom == "" {
		return nil, errs.NewError(errs.ErrNotInRoom)
	}
	return u, nil
}

// NewMessage validates, persists, and broadcasts a room message, then fans
// out push and mention notifications.
func (ms *Messenger) NewMessage(ctx context.Context, c *Client, p NewMessagePayload) *errs.CustomError {
	u, cerr := ms.seatedUser(ctx, c.userID)
	if cerr != nil {
		return cerr
	}

	if strings.TrimSpace(p.Content) == "" {
		return errs.NewError(errs.ErrEmptyMessage)
	}
	if u.IsBlocked {
		return errs.NewError(errs.ErrUserBlocked)
	}
	if u.AssignedRoom != NormalizeRoomKey(p.RoomID) {
		return errs.NewError(errs.ErrWrongRoom)
	}

	content := p.Content
	messageType := "normal"
	if p.Tag != "" {
		content = fmt.Sprintf("[%s] %s", p.Tag, p.Content)
		messageType = p.Tag
	}

	msg := &Message{
		SenderID:    u.ID,
		SenderName:  u.Name,
		SenderPic:   u.Avatar,
		Room:        u.AssignedRoom,
		Content:     content,
		MessageType: messageType,
		Mentions:    extractMentions(p.Content),
	}

	if err := ms.messages.Insert(ctx, msg); err != nil {
		ms.logger.Error().Err(err).Str("user_id", u.ID).Str("room", u.AssignedRoom).Msg("Message insert failed.")
		return errs.NewError(errs.ErrStoreFailure)
	}

	ms.hub.Broadcast(u.AssignedRoom, EventMessage, msg)

	c.sendEvent(EventMessageSent, MessageSentPayload{
		Message:   "Message sent successfully",
		MessageID: msg.ID,
	})

	// The message is already committed; fan-out failures only get logged.
	ms.fanOut(ctx, u, msg)

	return nil
}

// fanOut delivers push notifications to room members with a registered device
// and mention events to each mentioned user's live connection. All outcomes
// are collected; one failure never short-circuits the rest.
func (ms *Messenger) fanOut(ctx context.Context, sender *user.User, msg *Message) {
	members, err := ms.users.MembersWithPushToken(ctx, msg.Room, sender.ID)
	if err != nil {
		ms.logger.Error().Err(err).Str("room", msg.Room).Msg("Push recipient query failed.")
	}

	failed := 0
	for _, member := range members {
		if err := ms.notifier.Send(ctx, member.PushToken, "New Message", msg.Content); err != nil {
			failed++
			ms.logger.Warn().Err(err).Str("user_id", member.ID).Msg("Push delivery failed.")
		}
	}
	if len(members) > 0 {
		ms.logger.Debug().
			Int("recipients", len(members)).
			Int("failed", failed).
			Str("room", msg.Room).
			Msg("Push fan-out finished.")
	}

	for _, mentionedID := range msg.Mentions {
		mentioned, err := ms.users.FindByID(ctx, mentionedID)
		if err != nil || mentioned.ConnectionID == "" {
			continue
		}

		ms.hub.SendTo(mentioned.ConnectionID, EventMentioned, MentionedPayload{
			Message: msg.Content,
			From:    sender.Name,
			RoomID:  msg.Room,
		})
	}
}

// Typing broadcasts the sender's typing status to their room.
func (ms *Messenger) Typing(ctx context.Context, c *Client, p TypingPayload) *errs.CustomError {
	u, cerr := ms.seatedUser(ctx, c.userID)
	if cerr != nil {
		return cerr
	}

	ms.hub.Broadcast(u.AssignedRoom, EventUserTyping, UserTypingPayload{
		Name:   u.Name,
		Status: p.Status,
	})

	return nil
}

// ReportAbuse validates and persists an abuse report from a seated user.
func (ms *Messenger) ReportAbuse(ctx context.Context, c *Client, p ReportAbusePayload) *errs.CustomError {
	u, cerr := ms.seatedUser(ctx, c.userID)
	if cerr != nil {
		return cerr
	}

	if p.ReportedUserID == "" || strings.TrimSpace(p.Reason) == "" {
		return errs.NewError(errs.ErrInvalidReport)
	}

	report := &Report{
		ReportedBy:   u.ID,
		ReportedUser: p.ReportedUserID,
		Reason:       strings.TrimSpace(p.Reason),
		Room:         p.RoomID,
		Context:      p.Context,
	}

	if err := ms.reports.Insert(ctx, report); err != nil {
		ms.logger.Error().Err(err).Str("user_id", u.ID).Msg("Report insert failed.")
		return errs.NewError(errs.ErrStoreFailure)
	}

	c.sendEvent(EventReportSuccess, ReportSuccessPayload{Message: "Report submitted successfully"})

	return nil
}
