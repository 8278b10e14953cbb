/*
Package chat contains the real-time core: the connection hub, room assignment,
message fan-out, and 1:1 video-chat matchmaking.

This file defines the wire protocol. Every frame in both directions is a JSON
envelope {type, payload}.
*/
package chat

import "encoding/json"

// EventType identifies the kind of event inside the envelope.
type EventType string

// Inbound event types.
const (
	EventJoinRoom      EventType = "join-room"
	EventJoinKnownRoom EventType = "join-known-room"
	EventLeaveRoom     EventType = "leave-room"
	EventNewMessage    EventType = "new-message"
	EventTyping        EventType = "typing"
	EventReportAbuse   EventType = "report-abuse"
	EventJoinQueue     EventType = "join-queue"
	EventOffer         EventType = "offer"
	EventAnswer        EventType = "answer"
	EventICECandidate  EventType = "ice-candidate"
	EventLeaveVideo    EventType = "leave-video"
)

// Outbound event types.
const (
	EventRoomJoined       EventType = "room-joined"
	EventRoomInfo         EventType = "room-info"
	EventUserJoined       EventType = "user-joined"
	EventMemberAdded      EventType = "member-added"
	EventUserLeft         EventType = "user-left"
	EventUserOffline      EventType = "user-offline"
	EventLeaveAck         EventType = "leave-ack"
	EventMessage          EventType = "message"
	EventMessageSent      EventType = "message-sent"
	EventUserTyping       EventType = "user-typing"
	EventMentioned        EventType = "mentioned"
	EventReportSuccess    EventType = "report-success"
	EventPartnerFound     EventType = "partner-found"
	EventWaitingPartner   EventType = "waiting-for-partner"
	EventPartnerLeft      EventType = "partner-left"
	EventError            EventType = "error"
)

// Event is the wire envelope.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEvent marshals an envelope with the given payload.
func EncodeEvent(t EventType, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Event{Type: t, Payload: raw})
}

// JoinRoomPayload is the inbound join-room request.
type JoinRoomPayload struct {
	RoomID string `json:"roomId,omitempty"`
	IsCity bool   `json:"isCity,omitempty"`

	// Coordinates is [longitude, latitude].
	Coordinates []float64 `json:"coordinates,omitempty"`
}

// JoinKnownRoomPayload is the inbound join-known-room request.
type JoinKnownRoomPayload struct {
	RoomID string `json:"roomId"`
}

// NewMessagePayload is the inbound new-message request.
type NewMessagePayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Tag     string `json:"tag,omitempty"`
}

// TypingPayload is the inbound typing indicator.
type TypingPayload struct {
	Status bool `json:"status"`
}

// ReportAbusePayload is the inbound abuse report.
type ReportAbusePayload struct {
	ReportedUserID string `json:"reportedUserId"`
	Reason         string `json:"reason"`
	RoomID         string `json:"roomId,omitempty"`
	Context        string `json:"context,omitempty"`
}

// RoomJoinedPayload confirms a successful join to the joining connection.
type RoomJoinedPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// RoomInfoPayload is the membership snapshot broadcast to a room.
type RoomInfoPayload struct {
	RoomID string `json:"roomId"`
	Active bool   `json:"active"`

	// Online is the number of live connections currently in the room.
	Online int `json:"online"`

	// Members is the number of users durably assigned to the room. It is
	// omitted on the sticky-rejoin path, which reports only live presence.
	Members int `json:"members,omitempty"`
}

// MemberPayload describes a user in join/leave/offline notifications.
type MemberPayload struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
	RoomID       string `json:"roomId,omitempty"`

	// Online carries the remaining live count on user-offline broadcasts.
	Online int `json:"online,omitempty"`
}

// LeaveAckPayload acknowledges a leave-room request.
type LeaveAckPayload struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MessageSentPayload confirms message persistence to the sender.
type MessageSentPayload struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// UserTypingPayload is the typing indicator broadcast.
type UserTypingPayload struct {
	Name   string `json:"name"`
	Status bool   `json:"status"`
}

// MentionedPayload is the directed notification for a mentioned user.
type MentionedPayload struct {
	Message string `json:"message"`
	From    string `json:"from"`
	RoomID  string `json:"roomId"`
}

// ReportSuccessPayload confirms a persisted abuse report.
type ReportSuccessPayload struct {
	Message string `json:"message"`
}

// ErrorPayload is the directed error event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
