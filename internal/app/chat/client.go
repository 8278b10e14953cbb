/*
Package chat contains the real-time core: the connection hub, room assignment,
message fan-out, and 1:1 video-chat matchmaking.

This file defines the Client, one live WebSocket connection bound to an
authenticated user. It owns the read/write pumps and dispatches inbound
events to the coordinator, messenger, and matchmaker.
*/
package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"geochat/internal/pkg/errs"
	"geochat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192
)

// Client represents an active WebSocket connection and its authenticated user.
type Client struct {
	// gw provides the services the client dispatches events to.
	gw *Gateway

	// underlying WebSocket connection.
	conn *websocket.Conn

	// userID is the durable user identity attached at upgrade time.
	userID string

	// connID is the opaque handle for this connection, fresh per upgrade.
	connID string

	// room is the current room tag. Guarded by the hub's mutex.
	room string

	// send queues frames waiting to be written to the connection.
	send chan []byte

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(gw *Gateway, wsConn *websocket.Conn, userID string) *Client {
	connID := uuid.NewString()

	clientLogger := logx.Logger().With().
		Str("user_id", userID).
		Str("connection_id", connID).
		Logger()

	return &Client{
		gw:     gw,
		conn:   wsConn,
		userID: userID,
		connID: connID,
		send:   make(chan []byte, 256),
		logger: clientLogger,
	}
}

// UserID returns the durable user identity bound to this connection.
func (c *Client) UserID() string { return c.userID }

// ConnID returns the connection handle.
func (c *Client) ConnID() string { return c.connID }

// ReadPump reads frames from the connection, handling heartbeats and event
// dispatch, and performs full cleanup when the transport closes.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundEvent(frame)
	}
}

// cleanupOnDisconnect runs when the read pump terminates. Transport teardown
// must look, from other clients' perspective, identical to an explicit
// leave plus leave-video; the gateway performs both halves.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.gw.handleDisconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Connection close error")
	}
}

// processInboundEvent parses the envelope and dispatches to the owning
// service. A failure is reported to this connection only; no event from one
// connection can affect another connection's state.
func (c *Client) processInboundEvent(frame []byte) {
	var event Event
	if err := json.Unmarshal(frame, &event); err != nil {
		c.logger.Warn().Err(err).Bytes("frame", frame).Msg("Client sent invalid JSON")
		return
	}

	// Events carry no deadline: once an operation begins it runs to
	// completion or failure.
	ctx := context.Background()

	switch event.Type {
	case EventJoinRoom:
		var p JoinRoomPayload
		if !c.decodePayload(event.Payload, &p) {
			return
		}
		if cerr := c.gw.Coordinator.Join(ctx, c, p); cerr != nil {
			c.SendError(cerr)
		}

	case EventJoinKnownRoom:
		var p JoinKnownRoomPayload
		if !c.decodePayload(event.Payload, &p) {
			return
		}
		if cerr := c.gw.Coordinator.JoinKnownRoom(ctx, c, p.RoomID); cerr != nil {
			c.SendError(cerr)
		}

	case EventLeaveRoom:
		c.gw.Coordinator.Leave(ctx, c)

	case EventNewMessage:
		var p NewMessagePayload
		if !c.decodePayload(event.Payload, &p) {
			return
		}
		if cerr := c.gw.Messenger.NewMessage(ctx, c, p); cerr != nil {
			c.SendError(cerr)
		}

	case EventTyping:
		var p TypingPayload
		if !c.decodePayload(event.Payload, &p) {
			return
		}
		if cerr := c.gw.Messenger.Typing(ctx, c, p); cerr != nil {
			c.SendError(cerr)
		}

	case EventReportAbuse:
		var p ReportAbusePayload
		if !c.decodePayload(event.Payload, &p) {
			return
		}
		if cerr := c.gw.Messenger.ReportAbuse(ctx, c, p); cerr != nil {
			c.SendError(cerr)
		}

	case EventJoinQueue:
		c.gw.Matchmaker.Enqueue(c.connID)

	case EventOffer, EventAnswer, EventICECandidate:
		c.gw.Matchmaker.Relay(c.connID, event.Type, event.Payload)

	case EventLeaveVideo:
		c.gw.Matchmaker.Leave(c.connID)

	default:
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("Client sent unsupported event type")
	}
}

// decodePayload unmarshals an event payload, reporting a validation error to
// the client on failure.
func (c *Client) decodePayload(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid event payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return false
	}
	return true
}

// WritePump writes queued frames to the connection and keeps the heartbeat
// alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send channel. Returns
// false when the write pump should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends the periodic heartbeat ping. Returns false when the
// write pump should terminate.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// enqueueFrame queues an already-encoded frame for the write pump, dropping
// it when the client cannot keep up.
func (c *Client) enqueueFrame(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
	}
}

// sendEvent encodes and queues a directed event for this connection.
func (c *Client) sendEvent(t EventType, payload any) {
	frame, err := EncodeEvent(t, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(t)).Msg("Error encoding event for client")
		return
	}
	c.enqueueFrame(frame)
}

// SendError queues an error event for this connection.
func (c *Client) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	c.sendEvent(EventError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
