/*
Package chat contains the real-time core: the connection hub, room assignment,
message fan-out, and 1:1 video-chat matchmaking.

This file defines the Coordinator, which resolves which room a joining
connection lands in and keeps the durable presence record consistent with the
hub across join, leave, and disconnect.
*/
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"geochat/internal/app/user"
	"geochat/internal/pkg/errs"
	"geochat/internal/pkg/limiter"
	"geochat/internal/pkg/logx"
)

// Coordinator resolves room membership for connecting users. Resolution runs
// in a fixed priority order: sticky reassignment, explicit existing room,
// city room, geo room. The first branch that matches wins.
type Coordinator struct {
	hub   *Hub
	users user.Store
	rooms RoomStore
	joins *limiter.JoinLimiter

	logger zerolog.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(hub *Hub, users user.Store, rooms RoomStore, joins *limiter.JoinLimiter) *Coordinator {
	return &Coordinator{
		hub:    hub,
		users:  users,
		rooms:  rooms,
		joins:  joins,
		logger: logx.Logger().With().Str("component", "Coordinator").Logger(),
	}
}

// fetchUser loads the durable record, translating store failures into the
// error taxonomy.
func (co *Coordinator) fetchUser(ctx context.Context, id string) (*user.User, *errs.CustomError) {
	u, err := co.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, errs.NewError(errs.ErrUserNotFound)
		}
		co.logger.Error().Err(err).Str("user_id", id).Msg("User lookup failed.")
		return nil, errs.NewError(errs.ErrStoreFailure)
	}
	return u, nil
}

// Join resolves a join-room request. The returned error, if any, is reported
// to the originating connection only; no state has been mutated when an error
// comes back from a branch that failed before persisting.
func (co *Coordinator) Join(ctx context.Context, c *Client, p JoinRoomPayload) *errs.CustomError {
	key := NormalizeRoomKey(p.RoomID)

	// Admission first; the rejected attempt still counts toward the window.
	if !co.joins.Allow(c.userID) {
		return errs.NewError(errs.ErrTooManyJoinAttempts)
	}

	u, cerr := co.fetchUser(ctx, c.userID)
	if cerr != nil {
		return cerr
	}
	if u.IsBlocked {
		return errs.NewError(errs.ErrUserBlocked)
	}

	hasCoords := len(p.Coordinates) == 2

	if key == "" && !hasCoords {
		return errs.NewError(errs.ErrNoRoomCriteria)
	}

	// A reported location is recorded on whichever branch persists, keeping
	// the nearest-user query fed even for city and sticky joins.
	if hasCoords {
		u.Longitude = &p.Coordinates[0]
		u.Latitude = &p.Coordinates[1]
	}

	// 1. Sticky reassignment: an already-seated user rejoins their room no
	// matter what the request supplied. A stray join can never silently move
	// someone.
	if u.AssignedRoom != "" {
		return co.rejoinAssigned(ctx, c, u)
	}

	// 2. Explicit existing room.
	if key != "" {
		exists, err := co.rooms.Exists(ctx, key)
		if err != nil {
			co.logger.Error().Err(err).Str("room", key).Msg("Room existence check failed.")
			return errs.NewError(errs.ErrStoreFailure)
		}
		if exists {
			return co.finalizeJoin(ctx, c, u, key, "You have joined the existing room successfully")
		}
	}

	// 3. City room, created on first use.
	if p.IsCity && key != "" {
		if err := co.rooms.Touch(ctx, key); err != nil {
			co.logger.Error().Err(err).Str("room", key).Msg("City room touch failed.")
			return errs.NewError(errs.ErrStoreFailure)
		}
		return co.finalizeJoin(ctx, c, u, key, "You have joined the room successfully")
	}

	// 4. Geo room: nearest assigned user within range wins, otherwise a key
	// synthesized from the coordinates.
	if hasCoords {
		lon, lat := p.Coordinates[0], p.Coordinates[1]

		nearest, err := co.users.NearestAssigned(ctx, lon, lat, GeoRoomRadiusMeters)
		if err != nil {
			co.logger.Error().Err(err).Msg("Nearest-user geo query failed.")
			return errs.NewError(errs.ErrStoreFailure)
		}

		if nearest != nil && nearest.AssignedRoom != "" {
			return co.finalizeJoin(ctx, c, u, nearest.AssignedRoom, "You have joined the room successfully")
		}

		geoKey := GeoRoomKey(lon, lat)
		if err := co.rooms.Touch(ctx, geoKey); err != nil {
			co.logger.Error().Err(err).Str("room", geoKey).Msg("Geo room touch failed.")
			return errs.NewError(errs.ErrStoreFailure)
		}
		return co.finalizeJoin(ctx, c, u, geoKey, "You have joined the room successfully")
	}

	return errs.NewError(errs.ErrNoRoomCriteria)
}

// rejoinAssigned seats the user back into their durable room assignment.
// Broadcasts only the presence snapshot, not a join notification; the user
// never left as far as the room is concerned.
func (co *Coordinator) rejoinAssigned(ctx context.Context, c *Client, u *user.User) *errs.CustomError {
	u.IsOnline = true
	u.ConnectionID = c.connID

	if err := co.users.SavePresence(ctx, u); err != nil {
		co.logger.Error().Err(err).Str("user_id", u.ID).Msg("Presence save failed on sticky rejoin.")
		return errs.NewError(errs.ErrStoreFailure)
	}

	co.hub.JoinRoom(c, u.AssignedRoom)

	co.hub.Broadcast(u.AssignedRoom, EventRoomInfo, RoomInfoPayload{
		RoomID: u.AssignedRoom,
		Active: true,
		Online: co.hub.RoomSize(u.AssignedRoom),
	})

	c.sendEvent(EventRoomJoined, RoomJoinedPayload{
		RoomID:  u.AssignedRoom,
		Message: "You have joined your existing room successfully",
	})

	return nil
}

// finalizeJoin commits a resolved room choice: durable record first, then the
// hub tag, then the broadcasts, so a membership query raced by a broadcast
// already sees the new state.
func (co *Coordinator) finalizeJoin(ctx context.Context, c *Client, u *user.User, key, confirmation string) *errs.CustomError {
	// Only reachable when the user was unassigned, so this is always a new
	// assignment and the geo tie-break timestamp moves.
	now := time.Now()
	u.AssignedRoom = key
	u.AssignedAt = &now
	u.AddRoom(key)
	u.IsOnline = true
	u.ConnectionID = c.connID

	if err := co.users.SavePresence(ctx, u); err != nil {
		co.logger.Error().Err(err).Str("user_id", u.ID).Str("room", key).Msg("Presence save failed on join.")
		return errs.NewError(errs.ErrStoreFailure)
	}

	co.hub.JoinRoom(c, key)

	snapshot := userSnapshot(u, c.connID)
	co.hub.Broadcast(key, EventUserJoined, snapshot)

	added := snapshot
	added.RoomID = key
	co.hub.Broadcast(key, EventMemberAdded, added)

	co.hub.Broadcast(key, EventRoomInfo, co.roomInfo(ctx, key))

	c.sendEvent(EventRoomJoined, RoomJoinedPayload{RoomID: key, Message: confirmation})

	co.logger.Info().
		Str("user_id", u.ID).
		Str("connection_id", c.connID).
		Str("room", key).
		Msg("User joined room.")

	return nil
}

// roomInfo builds the membership snapshot for a room: live connections from
// the hub, durable member count from the store. A failed count is logged and
// reported as zero rather than failing the join.
func (co *Coordinator) roomInfo(ctx context.Context, key string) RoomInfoPayload {
	members, err := co.users.CountByAssignedRoom(ctx, key)
	if err != nil {
		co.logger.Error().Err(err).Str("room", key).Msg("Member count query failed.")
		members = 0
	}

	return RoomInfoPayload{
		RoomID:  key,
		Active:  true,
		Online:  co.hub.RoomSize(key),
		Members: members,
	}
}

// JoinKnownRoom returns a user to a previously visited room without running
// the geo/city resolution. Refused when the room is not in the user's
// visited-room set.
func (co *Coordinator) JoinKnownRoom(ctx context.Context, c *Client, roomID string) *errs.CustomError {
	key := NormalizeRoomKey(roomID)

	u, cerr := co.fetchUser(ctx, c.userID)
	if cerr != nil {
		// The client cannot distinguish a missing user from a missing grant.
		return errs.NewError(errs.ErrRoomNotAllowed)
	}

	if key == "" || !u.HasRoom(key) {
		return errs.NewError(errs.ErrRoomNotAllowed)
	}

	if u.AssignedRoom != key {
		now := time.Now()
		u.AssignedAt = &now
	}
	u.AssignedRoom = key
	u.IsOnline = true
	u.ConnectionID = c.connID

	if err := co.users.SavePresence(ctx, u); err != nil {
		co.logger.Error().Err(err).Str("user_id", u.ID).Str("room", key).Msg("Presence save failed on known-room join.")
		return errs.NewError(errs.ErrStoreFailure)
	}

	co.hub.JoinRoom(c, key)

	co.hub.Broadcast(key, EventRoomInfo, co.roomInfo(ctx, key))

	c.sendEvent(EventRoomJoined, RoomJoinedPayload{
		RoomID:  key,
		Message: "You have joined your room successfully",
	})

	return nil
}

// Leave clears the user's room assignment and presence. The acknowledgement
// always goes back to the caller; the departure broadcast goes to the room
// the user just left.
func (co *Coordinator) Leave(ctx context.Context, c *Client) {
	u, err := co.users.FindByID(ctx, c.userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.sendEvent(EventLeaveAck, LeaveAckPayload{Error: "You are not in any room"})
			return
		}
		co.logger.Error().Err(err).Str("user_id", c.userID).Msg("User lookup failed on leave.")
		c.sendEvent(EventLeaveAck, LeaveAckPayload{Error: "Error leaving room"})
		return
	}
	if u.AssignedRoom == "" {
		c.sendEvent(EventLeaveAck, LeaveAckPayload{Error: "You are not in any room"})
		return
	}

	current := u.AssignedRoom

	u.AssignedRoom = ""
	u.AssignedAt = nil
	u.IsOnline = false
	u.ConnectionID = ""

	if err := co.users.SavePresence(ctx, u); err != nil {
		co.logger.Error().Err(err).Str("user_id", u.ID).Msg("Presence save failed on leave.")
		c.sendEvent(EventLeaveAck, LeaveAckPayload{Error: "Error leaving room"})
		return
	}

	co.hub.LeaveRoom(c)

	snapshot := userSnapshot(u, c.connID)
	snapshot.RoomID = current
	co.hub.Broadcast(current, EventUserLeft, snapshot)

	c.sendEvent(EventLeaveAck, LeaveAckPayload{Success: true})

	co.logger.Info().
		Str("user_id", u.ID).
		Str("room", current).
		Msg("User left room.")
}

// HandleDisconnect performs the room-presence half of transport teardown:
// the join window is discarded, the durable record is marked offline (the
// room assignment stays, powering the sticky rejoin), and the room is told
// the user went offline.
func (co *Coordinator) HandleDisconnect(ctx context.Context, c *Client) {
	co.joins.Forget(c.userID)

	co.hub.LeaveRoom(c)

	u, err := co.users.MarkOffline(ctx, c.userID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			co.logger.Error().Err(err).Str("user_id", c.userID).Msg("Mark-offline failed on disconnect.")
		}
		return
	}

	if u.AssignedRoom != "" {
		snapshot := userSnapshot(u, "")
		snapshot.RoomID = u.AssignedRoom
		snapshot.Online = co.hub.RoomSize(u.AssignedRoom)
		co.hub.Broadcast(u.AssignedRoom, EventUserOffline, snapshot)
	}
}
