/*
Package user contains the durable user record and its store.

The record is the single source of truth for presence: is_online, assigned
room, and the live connection handle. In-memory structures elsewhere are a
derived cache reconciled against it, never the other way around.
*/
package user

import "time"

// User is the durable user record.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// Name is the display name shown to other room members.
	Name string `json:"name"`

	// Avatar is the URL of the user's profile picture, maintained by the
	// external profile service.
	Avatar string `json:"avatar,omitempty"`

	// IsBlocked marks users excluded from joining rooms and sending messages.
	IsBlocked bool `json:"-"`

	// IsOnline is true only while a live connection exists for this user.
	IsOnline bool `json:"isOnline"`

	// AssignedRoom is the single room the user currently considers current.
	// Empty means unassigned. Whenever non-empty it is one of MyRooms.
	AssignedRoom string `json:"assignedRoom,omitempty"`

	// AssignedAt records when the current assignment was created. It is the
	// geo tie-break, so it moves only when the assignment itself changes,
	// never on a presence refresh of the same room.
	AssignedAt *time.Time `json:"-"`

	// MyRooms is the append-only set of room keys the user has ever joined.
	MyRooms []string `json:"myRooms,omitempty"`

	// ConnectionID is the opaque handle of the current live connection, empty
	// when offline.
	ConnectionID string `json:"connectionId,omitempty"`

	// Longitude/Latitude hold the user's last reported location, nil when
	// never reported. Used only by the geo-room nearest-user query.
	Longitude *float64 `json:"-"`
	Latitude  *float64 `json:"-"`

	// PushToken is the device token for push notification delivery, empty
	// when the user has no registered device.
	PushToken string `json:"-"`

	CreatedAt time.Time `json:"-"`
}

// HasRoom reports whether key is in the user's visited-room set.
func (u *User) HasRoom(key string) bool {
	for _, r := range u.MyRooms {
		if r == key {
			return true
		}
	}
	return false
}

// AddRoom appends key to the visited-room set if absent.
func (u *User) AddRoom(key string) {
	if !u.HasRoom(key) {
		u.MyRooms = append(u.MyRooms, key)
	}
}
