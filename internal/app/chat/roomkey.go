package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// GeoRoomRadiusMeters is the distance threshold for joining an existing
// nearby user's room instead of creating a new geo room.
const GeoRoomRadiusMeters = 5000

// NormalizeRoomKey trims whitespace and lowercases a caller-supplied room
// identifier so rooms differing only in case or padding collapse to one key.
func NormalizeRoomKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// GeoRoomKey synthesizes a room key deterministically from coordinates, so
// two users submitting the same coordinates independently converge on the
// same room.
func GeoRoomKey(lon, lat float64) string {
	return fmt.Sprintf("georoom_%s_%s",
		strconv.FormatFloat(lon, 'f', -1, 64),
		strconv.FormatFloat(lat, 'f', -1, 64),
	)
}
