/*
Package errs provides the application's custom error type and error code
constants.

These codes identify specific validation, authorization, rate-limit, not-found,
and store failures both in server logs and in error events sent to clients.
*/
package errs

// 1xxx: Request validation and admission errors
const (
	// ErrInvalidParams indicates that event payload validation failed.
	ErrInvalidParams = 1001

	// ErrNoRoomCriteria indicates a join request carried neither a room id
	// nor coordinates.
	ErrNoRoomCriteria = 1002

	// ErrEmptyMessage indicates a message event with no content.
	ErrEmptyMessage = 1003

	// ErrInvalidReport indicates an abuse report missing the reported user
	// or the reason.
	ErrInvalidReport = 1004

	// ErrTooManyJoinAttempts indicates the per-user join window is exhausted.
	ErrTooManyJoinAttempts = 1007
)

// 2xxx: Room and presence errors
const (
	// ErrNotInRoom indicates the user attempted a room-scoped operation
	// without a current room assignment.
	ErrNotInRoom = 2102

	// ErrWrongRoom indicates the operation targeted a room other than the
	// user's current assignment.
	ErrWrongRoom = 2103
)

// 3xxx: User, session, and authorization errors
const (
	// ErrUnauthorized indicates a missing or invalid connection token.
	ErrUnauthorized = 3001

	// ErrUserNotFound indicates the durable user record is absent.
	ErrUserNotFound = 3002

	// ErrUserBlocked indicates the acting user is blocked.
	ErrUserBlocked = 3003

	// ErrRoomNotAllowed indicates an attempt to rejoin a room that is not in
	// the user's visited-room set.
	ErrRoomNotAllowed = 3004
)

// 5xxx: Internal system errors
const (
	// ErrUnknown represents an unclassified server internal error.
	ErrUnknown = 5000

	// ErrStoreFailure indicates a durable-store call failed. The operation is
	// not retried and in-memory state is left untouched.
	ErrStoreFailure = 5001
)
