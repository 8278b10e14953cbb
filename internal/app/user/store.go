package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no user row matches the lookup.
var ErrNotFound = errors.New("user not found")

// Store is the durable-store contract the coordinators rely on.
//
// Reads and writes are not transactional: a join racing a disconnect on the
// same user can interleave (find, mutate, save). This is an accepted,
// bounded-impact race; callers must not assume otherwise.
type Store interface {
	// FindByID returns the user record or ErrNotFound.
	FindByID(ctx context.Context, id string) (*User, error)

	// SavePresence persists the presence fields of the record: is_online,
	// assigned_room, assigned_at, connection_id, my_rooms, and a reported
	// location when present. The assignment timestamp is stored verbatim;
	// deciding when it moves belongs to the caller.
	SavePresence(ctx context.Context, u *User) error

	// NearestAssigned returns the user with a non-empty room assignment and a
	// known location closest to (lon, lat) within radiusMeters, ties broken by
	// the most recent assignment. Returns (nil, nil) when none is in range.
	NearestAssigned(ctx context.Context, lon, lat, radiusMeters float64) (*User, error)

	// CountByAssignedRoom returns the number of users durably assigned to the
	// room key.
	CountByAssignedRoom(ctx context.Context, room string) (int, error)

	// MarkOffline clears is_online and connection_id, keeping the room
	// assignment so the user can be seated back on reconnect. It returns the
	// updated record, or ErrNotFound.
	MarkOffline(ctx context.Context, id string) (*User, error)

	// MembersWithPushToken returns the users whose visited-room set contains
	// the room key and who have a registered push token, excluding excludeID.
	MembersWithPushToken(ctx context.Context, room string, excludeID string) ([]User, error)
}

const userColumns = `id, name, avatar, is_blocked, is_online,
	COALESCE(assigned_room, ''), assigned_at, my_rooms, COALESCE(connection_id, ''),
	longitude, latitude, COALESCE(push_token, ''), created_at`

// PGStore is the pgx-backed Store implementation.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Name, &u.Avatar, &u.IsBlocked, &u.IsOnline,
		&u.AssignedRoom, &u.AssignedAt, &u.MyRooms, &u.ConnectionID,
		&u.Longitude, &u.Latitude, &u.PushToken, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PGStore) SavePresence(ctx context.Context, u *User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		   SET is_online     = $2,
		       assigned_room = NULLIF($3, ''),
		       connection_id = NULLIF($4, ''),
		       my_rooms      = $5,
		       longitude     = COALESCE($6, longitude),
		       latitude      = COALESCE($7, latitude),
		       assigned_at   = $8
		 WHERE id = $1`,
		u.ID, u.IsOnline, u.AssignedRoom, u.ConnectionID, u.MyRooms, u.Longitude, u.Latitude, u.AssignedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) NearestAssigned(ctx context.Context, lon, lat, radiusMeters float64) (*User, error) {
	// Haversine over a plain lat/lon pair; accurate enough at a 5 km radius
	// and keeps the schema free of PostGIS.
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		  FROM users
		 WHERE assigned_room IS NOT NULL
		   AND longitude IS NOT NULL
		   AND latitude IS NOT NULL
		   AND 6371000 * acos(LEAST(1.0,
		           cos(radians($2)) * cos(radians(latitude)) * cos(radians(longitude) - radians($1))
		         + sin(radians($2)) * sin(radians(latitude)))) <= $3
		 ORDER BY 6371000 * acos(LEAST(1.0,
		           cos(radians($2)) * cos(radians(latitude)) * cos(radians(longitude) - radians($1))
		         + sin(radians($2)) * sin(radians(latitude)))) ASC,
		          assigned_at DESC NULLS LAST
		 LIMIT 1`,
		lon, lat, radiusMeters,
	)

	u, err := scanUser(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *PGStore) CountByAssignedRoom(ctx context.Context, room string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE assigned_room = $1`, room,
	).Scan(&count)
	return count, err
}

func (s *PGStore) MarkOffline(ctx context.Context, id string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		   SET is_online = FALSE, connection_id = NULL
		 WHERE id = $1
		 RETURNING `+userColumns,
		id,
	)
	return scanUser(row)
}

func (s *PGStore) MembersWithPushToken(ctx context.Context, room string, excludeID string) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		  FROM users
		 WHERE $1 = ANY(my_rooms)
		   AND push_token IS NOT NULL AND push_token <> ''
		   AND id <> $2`,
		room, excludeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *u)
	}
	return members, rows.Err()
}
