package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"geochat/internal/app/user"
)

// Message is a persisted room message.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	SenderPic   string    `json:"senderAvatar,omitempty"`
	Room        string    `json:"room"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	Mentions    []string  `json:"mentions,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Report is a persisted abuse report.
type Report struct {
	ID           string
	ReportedBy   string
	ReportedUser string
	Reason       string
	Room         string
	Context      string
}

// RoomStore is the derived-room contract: a room exists when its marker row
// does, and creation is an idempotent touch so concurrent create attempts
// cannot conflict.
type RoomStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Touch(ctx context.Context, key string) error
}

// MessageStore persists room messages.
type MessageStore interface {
	Insert(ctx context.Context, m *Message) error
}

// ReportStore persists abuse reports.
type ReportStore interface {
	Insert(ctx context.Context, r *Report) error
}

// PGChatStore implements RoomStore, MessageStore, and ReportStore over pgx.
type PGChatStore struct {
	pool *pgxpool.Pool
}

// NewPGChatStore returns the pgx-backed chat store.
func NewPGChatStore(pool *pgxpool.Pool) *PGChatStore {
	return &PGChatStore{pool: pool}
}

func (s *PGChatStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM rooms WHERE key = $1)`, key,
	).Scan(&exists)
	return exists, err
}

// Touch is the create-if-absent room marker upsert. ON CONFLICT DO NOTHING
// makes simultaneous creation attempts idempotent at the store layer.
func (s *PGChatStore) Touch(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key,
	)
	return err
}

// Insert persists the message and touches its room marker, so room existence
// is implied by prior activity as well as explicit creation.
func (s *PGChatStore) Insert(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	if err := s.Touch(ctx, m.Room); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, room, content, message_type, mentions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.SenderID, m.Room, m.Content, m.MessageType, m.Mentions, m.CreatedAt,
	)
	return err
}

// InsertReport persists an abuse report.
func (s *PGChatStore) InsertReport(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Context == "" {
		r.Context = "chat"
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (id, reported_by, reported_user, reason, room, context)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		r.ID, r.ReportedBy, r.ReportedUser, r.Reason, r.Room, r.Context,
	)
	return err
}

// reportStoreAdapter lets PGChatStore satisfy ReportStore without colliding
// with MessageStore's Insert.
type reportStoreAdapter struct {
	s *PGChatStore
}

func (a reportStoreAdapter) Insert(ctx context.Context, r *Report) error {
	return a.s.InsertReport(ctx, r)
}

// Reports returns the store's ReportStore view.
func (s *PGChatStore) Reports() ReportStore {
	return reportStoreAdapter{s: s}
}

// userSnapshot trims a durable record to the fields broadcast to a room.
func userSnapshot(u *user.User, connID string) MemberPayload {
	return MemberPayload{
		UserID:       u.ID,
		Name:         u.Name,
		Avatar:       u.Avatar,
		ConnectionID: connID,
	}
}
