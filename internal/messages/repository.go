package messages

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civitas-platform/civitas/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const threadColumns = `id, subject, created_by, created_at, updated_at`

// CreateThread inserts a thread, its participants and the first message in
// one transaction.
func (r *Repository) CreateThread(ctx context.Context, input CreateThreadInput) (*Thread, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO message_threads (subject, created_by, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW()) RETURNING `+threadColumns,
		input.Subject, input.CreatedBy)
	thread, err := scanThread(row)
	if err != nil {
		return nil, err
	}
	for _, userID := range input.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO thread_participants (thread_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			thread.ID, userID); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO messages (thread_id, sender_id, body, created_at) VALUES ($1, $2, $3, NOW())`,
		thread.ID, input.CreatedBy, input.Body); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return thread, nil
}

// GetThread fetches one thread.
func (r *Repository) GetThread(ctx context.Context, id string) (*Thread, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM message_threads WHERE id = $1`, id)
	thread, err := scanThread(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return thread, nil
}

// ListThreads returns a page of threads the user participates in, most
// recently active first.
func (r *Repository) ListThreads(ctx context.Context, userID string, limit, offset int) ([]Thread, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM message_threads t JOIN thread_participants p ON p.thread_id = t.id WHERE p.user_id = $1`,
		userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.subject, t.created_by, t.created_at, t.updated_at
		 FROM message_threads t JOIN thread_participants p ON p.thread_id = t.id
		 WHERE p.user_id = $1 ORDER BY t.updated_at DESC, t.id LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *thread)
	}
	return list, total, rows.Err()
}

// IsParticipant reports whether the user belongs to the thread.
func (r *Repository) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM thread_participants WHERE thread_id = $1 AND user_id = $2)`,
		threadID, userID).Scan(&exists)
	return exists, err
}

// ListParticipants lists the thread's member user ids.
func (r *Repository) ListParticipants(ctx context.Context, threadID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM thread_participants WHERE thread_id = $1 ORDER BY user_id`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		list = append(list, id)
	}
	return list, rows.Err()
}

// AddParticipant adds a user to the thread.
func (r *Repository) AddParticipant(ctx context.Context, threadID, userID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO thread_participants (thread_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		threadID, userID)
	return err
}

// CreateMessage appends a message and bumps the thread's activity stamp.
func (r *Repository) CreateMessage(ctx context.Context, threadID, senderID, body string) (*Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO messages (thread_id, sender_id, body, created_at)
		 VALUES ($1, $2, $3, NOW()) RETURNING id, thread_id, sender_id, body, created_at`,
		threadID, senderID, body)
	var m Message
	if err := row.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE message_threads SET updated_at = NOW() WHERE id = $1`, threadID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages lists a thread's messages oldest first.
func (r *Repository) ListMessages(ctx context.Context, threadID string, limit, offset int) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, thread_id, sender_id, body, created_at FROM messages WHERE thread_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanThread(row pgx.Row) (*Thread, error) {
	var t Thread
	if err := row.Scan(&t.ID, &t.Subject, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
