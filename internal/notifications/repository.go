package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
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

const notificationColumns = `id, user_id, kind, subject, body, read_at, created_at`

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*Notification, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, kind, subject, body, created_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING `+notificationColumns,
		input.UserID, input.Kind, input.Subject, input.Body)
	return scanNotification(row)
}

// Get fetches one notification.
func (r *Repository) Get(ctx context.Context, id string) (*Notification, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// List returns a page of the user's notifications, newest first.
func (r *Repository) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)`,
		userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		 ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`,
		userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *n)
	}
	return list, total, rows.Err()
}

// UnreadCount counts the user's unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID).Scan(&count)
	return count, err
}

// MarkRead stamps one of the user's notifications as read. Already-read
// notifications keep their original stamp.
func (r *Repository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkAllRead stamps every unread notification of the user.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`,
		userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var readAt pgtype.Timestamptz
	if err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Subject, &n.Body, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	if readAt.Valid {
		n.ReadAt = readAt.Time
	}
	return &n, nil
}
