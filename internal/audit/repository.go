package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed access to audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const timelineQuery = `SELECT occurred_at, actor_id, action, entity, entity_id, meta
 FROM audit_logs
 WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
   AND ($2::timestamptz IS NULL OR occurred_at <= $2)
   AND ($3::text IS NULL OR actor_id = $3)
   AND ($4::text IS NULL OR entity = $4)
   AND ($5::text IS NULL OR action = $5)
 ORDER BY occurred_at DESC, entity_id`

// TimelineWindow returns one page of matching rows plus at most one extra row
// so the caller can tell whether a next page exists.
func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery+` LIMIT $6 OFFSET $7`,
		toPgTime(filters.From), toPgTime(filters.To),
		optionalText(filters.Actor), optionalText(filters.Entity), optionalText(filters.Action),
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// TimelineAll returns every matching row, for exports.
func (r *Repository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery,
		toPgTime(filters.From), toPgTime(filters.To),
		optionalText(filters.Actor), optionalText(filters.Entity), optionalText(filters.Action))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

func collectRows(rows pgx.Rows) ([]TimelineRow, error) {
	var list []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var actor pgtype.Text
		var meta []byte
		if err := rows.Scan(&row.At, &actor, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if actor.Valid {
			row.Actor = actor.String
		}
		if len(meta) > 0 {
			// Malformed meta is kept out of the row rather than failing the page.
			_ = json.Unmarshal(meta, &row.Meta)
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
