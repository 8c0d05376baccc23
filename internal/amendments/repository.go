package amendments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/platform/db"
	"github.com/civitas-platform/civitas/internal/shared"
)

// ErrCollaboratorExists indicates the user already holds a role on the
// amendment.
var ErrCollaboratorExists = errors.New("amendments: collaborator already exists")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const amendmentColumns = `id, group_id, title, body, COALESCE(visibility, ''), owner_id, created_at, updated_at`

// CreateAmendment inserts an amendment and its first version in one
// transaction.
func (r *Repository) CreateAmendment(ctx context.Context, input CreateAmendmentInput) (*Amendment, error) {
	var amendment *Amendment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO amendments (group_id, title, body, visibility, owner_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING `+amendmentColumns,
			input.GroupID, input.Title, input.Body, string(input.Visibility), input.OwnerID)
		var err error
		amendment, err = scanAmendment(row)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO amendment_versions (amendment_id, number, body, author_id, note, created_at)
			 VALUES ($1, 1, $2, $3, 'initial version', NOW())`,
			amendment.ID, input.Body, input.OwnerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return amendment, nil
}

// GetAmendment fetches one amendment.
func (r *Repository) GetAmendment(ctx context.Context, id string) (*Amendment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+amendmentColumns+` FROM amendments WHERE id = $1`, id)
	amendment, err := scanAmendment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return amendment, nil
}

// ListAmendments returns a page of amendments plus the total count, optionally
// restricted to a group.
func (r *Repository) ListAmendments(ctx context.Context, groupID string, limit, offset int) ([]Amendment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM amendments WHERE ($1 = '' OR group_id = $1)`, groupID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+amendmentColumns+` FROM amendments WHERE ($1 = '' OR group_id = $1) ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Amendment
	for rows.Next() {
		a, err := scanAmendment(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *a)
	}
	return list, total, rows.Err()
}

// UpdateAmendment applies metadata fields.
func (r *Repository) UpdateAmendment(ctx context.Context, id string, input UpdateAmendmentInput) (*Amendment, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE amendments SET title = $2, visibility = $3, updated_at = NOW() WHERE id = $1 RETURNING `+amendmentColumns,
		id, input.Title, string(input.Visibility))
	amendment, err := scanAmendment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return amendment, nil
}

// DeleteAmendment removes an amendment; versions and collaborators cascade.
func (r *Repository) DeleteAmendment(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM amendments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const versionColumns = `id, amendment_id, number, body, author_id, COALESCE(note, ''), created_at`

// AddVersion appends the next body snapshot and moves the amendment's latest
// text forward, in one transaction.
func (r *Repository) AddVersion(ctx context.Context, amendmentID, body, authorID, note string) (*Version, error) {
	var version *Version
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO amendment_versions (amendment_id, number, body, author_id, note, created_at)
			 SELECT $1, COALESCE(MAX(number), 0) + 1, $2, $3, $4, NOW() FROM amendment_versions WHERE amendment_id = $1
			 RETURNING `+versionColumns,
			amendmentID, body, authorID, note)
		var err error
		version, err = scanVersion(row)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE amendments SET body = $2, updated_at = NOW() WHERE id = $1`, amendmentID, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// ListVersions lists an amendment's history, newest first.
func (r *Repository) ListVersions(ctx context.Context, amendmentID string) ([]Version, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM amendment_versions WHERE amendment_id = $1 ORDER BY number DESC`, amendmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// GetVersion fetches one numbered snapshot.
func (r *Repository) GetVersion(ctx context.Context, amendmentID string, number int) (*Version, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM amendment_versions WHERE amendment_id = $1 AND number = $2`, amendmentID, number)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

const collaboratorColumns = `id, amendment_id, user_id, role_name, created_at`

// AddCollaborator assigns a named role. A unique (amendment_id, user_id)
// index keeps one assignment per user.
func (r *Repository) AddCollaborator(ctx context.Context, amendmentID, userID, roleName string) (*Collaborator, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO amendment_collaborators (amendment_id, user_id, role_name, created_at)
		 VALUES ($1, $2, $3, NOW()) RETURNING `+collaboratorColumns,
		amendmentID, userID, roleName)
	var c Collaborator
	if err := row.Scan(&c.ID, &c.AmendmentID, &c.UserID, &c.RoleName, &c.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrCollaboratorExists
		}
		return nil, err
	}
	return &c, nil
}

// ListCollaborators lists an amendment's role assignments.
func (r *Repository) ListCollaborators(ctx context.Context, amendmentID string) ([]Collaborator, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+collaboratorColumns+` FROM amendment_collaborators WHERE amendment_id = $1 ORDER BY created_at, id`, amendmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Collaborator
	for rows.Next() {
		var c Collaborator
		if err := rows.Scan(&c.ID, &c.AmendmentID, &c.UserID, &c.RoleName, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// RemoveCollaborator deletes a role assignment.
func (r *Repository) RemoveCollaborator(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM amendment_collaborators WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanAmendment(row pgx.Row) (*Amendment, error) {
	var a Amendment
	var visibility string
	if err := row.Scan(&a.ID, &a.GroupID, &a.Title, &a.Body, &visibility, &a.OwnerID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Visibility = authz.Visibility(visibility)
	return &a, nil
}

func scanVersion(row pgx.Row) (*Version, error) {
	var v Version
	if err := row.Scan(&v.ID, &v.AmendmentID, &v.Number, &v.Body, &v.AuthorID, &v.Note, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
