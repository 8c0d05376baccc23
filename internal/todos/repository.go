package todos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// ErrAssignmentExists indicates the user is already assigned.
var ErrAssignmentExists = errors.New("todos: assignment already exists")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const todoColumns = `id, group_id, title, COALESCE(description, ''), status, COALESCE(visibility, ''), owner_id, due_at, created_at, updated_at`

// CreateTodo inserts a todo.
func (r *Repository) CreateTodo(ctx context.Context, input CreateTodoInput) (*Todo, error) {
	due := pgtype.Timestamptz{Time: input.DueAt, Valid: !input.DueAt.IsZero()}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO todos (group_id, title, description, status, visibility, owner_id, due_at, created_at, updated_at)
		 VALUES ($1, $2, $3, 'open', $4, $5, $6, NOW(), NOW()) RETURNING `+todoColumns,
		input.GroupID, input.Title, input.Description, string(input.Visibility), input.OwnerID, due)
	return scanTodo(row)
}

// GetTodo fetches one todo.
func (r *Repository) GetTodo(ctx context.Context, id string) (*Todo, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return todo, nil
}

// ListTodos returns a page of todos plus the total count, optionally scoped
// to a group.
func (r *Repository) ListTodos(ctx context.Context, groupID string, limit, offset int) ([]Todo, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM todos WHERE ($1 = '' OR group_id = $1)`, groupID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE ($1 = '' OR group_id = $1) ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *todo)
	}
	return list, total, rows.Err()
}

// UpdateTodo applies editable fields.
func (r *Repository) UpdateTodo(ctx context.Context, id string, input UpdateTodoInput) (*Todo, error) {
	due := pgtype.Timestamptz{Time: input.DueAt, Valid: !input.DueAt.IsZero()}
	row := r.pool.QueryRow(ctx,
		`UPDATE todos SET title = $2, description = $3, status = $4, visibility = $5, due_at = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING `+todoColumns,
		id, input.Title, input.Description, string(input.Status), string(input.Visibility), due)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return todo, nil
}

// DeleteTodo removes a todo; assignments cascade.
func (r *Repository) DeleteTodo(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const assignmentColumns = `id, todo_id, user_id, assigned_by, created_at`

// CreateAssignment hands a todo to a user. A unique (todo_id, user_id) index
// keeps one assignment per pair.
func (r *Repository) CreateAssignment(ctx context.Context, todoID, userID, assignedBy string) (*Assignment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO todo_assignments (todo_id, user_id, assigned_by, created_at)
		 VALUES ($1, $2, $3, NOW()) RETURNING `+assignmentColumns,
		todoID, userID, assignedBy)
	var a Assignment
	if err := row.Scan(&a.ID, &a.TodoID, &a.UserID, &a.AssignedBy, &a.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAssignmentExists
		}
		return nil, err
	}
	return &a, nil
}

// ListAssignments lists a todo's assignees.
func (r *Repository) ListAssignments(ctx context.Context, todoID string) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM todo_assignments WHERE todo_id = $1 ORDER BY created_at, id`, todoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.TodoID, &a.UserID, &a.AssignedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// DeleteAssignment removes an assignment.
func (r *Repository) DeleteAssignment(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM todo_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanTodo(row pgx.Row) (*Todo, error) {
	var t Todo
	var status, visibility string
	var due pgtype.Timestamptz
	if err := row.Scan(&t.ID, &t.GroupID, &t.Title, &t.Description, &status, &visibility, &t.OwnerID, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = TodoStatus(status)
	t.Visibility = authz.Visibility(visibility)
	if due.Valid {
		t.DueAt = due.Time
	}
	return &t, nil
}
