package todos

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/shared"
)

type memRepo struct {
	todos       map[string]Todo
	assignments map[string]Assignment
	seq         int
}

func newMemRepo() *memRepo {
	return &memRepo{todos: map[string]Todo{}, assignments: map[string]Assignment{}}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) CreateTodo(ctx context.Context, input CreateTodoInput) (*Todo, error) {
	t := Todo{ID: r.nextID("t"), GroupID: input.GroupID, Title: input.Title, Description: input.Description, Status: TodoOpen, Visibility: input.Visibility, OwnerID: input.OwnerID, DueAt: input.DueAt}
	r.todos[t.ID] = t
	return &t, nil
}

func (r *memRepo) GetTodo(ctx context.Context, id string) (*Todo, error) {
	t, ok := r.todos[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r *memRepo) ListTodos(ctx context.Context, groupID string, limit, offset int) ([]Todo, int, error) {
	var out []Todo
	for _, t := range r.todos {
		if groupID == "" || t.GroupID == groupID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (r *memRepo) UpdateTodo(ctx context.Context, id string, input UpdateTodoInput) (*Todo, error) {
	t, ok := r.todos[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	t.Title = input.Title
	t.Description = input.Description
	t.Status = input.Status
	t.Visibility = input.Visibility
	t.DueAt = input.DueAt
	r.todos[id] = t
	return &t, nil
}

func (r *memRepo) DeleteTodo(ctx context.Context, id string) error {
	if _, ok := r.todos[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.todos, id)
	return nil
}

func (r *memRepo) CreateAssignment(ctx context.Context, todoID, userID, assignedBy string) (*Assignment, error) {
	for _, a := range r.assignments {
		if a.TodoID == todoID && a.UserID == userID {
			return nil, ErrAssignmentExists
		}
	}
	a := Assignment{ID: r.nextID("as"), TodoID: todoID, UserID: userID, AssignedBy: assignedBy}
	r.assignments[a.ID] = a
	return &a, nil
}

func (r *memRepo) ListAssignments(ctx context.Context, todoID string) ([]Assignment, error) {
	var out []Assignment
	for _, a := range r.assignments {
		if a.TodoID == todoID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteAssignment(ctx context.Context, id string) error {
	if _, ok := r.assignments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.assignments, id)
	return nil
}

type recordingNotifier struct {
	assignees []string
}

func (n *recordingNotifier) NotifyAssignment(ctx context.Context, todo *Todo, assigneeID, assignedBy string) {
	n.assignees = append(n.assignees, assigneeID)
}

func TestCreateTodoValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)

	_, err := svc.CreateTodo(context.Background(), CreateTodoInput{GroupID: "G1", Title: "  ", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrTitleRequired)

	todo, err := svc.CreateTodo(context.Background(), CreateTodoInput{GroupID: "G1", Title: "Book venue", OwnerID: "U1"})
	require.NoError(t, err)
	require.Equal(t, TodoOpen, todo.Status)
}

func TestUpdateTodoRejectsUnknownStatus(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	todo, err := svc.CreateTodo(context.Background(), CreateTodoInput{GroupID: "G1", Title: "Book venue", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.UpdateTodo(context.Background(), "U1", todo.ID, UpdateTodoInput{Title: "Book venue", Status: "archived"})
	require.ErrorIs(t, err, ErrBadStatus)

	done, err := svc.UpdateTodo(context.Background(), "U1", todo.ID, UpdateTodoInput{Title: "Book venue", Status: TodoDone})
	require.NoError(t, err)
	require.Equal(t, TodoDone, done.Status)
}

func TestAssignNotifiesAssignee(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewService(newMemRepo(), nil, notifier, nil)
	todo, err := svc.CreateTodo(context.Background(), CreateTodoInput{GroupID: "G1", Title: "Book venue", OwnerID: "U1"})
	require.NoError(t, err)

	a, err := svc.Assign(context.Background(), "U1", todo.ID, "U2")
	require.NoError(t, err)
	require.Equal(t, "U2", a.UserID)
	require.Equal(t, []string{"U2"}, notifier.assignees)

	_, err = svc.Assign(context.Background(), "U1", todo.ID, "U2")
	require.ErrorIs(t, err, ErrAssignmentExists)
	require.Len(t, notifier.assignees, 1)
}
