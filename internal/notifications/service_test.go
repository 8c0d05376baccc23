package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/messages"
	"github.com/civitas-platform/civitas/internal/shared"
	"github.com/civitas-platform/civitas/internal/todos"
)

type memRepo struct {
	notifications map[string]Notification
	seq           int
}

func newMemRepo() *memRepo {
	return &memRepo{notifications: map[string]Notification{}}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) Create(ctx context.Context, input CreateInput) (*Notification, error) {
	n := Notification{ID: r.nextID("n"), UserID: input.UserID, Kind: input.Kind, Subject: input.Subject, Body: input.Body}
	r.notifications[n.ID] = n
	return &n, nil
}

func (r *memRepo) Get(ctx context.Context, id string) (*Notification, error) {
	n, ok := r.notifications[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &n, nil
}

func (r *memRepo) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	var out []Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && !n.ReadAt.IsZero() {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (r *memRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && n.ReadAt.IsZero() {
			count++
		}
	}
	return count, nil
}

func (r *memRepo) MarkRead(ctx context.Context, userID, id string) error {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return shared.ErrNotFound
	}
	if n.ReadAt.IsZero() {
		n.ReadAt = time.Now()
	}
	r.notifications[id] = n
	return nil
}

func (r *memRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count := 0
	for id, n := range r.notifications {
		if n.UserID == userID && n.ReadAt.IsZero() {
			n.ReadAt = time.Now()
			r.notifications[id] = n
			count++
		}
	}
	return count, nil
}

type recordingEnqueuer struct {
	ids  []string
	fail bool
}

func (e *recordingEnqueuer) EnqueueNotificationDispatch(ctx context.Context, notificationID string) error {
	if e.fail {
		return fmt.Errorf("queue down")
	}
	e.ids = append(e.ids, notificationID)
	return nil
}

func TestNotifyAssignmentStoresAndEnqueues(t *testing.T) {
	repo := newMemRepo()
	enqueuer := &recordingEnqueuer{}
	svc := NewService(repo, enqueuer, nil)

	todo := &todos.Todo{ID: "T1", Title: "Book the hall"}
	svc.NotifyAssignment(context.Background(), todo, "U2", "U1")

	list, total, err := svc.List(context.Background(), "U2", false, 50, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, KindAssignment, list[0].Kind)
	require.Contains(t, list[0].Subject, "Book the hall")
	require.Equal(t, []string{list[0].ID}, enqueuer.ids)
}

func TestNotifyMessageFansOut(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &recordingEnqueuer{}, nil)

	thread := &messages.Thread{ID: "TH1", Subject: "Planning"}
	message := &messages.Message{ID: "M1", ThreadID: "TH1", SenderID: "U1", Body: "hello"}
	svc.NotifyMessage(context.Background(), thread, message, []string{"U2", "U3"})

	for _, userID := range []string{"U2", "U3"} {
		count, err := svc.UnreadCount(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	}
	count, err := svc.UnreadCount(context.Background(), "U1")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateSurvivesEnqueueFailure(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &recordingEnqueuer{fail: true}, nil)

	n, err := svc.Create(context.Background(), CreateInput{UserID: "U1", Kind: KindInvitation, Subject: "Invited"})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)

	count, err := svc.UnreadCount(context.Background(), "U1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMarkReadClearsUnreadCount(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)

	first, err := svc.Create(context.Background(), CreateInput{UserID: "U1", Kind: KindRoleGranted, Subject: "Granted"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{UserID: "U1", Kind: KindRoleGranted, Subject: "Granted again"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.MarkRead(context.Background(), "U2", first.ID), shared.ErrNotFound)

	require.NoError(t, svc.MarkRead(context.Background(), "U1", first.ID))
	count, err := svc.UnreadCount(context.Background(), "U1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	marked, err := svc.MarkAllRead(context.Background(), "U1")
	require.NoError(t, err)
	require.Equal(t, 1, marked)
	count, err = svc.UnreadCount(context.Background(), "U1")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{Subject: "no user"})
	require.ErrorIs(t, err, ErrUserRequired)

	_, err = svc.Create(context.Background(), CreateInput{UserID: "U1", Subject: "  "})
	require.ErrorIs(t, err, ErrSubjectRequired)
}
