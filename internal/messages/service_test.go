package messages

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/shared"
)

type memRepo struct {
	threads      map[string]Thread
	participants map[string]map[string]bool
	messages     map[string][]Message
	seq          int
}

func newMemRepo() *memRepo {
	return &memRepo{threads: map[string]Thread{}, participants: map[string]map[string]bool{}, messages: map[string][]Message{}}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) CreateThread(ctx context.Context, input CreateThreadInput) (*Thread, error) {
	t := Thread{ID: r.nextID("th"), Subject: input.Subject, CreatedBy: input.CreatedBy}
	r.threads[t.ID] = t
	r.participants[t.ID] = map[string]bool{}
	for _, id := range input.Participants {
		r.participants[t.ID][id] = true
	}
	r.messages[t.ID] = []Message{{ID: r.nextID("m"), ThreadID: t.ID, SenderID: input.CreatedBy, Body: input.Body}}
	return &t, nil
}

func (r *memRepo) GetThread(ctx context.Context, id string) (*Thread, error) {
	t, ok := r.threads[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r *memRepo) ListThreads(ctx context.Context, userID string, limit, offset int) ([]Thread, int, error) {
	var out []Thread
	for id, t := range r.threads {
		if r.participants[id][userID] {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (r *memRepo) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	return r.participants[threadID][userID], nil
}

func (r *memRepo) ListParticipants(ctx context.Context, threadID string) ([]string, error) {
	var out []string
	for id := range r.participants[threadID] {
		out = append(out, id)
	}
	return out, nil
}

func (r *memRepo) AddParticipant(ctx context.Context, threadID, userID string) error {
	if r.participants[threadID] == nil {
		return shared.ErrNotFound
	}
	r.participants[threadID][userID] = true
	return nil
}

func (r *memRepo) CreateMessage(ctx context.Context, threadID, senderID, body string) (*Message, error) {
	m := Message{ID: r.nextID("m"), ThreadID: threadID, SenderID: senderID, Body: body}
	r.messages[threadID] = append(r.messages[threadID], m)
	return &m, nil
}

func (r *memRepo) ListMessages(ctx context.Context, threadID string, limit, offset int) ([]Message, error) {
	return r.messages[threadID], nil
}

type recordingNotifier struct {
	recipients [][]string
}

func (n *recordingNotifier) NotifyMessage(ctx context.Context, thread *Thread, message *Message, recipientIDs []string) {
	n.recipients = append(n.recipients, recipientIDs)
}

func TestCreateThreadRequiresAnotherParticipant(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)

	_, err := svc.CreateThread(context.Background(), CreateThreadInput{
		Subject:      "Hello",
		CreatedBy:    "U1",
		Participants: []string{"U1", ""},
		Body:         "hi",
	})
	require.ErrorIs(t, err, ErrParticipantsRequired)

	thread, err := svc.CreateThread(context.Background(), CreateThreadInput{
		Subject:      "Hello",
		CreatedBy:    "U1",
		Participants: []string{"U2"},
		Body:         "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "U1", thread.CreatedBy)
}

func TestThreadAccessIsParticipantsOnly(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	thread, err := svc.CreateThread(context.Background(), CreateThreadInput{
		Subject:      "Hello",
		CreatedBy:    "U1",
		Participants: []string{"U2"},
		Body:         "hi",
	})
	require.NoError(t, err)

	_, err = svc.GetThread(context.Background(), "U3", thread.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.ListMessages(context.Background(), "U3", thread.ID, 50, 0)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Post(context.Background(), "U3", thread.ID, "let me in")
	require.ErrorIs(t, err, shared.ErrNotFound)

	msgs, err := svc.ListMessages(context.Background(), "U2", thread.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestPostNotifiesOtherParticipants(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewService(newMemRepo(), notifier, nil)
	thread, err := svc.CreateThread(context.Background(), CreateThreadInput{
		Subject:      "Hello",
		CreatedBy:    "U1",
		Participants: []string{"U2", "U3"},
		Body:         "hi",
	})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), "U2", thread.ID, "hi back")
	require.NoError(t, err)
	require.Len(t, notifier.recipients, 1)
	require.ElementsMatch(t, []string{"U1", "U3"}, notifier.recipients[0])
}
