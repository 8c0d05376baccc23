package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestMailerHandleSendEmail(t *testing.T) {
	var gotTo []string
	var gotMsg []byte
	m := NewMailer("127.0.0.1:1025", "no-reply@civitas.local", nil)
	m.send = func(addr, from string, to []string, msg []byte) error {
		require.Equal(t, "127.0.0.1:1025", addr)
		require.Equal(t, "no-reply@civitas.local", from)
		gotTo = to
		gotMsg = msg
		return nil
	}

	task, err := NewSendEmailTask(SendEmailPayload{
		To:      "alice@civitas.local",
		Subject: "Daily digest",
		Body:    "3 unread notifications",
	})
	require.NoError(t, err)

	require.NoError(t, m.HandleSendEmail(context.Background(), task))
	require.Equal(t, []string{"alice@civitas.local"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Daily digest\r\n")
	require.Contains(t, string(gotMsg), "3 unread notifications")
}

func TestMailerSkipsBadPayload(t *testing.T) {
	m := NewMailer("127.0.0.1:1025", "no-reply@civitas.local", nil)
	m.send = func(addr, from string, to []string, msg []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	err := m.HandleSendEmail(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	data, err := json.Marshal(SendEmailPayload{Subject: "missing recipient"})
	require.NoError(t, err)
	err = m.HandleSendEmail(context.Background(), asynq.NewTask(TaskTypeSendEmail, data))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMailerPropagatesSendError(t *testing.T) {
	m := NewMailer("127.0.0.1:1025", "no-reply@civitas.local", nil)
	sendErr := errors.New("relay down")
	m.send = func(addr, from string, to []string, msg []byte) error { return sendErr }

	data, err := json.Marshal(SendEmailPayload{To: "bob@civitas.local", Subject: "x"})
	require.NoError(t, err)
	err = m.HandleSendEmail(context.Background(), asynq.NewTask(TaskTypeSendEmail, data))
	require.ErrorIs(t, err, sendErr)
}
