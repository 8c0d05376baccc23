package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// Mailer delivers queued emails over plain SMTP. Local development points it
// at Mailpit; production fronts a real relay.
type Mailer struct {
	Addr   string
	From   string
	Logger *slog.Logger

	// send is swappable for tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewMailer builds a Mailer for the given relay address.
func NewMailer(addr, from string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		Addr:   addr,
		From:   from,
		Logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// HandleSendEmail processes TaskTypeSendEmail tasks through the relay.
func (m *Mailer) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", payload.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", payload.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(payload.Body)

	if err := m.send(m.Addr, m.From, []string{payload.To}, []byte(msg.String())); err != nil {
		m.Logger.Error("smtp send", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	m.Logger.Info("email delivered", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
