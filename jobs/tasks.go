package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeNotificationDispatch delivers one stored notification.
	TaskTypeNotificationDispatch = "notification:dispatch"
	// TaskTypeDailyDigest summarises unread notifications per user.
	TaskTypeDailyDigest = "notification:digest"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask is the fallback handler when no Mailer is registered.
// It logs the payload instead of delivering it.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	slog.Default().Info("send email",
		slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}

// NotificationDispatchPayload identifies the notification to deliver.
type NotificationDispatchPayload struct {
	NotificationID string `json:"notification_id"`
}

// NewNotificationDispatchTask constructs an Asynq task.
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotificationDispatch, data), nil
}

// DailyDigestPayload tunes the digest window. A zero value uses defaults.
type DailyDigestPayload struct {
	WindowHours int `json:"window_hours"`
}

// NewDailyDigestTask constructs an Asynq task.
func NewDailyDigestTask(payload DailyDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDailyDigest, data), nil
}
