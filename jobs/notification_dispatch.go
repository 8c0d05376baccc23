package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/civitas-platform/civitas/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NotificationDispatchJob delivers one stored notification by email.
type NotificationDispatchJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Client  *Client
}

// NewNotificationDispatchJob initialises the dispatch handler.
func NewNotificationDispatchJob(pool *pgxpool.Pool, client *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationDispatchJob {
	return &NotificationDispatchJob{Pool: pool, Client: client, Logger: logger, Metrics: metrics}
}

// Handle executes the dispatch logic.
func (j *NotificationDispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("notification dispatch: handler not configured")
	}
	var payload NotificationDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.NotificationID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeNotificationDispatch)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("notification_id", payload.NotificationID))

	if j.Pool == nil {
		resultErr = errors.New("notification dispatch: pool not configured")
		return resultErr
	}
	var kind, subject, body, email string
	err := j.Pool.QueryRow(ctx,
		`SELECT n.kind, n.subject, n.body, u.email
		 FROM notifications n JOIN users u ON u.id = n.user_id
		 WHERE n.id = $1`, payload.NotificationID).
		Scan(&kind, &subject, &body, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Deleted before delivery, nothing left to send.
			logger.Info("notification gone, skipping")
			return nil
		}
		resultErr = err
		logger.Error("load notification", slog.Any("error", err))
		return resultErr
	}

	if j.Client != nil {
		if _, err := j.Client.EnqueueSendEmail(ctx, SendEmailPayload{To: email, Subject: subject, Body: body}); err != nil {
			resultErr = err
			logger.Error("enqueue email", slog.Any("error", err))
			return resultErr
		}
	}

	j.metrics().AddNotifications("email", kind, 1)
	logger.Info("notification dispatched", slog.String("kind", kind))
	return resultErr
}

func (j *NotificationDispatchJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeNotificationDispatch))
	}
	return slog.Default().With(slog.String("job", TaskTypeNotificationDispatch))
}

func (j *NotificationDispatchJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
