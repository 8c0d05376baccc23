package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/civitas-platform/civitas/internal/jobs"
)

// DailyDigestJob emails each user a summary of notifications they have not
// read since the last window.
type DailyDigestJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Client  *Client
	clock   func() time.Time
}

// NewDailyDigestJob initialises the digest handler.
func NewDailyDigestJob(pool *pgxpool.Pool, client *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *DailyDigestJob {
	return &DailyDigestJob{
		Pool:    pool,
		Client:  client,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type digestRow struct {
	UserID string
	Email  string
	Unread int
}

// Handle executes the digest logic.
func (j *DailyDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("daily digest: handler not configured")
	}
	var payload DailyDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 24
	}

	start := j.now()
	tracker := j.metrics().Track(TaskTypeDailyDigest)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_hours", payload.WindowHours))
	logger.Info("starting daily digest")

	rows, err := j.collect(ctx, start.Add(-time.Duration(payload.WindowHours)*time.Hour))
	if err != nil {
		resultErr = err
		logger.Error("collect unread", slog.Any("error", err))
		return resultErr
	}

	sent := 0
	for _, row := range rows {
		subject := fmt.Sprintf("You have %d unread notifications", row.Unread)
		body := fmt.Sprintf("There are %d notifications waiting for you since %s.",
			row.Unread, start.Add(-time.Duration(payload.WindowHours)*time.Hour).Format(time.RFC1123))
		if j.Client != nil {
			if _, err := j.Client.EnqueueSendEmail(ctx, SendEmailPayload{To: row.Email, Subject: subject, Body: body}); err != nil {
				logger.Warn("enqueue digest email", slog.String("user_id", row.UserID), slog.Any("error", err))
				continue
			}
		}
		j.metrics().AddNotifications("email", "digest", 1)
		sent++
	}

	logger.Info("completed daily digest",
		slog.Int("users", len(rows)),
		slog.Int("sent", sent),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *DailyDigestJob) collect(ctx context.Context, since time.Time) ([]digestRow, error) {
	if j.Pool == nil {
		return nil, errors.New("daily digest: pool not configured")
	}
	rows, err := j.Pool.Query(ctx,
		`SELECT n.user_id, u.email, COUNT(*)
		 FROM notifications n JOIN users u ON u.id = n.user_id
		 WHERE n.read_at IS NULL AND n.created_at >= $1 AND u.is_active
		 GROUP BY n.user_id, u.email ORDER BY n.user_id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []digestRow
	for rows.Next() {
		var row digestRow
		if err := rows.Scan(&row.UserID, &row.Email, &row.Unread); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (j *DailyDigestJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeDailyDigest))
	}
	return slog.Default().With(slog.String("job", TaskTypeDailyDigest))
}

func (j *DailyDigestJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DailyDigestJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
