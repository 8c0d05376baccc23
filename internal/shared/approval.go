package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks a submit action.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approve action.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a reject action.
	ApprovalReject ApprovalAction = "REJECT"
)

// ApprovalLog represents a single approval record, used for membership and
// group relationship requests.
type ApprovalLog struct {
	ID      int64
	Module  string
	RefID   string
	ActorID string
	Action  ApprovalAction
	Note    string
	At      time.Time
}

// ApprovalRecorder persists approval history.
type ApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs an ApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalRecorder{pool: pool, logger: logger}
}

// Record stores one approval entry.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil || r.pool == nil {
		return errors.New("approval recorder not initialised")
	}
	if log.Module == "" || log.RefID == "" || log.Action == "" {
		return errors.New("approval log requires module/ref_id/action")
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO approval_logs (module, ref_id, actor_id, action, note, at) VALUES ($1, $2, $3, $4, $5, NOW())`,
		log.Module, log.RefID, log.ActorID, string(log.Action), log.Note)
	return err
}

// History lists approval entries for one record, newest first.
func (r *ApprovalRecorder) History(ctx context.Context, module, refID string) ([]ApprovalLog, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, module, ref_id, actor_id, action, note, at FROM approval_logs WHERE module = $1 AND ref_id = $2 ORDER BY at DESC`,
		module, refID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var entry ApprovalLog
		var action string
		if err := rows.Scan(&entry.ID, &entry.Module, &entry.RefID, &entry.ActorID, &action, &entry.Note, &entry.At); err != nil {
			return nil, err
		}
		entry.Action = ApprovalAction(action)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
