package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tally/internal/apperr"
)

// Queue is the part of Repo the worker needs.
type Queue interface {
	Claim(workerID string) (*Job, error)
	MarkDone(id uint64) error
	MarkFailed(id uint64, errMsg string) error
	RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error
}

// Refresher recomputes and caches a session's statistics.
type Refresher interface {
	Refresh(ctx context.Context, userID, sessionID uuid.UUID) error
}

type Worker struct {
	ID        string
	Repo      Queue
	Refresher Refresher
	Log       hclog.Logger
	// Wake, when set, triggers a claim round ahead of the next tick.
	Wake     <-chan struct{}
	Interval time.Duration
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.Wake:
		}
		w.drain(ctx)
	}
}

// drain runs due jobs until none is left.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.Repo.Claim(w.ID)
		if err != nil {
			w.logger().Error("claim failed", "error", err)
			return
		}
		if job == nil {
			return
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeStatsRefresh:
		w.handleStatsRefresh(ctx, job)
	default:
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
	}
}

func (w *Worker) handleStatsRefresh(ctx context.Context, job *Job) {
	var p statsRefreshPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.SessionID == uuid.Nil {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	err := w.Refresher.Refresh(ctx, job.UserID, p.SessionID)
	switch {
	case err == nil:
		w.logger().Debug("stats refreshed", "job", job.ID, "session", p.SessionID)
		_ = w.Repo.MarkDone(job.ID)
	case errors.Is(err, apperr.ErrNotFound):
		// session deleted since the job was queued
		_ = w.Repo.MarkDone(job.ID)
	default:
		w.logger().Warn("stats refresh failed", "job", job.ID, "session", p.SessionID, "attempt", job.Attempts+1, "error", err)
		w.retry(job, err.Error())
	}
}

func (w *Worker) retry(job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Repo.MarkFailed(job.ID, errMsg)
		return
	}
	_ = w.Repo.RetryLater(job.ID, attempts, time.Now().Add(Backoff(attempts)), errMsg)
}

// Backoff doubles per attempt, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}

func (w *Worker) logger() hclog.Logger {
	if w.Log == nil {
		return hclog.NewNullLogger()
	}
	return w.Log
}
