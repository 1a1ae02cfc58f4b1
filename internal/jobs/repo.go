package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotifyChannel is the Postgres channel workers LISTEN on.
const NotifyChannel = "tally_jobs"

type statsRefreshPayload struct {
	SessionID uuid.UUID `json:"session_id"`
}

// EnqueueStatsRefresh schedules a dashboard refresh for the session on tx,
// replacing any refresh still pending for it.
func EnqueueStatsRefresh(tx *gorm.DB, userID, sessionID uuid.UUID) error {
	subject := sessionID.String()
	if err := tx.Where("type = ? AND subject = ? AND status = ?", TypeStatsRefresh, subject, StatusPending).
		Delete(&Job{}).Error; err != nil {
		return err
	}

	payload, _ := json.Marshal(statsRefreshPayload{SessionID: sessionID})
	j := Job{
		UserID:  userID,
		Type:    TypeStatsRefresh,
		Subject: subject,
		Payload: payload,
		RunAt:   time.Now().UTC(),
		Status:  StatusPending,
	}
	if err := tx.Create(&j).Error; err != nil {
		return err
	}
	if tx.Dialector.Name() == "postgres" {
		return tx.Exec(`select pg_notify(?, '')`, NotifyChannel).Error
	}
	return nil
}

type Repo struct {
	DB *gorm.DB
	// StaleAfter is how long a RUNNING job may stay locked before it is
	// handed to another worker. Zero means five minutes.
	StaleAfter time.Duration
}

func (r *Repo) staleAfter() time.Duration {
	if r.StaleAfter <= 0 {
		return 5 * time.Minute
	}
	return r.StaleAfter
}

// Claim locks the oldest due job for workerID, or returns nil when none is
// due. It relies on FOR UPDATE SKIP LOCKED and needs Postgres.
func (r *Repo) Claim(workerID string) (*Job, error) {
	var job Job
	now := time.Now().UTC()
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		// requeue jobs whose worker went away
		if err := tx.Model(&Job{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, now.Add(-r.staleAfter())).
			Updates(unlock(StatusPending, now)).Error; err != nil {
			return err
		}

		return tx.Raw(`
with due as (
  select id
  from jobs
  where status = ? and run_at <= ?
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status = ?, locked_by = ?, locked_at = ?, updated_at = ?
where id in (select id from due)
returning *`, StatusPending, now, StatusRunning, workerID, now, now).Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(id uint64) error {
	return r.set(id, unlock(StatusDone, time.Now().UTC()))
}

func (r *Repo) MarkFailed(id uint64, errMsg string) error {
	u := unlock(StatusFailed, time.Now().UTC())
	u["last_error"] = errMsg
	return r.set(id, u)
}

// RetryLater puts the job back in the queue, due at runAt.
func (r *Repo) RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error {
	u := unlock(StatusPending, time.Now().UTC())
	u["attempts"] = attempts
	u["run_at"] = runAt.UTC()
	u["last_error"] = errMsg
	return r.set(id, u)
}

// Purge deletes finished jobs last touched before olderThan.
func (r *Repo) Purge(olderThan time.Time) (int64, error) {
	res := r.DB.Where("status IN ? AND updated_at < ?", []string{StatusDone, StatusFailed}, olderThan).Delete(&Job{})
	return res.RowsAffected, res.Error
}

func (r *Repo) set(id uint64, updates map[string]any) error {
	return r.DB.Model(&Job{}).Where("id = ?", id).Updates(updates).Error
}

func unlock(status string, now time.Time) map[string]any {
	return map[string]any{
		"status":     status,
		"locked_by":  nil,
		"locked_at":  nil,
		"updated_at": now,
	}
}
