package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (s *SQLStore) EnqueueJob(ctx context.Context, job *jobs.Job) error {
	_, err := sqlx.NamedExecContext(ctx, s.ext, `INSERT INTO jobs (id, kind, tournament_id, payload, status, attempts, max_attempts, run_at, expires_at, claimed_by, lease_until, last_error, created_at, updated_at)
		VALUES (:id, :kind, :tournament_id, :payload, :status, :attempts, :max_attempts, :run_at, :expires_at, :claimed_by, :lease_until, :last_error, :created_at, :updated_at)`, job)
	return translate(err, "job")
}

func (s *SQLStore) ClaimJobs(ctx context.Context, workerID string, now, leaseUntil time.Time, limit int) ([]jobs.Job, error) {
	var candidates []uuid.UUID
	err := s.sel(ctx, &candidates, `SELECT id FROM jobs
		WHERE ((status = ? AND run_at <= ?) OR (status = ? AND lease_until < ?))
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY run_at, created_at
		LIMIT ?`,
		jobs.StatusQueued, now, jobs.StatusRunning, now, now, limit)
	if err != nil {
		return nil, err
	}

	claimed := make([]jobs.Job, 0, len(candidates))
	for _, id := range candidates {
		// Another worker may have taken the job since the select
		n, err := s.exec(ctx, `UPDATE jobs SET status = ?, claimed_by = ?, lease_until = ?, attempts = attempts + 1, updated_at = ?
			WHERE id = ? AND (status = ? OR (status = ? AND lease_until < ?)) AND (expires_at IS NULL OR expires_at > ?)`,
			jobs.StatusRunning, workerID, leaseUntil, now, id, jobs.StatusQueued, jobs.StatusRunning, now, now)
		if err != nil {
			return claimed, err
		}
		if n == 0 {
			continue
		}

		var job jobs.Job
		if err := s.get(ctx, &job, "SELECT * FROM jobs WHERE id = ?", id); err != nil {
			return claimed, translate(err, "job")
		}
		claimed = append(claimed, job)
	}
	return claimed, nil
}

func (s *SQLStore) settleJob(ctx context.Context, query string, args ...any) error {
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return jobs.ErrLeaseLost
	}
	return nil
}

func (s *SQLStore) CompleteJob(ctx context.Context, id uuid.UUID, workerID string, now time.Time) error {
	return s.settleJob(ctx, "UPDATE jobs SET status = ?, lease_until = NULL, updated_at = ? WHERE id = ? AND status = ? AND claimed_by = ?",
		jobs.StatusDone, now, id, jobs.StatusRunning, workerID)
}

func (s *SQLStore) RetryJob(ctx context.Context, id uuid.UUID, workerID string, runAt time.Time, lastErr string, now time.Time) error {
	return s.settleJob(ctx, `UPDATE jobs SET status = ?, run_at = ?, last_error = ?, claimed_by = NULL, lease_until = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND claimed_by = ?`,
		jobs.StatusQueued, runAt, lastErr, now, id, jobs.StatusRunning, workerID)
}

func (s *SQLStore) FailJob(ctx context.Context, id uuid.UUID, workerID string, lastErr string, now time.Time) error {
	return s.settleJob(ctx, "UPDATE jobs SET status = ?, last_error = ?, lease_until = NULL, updated_at = ? WHERE id = ? AND status = ? AND claimed_by = ?",
		jobs.StatusFailed, lastErr, now, id, jobs.StatusRunning, workerID)
}

// ExpireJobs expires queued jobs and abandoned running jobs whose expires_at has passed. A running job with a live
// lease is left to its worker.
func (s *SQLStore) ExpireJobs(ctx context.Context, now time.Time) (int64, error) {
	return s.exec(ctx, `UPDATE jobs SET status = ?, claimed_by = NULL, lease_until = NULL, updated_at = ?
		WHERE (status = ? OR (status = ? AND lease_until < ?)) AND expires_at IS NOT NULL AND expires_at <= ?`,
		jobs.StatusExpired, now, jobs.StatusQueued, jobs.StatusRunning, now, now)
}

func (s *SQLStore) PurgeJobs(ctx context.Context, finishedBefore time.Time) (int64, error) {
	return s.exec(ctx, "DELETE FROM jobs WHERE status IN (?) AND updated_at < ?",
		[]jobs.Status{jobs.StatusDone, jobs.StatusFailed, jobs.StatusExpired}, finishedBefore)
}

func (s *SQLStore) ListJobs(ctx context.Context, tournamentID uuid.UUID) ([]jobs.Job, error) {
	list := []jobs.Job{}
	err := s.sel(ctx, &list, "SELECT * FROM jobs WHERE tournament_id = ? ORDER BY created_at, id", tournamentID)
	return list, err
}
