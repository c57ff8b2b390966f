package operations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateOperation validates a submission and inserts the operation with one
// queued render job per (moment, language) pair.
func (s *Store) CreateOperation(ctx context.Context, discoveryID string, momentIndexes []int, languages []string, sessionID string) (*Operation, error) {
	if len(momentIndexes) == 0 {
		return nil, validationErrorf("moment indexes required")
	}
	if len(languages) == 0 {
		return nil, validationErrorf("languages required")
	}

	discovery, err := s.GetDiscovery(ctx, discoveryID)
	if err != nil {
		return nil, err
	}
	known := make(map[int]bool, len(discovery.Moments))
	for _, moment := range discovery.Moments {
		known[moment.Index] = true
	}
	seenIndex := make(map[int]bool, len(momentIndexes))
	for _, index := range momentIndexes {
		if !known[index] {
			return nil, validationErrorf("moment index %d not in discovery %s", index, discoveryID)
		}
		if seenIndex[index] {
			return nil, validationErrorf("duplicate moment index %d", index)
		}
		seenIndex[index] = true
	}
	seenLang := make(map[string]bool, len(languages))
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			return nil, validationErrorf("empty language code")
		}
		if seenLang[lang] {
			return nil, validationErrorf("duplicate language %q", lang)
		}
		seenLang[lang] = true
	}
	if sessionID != "" {
		if _, err := s.GetSession(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	op := &Operation{
		ID:          uuid.NewString(),
		DiscoveryID: discoveryID,
		SessionID:   sessionID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin operation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO operations (id, discovery_id, session_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		op.ID, discoveryID, nullableString(sessionID), timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert operation: %w", err)
	}

	for _, index := range momentIndexes {
		for _, lang := range languages {
			job := &RenderJob{
				ID:          uuid.NewString(),
				OperationID: op.ID,
				MomentIndex: index,
				Language:    strings.TrimSpace(lang),
				Status:      JobQueued,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO render_jobs (id, operation_id, moment_index, language, status, attempts, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
				job.ID, job.OperationID, job.MomentIndex, job.Language, job.Status, timestamp, timestamp,
			)
			if err != nil {
				return nil, fmt.Errorf("insert job (%d, %s): %w", index, lang, err)
			}
			op.Jobs = append(op.Jobs, job)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit operation: %w", err)
	}
	return op, nil
}

// GetOperation fetches an operation snapshot with its jobs. A cleaned
// operation returns ErrGone; an unknown identifier returns ErrNotFound.
func (s *Store) GetOperation(ctx context.Context, id string) (*Operation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, discovery_id, session_id, created_at, updated_at, cleaned_at
         FROM operations WHERE id = ?`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get operation: %w", err)
	}
	if op.CleanedAt != nil {
		return op, fmt.Errorf("operation %s: %w", id, ErrGone)
	}

	jobs, err := s.jobsForOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	op.Jobs = jobs
	return op, nil
}

// ListOperations returns all live operations with their jobs, oldest first.
func (s *Store) ListOperations(ctx context.Context) ([]*Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, discovery_id, session_id, created_at, updated_at, cleaned_at
         FROM operations WHERE cleaned_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, op := range ops {
		jobs, err := s.jobsForOperation(ctx, op.ID)
		if err != nil {
			return nil, err
		}
		op.Jobs = jobs
	}
	return ops, nil
}

// GetJob fetches one job within an operation.
func (s *Store) GetJob(ctx context.Context, operationID, jobID string) (*RenderJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM render_jobs WHERE id = ? AND operation_id = ?`,
		jobID, operationID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNextJob hands the oldest runnable queued job to a worker. The claim is
// a compare-and-set on status so two workers can never own the same job; on
// a lost race the next candidate is tried. Returns nil when the queue has no
// runnable work.
func (s *Store) ClaimNextJob(ctx context.Context, worker string) (*RenderJob, error) {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	for {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM render_jobs
             WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
             ORDER BY created_at LIMIT 1`,
			JobQueued, nowStr)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select next job: %w", err)
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE render_jobs
             SET status = ?, worker = ?, attempts = attempts + 1,
                 last_heartbeat = ?, next_retry_at = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			JobRunning, worker, nowStr, nowStr, job.ID, JobQueued)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker took it first; try the next candidate.
			continue
		}

		job.Status = JobRunning
		job.Worker = worker
		job.Attempts++
		job.LastHeartbeat = &now
		job.NextRetryAt = nil
		job.UpdatedAt = now
		return job, nil
	}
}

// UpdateJobHeartbeat refreshes the liveness timestamp for an in-flight job.
func (s *Store) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		nowStr, nowStr, jobID, JobRunning)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// CompleteJob records a successful render. The false return means the job row
// no longer exists (cleanup won the race); the caller must discard the
// artifact instead of publishing it.
func (s *Store) CompleteJob(ctx context.Context, jobID, artifactPath string) (bool, error) {
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
         SET status = ?, artifact_path = ?, error_message = NULL, failure_kind = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobSucceeded, artifactPath, nowStr, jobID, JobRunning)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return affected > 0, nil
}

// FailJob records a terminal failure for a running job.
func (s *Store) FailJob(ctx context.Context, jobID string, kind FailureKind, message string) error {
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
         SET status = ?, failure_kind = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobFailed, string(kind), message, nowStr, jobID, JobRunning)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// RequeueJob returns a running job to the queue after a transient failure,
// holding it back until nextRetryAt.
func (s *Store) RequeueJob(ctx context.Context, jobID string, nextRetryAt time.Time, message string) error {
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
         SET status = ?, next_retry_at = ?, error_message = ?, worker = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobQueued, nextRetryAt.UTC().Format(time.RFC3339Nano), message, nowStr, jobID, JobRunning)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// RetryFailed moves an operation's failed jobs back to queued with a fresh
// attempt budget. Returns the number of jobs requeued.
func (s *Store) RetryFailed(ctx context.Context, operationID string) (int64, error) {
	if _, err := s.GetOperation(ctx, operationID); err != nil {
		return 0, err
	}
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
         SET status = ?, attempts = 0, failure_kind = NULL, error_message = NULL,
             next_retry_at = NULL, worker = NULL, updated_at = ?
         WHERE operation_id = ? AND status = ?`,
		JobQueued, nowStr, operationID, JobFailed)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// Cleanup removes an operation's tracked jobs and reports the artifact paths
// the caller should delete. The operation row stays behind as a tombstone so
// later fetches can distinguish Gone from NotFound. Idempotent: cleaning an
// unknown or already-cleaned id succeeds with no artifacts.
func (s *Store) Cleanup(ctx context.Context, operationID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cleanup tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT artifact_path FROM render_jobs
         WHERE operation_id = ? AND artifact_path IS NOT NULL`, operationID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	var artifacts []string
	for rows.Next() {
		var path sql.NullString
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if path.String != "" {
			artifacts = append(artifacts, path.String)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM render_jobs WHERE operation_id = ?`, operationID); err != nil {
		return nil, fmt.Errorf("delete jobs: %w", err)
	}
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx,
		`UPDATE operations SET cleaned_at = ?, updated_at = ? WHERE id = ? AND cleaned_at IS NULL`,
		nowStr, nowStr, operationID)
	if err != nil {
		return nil, fmt.Errorf("mark cleaned: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cleanup: %w", err)
	}
	return artifacts, nil
}

// ResetStuckRunning returns jobs left running by a previous process to the
// queue. Called once on startup before workers begin claiming.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
         SET status = ?, worker = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		JobQueued, nowStr, JobRunning)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale requeues running jobs whose heartbeats predate the cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
         SET status = ?, worker = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		JobQueued, nowStr, JobRunning, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM render_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (s *Store) jobsForOperation(ctx context.Context, operationID string) ([]*RenderJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM render_jobs
         WHERE operation_id = ? ORDER BY moment_index, language`, operationID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*RenderJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

const jobColumns = "id, operation_id, moment_index, language, status, attempts, failure_kind, error_message, artifact_path, worker, last_heartbeat, next_retry_at, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*RenderJob, error) {
	var (
		job              RenderJob
		statusStr        string
		failureKind      sql.NullString
		errorMessage     sql.NullString
		artifactPath     sql.NullString
		worker           sql.NullString
		lastHeartbeatRaw sql.NullString
		nextRetryRaw     sql.NullString
		createdRaw       string
		updatedRaw       string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.OperationID,
		&job.MomentIndex,
		&job.Language,
		&statusStr,
		&job.Attempts,
		&failureKind,
		&errorMessage,
		&artifactPath,
		&worker,
		&lastHeartbeatRaw,
		&nextRetryRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job.Status = JobStatus(statusStr)
	job.FailureKind = FailureKind(failureKind.String)
	job.ErrorMessage = errorMessage.String
	job.ArtifactPath = artifactPath.String
	job.Worker = worker.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	if nextRetryRaw.Valid {
		if next, err := parseTimeString(nextRetryRaw.String); err == nil {
			job.NextRetryAt = &next
		}
	}
	return &job, nil
}

func scanOperation(scanner interface{ Scan(dest ...any) error }) (*Operation, error) {
	var (
		op         Operation
		sessionID  sql.NullString
		createdRaw string
		updatedRaw string
		cleanedRaw sql.NullString
	)
	if err := scanner.Scan(&op.ID, &op.DiscoveryID, &sessionID, &createdRaw, &updatedRaw, &cleanedRaw); err != nil {
		return nil, err
	}
	op.SessionID = sessionID.String
	if created, err := parseTimeString(createdRaw); err == nil {
		op.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		op.UpdatedAt = updated
	}
	if cleanedRaw.Valid {
		if cleaned, err := parseTimeString(cleanedRaw.String); err == nil {
			op.CleanedAt = &cleaned
		}
	}
	return &op, nil
}
