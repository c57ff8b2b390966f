// Package operations is the durable Operation/RenderJob registry. It owns
// batch lifecycle state: discoveries, sessions, operations, and the render
// job queue that workers drain.
package operations

import (
	"time"

	"clipforge/internal/moments"
	"clipforge/internal/transcript"
)

// JobStatus is the render job state machine. Transitions are strictly
// queued -> running -> {succeeded | failed}; a transient failure under budget
// moves the job back to queued with a retry delay instead of failed.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// FailureKind classifies why a job reached failed.
type FailureKind string

const (
	// FailureTransient marks an upstream error worth another attempt. Jobs
	// never persist in failed with this kind; it only travels through
	// classification before a requeue.
	FailureTransient FailureKind = "transient"
	// FailureTerminal marks input problems retrying cannot fix.
	FailureTerminal FailureKind = "terminal"
	// FailureExhausted marks a transient error that ran out of attempts.
	FailureExhausted FailureKind = "exhausted"
)

// AggregateStatus is the operation-level status derived from job states.
type AggregateStatus string

const (
	StatusQueued              AggregateStatus = "queued"
	StatusRunning             AggregateStatus = "running"
	StatusCompleted           AggregateStatus = "completed"
	StatusCompletedWithErrors AggregateStatus = "completed_with_errors"
	StatusFailed              AggregateStatus = "failed"
)

// Discovery is one persisted moment-discovery result. The moment list and
// transcript are immutable once written; submit references moments by index.
type Discovery struct {
	ID          string
	SourcePath  string
	DurationSec float64
	Transcript  transcript.Transcript
	Moments     []moments.Moment
	CreatedAt   time.Time
}

// Session carries optional cross-call context such as a cloned voice.
type Session struct {
	ID             string
	VoiceReference string
	CreatedAt      time.Time
}

// Operation groups the render jobs submitted together. It is the unit of
// lifecycle and cleanup; jobs never outlive it.
type Operation struct {
	ID          string
	DiscoveryID string
	SessionID   string
	Jobs        []*RenderJob
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CleanedAt   *time.Time
}

// Status derives the aggregate status from the current job set. Never stored;
// recomputed on every read so it cannot drift from the jobs.
func (o *Operation) Status() AggregateStatus {
	return DeriveStatus(o.Jobs)
}

// RenderJob is one (moment, language) render task.
type RenderJob struct {
	ID            string
	OperationID   string
	MomentIndex   int
	Language      string
	Status        JobStatus
	Attempts      int
	FailureKind   FailureKind
	ErrorMessage  string
	ArtifactPath  string
	Worker        string
	LastHeartbeat *time.Time
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the job can make no further progress.
func (j *RenderJob) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}

// DeriveStatus computes the aggregate status from a job set:
//
//   - queued when every job is queued and untouched
//   - completed when every job succeeded
//   - failed when every job reached a terminal failure
//   - completed_with_errors when all jobs are settled with a mix of
//     successes and terminal failures
//   - running otherwise, including jobs requeued and waiting on a retry
func DeriveStatus(jobs []*RenderJob) AggregateStatus {
	if len(jobs) == 0 {
		return StatusQueued
	}
	var fresh, succeeded, failed int
	for _, job := range jobs {
		switch {
		case job.Status == JobQueued && job.Attempts == 0:
			fresh++
		case job.Status == JobSucceeded:
			succeeded++
		case job.Status == JobFailed:
			failed++
		}
	}
	total := len(jobs)
	switch {
	case fresh == total:
		return StatusQueued
	case succeeded == total:
		return StatusCompleted
	case failed == total:
		return StatusFailed
	case succeeded+failed == total:
		return StatusCompletedWithErrors
	default:
		return StatusRunning
	}
}
