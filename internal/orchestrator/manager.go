// Package orchestrator drains the render job queue with a bounded worker
// pool. Each worker owns one job at a time: localize, render, then write the
// terminal state. Job failures never touch sibling jobs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/config"
	"clipforge/internal/localize"
	"clipforge/internal/logging"
	"clipforge/internal/moments"
	"clipforge/internal/operations"
	"clipforge/internal/render"
)

const maxRetryBackoff = 30 * time.Second

// Manager coordinates the worker pool over the shared job queue.
type Manager struct {
	cfg        *config.Config
	store      *operations.Store
	logger     *slog.Logger
	translator localize.Translator
	renderer   render.Renderer

	pollInterval      time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	lock *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a manager. The translator and renderer are the two
// external capabilities each job exercises.
func NewManager(cfg *config.Config, store *operations.Store, translator localize.Translator, renderer render.Renderer, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:               cfg,
		store:             store,
		logger:            logging.NewComponentLogger(logger, "orchestrator"),
		translator:        translator,
		renderer:          renderer,
		pollInterval:      time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeatInterval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
		lock:              flock.New(filepath.Join(cfg.Paths.WorkspaceDir, "clipforge.lock")),
	}
}

// Start acquires the workspace lock, requeues jobs orphaned by a previous
// process, and launches the worker pool plus the stale-job reclaimer.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("orchestrator already running")
	}

	locked, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("workspace lock: %w", err)
	}
	if !locked {
		return errors.New("another clipforge instance holds this workspace")
	}

	if reset, err := m.store.ResetStuckRunning(ctx); err != nil {
		_ = m.lock.Unlock()
		return fmt.Errorf("reset stuck jobs: %w", err)
	} else if reset > 0 {
		m.logger.Info("requeued jobs from previous run", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.Workers
	for i := 0; i < workers; i++ {
		worker := fmt.Sprintf("worker-%d", i)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.workerLoop(runCtx, worker)
		}()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reclaimLoop(runCtx)
	}()

	m.logger.Info("orchestrator started", logging.Int("workers", workers))
	return nil
}

// Stop halts the pool, waits for in-flight jobs to finish, and releases the
// workspace lock.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	if err := m.lock.Unlock(); err != nil {
		m.logger.Warn("release workspace lock", logging.Error(err))
	}
	m.logger.Info("orchestrator stopped")
}

func (m *Manager) workerLoop(ctx context.Context, worker string) {
	logger := m.logger.With(logging.String(logging.FieldWorker, worker))
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		// Drain everything runnable before going back to sleep.
		for {
			if ctx.Err() != nil {
				return
			}
			job, err := m.store.ClaimNextJob(ctx, worker)
			if err != nil {
				logger.Error("claim next job", logging.Error(err))
				break
			}
			if job == nil {
				break
			}
			m.processJob(ctx, logger, job)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.heartbeatTimeout)
			reclaimed, err := m.store.ReclaimStale(ctx, cutoff)
			if err != nil {
				m.logger.Error("reclaim stale jobs", logging.Error(err))
				continue
			}
			if reclaimed > 0 {
				m.logger.Warn("reclaimed stale running jobs", logging.Int64("count", reclaimed))
			}
		}
	}
}

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *operations.RenderJob) {
	logger = logger.With(
		logging.String(logging.FieldOperationID, job.OperationID),
		logging.String(logging.FieldJobID, job.ID),
		logging.Int(logging.FieldMomentIndex, job.MomentIndex),
		logging.String(logging.FieldLanguage, job.Language),
	)
	logger.Info("job started", logging.Int("attempt", job.Attempts))

	stopHeartbeat := m.startHeartbeat(ctx, job.ID)
	artifact, err := m.runJob(ctx, job)
	stopHeartbeat()

	if err != nil {
		m.settleFailure(ctx, logger, job, err)
		return
	}

	kept, err := m.store.CompleteJob(ctx, job.ID, artifact)
	if err != nil {
		logger.Error("record completion", logging.Error(err))
		return
	}
	if !kept {
		// Cleanup ran while we were rendering; the result is unwanted.
		if removeErr := os.Remove(artifact); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.Warn("discard orphaned artifact", logging.Error(removeErr))
		}
		logger.Info("job result discarded after cleanup")
		return
	}
	logger.Info("job succeeded", logging.String("artifact", artifact))
}

// runJob executes the localize-then-render pipeline for one claimed job and
// returns the artifact path.
func (m *Manager) runJob(ctx context.Context, job *operations.RenderJob) (string, error) {
	op, err := m.store.GetOperation(ctx, job.OperationID)
	if err != nil {
		return "", fmt.Errorf("load operation: %w", err)
	}
	discovery, err := m.store.GetDiscovery(ctx, op.DiscoveryID)
	if err != nil {
		return "", fmt.Errorf("load discovery: %w", err)
	}

	var moment *moments.Moment
	for i := range discovery.Moments {
		if discovery.Moments[i].Index == job.MomentIndex {
			moment = &discovery.Moments[i]
			break
		}
	}
	if moment == nil {
		return "", &missingMomentError{Index: job.MomentIndex}
	}

	voiceReference := ""
	if op.SessionID != "" {
		session, err := m.store.GetSession(ctx, op.SessionID)
		if err != nil {
			return "", fmt.Errorf("load session: %w", err)
		}
		voiceReference = session.VoiceReference
	}

	localized, err := m.translator.Translate(ctx, localize.Request{
		Hook:           moment.Hook,
		Caption:        moment.Caption,
		Language:       job.Language,
		VoiceReference: voiceReference,
	})
	if err != nil {
		return "", fmt.Errorf("localize: %w", err)
	}

	artifact := ArtifactPath(m.cfg.Paths.OutputDir, job.OperationID, job.MomentIndex, job.Language)
	err = m.renderer.Render(ctx, render.Request{
		SourcePath: discovery.SourcePath,
		Start:      moment.Start,
		End:        moment.End,
		Transcript: discovery.Transcript,
		Hook:       localized.Hook,
		Caption:    localized.Caption,
		Language:   localized.Language,
		OutputPath: artifact,
	})
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return artifact, nil
}

func (m *Manager) settleFailure(ctx context.Context, logger *slog.Logger, job *operations.RenderJob, jobErr error) {
	kind := operations.Classify(jobErr)
	switch {
	case kind == operations.FailureTerminal:
		logger.Warn("job failed terminally", logging.Error(jobErr))
		if err := m.store.FailJob(ctx, job.ID, operations.FailureTerminal, jobErr.Error()); err != nil {
			logger.Error("record terminal failure", logging.Error(err))
		}
	case job.Attempts >= m.cfg.Workflow.JobMaxAttempts:
		logger.Warn("job retry budget exhausted",
			logging.Int("attempts", job.Attempts),
			logging.Error(jobErr),
		)
		if err := m.store.FailJob(ctx, job.ID, operations.FailureExhausted, jobErr.Error()); err != nil {
			logger.Error("record exhausted failure", logging.Error(err))
		}
	default:
		delay := m.retryDelay(job.Attempts)
		logger.Info("job requeued after transient failure",
			logging.Int("attempt", job.Attempts),
			logging.Duration("retry_in", delay),
			logging.Error(jobErr),
		)
		if err := m.store.RequeueJob(ctx, job.ID, time.Now().Add(delay), jobErr.Error()); err != nil {
			logger.Error("requeue job", logging.Error(err))
		}
	}
}

// retryDelay doubles the configured base per completed attempt, capped.
func (m *Manager) retryDelay(attempts int) time.Duration {
	delay := time.Duration(m.cfg.Workflow.RetryBackoffSeconds) * time.Second
	for i := 1; i < attempts; i++ {
		if delay >= maxRetryBackoff/2 {
			return maxRetryBackoff
		}
		delay *= 2
	}
	if delay > maxRetryBackoff {
		return maxRetryBackoff
	}
	return delay
}

func (m *Manager) startHeartbeat(ctx context.Context, jobID string) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(m.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := m.store.UpdateJobHeartbeat(hbCtx, jobID); err != nil {
					m.logger.Warn("update heartbeat", logging.Error(err))
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// ArtifactPath is the canonical output location for one (moment, language)
// clip inside an operation.
func ArtifactPath(outputDir, operationID string, momentIndex int, language string) string {
	return filepath.Join(outputDir, operationID, fmt.Sprintf("clip_%d_%s.mp4", momentIndex, language))
}

// missingMomentError marks a job whose moment index has no stored moment.
// Retrying cannot fix it.
type missingMomentError struct {
	Index int
}

func (e *missingMomentError) Error() string {
	return fmt.Sprintf("moment %d not found in discovery", e.Index)
}

func (e *missingMomentError) ErrorKind() string { return "terminal" }
