// Package api is the external interface of the pipeline: discovery,
// batch submission, status polling, artifact retrieval, cleanup, and
// session management. The CLI is its only consumer today, but nothing in it
// assumes a terminal.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/config"
	"clipforge/internal/extract"
	"clipforge/internal/logging"
	"clipforge/internal/moments"
	"clipforge/internal/operations"
)

// FeatureExtractor is the discovery ingestion capability.
type FeatureExtractor interface {
	Extract(ctx context.Context, sourcePath, scratchDir string) (extract.Features, error)
}

// Service wires the pipeline components behind the external operations.
type Service struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *operations.Store
	extractor FeatureExtractor
	selector  *moments.Selector
}

// NewService constructs the service.
func NewService(cfg *config.Config, store *operations.Store, extractor FeatureExtractor, selector *moments.Selector, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "api"),
		store:     store,
		extractor: extractor,
		selector:  selector,
	}
}

// Discover runs extraction and moment selection over a source video and
// persists the ranked result. count and maxDurationSeconds of zero fall back
// to configuration. Synchronous: returns once scoring completes.
func (s *Service) Discover(ctx context.Context, sourcePath string, count, maxDurationSeconds int) (*operations.Discovery, error) {
	sourcePath, err := config.ExpandPath(strings.TrimSpace(sourcePath))
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = s.cfg.Discovery.DefaultCount
	}
	maxClip := s.cfg.Discovery.MaxClipSeconds
	if maxDurationSeconds > 0 {
		maxClip = maxDurationSeconds
	}
	minClip := s.cfg.Discovery.MinClipSeconds
	if minClip >= maxClip {
		return nil, &operations.ValidationError{
			Reason: fmt.Sprintf("max duration %ds must exceed minimum clip length %ds", maxClip, minClip),
		}
	}

	scratchDir := filepath.Join(s.cfg.Paths.WorkspaceDir, "discover", uuid.NewString())
	defer os.RemoveAll(scratchDir)

	features, err := s.extractor.Extract(ctx, sourcePath, scratchDir)
	if err != nil {
		return nil, err
	}

	ranked, err := s.selector.Discover(ctx, features.Transcript, count,
		time.Duration(minClip)*time.Second, time.Duration(maxClip)*time.Second)
	if err != nil {
		return nil, err
	}
	// Finding fewer moments than asked for, or none at all, is a normal
	// outcome; the caller sees however many the source yields.
	discovery, err := s.store.CreateDiscovery(ctx, sourcePath, features.DurationSec, features.Transcript, ranked)
	if err != nil {
		return nil, err
	}
	s.logger.Info("discovery completed",
		logging.String(logging.FieldDiscoveryID, discovery.ID),
		logging.Int("moments", len(ranked)),
	)
	return discovery, nil
}

// Submit creates one operation fanning out a render job per
// (moment, language) pair. Returns immediately; rendering proceeds
// asynchronously in the orchestrator.
func (s *Service) Submit(ctx context.Context, discoveryID string, momentIndexes []int, languages []string, sessionID string) (string, error) {
	op, err := s.store.CreateOperation(ctx, discoveryID, momentIndexes, languages, sessionID)
	if err != nil {
		return "", err
	}
	s.logger.Info("operation submitted",
		logging.String(logging.FieldOperationID, op.ID),
		logging.Int("jobs", len(op.Jobs)),
	)
	return op.ID, nil
}

// Status returns a fresh operation snapshot. The aggregate status is derived
// from the jobs on every call. Unknown and cleaned operations both report
// NotFound: cleanup removes the tracked state status would describe.
func (s *Service) Status(ctx context.Context, operationID string) (*operations.Operation, error) {
	op, err := s.store.GetOperation(ctx, operationID)
	if err != nil {
		if errors.Is(err, operations.ErrGone) {
			return nil, fmt.Errorf("operation %s: %w", operationID, operations.ErrNotFound)
		}
		return nil, err
	}
	return op, nil
}

// ListOperations returns all live operations for display.
func (s *Service) ListOperations(ctx context.Context) ([]*operations.Operation, error) {
	return s.store.ListOperations(ctx)
}

// Fetch opens the artifact of a succeeded job. NotFound covers unknown
// identifiers and jobs that have not succeeded; Gone covers operations whose
// artifacts an earlier cleanup removed.
func (s *Service) Fetch(ctx context.Context, operationID, jobID string) (io.ReadCloser, error) {
	if _, err := s.store.GetOperation(ctx, operationID); err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, operationID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != operations.JobSucceeded || job.ArtifactPath == "" {
		return nil, fmt.Errorf("job %s has not succeeded: %w", jobID, operations.ErrNotFound)
	}
	file, err := os.Open(job.ArtifactPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact for job %s: %w", jobID, operations.ErrGone)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return file, nil
}

// Retry requeues an operation's failed jobs with a fresh attempt budget.
func (s *Service) Retry(ctx context.Context, operationID string) (int64, error) {
	return s.store.RetryFailed(ctx, operationID)
}

// Cleanup removes an operation's tracked state and artifacts. Idempotent:
// repeated or unknown-id cleanups succeed quietly. A running job may finish
// after this returns; its result is detected and discarded on completion.
func (s *Service) Cleanup(ctx context.Context, operationID string) error {
	artifacts, err := s.store.Cleanup(ctx, operationID)
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove artifact", logging.Error(err), logging.String("artifact", artifact))
		}
	}
	// The per-operation output dir goes too once its clips are gone.
	opDir := filepath.Join(s.cfg.Paths.OutputDir, operationID)
	if err := os.Remove(opDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		// Non-empty means a straggler render is still writing; its completion
		// handler discards the artifact.
		s.logger.Debug("output dir not removed", logging.Error(err))
	}
	s.logger.Info("operation cleaned",
		logging.String(logging.FieldOperationID, operationID),
		logging.Int("artifacts_removed", len(artifacts)),
	)
	return nil
}

// CreateSession stores optional cross-call context such as a voice reference.
func (s *Service) CreateSession(ctx context.Context, voiceReference string) (*operations.Session, error) {
	return s.store.CreateSession(ctx, voiceReference)
}

// GetSession fetches a session by identifier.
func (s *Service) GetSession(ctx context.Context, id string) (*operations.Session, error) {
	return s.store.GetSession(ctx, id)
}

// GetDiscovery fetches a stored discovery by identifier.
func (s *Service) GetDiscovery(ctx context.Context, id string) (*operations.Discovery, error) {
	return s.store.GetDiscovery(ctx, id)
}

// Stats returns job counts grouped by status.
func (s *Service) Stats(ctx context.Context) (map[operations.JobStatus]int, error) {
	return s.store.Stats(ctx)
}
