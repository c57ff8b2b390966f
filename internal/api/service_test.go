package api_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/extract"
	"clipforge/internal/logging"
	"clipforge/internal/moments"
	"clipforge/internal/operations"
	"clipforge/internal/testsupport"
	"clipforge/internal/transcript"
)

type fakeExtractor struct {
	features extract.Features
	err      error
}

func (f *fakeExtractor) Extract(ctx context.Context, sourcePath, scratchDir string) (extract.Features, error) {
	return f.features, f.err
}

type fixedScorer struct{}

func (fixedScorer) Score(ctx context.Context, window moments.Window) (moments.Scored, error) {
	// Earlier windows score higher so selection order is deterministic.
	return moments.Scored{Score: 10 - window.Start.Seconds()/100, Caption: window.Text}, nil
}

func newService(t *testing.T) (*api.Service, *operations.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	tr := transcript.Transcript{Segments: []transcript.Segment{
		{Start: 0, End: 20, Text: "the first twenty seconds"},
		{Start: 20, End: 40, Text: "the middle stretch"},
		{Start: 40, End: 60, Text: "the big payoff"},
		{Start: 60, End: 80, Text: "the wind down"},
	}}
	extractor := &fakeExtractor{features: extract.Features{Transcript: tr, DurationSec: 80}}
	selector := moments.NewSelector(fixedScorer{}, logging.NewNop())
	return api.NewService(cfg, store, extractor, selector, logging.NewNop()), store, cfg
}

func TestDiscoverPersistsRankedMoments(t *testing.T) {
	service, store, _ := newService(t)

	discovery, err := service.Discover(context.Background(), "/videos/talk.mp4", 2, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(discovery.Moments) != 2 {
		t.Fatalf("moment count = %d, want 2", len(discovery.Moments))
	}
	for i, moment := range discovery.Moments {
		if moment.Index != i {
			t.Fatalf("moment %d index = %d", i, moment.Index)
		}
	}

	stored, err := store.GetDiscovery(context.Background(), discovery.ID)
	if err != nil {
		t.Fatalf("GetDiscovery: %v", err)
	}
	if len(stored.Moments) != 2 {
		t.Fatalf("stored moment count = %d", len(stored.Moments))
	}
}

func TestDiscoverPropagatesInputError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor := &fakeExtractor{err: extract.ErrInput}
	service := api.NewService(cfg, store, extractor, moments.NewSelector(fixedScorer{}, logging.NewNop()), logging.NewNop())

	if _, err := service.Discover(context.Background(), "/videos/broken.mp4", 3, 0); !errors.Is(err, extract.ErrInput) {
		t.Fatalf("err = %v, want ErrInput", err)
	}
}

func TestDiscoverEmptyResultIsNotAnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor := &fakeExtractor{features: extract.Features{DurationSec: 5}}
	service := api.NewService(cfg, store, extractor, moments.NewSelector(fixedScorer{}, logging.NewNop()), logging.NewNop())

	discovery, err := service.Discover(context.Background(), "/videos/silent.mp4", 3, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(discovery.Moments) != 0 {
		t.Fatalf("moment count = %d, want 0", len(discovery.Moments))
	}

	stored, err := store.GetDiscovery(context.Background(), discovery.ID)
	if err != nil {
		t.Fatalf("GetDiscovery: %v", err)
	}
	if len(stored.Moments) != 0 {
		t.Fatalf("stored moment count = %d", len(stored.Moments))
	}
}

func TestSubmitFansOutJobs(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	discovery, err := service.Discover(ctx, "/videos/talk.mp4", 2, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	opID, err := service.Submit(ctx, discovery.ID, []int{0, 1}, []string{"en", "es"}, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	op, err := service.Status(ctx, opID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(op.Jobs) != 4 {
		t.Fatalf("job count = %d, want 4", len(op.Jobs))
	}
	if op.Status() != operations.StatusQueued {
		t.Fatalf("aggregate = %s, want queued", op.Status())
	}
}

func TestStatusUnknownOperationNotFound(t *testing.T) {
	service, _, _ := newService(t)
	if _, err := service.Status(context.Background(), "missing"); !errors.Is(err, operations.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchLifecycle(t *testing.T) {
	service, store, cfg := newService(t)
	ctx := context.Background()

	discovery, err := service.Discover(ctx, "/videos/talk.mp4", 1, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	opID, err := service.Submit(ctx, discovery.ID, []int{0}, []string{"en"}, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	op, err := service.Status(ctx, opID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	jobID := op.Jobs[0].ID

	// Queued jobs have nothing to fetch.
	if _, err := service.Fetch(ctx, opID, jobID); !errors.Is(err, operations.ErrNotFound) {
		t.Fatalf("fetch queued err = %v, want ErrNotFound", err)
	}

	// Drive the job to success by hand.
	claimed, err := store.ClaimNextJob(ctx, "test-worker")
	if err != nil || claimed == nil {
		t.Fatalf("claim: job=%v err=%v", claimed, err)
	}
	artifact := filepath.Join(cfg.Paths.OutputDir, opID, "clip_0_en.mp4")
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(artifact, []byte("encoded clip"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if ok, err := store.CompleteJob(ctx, claimed.ID, artifact); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	reader, err := service.Fetch(ctx, opID, jobID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil || string(data) != "encoded clip" {
		t.Fatalf("fetched %q err=%v", data, err)
	}

	if err := service.Cleanup(ctx, opID); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(artifact); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact survived cleanup: %v", err)
	}
	if _, err := service.Fetch(ctx, opID, jobID); !errors.Is(err, operations.ErrGone) {
		t.Fatalf("fetch after cleanup err = %v, want ErrGone", err)
	}
	// Cleanup stays idempotent through the service too.
	if err := service.Cleanup(ctx, opID); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
	if err := service.Cleanup(ctx, "never-existed"); err != nil {
		t.Fatalf("unknown Cleanup: %v", err)
	}
}

func TestSessionManagement(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	session, err := service.CreateSession(ctx, "voice-clone-7")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, err := service.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.VoiceReference != "voice-clone-7" {
		t.Fatalf("voice reference = %q", got.VoiceReference)
	}
}
