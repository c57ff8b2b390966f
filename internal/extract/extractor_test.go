package extract_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/extract"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/testsupport"
	"clipforge/internal/transcript"
)

func writeSourceFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func probeWithAudio(ctx context.Context, binary, path string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video"},
			{Index: 1, CodecType: "audio"},
		},
		Format: ffprobe.Format{Duration: "120.0"},
	}, nil
}

func TestExtractMissingSourceIsInputError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	extractor := extract.New(cfg, logging.NewNop())

	_, err := extractor.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), t.TempDir())
	if !errors.Is(err, extract.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestExtractNoAudioTrackIsInputError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	extractor := extract.New(cfg, logging.NewNop())
	extractor.WithProbe(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}, nil
	})

	source := writeSourceFile(t, t.TempDir())
	_, err := extractor.Extract(context.Background(), source, t.TempDir())
	if !errors.Is(err, extract.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestExtractRunsTranscriptionAndFrameSampling(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	scratch := t.TempDir()
	source := writeSourceFile(t, t.TempDir())

	extractor := extract.New(cfg, logging.NewNop())
	extractor.WithProbe(probeWithAudio)

	var commands []string
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		commands = append(commands, name)
		if name == extract.UVXCommand {
			// WhisperX writes <base>.json next to the audio file.
			payload := transcript.Transcript{Segments: []transcript.Segment{
				{Start: 0, End: 4.2, Text: "Welcome back to the channel."},
				{Start: 4.2, End: 9.8, Text: "Today we cover three mistakes."},
			}}
			data, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(scratch, "audio.json"), data, 0o644)
		}
		return nil
	})

	features, err := extractor.Extract(context.Background(), source, scratch)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(features.Transcript.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(features.Transcript.Segments))
	}
	if features.DurationSec != 120 {
		t.Fatalf("duration = %v, want 120", features.DurationSec)
	}
	// audio extraction, whisperx, frame sampling
	if len(commands) != 3 {
		t.Fatalf("commands = %v", commands)
	}
	if commands[1] != extract.UVXCommand {
		t.Fatalf("second command = %q, want uvx", commands[1])
	}
}

func TestExtractEmptyTranscriptIsInputError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	scratch := t.TempDir()
	source := writeSourceFile(t, t.TempDir())

	extractor := extract.New(cfg, logging.NewNop())
	extractor.WithProbe(probeWithAudio)
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		if name == extract.UVXCommand {
			return os.WriteFile(filepath.Join(scratch, "audio.json"), []byte(`{"segments":[]}`), 0o644)
		}
		return nil
	})

	_, err := extractor.Extract(context.Background(), source, scratch)
	if !errors.Is(err, extract.ErrInput) {
		t.Fatalf("expected ErrInput for empty transcript, got %v", err)
	}
}
