package render_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/render"
	"clipforge/internal/testsupport"
	"clipforge/internal/transcript"
)

type recordedCommand struct {
	name string
	args []string
}

// fakeRunner records invocations and materializes the output file ffmpeg
// would have produced, so the finalize rename has something to move.
func fakeRunner(t *testing.T, commands *[]recordedCommand) func(ctx context.Context, name string, args ...string) error {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) error {
		*commands = append(*commands, recordedCommand{name: name, args: args})
		out := args[len(args)-1]
		if strings.HasSuffix(out, ".mp4") {
			if err := os.WriteFile(out, []byte("encoded"), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func argString(cmd recordedCommand) string {
	return strings.Join(cmd.args, " ")
}

func TestRenderProducesArtifactWithCTA(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := render.New(cfg, logging.NewNop())
	renderer.WithSpaceCheck(func(string) error { return nil })

	var commands []recordedCommand
	renderer.WithCommandRunner(fakeRunner(t, &commands))

	output := filepath.Join(cfg.Paths.OutputDir, "clip_0_es.mp4")
	err := renderer.Render(context.Background(), render.Request{
		SourcePath: writeSource(t),
		Start:      10 * time.Second,
		End:        40 * time.Second,
		Hook:       "Espera esto",
		Caption:    "La recompensa",
		Language:   "es",
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	// clip encode, CTA card, concat
	if len(commands) != 3 {
		t.Fatalf("command count = %d, want 3", len(commands))
	}
	clip := argString(commands[0])
	if !strings.Contains(clip, "-ss 10.000") || !strings.Contains(clip, "-to 40.000") {
		t.Fatalf("clip command missing time range: %s", clip)
	}
	if !strings.Contains(clip, "boxblur") || !strings.Contains(clip, "subtitles=") {
		t.Fatalf("clip command missing blurpad filtergraph or captions: %s", clip)
	}
	if !strings.Contains(argString(commands[1]), "drawtext") {
		t.Fatalf("cta command missing drawtext: %s", argString(commands[1]))
	}
	if !strings.Contains(argString(commands[2]), "concat") {
		t.Fatalf("third command is not concat: %s", argString(commands[2]))
	}

	if _, err := os.Stat(output); err != nil {
		t.Fatalf("artifact not finalized: %v", err)
	}
	if matches, _ := filepath.Glob(filepath.Join(cfg.Paths.OutputDir, ".*.work")); len(matches) != 0 {
		t.Fatalf("work dir left behind: %v", matches)
	}
}

func TestRenderCropModeSkipsCTAWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.ReframeMode = "crop"
	cfg.Render.CTAText = ""
	renderer := render.New(cfg, logging.NewNop())
	renderer.WithSpaceCheck(func(string) error { return nil })

	var commands []recordedCommand
	renderer.WithCommandRunner(fakeRunner(t, &commands))

	output := filepath.Join(cfg.Paths.OutputDir, "clip_1_en.mp4")
	err := renderer.Render(context.Background(), render.Request{
		SourcePath: writeSource(t),
		Start:      0,
		End:        20 * time.Second,
		Language:   "en",
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(commands) != 1 {
		t.Fatalf("command count = %d, want 1", len(commands))
	}
	if !strings.Contains(argString(commands[0]), "crop=ih*1080/1920") {
		t.Fatalf("missing crop reframe: %s", argString(commands[0]))
	}
}

func TestRenderBurnsLocalizedCaptionTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.CTAText = ""
	renderer := render.New(cfg, logging.NewNop())
	renderer.WithSpaceCheck(func(string) error { return nil })

	output := filepath.Join(cfg.Paths.OutputDir, "clip_3_de.mp4")
	assPath := filepath.Join(cfg.Paths.OutputDir, ".clip_3_de.mp4.work", "captions.ass")

	// Read the caption document while the work dir still exists.
	var captions string
	renderer.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		data, err := os.ReadFile(assPath)
		if err != nil {
			return err
		}
		captions = string(data)
		return os.WriteFile(args[len(args)-1], []byte("encoded"), 0o644)
	})

	err := renderer.Render(context.Background(), render.Request{
		SourcePath: writeSource(t),
		Start:      10 * time.Second,
		End:        40 * time.Second,
		Transcript: transcript.Transcript{Segments: []transcript.Segment{
			{Start: 12, End: 30, Text: "the spoken english line"},
		}},
		Hook:       "Warte ab",
		Caption:    "die übersetzte Bildunterschrift",
		Language:   "de",
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(captions, "die übersetzte Bildunterschrift") {
		t.Fatalf("localized caption missing from burned track:\n%s", captions)
	}
	if strings.Contains(captions, "the spoken english line") {
		t.Fatalf("source speech burned instead of localized caption:\n%s", captions)
	}
}

func TestRenderSkipsExistingArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := render.New(cfg, logging.NewNop())
	renderer.WithSpaceCheck(func(string) error { return nil })

	var commands []recordedCommand
	renderer.WithCommandRunner(fakeRunner(t, &commands))

	output := filepath.Join(cfg.Paths.OutputDir, "clip_2_en.mp4")
	if err := os.WriteFile(output, []byte("already here"), 0o644); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	err := renderer.Render(context.Background(), render.Request{
		SourcePath: writeSource(t),
		Start:      0,
		End:        10 * time.Second,
		Language:   "en",
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(commands) != 0 {
		t.Fatalf("expected no commands for existing artifact, got %d", len(commands))
	}
	data, _ := os.ReadFile(output)
	if string(data) != "already here" {
		t.Fatal("existing artifact was overwritten")
	}
}

func TestRenderRejectsInvalidRange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := render.New(cfg, logging.NewNop())

	err := renderer.Render(context.Background(), render.Request{
		SourcePath: writeSource(t),
		Start:      20 * time.Second,
		End:        20 * time.Second,
		OutputPath: filepath.Join(cfg.Paths.OutputDir, "bad.mp4"),
	})
	if err == nil {
		t.Fatal("expected error for empty time range")
	}
}

func TestRenderSurfacesDiskPressureAsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := render.New(cfg, logging.NewNop())
	renderer.WithSpaceCheck(func(dir string) error {
		return &render.DiskSpaceError{Dir: dir, FreeBytes: 0, NeedBytes: 1}
	})
	renderer.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatal("ffmpeg should not run when preflight fails")
		return nil
	})

	err := renderer.Render(context.Background(), render.Request{
		SourcePath: writeSource(t),
		Start:      0,
		End:        10 * time.Second,
		OutputPath: filepath.Join(cfg.Paths.OutputDir, "clip.mp4"),
	})
	var spaceErr *render.DiskSpaceError
	if !errors.As(err, &spaceErr) {
		t.Fatalf("err = %v, want DiskSpaceError", err)
	}
	if spaceErr.ErrorKind() != "transient" {
		t.Fatalf("ErrorKind = %q, want transient", spaceErr.ErrorKind())
	}
}
