package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/transcript"
)

// ErrInput marks fatal source problems: unreadable files or sources with no
// decodable audio track. Discovery cannot proceed past it.
var ErrInput = errors.New("unusable source input")

// Command names for external tools.
const (
	UVXCommand = "uvx"

	pypiIndexURL      = "https://pypi.org/simple"
	cudaIndexURL      = "https://download.pytorch.org/whl/cu128"
	segmentResolution = "sentence"
	outputFormat      = "all"
)

// Features is the multimodal signal bundle produced for one source video.
type Features struct {
	Transcript  transcript.Transcript
	FramePaths  []string
	DurationSec float64
}

// Extractor samples frames and obtains a time-aligned transcript from a
// source video. Temporary artifacts are written under a per-call scratch
// directory owned by the discovery operation.
type Extractor struct {
	cfg           *config.Config
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
	probe         func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// New creates an Extractor using the supplied configuration.
func New(cfg *config.Config, logger *slog.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "extractor"),
		probe:  ffprobe.Inspect,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// WithProbe sets a custom source prober (for testing).
func (e *Extractor) WithProbe(probe func(ctx context.Context, binary, path string) (ffprobe.Result, error)) {
	e.probe = probe
}

// Extract probes the source, pulls a mono 16kHz audio track, transcribes it
// with WhisperX, and samples frames at the configured interval. scratchDir is
// created if needed and owned by the caller.
func (e *Extractor) Extract(ctx context.Context, sourcePath, scratchDir string) (Features, error) {
	var features Features

	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return features, fmt.Errorf("%w: source path required", ErrInput)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return features, fmt.Errorf("%w: %v", ErrInput, err)
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return features, fmt.Errorf("ensure scratch dir: %w", err)
	}

	probed, err := e.probe(ctx, e.cfg.FFprobeBinary(), sourcePath)
	if err != nil {
		return features, fmt.Errorf("%w: %v", ErrInput, err)
	}
	if probed.AudioStreamCount() == 0 {
		return features, fmt.Errorf("%w: no decodable audio track", ErrInput)
	}
	features.DurationSec = probed.DurationSeconds()

	audioPath := filepath.Join(scratchDir, "audio.wav")
	if err := e.extractAudio(ctx, sourcePath, audioPath); err != nil {
		return features, err
	}

	tr, err := e.transcribe(ctx, audioPath, scratchDir)
	if err != nil {
		return features, err
	}
	if tr.Empty() {
		return features, fmt.Errorf("%w: transcription produced no speech", ErrInput)
	}
	features.Transcript = tr

	frames, err := e.sampleFrames(ctx, sourcePath, scratchDir)
	if err != nil {
		// Frame features are optional signal; discovery proceeds on transcript alone.
		e.logger.Warn("frame sampling failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "frame_sampling_failed"),
			logging.String(logging.FieldErrorHint, "check ffmpeg availability"),
		)
	} else {
		features.FramePaths = frames
	}

	return features, nil
}

func (e *Extractor) extractAudio(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := e.run(ctx, e.cfg.FFmpegBinary(), args...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

func (e *Extractor) transcribe(ctx context.Context, audioPath, outputDir string) (transcript.Transcript, error) {
	args := e.buildWhisperXArgs(audioPath, outputDir)
	if err := e.run(ctx, UVXCommand, args...); err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	tr, err := transcript.Load(jsonPath)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("load transcript: %w", err)
	}
	return tr, nil
}

// buildWhisperXArgs constructs the uvx command arguments for WhisperX.
func (e *Extractor) buildWhisperXArgs(source, outputDir string) []string {
	args := make([]string, 0, 24)

	if e.cfg.Transcriber.CUDAEnabled {
		args = append(args,
			"--index-url", cudaIndexURL,
			"--extra-index-url", pypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", pypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", e.cfg.Transcriber.Model,
		"--output_dir", outputDir,
		"--output_format", outputFormat,
		"--segment_resolution", segmentResolution,
	)

	if lang := strings.TrimSpace(e.cfg.Transcriber.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if e.cfg.Transcriber.CUDAEnabled {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu", "--compute_type", "float32")
	}

	return args
}

func (e *Extractor) sampleFrames(ctx context.Context, source, scratchDir string) ([]string, error) {
	framesDir := filepath.Join(scratchDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure frames dir: %w", err)
	}

	interval := e.cfg.Discovery.FrameIntervalSeconds
	pattern := filepath.Join(framesDir, "frame_%05d.jpg")
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vf", fmt.Sprintf("fps=1/%d", interval),
		"-q:v", "4",
		pattern,
	}
	if err := e.run(ctx, e.cfg.FFmpegBinary(), args...); err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(framesDir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (e *Extractor) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
