// Package render produces vertical clip artifacts from a source video: one
// encoded file per (moment, language) pair with localized captions burned in.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/transcript"
)

// Request describes one clip render. OutputPath is the final artifact
// location; everything else the renderer writes is scratch.
type Request struct {
	SourcePath string
	Start      time.Duration
	End        time.Duration
	Transcript transcript.Transcript
	Hook       string
	Caption    string
	Language   string
	OutputPath string
}

// Renderer is the clip production capability.
type Renderer interface {
	Render(ctx context.Context, req Request) error
}

// FFmpegRenderer renders clips by driving the ffmpeg binary.
type FFmpegRenderer struct {
	cfg           *config.Config
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
	spaceCheck    func(dir string) error
}

// New creates a renderer using the supplied configuration.
func New(cfg *config.Config, logger *slog.Logger) *FFmpegRenderer {
	return &FFmpegRenderer{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "renderer"),
		spaceCheck: CheckFreeSpace,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *FFmpegRenderer) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	r.commandRunner = runner
}

// WithSpaceCheck sets a custom free-space preflight (for testing).
func (r *FFmpegRenderer) WithSpaceCheck(check func(dir string) error) {
	r.spaceCheck = check
}

// Render produces the clip at req.OutputPath. The artifact appears atomically:
// all encoding happens in a scratch directory next to the output and the final
// file is moved into place with a rename. A request whose output already
// exists is a no-op, which makes re-delivery after crashes safe.
func (r *FFmpegRenderer) Render(ctx context.Context, req Request) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if _, err := os.Stat(req.OutputPath); err == nil {
		r.logger.Info("artifact already rendered, skipping",
			logging.String("output", req.OutputPath),
			logging.String(logging.FieldEventType, "render_skipped"),
		)
		return nil
	}

	outDir := filepath.Dir(req.OutputPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}
	if err := r.spaceCheck(outDir); err != nil {
		return err
	}

	// The work dir name is derived from the output so a crashed attempt of the
	// same job leaves a partial we can safely sweep; the queue guarantees the
	// same job never runs twice concurrently.
	workDir := filepath.Join(outDir, "."+filepath.Base(req.OutputPath)+".work")
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("sweep stale partial: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("ensure work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	assPath := filepath.Join(workDir, "captions.ass")
	captions := BuildCaptions(req.Transcript, req.Start, req.End, req.Hook, req.Caption, r.captionStyle())
	if err := os.WriteFile(assPath, []byte(captions), 0o644); err != nil {
		return fmt.Errorf("write captions: %w", err)
	}

	clipPath := filepath.Join(workDir, "clip.mp4")
	if err := r.renderClip(ctx, req, assPath, clipPath); err != nil {
		return err
	}

	finalPath := clipPath
	if cta := strings.TrimSpace(r.cfg.Render.CTAText); cta != "" && r.cfg.Render.CTASeconds > 0 {
		ctaPath := filepath.Join(workDir, "cta.mp4")
		if err := r.renderCTACard(ctx, cta, ctaPath); err != nil {
			return err
		}
		joined := filepath.Join(workDir, "joined.mp4")
		if err := r.concat(ctx, workDir, []string{clipPath, ctaPath}, joined); err != nil {
			return err
		}
		finalPath = joined
	}

	if err := os.Rename(finalPath, req.OutputPath); err != nil {
		return fmt.Errorf("finalize artifact: %w", err)
	}
	r.logger.Info("clip rendered",
		logging.String("output", req.OutputPath),
		logging.String(logging.FieldLanguage, req.Language),
		logging.Duration("clip_length", req.End-req.Start),
		logging.String(logging.FieldEventType, "render_completed"),
	)
	return nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.SourcePath) == "" {
		return errors.New("render: source path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("render: output path required")
	}
	if req.End <= req.Start {
		return fmt.Errorf("render: invalid time range [%s, %s)", req.Start, req.End)
	}
	if _, err := os.Stat(req.SourcePath); err != nil {
		return fmt.Errorf("render: source: %w", err)
	}
	return nil
}

func (r *FFmpegRenderer) captionStyle() CaptionStyle {
	return CaptionStyle{
		PlayResX: r.cfg.Render.Width,
		PlayResY: r.cfg.Render.Height,
		FontSize: r.cfg.Render.FontSize,
		MarginV:  r.cfg.Render.CaptionMarginV,
	}
}

func (r *FFmpegRenderer) renderClip(ctx context.Context, req Request, assPath, outPath string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmtSeconds(req.Start),
		"-to", fmtSeconds(req.End),
		"-i", req.SourcePath,
		"-filter_complex", r.buildFilterGraph(assPath),
		"-map", "[v]",
		"-map", "0:a?",
	}
	args = append(args, r.encodeArgs()...)
	args = append(args, outPath)
	if err := r.run(ctx, r.cfg.FFmpegBinary(), args...); err != nil {
		return fmt.Errorf("render clip: %w", err)
	}
	return nil
}

// buildFilterGraph reframes the source into the configured vertical canvas
// and burns the captions in as the last step so they are never cropped.
func (r *FFmpegRenderer) buildFilterGraph(assPath string) string {
	w, h := r.cfg.Render.Width, r.cfg.Render.Height
	subs := "subtitles=" + escapeFilterPath(assPath)
	switch r.cfg.Render.ReframeMode {
	case "blurpad":
		return fmt.Sprintf(
			"[0:v]split=2[bg][fg];"+
				"[bg]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,boxblur=20:5[blurred];"+
				"[fg]scale=%d:%d:force_original_aspect_ratio=decrease[scaled];"+
				"[blurred][scaled]overlay=(W-w)/2:(H-h)/2,%s[v]",
			w, h, w, h, w, h, subs)
	default: // crop
		return fmt.Sprintf("[0:v]crop=ih*%d/%d:ih,scale=%d:%d,%s[v]", w, h, w, h, subs)
	}
}

func (r *FFmpegRenderer) renderCTACard(ctx context.Context, text, outPath string) error {
	w, h := r.cfg.Render.Width, r.cfg.Render.Height
	seconds := r.cfg.Render.CTASeconds
	drawtext := fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2",
		escapeDrawtext(text), r.cfg.Render.FontSize)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:d=%d", w, h, seconds),
		"-f", "lavfi",
		"-i", "anullsrc=channel_layout=mono:sample_rate=44100",
		"-vf", drawtext,
		"-t", fmt.Sprintf("%d", seconds),
	}
	args = append(args, r.encodeArgs()...)
	args = append(args, "-shortest", outPath)
	if err := r.run(ctx, r.cfg.FFmpegBinary(), args...); err != nil {
		return fmt.Errorf("render cta card: %w", err)
	}
	return nil
}

// concat joins same-codec parts with the concat demuxer without re-encoding.
func (r *FFmpegRenderer) concat(ctx context.Context, workDir string, parts []string, outPath string) error {
	var list strings.Builder
	for _, p := range parts {
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	listPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
	if err := r.run(ctx, r.cfg.FFmpegBinary(), args...); err != nil {
		return fmt.Errorf("concat clip: %w", err)
	}
	return nil
}

func (r *FFmpegRenderer) encodeArgs() []string {
	return []string{
		"-c:v", "libx264",
		"-preset", r.cfg.Render.Preset,
		"-crf", fmt.Sprintf("%d", r.cfg.Render.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-movflags", "+faststart",
	}
}

func (r *FFmpegRenderer) run(ctx context.Context, name string, args ...string) error {
	if r.commandRunner != nil {
		return r.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func fmtSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, ":", `\:`)
	p = strings.ReplaceAll(p, "'", `\'`)
	return p
}

func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ":", `\:`)
	s = strings.ReplaceAll(s, "'", `\\\'`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return s
}
