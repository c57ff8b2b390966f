package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("default workers = %d, want 2", cfg.Workflow.Workers)
	}
	if cfg.Render.ReframeMode != "blurpad" {
		t.Fatalf("default reframe mode = %q", cfg.Render.ReframeMode)
	}
	if !filepath.IsAbs(cfg.Paths.WorkspaceDir) {
		t.Fatalf("workspace dir not normalized: %q", cfg.Paths.WorkspaceDir)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipforge.toml")
	content := `
[paths]
workspace_dir = "` + filepath.Join(dir, "work") + `"
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[workflow]
workers = 4

[render]
reframe_mode = "crop"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("workers = %d, want 4", cfg.Workflow.Workers)
	}
	if cfg.Render.ReframeMode != "crop" {
		t.Fatalf("reframe mode = %q, want crop", cfg.Render.ReframeMode)
	}
}

func TestValidateRejectsBadReframeMode(t *testing.T) {
	cfg := config.Default()
	cfg.Render.ReframeMode = "zoom"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "reframe_mode") {
		t.Fatalf("expected reframe_mode error, got %v", err)
	}
}

func TestValidateRejectsInvertedClipBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.MinClipSeconds = 60
	cfg.Discovery.MaxClipSeconds = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max <= min clip seconds")
	}
}

func TestValidateRejectsHeartbeatTimeoutBelowInterval(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.HeartbeatInterval = 30
	cfg.Workflow.HeartbeatTimeout = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected heartbeat timeout error")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[workflow]") {
		t.Fatal("sample config missing workflow section")
	}
}
