package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.MinConfidence == nil || *cfg.MinConfidence != 0.7 {
		t.Errorf("Expected MinConfidence 0.7, got %v", cfg.MinConfidence)
	}
	if cfg.MaxTrackedFaces == nil || *cfg.MaxTrackedFaces != 4 {
		t.Errorf("Expected MaxTrackedFaces 4, got %v", cfg.MaxTrackedFaces)
	}
	if cfg.RemoveAfterMisses == nil || *cfg.RemoveAfterMisses != 10 {
		t.Errorf("Expected RemoveAfterMisses 10, got %v", cfg.RemoveAfterMisses)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEmptyTuningConfigGetters(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetMatchFraction(); got != 0.06 {
		t.Errorf("GetMatchFraction() = %f, want 0.06", got)
	}
	if got := cfg.GetPendingFraction(); got != 0.04 {
		t.Errorf("GetPendingFraction() = %f, want 0.04", got)
	}
	if got := cfg.GetDedupFraction(); got != 0.05 {
		t.Errorf("GetDedupFraction() = %f, want 0.05", got)
	}
	if got := cfg.GetEarWidthFactor(); got != 1.15 {
		t.Errorf("GetEarWidthFactor() = %f, want 1.15", got)
	}
	if got := cfg.GetEyeWidthFactor(); got != 2.2 {
		t.Errorf("GetEyeWidthFactor() = %f, want 2.2", got)
	}
	if got := cfg.GetMaxRotationStepDeg(); got != 7 {
		t.Errorf("GetMaxRotationStepDeg() = %f, want 7", got)
	}
	if got := cfg.GetHideAfterMisses(); got != 2 {
		t.Errorf("GetHideAfterMisses() = %d, want 2", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "overlay.json")

	testJSON := `{
  "min_confidence": 0.8,
  "max_tracked_faces": 1,
  "position_alpha": 0.1,
  "max_rotation_step_deg": 6
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if got := cfg.GetMinConfidence(); got != 0.8 {
		t.Errorf("GetMinConfidence() = %f, want 0.8", got)
	}
	if got := cfg.GetMaxTrackedFaces(); got != 1 {
		t.Errorf("GetMaxTrackedFaces() = %d, want 1", got)
	}
	if got := cfg.GetPositionAlpha(); got != 0.1 {
		t.Errorf("GetPositionAlpha() = %f, want 0.1", got)
	}
	if got := cfg.GetMaxRotationStepDeg(); got != 6 {
		t.Errorf("GetMaxRotationStepDeg() = %f, want 6", got)
	}
	// Omitted fields fall back to defaults.
	if got := cfg.GetSizeAlpha(); got != 0.10 {
		t.Errorf("GetSizeAlpha() = %f, want default 0.10", got)
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "overlay.yaml", `{}`, "must have .json extension"},
		{"bad json", "bad.json", `{"min_confidence":`, "failed to parse config JSON"},
		{"confidence out of range", "conf.json", `{"min_confidence": 1.5}`, "min_confidence"},
		{"zero alpha", "alpha.json", `{"size_alpha": 0}`, "size_alpha"},
		{"no faces", "faces.json", `{"max_tracked_faces": 0}`, "max_tracked_faces"},
		{"remove before hide", "misses.json", `{"hide_after_misses": 5, "remove_after_misses": 3}`, "remove_after_misses"},
		{"clamp too large", "clamp.json", `{"max_rotation_step_deg": 270}`, "max_rotation_step_deg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadTuningConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	want := DefaultTuningConfig()

	if cfg.GetMinConfidence() != want.GetMinConfidence() {
		t.Errorf("defaults file min_confidence = %f, built-in = %f", cfg.GetMinConfidence(), want.GetMinConfidence())
	}
	if cfg.GetMatchFraction() != want.GetMatchFraction() {
		t.Errorf("defaults file match_fraction = %f, built-in = %f", cfg.GetMatchFraction(), want.GetMatchFraction())
	}
	if cfg.GetRemoveAfterMisses() != want.GetRemoveAfterMisses() {
		t.Errorf("defaults file remove_after_misses = %d, built-in = %d", cfg.GetRemoveAfterMisses(), want.GetRemoveAfterMisses())
	}
	if cfg.GetMinNoseSizePx() != want.GetMinNoseSizePx() {
		t.Errorf("defaults file min_nose_size_px = %f, built-in = %f", cfg.GetMinNoseSizePx(), want.GetMinNoseSizePx())
	}
}
