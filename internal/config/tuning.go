package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical overlay tuning file.
// The Get* fallbacks below mirror its contents, so a missing field never
// leaves the tracker without a value.
const DefaultConfigPath = "config/overlay.defaults.json"

// TuningConfig holds the empirically tuned overlay tracker constants.
// The schema matches the /api/overlay/params endpoint so the same JSON
// can be used for startup configuration and runtime updates.
type TuningConfig struct {
	// Detection filtering
	MinConfidence          *float64 `json:"min_confidence,omitempty"`
	MinFaceSizePx          *float64 `json:"min_face_size_px,omitempty"`
	AnchorFallbackFraction *float64 `json:"anchor_fallback_fraction,omitempty"`
	EarWidthFactor         *float64 `json:"ear_width_factor,omitempty"`
	EyeWidthFactor         *float64 `json:"eye_width_factor,omitempty"`

	// Association, as fractions of the display diagonal
	DedupFraction   *float64 `json:"dedup_fraction,omitempty"`
	MatchFraction   *float64 `json:"match_fraction,omitempty"`
	PendingFraction *float64 `json:"pending_fraction,omitempty"`

	// Lifecycle
	MaxTrackedFaces   *int `json:"max_tracked_faces,omitempty"`
	CreateAfterFrames *int `json:"create_after_frames,omitempty"`
	HideAfterMisses   *int `json:"hide_after_misses,omitempty"`
	RemoveAfterMisses *int `json:"remove_after_misses,omitempty"`

	// Smoothing
	PositionAlpha      *float64 `json:"position_alpha,omitempty"`
	SizeAlpha          *float64 `json:"size_alpha,omitempty"`
	RotationAlpha      *float64 `json:"rotation_alpha,omitempty"`
	MaxRotationStepDeg *float64 `json:"max_rotation_step_deg,omitempty"`

	// Placement
	BrowLiftFraction *float64 `json:"brow_lift_fraction,omitempty"`
	NoseSizeFraction *float64 `json:"nose_size_fraction,omitempty"`
	MinNoseSizePx    *float64 `json:"min_nose_size_px,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every getter then reports its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		MinConfidence:          ptrFloat64(e.GetMinConfidence()),
		MinFaceSizePx:          ptrFloat64(e.GetMinFaceSizePx()),
		AnchorFallbackFraction: ptrFloat64(e.GetAnchorFallbackFraction()),
		EarWidthFactor:         ptrFloat64(e.GetEarWidthFactor()),
		EyeWidthFactor:         ptrFloat64(e.GetEyeWidthFactor()),
		DedupFraction:          ptrFloat64(e.GetDedupFraction()),
		MatchFraction:          ptrFloat64(e.GetMatchFraction()),
		PendingFraction:        ptrFloat64(e.GetPendingFraction()),
		MaxTrackedFaces:        ptrInt(e.GetMaxTrackedFaces()),
		CreateAfterFrames:      ptrInt(e.GetCreateAfterFrames()),
		HideAfterMisses:        ptrInt(e.GetHideAfterMisses()),
		RemoveAfterMisses:      ptrInt(e.GetRemoveAfterMisses()),
		PositionAlpha:          ptrFloat64(e.GetPositionAlpha()),
		SizeAlpha:              ptrFloat64(e.GetSizeAlpha()),
		RotationAlpha:          ptrFloat64(e.GetRotationAlpha()),
		MaxRotationStepDeg:     ptrFloat64(e.GetMaxRotationStepDeg()),
		BrowLiftFraction:       ptrFloat64(e.GetBrowLiftFraction()),
		NoseSizeFraction:       ptrFloat64(e.GetNoseSizeFraction()),
		MinNoseSizePx:          ptrFloat64(e.GetMinNoseSizePx()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the file fall back to the getter defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning file from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/tools/overlay-replay/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	fractions := []struct {
		name string
		v    *float64
	}{
		{"min_confidence", c.MinConfidence},
		{"anchor_fallback_fraction", c.AnchorFallbackFraction},
		{"dedup_fraction", c.DedupFraction},
		{"match_fraction", c.MatchFraction},
		{"pending_fraction", c.PendingFraction},
		{"brow_lift_fraction", c.BrowLiftFraction},
		{"nose_size_fraction", c.NoseSizeFraction},
	}
	for _, f := range fractions {
		if f.v != nil && (*f.v < 0 || *f.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", f.name, *f.v)
		}
	}

	alphas := []struct {
		name string
		v    *float64
	}{
		{"position_alpha", c.PositionAlpha},
		{"size_alpha", c.SizeAlpha},
		{"rotation_alpha", c.RotationAlpha},
	}
	for _, a := range alphas {
		if a.v != nil && (*a.v <= 0 || *a.v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", a.name, *a.v)
		}
	}

	if c.MinFaceSizePx != nil && *c.MinFaceSizePx < 0 {
		return fmt.Errorf("min_face_size_px must be non-negative, got %f", *c.MinFaceSizePx)
	}
	if c.EarWidthFactor != nil && *c.EarWidthFactor <= 0 {
		return fmt.Errorf("ear_width_factor must be positive, got %f", *c.EarWidthFactor)
	}
	if c.EyeWidthFactor != nil && *c.EyeWidthFactor <= 0 {
		return fmt.Errorf("eye_width_factor must be positive, got %f", *c.EyeWidthFactor)
	}
	if c.MaxRotationStepDeg != nil && (*c.MaxRotationStepDeg < 0 || *c.MaxRotationStepDeg > 180) {
		return fmt.Errorf("max_rotation_step_deg must be between 0 and 180, got %f", *c.MaxRotationStepDeg)
	}
	if c.MaxTrackedFaces != nil && *c.MaxTrackedFaces < 1 {
		return fmt.Errorf("max_tracked_faces must be at least 1, got %d", *c.MaxTrackedFaces)
	}
	if c.CreateAfterFrames != nil && *c.CreateAfterFrames < 1 {
		return fmt.Errorf("create_after_frames must be at least 1, got %d", *c.CreateAfterFrames)
	}
	if c.HideAfterMisses != nil && *c.HideAfterMisses < 1 {
		return fmt.Errorf("hide_after_misses must be at least 1, got %d", *c.HideAfterMisses)
	}
	if c.GetRemoveAfterMisses() < c.GetHideAfterMisses() {
		return fmt.Errorf("remove_after_misses (%d) must not be below hide_after_misses (%d)",
			c.GetRemoveAfterMisses(), c.GetHideAfterMisses())
	}
	return nil
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.7
	}
	return *c.MinConfidence
}

// GetMinFaceSizePx returns the min_face_size_px value or the default.
func (c *TuningConfig) GetMinFaceSizePx() float64 {
	if c.MinFaceSizePx == nil {
		return 80
	}
	return *c.MinFaceSizePx
}

// GetAnchorFallbackFraction returns the anchor_fallback_fraction value or the default.
func (c *TuningConfig) GetAnchorFallbackFraction() float64 {
	if c.AnchorFallbackFraction == nil {
		return 0.12
	}
	return *c.AnchorFallbackFraction
}

// GetEarWidthFactor returns the ear_width_factor value or the default.
func (c *TuningConfig) GetEarWidthFactor() float64 {
	if c.EarWidthFactor == nil {
		return 1.15
	}
	return *c.EarWidthFactor
}

// GetEyeWidthFactor returns the eye_width_factor value or the default.
func (c *TuningConfig) GetEyeWidthFactor() float64 {
	if c.EyeWidthFactor == nil {
		return 2.2
	}
	return *c.EyeWidthFactor
}

// GetDedupFraction returns the dedup_fraction value or the default.
func (c *TuningConfig) GetDedupFraction() float64 {
	if c.DedupFraction == nil {
		return 0.05
	}
	return *c.DedupFraction
}

// GetMatchFraction returns the match_fraction value or the default.
func (c *TuningConfig) GetMatchFraction() float64 {
	if c.MatchFraction == nil {
		return 0.06
	}
	return *c.MatchFraction
}

// GetPendingFraction returns the pending_fraction value or the default.
func (c *TuningConfig) GetPendingFraction() float64 {
	if c.PendingFraction == nil {
		return 0.04
	}
	return *c.PendingFraction
}

// GetMaxTrackedFaces returns the max_tracked_faces value or the default.
func (c *TuningConfig) GetMaxTrackedFaces() int {
	if c.MaxTrackedFaces == nil {
		return 4
	}
	return *c.MaxTrackedFaces
}

// GetCreateAfterFrames returns the create_after_frames value or the default.
func (c *TuningConfig) GetCreateAfterFrames() int {
	if c.CreateAfterFrames == nil {
		return 2
	}
	return *c.CreateAfterFrames
}

// GetHideAfterMisses returns the hide_after_misses value or the default.
func (c *TuningConfig) GetHideAfterMisses() int {
	if c.HideAfterMisses == nil {
		return 2
	}
	return *c.HideAfterMisses
}

// GetRemoveAfterMisses returns the remove_after_misses value or the default.
func (c *TuningConfig) GetRemoveAfterMisses() int {
	if c.RemoveAfterMisses == nil {
		return 10
	}
	return *c.RemoveAfterMisses
}

// GetPositionAlpha returns the position_alpha value or the default.
func (c *TuningConfig) GetPositionAlpha() float64 {
	if c.PositionAlpha == nil {
		return 0.12
	}
	return *c.PositionAlpha
}

// GetSizeAlpha returns the size_alpha value or the default.
func (c *TuningConfig) GetSizeAlpha() float64 {
	if c.SizeAlpha == nil {
		return 0.10
	}
	return *c.SizeAlpha
}

// GetRotationAlpha returns the rotation_alpha value or the default.
func (c *TuningConfig) GetRotationAlpha() float64 {
	if c.RotationAlpha == nil {
		return 0.12
	}
	return *c.RotationAlpha
}

// GetMaxRotationStepDeg returns the max_rotation_step_deg value or the default.
func (c *TuningConfig) GetMaxRotationStepDeg() float64 {
	if c.MaxRotationStepDeg == nil {
		return 7
	}
	return *c.MaxRotationStepDeg
}

// GetBrowLiftFraction returns the brow_lift_fraction value or the default.
func (c *TuningConfig) GetBrowLiftFraction() float64 {
	if c.BrowLiftFraction == nil {
		return 0.35
	}
	return *c.BrowLiftFraction
}

// GetNoseSizeFraction returns the nose_size_fraction value or the default.
func (c *TuningConfig) GetNoseSizeFraction() float64 {
	if c.NoseSizeFraction == nil {
		return 0.12
	}
	return *c.NoseSizeFraction
}

// GetMinNoseSizePx returns the min_nose_size_px value or the default.
func (c *TuningConfig) GetMinNoseSizePx() float64 {
	if c.MinNoseSizePx == nil {
		return 16
	}
	return *c.MinNoseSizePx
}
