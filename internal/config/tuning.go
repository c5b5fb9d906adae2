package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxConfigSize caps config files read from disk.
const maxConfigSize = 1 * 1024 * 1024 // 1MB

// TuningConfig holds the detection tuning parameters. Every field is a
// pointer so that a partial JSON file leaves the rest at their defaults.
type TuningConfig struct {
	// Detection filter params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	FrameStride         *int     `json:"frame_stride,omitempty"`
	DuplicateDistancePx *float64 `json:"duplicate_distance_px,omitempty"`

	// Severity params (pixel areas)
	SeverityMediumArea *float64 `json:"severity_medium_area,omitempty"`
	SeverityLargeArea  *float64 `json:"severity_large_area,omitempty"`

	// Report params
	DefaultCity *string `json:"default_city,omitempty"`
	Timezone    *string `json:"timezone,omitempty"` // IANA name like "Asia/Jakarta"

	// Model params
	ModelInputSize  *int     `json:"model_input_size,omitempty"`
	ModelScoreFloor *float64 `json:"model_score_floor,omitempty"`
	NMSIoUThreshold *float64 `json:"nms_iou_threshold,omitempty"`
	ClassNames      []string `json:"class_names,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated from the
// built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		ConfidenceThreshold: ptrFloat64(0.5),
		FrameStride:         ptrInt(10),
		DuplicateDistancePx: ptrFloat64(100),
		SeverityMediumArea:  ptrFloat64(5000),
		SeverityLargeArea:   ptrFloat64(15000),
		DefaultCity:         ptrString("Yogyakarta"),
		Timezone:            ptrString("Local"),
		ModelInputSize:      ptrInt(640),
		ModelScoreFloor:     ptrFloat64(0.25),
		NMSIoUThreshold:     ptrFloat64(0.45),
		ClassNames:          []string{"pothole"},
	}
}

// readConfigFile applies the extension and size checks shared by every
// config loader.
func readConfigFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		v := *c.ConfidenceThreshold
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", v)
		}
	}

	if c.FrameStride != nil && *c.FrameStride < 0 {
		return fmt.Errorf("frame_stride must be non-negative, got %d", *c.FrameStride)
	}

	if c.DuplicateDistancePx != nil && !(*c.DuplicateDistancePx > 0) {
		return fmt.Errorf("duplicate_distance_px must be positive, got %f", *c.DuplicateDistancePx)
	}

	medium, large := c.GetSeverityMediumArea(), c.GetSeverityLargeArea()
	if medium <= 0 {
		return fmt.Errorf("severity_medium_area must be positive, got %f", medium)
	}
	if large <= medium {
		return fmt.Errorf("severity_large_area (%f) must exceed severity_medium_area (%f)", large, medium)
	}

	if c.Timezone != nil && *c.Timezone != "" {
		if _, err := time.LoadLocation(*c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", *c.Timezone, err)
		}
	}

	if c.ModelInputSize != nil {
		if n := *c.ModelInputSize; n <= 0 || n%32 != 0 {
			return fmt.Errorf("model_input_size must be a positive multiple of 32, got %d", n)
		}
	}

	if c.ModelScoreFloor != nil && (*c.ModelScoreFloor < 0 || *c.ModelScoreFloor > 1) {
		return fmt.Errorf("model_score_floor must be between 0 and 1, got %f", *c.ModelScoreFloor)
	}

	if c.NMSIoUThreshold != nil && (*c.NMSIoUThreshold <= 0 || *c.NMSIoUThreshold > 1) {
		return fmt.Errorf("nms_iou_threshold must be in (0, 1], got %f", *c.NMSIoUThreshold)
	}

	for i, name := range c.ClassNames {
		if name == "" {
			return fmt.Errorf("class_names[%d] is empty", i)
		}
	}

	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.5
	}
	return *c.ConfidenceThreshold
}

// GetFrameStride returns the frame_stride value or the default.
func (c *TuningConfig) GetFrameStride() int {
	if c.FrameStride == nil {
		return 10
	}
	return *c.FrameStride
}

// GetDuplicateDistancePx returns the duplicate_distance_px value or the default.
func (c *TuningConfig) GetDuplicateDistancePx() float64 {
	if c.DuplicateDistancePx == nil {
		return 100
	}
	return *c.DuplicateDistancePx
}

// GetSeverityMediumArea returns the severity_medium_area value or the default.
func (c *TuningConfig) GetSeverityMediumArea() float64 {
	if c.SeverityMediumArea == nil {
		return 5000
	}
	return *c.SeverityMediumArea
}

// GetSeverityLargeArea returns the severity_large_area value or the default.
func (c *TuningConfig) GetSeverityLargeArea() float64 {
	if c.SeverityLargeArea == nil {
		return 15000
	}
	return *c.SeverityLargeArea
}

// GetDefaultCity returns the default_city value or the default.
func (c *TuningConfig) GetDefaultCity() string {
	if c.DefaultCity == nil || *c.DefaultCity == "" {
		return "Yogyakarta"
	}
	return *c.DefaultCity
}

// GetLocation resolves the timezone used to stamp processed_at. Unknown or
// empty names fall back to the host's local zone.
func (c *TuningConfig) GetLocation() *time.Location {
	if c.Timezone == nil || *c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(*c.Timezone)
	if err != nil {
		return time.Local // default on parse error
	}
	return loc
}

// GetModelInputSize returns the model_input_size value or the default.
func (c *TuningConfig) GetModelInputSize() int {
	if c.ModelInputSize == nil {
		return 640
	}
	return *c.ModelInputSize
}

// GetModelScoreFloor returns the model_score_floor value or the default.
func (c *TuningConfig) GetModelScoreFloor() float64 {
	if c.ModelScoreFloor == nil {
		return 0.25
	}
	return *c.ModelScoreFloor
}

// GetNMSIoUThreshold returns the nms_iou_threshold value or the default.
func (c *TuningConfig) GetNMSIoUThreshold() float64 {
	if c.NMSIoUThreshold == nil {
		return 0.45
	}
	return *c.NMSIoUThreshold
}

// GetClassNames returns the model's class labels, index-aligned with the
// model output rows.
func (c *TuningConfig) GetClassNames() []string {
	if len(c.ClassNames) == 0 {
		return []string{"pothole"}
	}
	out := make([]string, len(c.ClassNames))
	copy(out, c.ClassNames)
	return out
}
