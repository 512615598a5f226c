package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/crash-analysis/internal/kfunction"
	"github.com/banshee-data/crash-analysis/internal/netk"
	"github.com/banshee-data/crash-analysis/internal/permutation"
)

// Defaults applied by the Get* accessors.
const (
	DefaultAnalysisType      = netk.Global
	DefaultDistanceIncrement = 100.0
	DefaultNumPermutations   = 99
	DefaultWorkers           = 1
)

// AnalysisConfig holds the parameters of one K-function analysis. Fields
// omitted from a config file stay nil and the Get* methods supply defaults,
// so partial configs are safe.
type AnalysisConfig struct {
	AnalysisType      *string  `json:"analysis_type,omitempty" yaml:"analysis_type,omitempty"`
	Network           *string  `json:"network,omitempty" yaml:"network,omitempty"`
	NetworkLength     *float64 `json:"network_length,omitempty" yaml:"network_length,omitempty"`
	CoordinateSystem  *string  `json:"coordinate_system,omitempty" yaml:"coordinate_system,omitempty"`
	NumBands          *int     `json:"num_bands,omitempty" yaml:"num_bands,omitempty"`
	BeginDistance     *float64 `json:"begin_distance,omitempty" yaml:"begin_distance,omitempty"`
	DistanceIncrement *float64 `json:"distance_increment,omitempty" yaml:"distance_increment,omitempty"`
	SnapDistance      *float64 `json:"snap_distance,omitempty" yaml:"snap_distance,omitempty"`

	DiscountBelowBegin *bool `json:"discount_below_begin,omitempty" yaml:"discount_below_begin,omitempty"`

	// Random point generation
	NumPermutations  *int      `json:"num_permutations,omitempty" yaml:"num_permutations,omitempty"`
	ConfidenceLevels []float64 `json:"confidence_levels,omitempty" yaml:"confidence_levels,omitempty"`
	NumPointsField   *string   `json:"num_points_field,omitempty" yaml:"num_points_field,omitempty"`
	// NumPoints is the crash count behind the density; unset asks the point
	// set or counts the observed distances.
	NumPoints        *int      `json:"num_points,omitempty" yaml:"num_points,omitempty"`
	Workers          *int      `json:"workers,omitempty" yaml:"workers,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// maxFileSize bounds config files.
const maxFileSize = 1 * 1024 * 1024

// LoadAnalysisConfig loads an AnalysisConfig from a .json, .yaml or .yml
// file and validates it.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AnalysisConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *AnalysisConfig) Validate() error {
	if c.AnalysisType != nil {
		if _, err := netk.ParseAnalysisType(*c.AnalysisType); err != nil {
			return err
		}
	}
	if c.NetworkLength != nil && *c.NetworkLength < 0 {
		return fmt.Errorf("network_length must be non-negative, got %f", *c.NetworkLength)
	}
	if c.NumBands != nil && *c.NumBands < 0 {
		return fmt.Errorf("num_bands must be non-negative, got %d", *c.NumBands)
	}
	if c.BeginDistance != nil && *c.BeginDistance < 0 {
		return fmt.Errorf("begin_distance must be non-negative, got %f", *c.BeginDistance)
	}
	if c.DistanceIncrement != nil && *c.DistanceIncrement <= 0 {
		return fmt.Errorf("distance_increment must be positive, got %f", *c.DistanceIncrement)
	}
	if c.SnapDistance != nil && *c.SnapDistance < 0 {
		return fmt.Errorf("snap_distance must be non-negative, got %f", *c.SnapDistance)
	}
	if c.NumPermutations != nil && *c.NumPermutations < 0 {
		return fmt.Errorf("num_permutations must be non-negative, got %d", *c.NumPermutations)
	}
	for _, cl := range c.ConfidenceLevels {
		if cl <= 0 || cl >= 1 {
			return fmt.Errorf("confidence_levels must be between 0 and 1, got %f", cl)
		}
	}
	if c.NumPoints != nil && *c.NumPoints < 0 {
		return fmt.Errorf("num_points must be non-negative, got %d", *c.NumPoints)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return nil
}

// GetAnalysisType returns the analysis type, GLOBAL by default.
func (c *AnalysisConfig) GetAnalysisType() netk.AnalysisType {
	if c.AnalysisType == nil {
		return DefaultAnalysisType
	}
	t, err := netk.ParseAnalysisType(*c.AnalysisType)
	if err != nil {
		return DefaultAnalysisType
	}
	return t
}

// GetNetwork returns the network reference, empty by default.
func (c *AnalysisConfig) GetNetwork() string {
	if c.Network == nil {
		return ""
	}
	return *c.Network
}

// GetNetworkLength returns the network length; 0 means the length is
// measured by the length provider.
func (c *AnalysisConfig) GetNetworkLength() float64 {
	if c.NetworkLength == nil {
		return 0
	}
	return *c.NetworkLength
}

// GetCoordinateSystem returns the output coordinate system, empty by default.
func (c *AnalysisConfig) GetCoordinateSystem() string {
	if c.CoordinateSystem == nil {
		return ""
	}
	return *c.CoordinateSystem
}

// GetNumBands returns the requested band count; 0 derives it from the data.
func (c *AnalysisConfig) GetNumBands() int {
	if c.NumBands == nil {
		return 0
	}
	return *c.NumBands
}

// GetBeginDistance returns the start of the first band, 0 by default.
func (c *AnalysisConfig) GetBeginDistance() float64 {
	if c.BeginDistance == nil {
		return 0
	}
	return *c.BeginDistance
}

// GetDistanceIncrement returns the band width.
func (c *AnalysisConfig) GetDistanceIncrement() float64 {
	if c.DistanceIncrement == nil {
		return DefaultDistanceIncrement
	}
	return *c.DistanceIncrement
}

// GetSnapDistance returns the snap distance, 0 by default.
func (c *AnalysisConfig) GetSnapDistance() float64 {
	if c.SnapDistance == nil {
		return 0
	}
	return *c.SnapDistance
}

// GetDiscountBelowBegin reports whether global bands drop distances below
// the beginning distance.
func (c *AnalysisConfig) GetDiscountBelowBegin() bool {
	return c.DiscountBelowBegin != nil && *c.DiscountBelowBegin
}

// GetNumPermutations returns the number of random trials.
func (c *AnalysisConfig) GetNumPermutations() int {
	if c.NumPermutations == nil {
		return DefaultNumPermutations
	}
	return *c.NumPermutations
}

// GetConfidenceLevels returns the envelope confidence levels.
func (c *AnalysisConfig) GetConfidenceLevels() []float64 {
	if len(c.ConfidenceLevels) == 0 {
		return append([]float64(nil), kfunction.DefaultConfidenceLevels...)
	}
	return c.ConfidenceLevels
}

// GetNumPointsField returns the network attribute holding per-edge random
// point counts, empty by default.
func (c *AnalysisConfig) GetNumPointsField() string {
	if c.NumPointsField == nil {
		return ""
	}
	return *c.NumPointsField
}

// GetNumPoints returns the configured point count, 0 when unset.
func (c *AnalysisConfig) GetNumPoints() int {
	if c.NumPoints == nil {
		return 0
	}
	return *c.NumPoints
}

// GetWorkers returns how many permutations run at once.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return DefaultWorkers
	}
	return *c.Workers
}

// Options converts the config to service options. The point sets are left
// for the caller.
func (c *AnalysisConfig) Options() kfunction.Options {
	return kfunction.Options{
		AnalysisType:       c.GetAnalysisType(),
		Network:            permutation.Network(c.GetNetwork()),
		NumBands:           c.GetNumBands(),
		BeginDistance:      c.GetBeginDistance(),
		DistanceIncrement:  c.GetDistanceIncrement(),
		SnapDistance:       c.GetSnapDistance(),
		NumPermutations:    c.GetNumPermutations(),
		ConfidenceLevels:   c.GetConfidenceLevels(),
		CoordinateSystem:   c.GetCoordinateSystem(),
		NumPointsField:     c.GetNumPointsField(),
		NumPoints:          c.GetNumPoints(),
		NetworkLength:      c.GetNetworkLength(),
		DiscountBelowBegin: c.GetDiscountBelowBegin(),
	}
}
