package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crash-analysis/internal/netk"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestGetterDefaults(t *testing.T) {
	cfg := &AnalysisConfig{}

	if cfg.GetAnalysisType() != netk.Global {
		t.Errorf("GetAnalysisType() = %v, want GLOBAL", cfg.GetAnalysisType())
	}
	if cfg.GetDistanceIncrement() != 100 {
		t.Errorf("GetDistanceIncrement() = %f, want 100", cfg.GetDistanceIncrement())
	}
	if cfg.GetNumPermutations() != 99 {
		t.Errorf("GetNumPermutations() = %d, want 99", cfg.GetNumPermutations())
	}
	if cfg.GetNumBands() != 0 {
		t.Errorf("GetNumBands() = %d, want 0", cfg.GetNumBands())
	}
	if cfg.GetNumPoints() != 0 {
		t.Errorf("GetNumPoints() = %d, want 0", cfg.GetNumPoints())
	}
	if cfg.GetWorkers() != 1 {
		t.Errorf("GetWorkers() = %d, want 1", cfg.GetWorkers())
	}
	if cfg.GetDiscountBelowBegin() {
		t.Error("GetDiscountBelowBegin() = true, want false")
	}
	assert.Equal(t, []float64{0.95, 0.90}, cfg.GetConfidenceLevels())
}

func TestLoadAnalysisConfigJSON(t *testing.T) {
	path := writeConfig(t, "analysis.json", `{
  "analysis_type": "cross",
  "num_bands": 12,
  "begin_distance": 50,
  "distance_increment": 25.5,
  "num_permutations": 9,
  "confidence_levels": [0.9],
  "discount_below_begin": true
}`)

	cfg, err := LoadAnalysisConfig(path)
	require.NoError(t, err)

	assert.Equal(t, netk.Cross, cfg.GetAnalysisType())
	assert.Equal(t, 12, cfg.GetNumBands())
	assert.Equal(t, 50.0, cfg.GetBeginDistance())
	assert.Equal(t, 25.5, cfg.GetDistanceIncrement())
	assert.Equal(t, 9, cfg.GetNumPermutations())
	assert.Equal(t, []float64{0.9}, cfg.GetConfidenceLevels())
	assert.True(t, cfg.GetDiscountBelowBegin())
	// Unset fields keep their defaults.
	assert.Equal(t, 0.0, cfg.GetSnapDistance())
	assert.Equal(t, 1, cfg.GetWorkers())
}

func TestLoadAnalysisConfigYAML(t *testing.T) {
	path := writeConfig(t, "analysis.yml", `
analysis_type: Global Analysis
network: streets
network_length: 1234.5
snap_distance: 10
num_permutations: 0
num_points_field: weight
num_points: 699
workers: 8
`)

	cfg, err := LoadAnalysisConfig(path)
	require.NoError(t, err)

	opts := cfg.Options()
	assert.Equal(t, netk.Global, opts.AnalysisType)
	assert.Equal(t, "streets", string(opts.Network))
	assert.Equal(t, 1234.5, opts.NetworkLength)
	assert.Equal(t, 10.0, opts.SnapDistance)
	assert.Equal(t, 0, opts.NumPermutations)
	assert.Equal(t, "weight", opts.NumPointsField)
	assert.Equal(t, 699, opts.NumPoints)
	assert.Equal(t, 100.0, opts.DistanceIncrement)
	assert.Equal(t, 8, cfg.GetWorkers())
}

func TestLoadExampleConfigFiles(t *testing.T) {
	for _, name := range []string{"analysis.example.yaml", "analysis.example.json"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadAnalysisConfig(filepath.Join("..", "..", "config", name))
			require.NoError(t, err)
			assert.Equal(t, "streets_centerline", cfg.GetNetwork())
		})
	}
}

func TestLoadAnalysisConfigErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadAnalysisConfig("/nonexistent/path/to/config.json")
		assert.Error(t, err)
	})
	t.Run("bad extension", func(t *testing.T) {
		_, err := LoadAnalysisConfig("/some/path/config.toml")
		assert.Error(t, err)
	})
	t.Run("invalid json", func(t *testing.T) {
		_, err := LoadAnalysisConfig(writeConfig(t, "bad.json", `{"num_bands": "many"`))
		assert.Error(t, err)
	})
	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadAnalysisConfig(writeConfig(t, "bad.yaml", "num_bands: [1, 2\n"))
		assert.Error(t, err)
	})
	t.Run("fails validation", func(t *testing.T) {
		_, err := LoadAnalysisConfig(writeConfig(t, "neg.yaml", "distance_increment: -5\n"))
		assert.Error(t, err)
	})
	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "large.json")
		require.NoError(t, os.WriteFile(path, make([]byte, 2*1024*1024), 0644))
		_, err := LoadAnalysisConfig(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *AnalysisConfig
		wantErr bool
	}{
		{"empty config is valid", &AnalysisConfig{}, false},
		{"valid config", &AnalysisConfig{
			AnalysisType:      ptrString("CROSS"),
			NumBands:          ptrInt(10),
			DistanceIncrement: ptrFloat64(50),
			ConfidenceLevels:  []float64{0.99},
		}, false},
		{"unknown analysis type", &AnalysisConfig{AnalysisType: ptrString("local")}, true},
		{"negative network length", &AnalysisConfig{NetworkLength: ptrFloat64(-1)}, true},
		{"negative bands", &AnalysisConfig{NumBands: ptrInt(-1)}, true},
		{"negative begin", &AnalysisConfig{BeginDistance: ptrFloat64(-1)}, true},
		{"zero increment", &AnalysisConfig{DistanceIncrement: ptrFloat64(0)}, true},
		{"negative snap", &AnalysisConfig{SnapDistance: ptrFloat64(-2)}, true},
		{"negative permutations", &AnalysisConfig{NumPermutations: ptrInt(-9)}, true},
		{"confidence of one", &AnalysisConfig{ConfidenceLevels: []float64{1}}, true},
		{"negative points", &AnalysisConfig{NumPoints: ptrInt(-3)}, true},
		{"negative workers", &AnalysisConfig{Workers: ptrInt(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
