package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medailey/activitysim/sim"
)

const validSettings = `
models:
  - initialize
  - annotate_table.model_name=annotate_land_use
  - school_location_sample
  - school_location_logsums
  - school_location_simulate
seed: 19
chunk_size: 50000
check_for_variability: true
workers: 4
zone_thresholds:
  cbd_density: 500
  urban_density: 100
skim_time_periods:
  hours: [0, 11, 16, 24]
  labels: [AM, MD, PM]
`

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSettings(t *testing.T) {
	s, err := LoadSettings(writeSettings(t, validSettings))
	require.NoError(t, err)

	assert.Len(t, s.Models, 5)
	assert.Equal(t, int64(19), s.Seed)
	assert.Equal(t, 50000, s.ChunkSize)
	assert.True(t, s.CheckForVariability)
	assert.Equal(t, 4, s.Workers)

	rc := s.RunConfig()
	assert.Equal(t, s.Models, rc.Models)
	assert.Equal(t, 50000, rc.ChunkBudget)
	assert.True(t, rc.CheckVariability)

	th := s.Thresholds()
	assert.Equal(t, 500.0, th.CBDDensity)
	assert.Equal(t, 100.0, th.UrbanDensity)

	tp := s.TimePeriods()
	require.NotNil(t, tp)
	label, err := tp.Label(10.9)
	require.NoError(t, err)
	assert.Equal(t, "AM", label)
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadSettings_BadYAML(t *testing.T) {
	_, err := LoadSettings(writeSettings(t, "models: [unclosed"))
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	base := func() *Settings {
		s := &Settings{Models: []string{"initialize"}}
		s.SkimTimePeriods.Hours = []float64{0, 12, 24}
		s.SkimTimePeriods.Labels = []string{"AM", "PM"}
		return s
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("empty model list", func(t *testing.T) {
		s := base()
		s.Models = nil
		var cfgErr *sim.ConfigError
		require.ErrorAs(t, s.Validate(), &cfgErr)
		assert.Equal(t, "models", cfgErr.Field)
	})

	t.Run("negative chunk size", func(t *testing.T) {
		s := base()
		s.ChunkSize = -1
		assert.Error(t, s.Validate())
	})

	t.Run("negative workers", func(t *testing.T) {
		s := base()
		s.Workers = -1
		assert.Error(t, s.Validate())
	})

	t.Run("non-monotone period hours", func(t *testing.T) {
		s := base()
		s.SkimTimePeriods.Hours = []float64{0, 16, 11, 24}
		s.SkimTimePeriods.Labels = []string{"AM", "MD", "PM"}
		assert.Error(t, s.Validate())
	})

	t.Run("label count mismatch", func(t *testing.T) {
		s := base()
		s.SkimTimePeriods.Labels = []string{"AM"}
		assert.Error(t, s.Validate())
	})
}
