package cmd

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/medailey/activitysim/sim"
)

// Settings is the run configuration file. All of it is read once at
// start and treated as immutable for the run.
type Settings struct {
	Models              []string `yaml:"models"`
	Seed                int64    `yaml:"seed"`
	ChunkSize           int      `yaml:"chunk_size"`
	CheckForVariability bool     `yaml:"check_for_variability"`
	ResumeAfter         string   `yaml:"resume_after,omitempty"`
	Workers             int      `yaml:"workers,omitempty"`

	ZoneThresholds struct {
		CBDDensity   float64 `yaml:"cbd_density"`
		UrbanDensity float64 `yaml:"urban_density"`
	} `yaml:"zone_thresholds"`

	SkimTimePeriods struct {
		Hours  []float64 `yaml:"hours"`
		Labels []string  `yaml:"labels"`
	} `yaml:"skim_time_periods"`
}

// LoadSettings reads and validates a settings YAML file.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read settings")
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "parse settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects malformed settings before any step runs.
func (s *Settings) Validate() error {
	if len(s.Models) == 0 {
		return &sim.ConfigError{Field: "models", Msg: "model list is empty"}
	}
	if s.ChunkSize < 0 {
		return &sim.ConfigError{Field: "chunk_size", Msg: "must be >= 0"}
	}
	if s.Workers < 0 {
		return &sim.ConfigError{Field: "workers", Msg: "must be >= 0"}
	}
	// Period boundaries are validated in full by NewTimePeriods; doing
	// it here keeps settings errors in the config taxonomy.
	if _, err := sim.NewTimePeriods(s.SkimTimePeriods.Hours, s.SkimTimePeriods.Labels); err != nil {
		return err
	}
	return nil
}

// TimePeriods builds the validated skim period mapping.
func (s *Settings) TimePeriods() *sim.TimePeriods {
	tp, _ := sim.NewTimePeriods(s.SkimTimePeriods.Hours, s.SkimTimePeriods.Labels)
	return tp
}

// RunConfig converts settings into the orchestrator's configuration.
func (s *Settings) RunConfig() *sim.RunConfig {
	return &sim.RunConfig{
		Models:           append([]string(nil), s.Models...),
		ResumeAfter:      s.ResumeAfter,
		Seed:             s.Seed,
		ChunkBudget:      s.ChunkSize,
		CheckVariability: s.CheckForVariability,
		Workers:          s.Workers,
	}
}

// Thresholds converts the zone classification cuts.
func (s *Settings) Thresholds() sim.ZoneThresholds {
	return sim.ZoneThresholds{
		CBDDensity:   s.ZoneThresholds.CBDDensity,
		UrbanDensity: s.ZoneThresholds.UrbanDensity,
	}
}
