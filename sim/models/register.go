package models

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/medailey/activitysim/sim"
)

// LocationSettings tunes one two-phase destination choice model.
type LocationSettings struct {
	SampleSize    int     // destinations sampled per chooser in the sample phase
	OutPeriodHour float64 // departure hour for outbound skim lookups
	InPeriodHour  float64 // departure hour for return skim lookups
	DistanceCoef  float64
	SizeCoef      float64
	LogsumCoef    float64
}

// ModeChoiceSettings tunes tour mode choice.
type ModeChoiceSettings struct {
	TimeCoef float64
	CostCoef float64
	Nests    *sim.NestSpec // nil = plain multinomial logit
}

// Config wires the built-in steps to their external collaborators and
// settings. Load and Write sit at the table-store boundary: the core
// never defines file formats.
type Config struct {
	Load      func(ctx context.Context) ([]*sim.Table, error)
	Write     func(tables []*sim.Table) error
	WriteDict func(columns map[string][]string) error

	Constants  map[string]float64
	Thresholds sim.ZoneThresholds

	SchoolLocation    LocationSettings
	WorkplaceLocation LocationSettings
	ModeChoice        ModeChoiceSettings
}

// DefaultConfig returns settings matching the shipped example model.
func DefaultConfig() Config {
	return Config{
		SchoolLocation: LocationSettings{
			SampleSize:    30,
			OutPeriodHour: 8,
			InPeriodHour:  15,
			DistanceCoef:  -0.10,
			SizeCoef:      1.0,
			LogsumCoef:    0.5,
		},
		WorkplaceLocation: LocationSettings{
			SampleSize:    30,
			OutPeriodHour: 7,
			InPeriodHour:  17,
			DistanceCoef:  -0.05,
			SizeCoef:      1.0,
			LogsumCoef:    0.5,
		},
		ModeChoice: ModeChoiceSettings{
			TimeCoef: -0.025,
			CostCoef: -0.002,
		},
	}
}

// RegisterAll binds every built-in step to the pipeline.
func RegisterAll(p *sim.Pipeline, cfg Config) {
	school := locationModel{
		name:          "school_location",
		segmentColumn: "is_student",
		sizeColumn:    "school_enrollment",
		choiceColumn:  "school_zone",
		settings:      cfg.SchoolLocation,
		constants:     cfg.Constants,
		modeChoice:    cfg.ModeChoice,
	}
	work := locationModel{
		name:          "workplace_location",
		segmentColumn: "is_worker",
		sizeColumn:    "total_employment",
		choiceColumn:  "work_zone",
		settings:      cfg.WorkplaceLocation,
		constants:     cfg.Constants,
		modeChoice:    cfg.ModeChoice,
	}

	p.Register("initialize", initializeStep(cfg))
	p.Register("annotate_table", annotateStep(cfg))

	p.Register("school_location_sample", school.sampleStep)
	p.Register("school_location_logsums", school.logsumsStep)
	p.Register("school_location_simulate", school.simulateStep)
	p.Register("workplace_location_sample", work.sampleStep)
	p.Register("workplace_location_logsums", work.logsumsStep)
	p.Register("workplace_location_simulate", work.simulateStep)

	p.Register("joint_tour_frequency", jointTourFrequencyStep(cfg))
	p.Register("tour_mode_choice", tourModeChoiceStep(cfg))

	p.Register("write_tables", writeTablesStep(cfg))
	p.Register("write_data_dictionary", writeDictStep(cfg))
}

func initializeStep(cfg Config) sim.StepFunc {
	return func(ctx context.Context, sc *sim.StepContext) error {
		if cfg.Load == nil {
			return errors.New("initialize: no table loader configured")
		}
		tables, err := cfg.Load(ctx)
		if err != nil {
			return errors.Wrap(err, "initialize")
		}
		for _, t := range tables {
			sc.Store.Replace(t)
			logrus.Infof("[initialize] loaded table %s: %d rows, %d columns",
				t.Name, t.Len(), t.Width())
		}
		return nil
	}
}

func writeTablesStep(cfg Config) sim.StepFunc {
	return func(ctx context.Context, sc *sim.StepContext) error {
		if cfg.Write == nil {
			logrus.Warn("[write_tables] no writer configured, skipping")
			return nil
		}
		var tables []*sim.Table
		for _, name := range sc.Store.Names() {
			t, err := sc.Store.Get(name)
			if err != nil {
				return err
			}
			tables = append(tables, t)
		}
		return errors.Wrap(cfg.Write(tables), "write_tables")
	}
}

func writeDictStep(cfg Config) sim.StepFunc {
	return func(ctx context.Context, sc *sim.StepContext) error {
		if cfg.WriteDict == nil {
			logrus.Warn("[write_data_dictionary] no writer configured, skipping")
			return nil
		}
		dict := make(map[string][]string)
		for _, name := range sc.Store.Names() {
			t, err := sc.Store.Get(name)
			if err != nil {
				return err
			}
			dict[name] = t.ColumnNames()
		}
		return errors.Wrap(cfg.WriteDict(dict), "write_data_dictionary")
	}
}
