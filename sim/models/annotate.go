package models

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/medailey/activitysim/sim"
)

// annotateStep computes derived columns on a named table. Which
// annotation runs is selected by the step's parameter suffix, e.g.
// annotate_table.model_name=annotate_land_use — the orchestrator
// passes the suffix through untouched.
func annotateStep(cfg Config) sim.StepFunc {
	return func(ctx context.Context, sc *sim.StepContext) error {
		if sc.Param.Key != "model_name" {
			return errors.Errorf("annotate_table: want model_name=... suffix, got %q", sc.StepName)
		}
		switch sc.Param.Value {
		case "annotate_land_use":
			return annotateLandUse(sc, cfg.Thresholds)
		case "annotate_households":
			return annotateHouseholds(sc)
		default:
			return errors.Errorf("annotate_table: unknown model_name %q", sc.Param.Value)
		}
	}
}

// annotateLandUse adds a density index and an area type code to the
// land use table. Area type comes from the configured urban/CBD
// density thresholds.
func annotateLandUse(sc *sim.StepContext, thresholds sim.ZoneThresholds) error {
	landUse, err := sc.Store.Get("land_use")
	if err != nil {
		return err
	}

	formulas := []sim.Formula{
		// harmonic blend of household and employment density
		{Name: "density_num", Simple: sim.Bin{Op: sim.OpMul, L: sim.Ref("household_density"), R: sim.Ref("employment_density")}},
		{Name: "density_den", Simple: sim.Bin{Op: sim.OpAdd, L: sim.Ref("household_density"), R: sim.Ref("employment_density")}},
		{Name: "density_index", Simple: sim.Bin{Op: sim.OpDiv, L: sim.Ref("density_num"), R: sim.Ref("density_den")}},
		{Name: "area_type", External: func(ctx *sim.EvalContext) ([]float64, error) {
			density, err := ctx.Column("density_index")
			if err != nil {
				return nil, err
			}
			out := make([]float64, len(density))
			for i, d := range density {
				out[i] = thresholds.Classify(d)
			}
			return out, nil
		}},
	}

	values, err := sim.Evaluate(formulas, landUse, nil)
	if err != nil {
		return errors.Wrap(err, "annotate_land_use")
	}
	for _, name := range []string{"density_index", "area_type"} {
		col, _ := values.Column(name)
		if err := landUse.AddColumn(name, col); err != nil {
			return err
		}
	}
	logrus.Infof("[%s] annotated land_use with density_index, area_type", sc.StepName)
	return nil
}

// annotateHouseholds adds per-household derived flags used by later
// steps (income bin indicator for now).
func annotateHouseholds(sc *sim.StepContext) error {
	households, err := sc.Store.Get("households")
	if err != nil {
		return err
	}
	formulas := []sim.Formula{
		{Name: "low_income", Simple: sim.Bin{Op: sim.OpLt, L: sim.Ref("income"), R: sim.Lit(30000)}},
	}
	values, err := sim.Evaluate(formulas, households, nil)
	if err != nil {
		return errors.Wrap(err, "annotate_households")
	}
	col, _ := values.Column("low_income")
	return households.AddColumn("low_income", col)
}
