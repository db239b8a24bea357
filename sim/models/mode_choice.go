package models

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/medailey/activitysim/sim"
)

// roundTripModeSpec builds the mode utility used both for tour mode
// choice and for destination-choice logsums: round-trip travel time
// scaled by the mode's time factor, plus the mode's cost. The
// round_trip_time formula's output column is referenced by name in the
// weighted_time formula, the one ordering dependency formulas allow.
func roundTripModeSpec(cfg ModeChoiceSettings, originCol, destCol string) *sim.UtilitySpec {
	return &sim.UtilitySpec{
		Formulas: []sim.Formula{
			{Name: "out_time", External: skimByHour(originCol, destCol, "out_hour")},
			{Name: "in_time", External: skimByHour(destCol, originCol, "in_hour")},
			{Name: "round_trip_time", Simple: sim.Bin{Op: sim.OpAdd, L: sim.Ref("out_time"), R: sim.Ref("in_time")}},
			{Name: "weighted_time", Simple: sim.Bin{Op: sim.OpMul, L: sim.Ref("round_trip_time"), R: sim.Ref("time_factor")}},
			{Name: "mode_cost", Simple: sim.Ref("cost")},
			{Name: "mode_constant", Simple: sim.Ref("asc")},
		},
		Coefficients: []float64{0, 0, 0, cfg.TimeCoef, cfg.CostCoef, 1.0},
	}
}

// tourModeChoiceStep chooses a travel mode for every tour. Tours carry
// their own origin, destination, and departure/return hours, so skim
// lookups bin each tour into its own time periods. The mode set is the
// shared "modes" table (time_factor, cost, asc columns), optionally
// nested.
func tourModeChoiceStep(cfg Config) sim.StepFunc {
	return func(ctx context.Context, sc *sim.StepContext) error {
		tours, err := sc.Store.Get("tours")
		if err != nil {
			return err
		}
		modes, err := sc.Store.Get("modes")
		if err != nil {
			return err
		}
		logrus.Infof("[%s] choosing modes for %d tours", sc.StepName, tours.Len())

		res, err := sc.Engine.Run(ctx, tours, sim.SharedAlternatives(modes),
			roundTripModeSpec(cfg.ModeChoice, "origin_zone", "dest_zone"),
			&sim.Bindings{Skims: sc.Skims, Constants: cfg.Constants},
			sim.InteractionConfig{
				StepName:         sc.StepName,
				Mode:             sim.ModeSimulate,
				ChunkBudget:      sc.Config.ChunkBudget,
				CheckVariability: sc.Config.CheckVariability,
				Nests:            cfg.ModeChoice.Nests,
			})
		if err != nil {
			return err
		}

		chosen := make(map[int64]float64, len(res.Choices))
		logsums := make(map[int64]float64, len(res.Choices))
		for _, c := range res.Choices {
			chosen[c.ChooserID] = float64(c.Alternative)
			logsums[c.ChooserID] = c.Logsum
		}
		mode := make([]float64, tours.Len())
		ls := make([]float64, tours.Len())
		for i, id := range tours.IDs() {
			if m, ok := chosen[id]; ok {
				mode[i] = m
				ls[i] = logsums[id]
			} else {
				mode[i] = noLocation
			}
		}
		if err := tours.AddColumn("tour_mode", mode); err != nil {
			return err
		}
		return tours.AddColumn("mode_choice_logsum", ls)
	}
}
