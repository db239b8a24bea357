package models

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/medailey/activitysim/sim"
)

// jointTourFrequencyStep predicts how many fully joint tours each
// multi-person household makes. Only households with more than one
// travel-active member choose; the rest are annotated with zero tours.
// The alternative table ("joint_tour_alternatives") is shared, one row
// per frequency alternative with an n_tours column.
func jointTourFrequencyStep(cfg Config) sim.StepFunc {
	return func(ctx context.Context, sc *sim.StepContext) error {
		households, err := sc.Store.Get("households")
		if err != nil {
			return err
		}
		alts, err := sc.Store.Get("joint_tour_alternatives")
		if err != nil {
			return err
		}

		active, ok := households.Column("num_active")
		if !ok {
			return errors.Wrap(sim.ErrUnresolvedReference, "households.num_active")
		}
		var multi []int
		for i, v := range active {
			if v > 1 {
				multi = append(multi, i)
			}
		}
		choosers := households.Take(multi)
		logrus.Infof("[%s] %d multi-person households of %d",
			sc.StepName, choosers.Len(), households.Len())

		// Larger and better-off households make more joint tours;
		// every additional tour carries a fixed disutility.
		spec := &sim.UtilitySpec{
			Formulas: []sim.Formula{
				{Name: "tours_x_active", Simple: sim.Bin{Op: sim.OpMul, L: sim.Ref("n_tours"), R: sim.Ref("num_active")}},
				{Name: "tours_x_income", Simple: sim.Bin{Op: sim.OpMul, L: sim.Ref("n_tours"), R: sim.Ref("income")}},
				{Name: "tour_burden", Simple: sim.Ref("n_tours")},
			},
			Coefficients: []float64{0.30, 0.000002, -1.2},
		}

		res, err := sc.Engine.Run(ctx, choosers, sim.SharedAlternatives(alts), spec,
			&sim.Bindings{Constants: cfg.Constants},
			sim.InteractionConfig{
				StepName:         sc.StepName,
				Mode:             sim.ModeSimulate,
				ChunkBudget:      sc.Config.ChunkBudget,
				CheckVariability: sc.Config.CheckVariability,
			})
		if err != nil {
			return err
		}

		nTours := columnByID(alts, "n_tours")
		chosen := make(map[int64]float64, len(res.Choices))
		for _, c := range res.Choices {
			chosen[c.ChooserID] = float64(c.Alternative)
		}
		freq := make([]float64, households.Len())
		count := make([]float64, households.Len())
		for i, id := range households.IDs() {
			if alt, ok := chosen[id]; ok {
				freq[i] = alt
				count[i] = nTours[int64(alt)]
			} else {
				freq[i] = noLocation
			}
		}
		if err := households.AddColumn("joint_tour_frequency", freq); err != nil {
			return err
		}
		return households.AddColumn("num_joint_tours", count)
	}
}
