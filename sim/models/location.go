package models

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/medailey/activitysim/sim"
)

// noLocation codes a person outside the model's segment (a non-student
// has no school zone).
const noLocation = -1

// locationModel is the two-phase destination choice shared by school
// and workplace location: sample candidate zones per person, annotate
// each sampled (person, zone) pair with a mode choice logsum, then
// simulate the final choice over the sampled set.
type locationModel struct {
	name          string // "school_location" or "workplace_location"
	segmentColumn string // persons flag column selecting the segment
	sizeColumn    string // land_use attraction column
	choiceColumn  string // persons column receiving the chosen zone
	settings      LocationSettings
	constants     map[string]float64
	modeChoice    ModeChoiceSettings
}

func (m *locationModel) sampleTableName() string { return m.name + "_sample" }

// sampleStep draws SampleSize candidate destination zones per person
// in the segment, weighted by size and travel time, and stores them as
// the model's sample table: one row per (person, zone) with the
// sampling probability and pick count.
func (m *locationModel) sampleStep(ctx context.Context, sc *sim.StepContext) error {
	persons, err := sc.Store.Get("persons")
	if err != nil {
		return err
	}
	landUse, err := sc.Store.Get("land_use")
	if err != nil {
		return err
	}

	segment, err := segmentPositions(persons, m.segmentColumn)
	if err != nil {
		return err
	}
	choosers := persons.Take(segment)
	logrus.Infof("[%s] sampling destinations for %d of %d persons",
		sc.StepName, choosers.Len(), persons.Len())

	// Zones with no attraction are impossible alternatives; drop them
	// before the cross product rather than letting zero size terms
	// produce -Inf utilities for every chooser.
	size, ok := landUse.Column(m.sizeColumn)
	if !ok {
		return errors.Wrapf(sim.ErrUnresolvedReference, "land_use.%s", m.sizeColumn)
	}
	var viable []int
	for i, v := range size {
		if v > 0 {
			viable = append(viable, i)
		}
	}
	alts := sim.SharedAlternatives(landUse.Take(viable))

	spec := &sim.UtilitySpec{
		Formulas: []sim.Formula{
			{Name: "size_term", External: logPlusOne(m.sizeColumn)},
			{Name: "travel_time", External: skimAt("home_zone", "alt_id", m.settings.OutPeriodHour)},
		},
		Coefficients: []float64{m.settings.SizeCoef, m.settings.DistanceCoef},
	}

	res, err := sc.Engine.Run(ctx, choosers, alts, spec,
		&sim.Bindings{Skims: sc.Skims, Constants: m.constants},
		sim.InteractionConfig{
			StepName:         sc.StepName,
			Mode:             sim.ModeSample,
			SampleSize:       m.settings.SampleSize,
			ChunkBudget:      sc.Config.ChunkBudget,
			CheckVariability: sc.Config.CheckVariability,
		})
	if err != nil {
		return err
	}

	sample := buildSampleTable(m.sampleTableName(), res)
	sc.Store.Replace(sample)
	return nil
}

// logsumsStep adds a mode choice logsum column to the sample table:
// for each sampled (person, zone) pair, the logsum over the shared
// mode set for a round trip between home and the candidate zone.
func (m *locationModel) logsumsStep(ctx context.Context, sc *sim.StepContext) error {
	sample, err := sc.Store.Get(m.sampleTableName())
	if err != nil {
		return err
	}
	persons, err := sc.Store.Get("persons")
	if err != nil {
		return err
	}
	modes, err := sc.Store.Get("modes")
	if err != nil {
		return err
	}

	// Each sampled pair becomes a chooser in its own right, identified
	// by its row position in the sample table.
	pairIDs := make([]int64, sample.Len())
	for i := range pairIDs {
		pairIDs[i] = int64(i)
	}
	pairs := sim.NewTable("location_pairs", pairIDs)

	homeByPerson := columnByID(persons, "home_zone")
	home := make([]float64, sample.Len())
	for i, pid := range sample.IDs() {
		home[i] = homeByPerson[pid]
	}
	dest, _ := sample.Column("dest_zone")
	if err := pairs.AddColumn("home_zone", home); err != nil {
		return err
	}
	if err := pairs.AddColumn("dest_zone", dest); err != nil {
		return err
	}
	if err := pairs.AddColumn("out_hour", fillColumn(sample.Len(), m.settings.OutPeriodHour)); err != nil {
		return err
	}
	if err := pairs.AddColumn("in_hour", fillColumn(sample.Len(), m.settings.InPeriodHour)); err != nil {
		return err
	}

	res, err := sc.Engine.Run(ctx, pairs, sim.SharedAlternatives(modes),
		roundTripModeSpec(m.modeChoice, "home_zone", "dest_zone"),
		&sim.Bindings{Skims: sc.Skims, Constants: m.constants},
		sim.InteractionConfig{
			StepName:    sc.StepName,
			Mode:        sim.ModeLogsums,
			ChunkBudget: sc.Config.ChunkBudget,
			Nests:       m.modeChoice.Nests,
		})
	if err != nil {
		return err
	}

	logsums := make([]float64, sample.Len())
	for _, c := range res.Choices {
		logsums[c.ChooserID] = c.Logsum
	}
	return sample.AddColumn("mode_logsum", logsums)
}

// simulateStep makes the final destination choice for each person in
// the segment over their sampled zones, re-evaluating full utilities
// with the logsum term and the sampling correction, then writes the
// chosen zone onto persons and drops the sample table.
func (m *locationModel) simulateStep(ctx context.Context, sc *sim.StepContext) error {
	sample, err := sc.Store.Get(m.sampleTableName())
	if err != nil {
		return err
	}
	persons, err := sc.Store.Get("persons")
	if err != nil {
		return err
	}

	segment, err := segmentPositions(persons, m.segmentColumn)
	if err != nil {
		return err
	}
	choosers := persons.Take(segment)

	// The sample table doubles as the alternative table: alternative
	// ids are the sampled zones, and each chooser sees only its own
	// rows.
	dest, _ := sample.Column("dest_zone")
	altIDs := make([]int64, sample.Len())
	for i, z := range dest {
		altIDs[i] = int64(z)
	}
	altTable := sim.NewTable(m.sampleTableName(), altIDs)
	for _, name := range sample.ColumnNames() {
		col, _ := sample.Column(name)
		if err := altTable.AddColumn(name, col); err != nil {
			return err
		}
	}
	perChooser := make(map[int64][]int)
	for i, pid := range sample.IDs() {
		perChooser[pid] = append(perChooser[pid], i)
	}

	spec := &sim.UtilitySpec{
		Formulas: []sim.Formula{
			{Name: "travel_time", External: skimAt("home_zone", "alt_id", m.settings.OutPeriodHour)},
			{Name: "mode_logsum", Simple: sim.Ref("mode_logsum")},
			{Name: "sampling_correction", External: negLog("prob")},
		},
		Coefficients: []float64{m.settings.DistanceCoef, m.settings.LogsumCoef, 1.0},
	}

	res, err := sc.Engine.Run(ctx, choosers,
		&sim.AlternativeSet{Table: altTable, PerChooser: perChooser},
		spec,
		&sim.Bindings{Skims: sc.Skims, Constants: m.constants},
		sim.InteractionConfig{
			StepName:         sc.StepName,
			Mode:             sim.ModeSimulate,
			ChunkBudget:      sc.Config.ChunkBudget,
			CheckVariability: sc.Config.CheckVariability,
		})
	if err != nil {
		return err
	}

	// Backfill: persons outside the segment (and any failed choosers)
	// carry the no-location code.
	chosen := make(map[int64]float64, len(res.Choices))
	for _, c := range res.Choices {
		chosen[c.ChooserID] = float64(c.Alternative)
	}
	out := make([]float64, persons.Len())
	for i, pid := range persons.IDs() {
		if z, ok := chosen[pid]; ok {
			out[i] = z
		} else {
			out[i] = noLocation
		}
	}
	if err := persons.AddColumn(m.choiceColumn, out); err != nil {
		return err
	}

	sc.Store.Drop(m.sampleTableName())
	return nil
}

// buildSampleTable flattens sample-mode results into one row per
// (chooser, alternative) pair, in chooser order.
func buildSampleTable(name string, res *sim.ChoiceResult) *sim.Table {
	var ids []int64
	var dest, prob, picks []float64
	for _, s := range res.Samples {
		for _, a := range s.Alternatives {
			ids = append(ids, s.ChooserID)
			dest = append(dest, float64(a.Alternative))
			prob = append(prob, a.Probability)
			picks = append(picks, float64(a.PickCount))
		}
	}
	t := sim.NewTable(name, ids)
	// column lengths match ids by construction
	_ = t.AddColumn("dest_zone", dest)
	_ = t.AddColumn("prob", prob)
	_ = t.AddColumn("pick_count", picks)
	return t
}

// columnByID indexes a table column by row id.
func columnByID(t *sim.Table, col string) map[int64]float64 {
	vals, _ := t.Column(col)
	out := make(map[int64]float64, len(vals))
	for i, id := range t.IDs() {
		out[id] = vals[i]
	}
	return out
}
