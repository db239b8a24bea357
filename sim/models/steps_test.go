package models

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medailey/activitysim/sim"
)

func TestAnnotateLandUse(t *testing.T) {
	p := runModels(t, testConfig(t), 1, []string{
		"initialize",
		"annotate_table.model_name=annotate_land_use",
	})

	landUse, err := p.Store().Get("land_use")
	require.NoError(t, err)

	density, ok := landUse.Column("density_index")
	require.True(t, ok)
	// harmonic blend: hh*emp / (hh+emp)
	assert.InDelta(t, 1200*800.0/2000, density[0], 1e-9)
	assert.InDelta(t, 300*500.0/800, density[1], 1e-9)

	// thresholds: CBD at 400, urban at 100
	area, ok := landUse.Column("area_type")
	require.True(t, ok)
	assert.Equal(t, []float64{sim.AreaTypeCBD, sim.AreaTypeUrban, sim.AreaTypeRural, sim.AreaTypeRural}, area)
}

func TestAnnotateHouseholds(t *testing.T) {
	p := runModels(t, testConfig(t), 1, []string{
		"initialize",
		"annotate_table.model_name=annotate_households",
	})

	households, err := p.Store().Get("households")
	require.NoError(t, err)
	low, ok := households.Column("low_income")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0, 0}, low)
}

func TestAnnotate_RejectsMissingOrUnknownModelName(t *testing.T) {
	cfg := testConfig(t)

	p := sim.NewPipeline(&sim.RunConfig{Models: []string{"initialize", "annotate_table"}, Seed: 1}, testSkims(t))
	RegisterAll(p, cfg)
	assert.Error(t, p.Run(context.Background()))

	p = sim.NewPipeline(&sim.RunConfig{Models: []string{"initialize", "annotate_table.model_name=bogus"}, Seed: 1}, testSkims(t))
	RegisterAll(p, cfg)
	assert.Error(t, p.Run(context.Background()))
}

func TestJointTourFrequency(t *testing.T) {
	p := runModels(t, testConfig(t), 3, []string{"initialize", "joint_tour_frequency"})

	households, err := p.Store().Get("households")
	require.NoError(t, err)
	freq, ok := households.Column("joint_tour_frequency")
	require.True(t, ok)
	count, ok := households.Column("num_joint_tours")
	require.True(t, ok)

	// household 1 has a single active member: outside the segment
	assert.Equal(t, float64(-1), freq[0])
	assert.Equal(t, float64(0), count[0])

	// multi-person households chose a frequency alternative; with the
	// fixture's alternative ids equal to their tour counts, the chosen
	// id and the tour count agree
	for _, i := range []int{1, 2} {
		assert.Contains(t, []float64{0, 1, 2}, freq[i], "household row %d", i)
		assert.Equal(t, freq[i], count[i], "household row %d", i)
	}
}

func TestTourModeChoice(t *testing.T) {
	p := runModels(t, testConfig(t), 11, []string{"initialize", "tour_mode_choice"})

	tours, err := p.Store().Get("tours")
	require.NoError(t, err)
	mode, ok := tours.Column("tour_mode")
	require.True(t, ok)
	logsum, ok := tours.Column("mode_choice_logsum")
	require.True(t, ok)

	for i := range mode {
		assert.Contains(t, []float64{1, 2, 3}, mode[i], "tour row %d", i)
		assert.False(t, math.IsNaN(logsum[i]) || math.IsInf(logsum[i], 0), "tour row %d", i)
	}
}

func TestTourModeChoice_NestedMatchesSetup(t *testing.T) {
	// WITH a one-level nest over the two priced modes, choices still
	// cover the full mode set and the step completes.
	cfg := testConfig(t)
	cfg.ModeChoice.Nests = &sim.NestSpec{Nests: []sim.Nest{
		{Name: "priced", Coefficient: 0.6, Alternatives: []int64{1, 2}},
	}}

	p := runModels(t, cfg, 11, []string{"initialize", "tour_mode_choice"})
	tours, err := p.Store().Get("tours")
	require.NoError(t, err)
	mode, _ := tours.Column("tour_mode")
	for i := range mode {
		assert.Contains(t, []float64{1, 2, 3}, mode[i])
	}
}

func TestInitialize_RequiresLoader(t *testing.T) {
	cfg := testConfig(t)
	cfg.Load = nil
	p := sim.NewPipeline(&sim.RunConfig{Models: []string{"initialize"}, Seed: 1}, testSkims(t))
	RegisterAll(p, cfg)
	assert.Error(t, p.Run(context.Background()))
}
