// Package sim provides the interaction-based choice simulation engine
// for activity-based travel demand models.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - pipeline.go: ordered model steps, checkpoint-per-step, resume-after
//   - interaction.go: chunked (chooser x alternative) evaluation under a cell budget
//   - logit.go: utilities to probabilities, Monte Carlo choice, sampling, logsums
//
// # Architecture
//
// The pipeline owns a TableStore of named columnar tables and runs an
// ordered list of registered steps against it, snapshotting the store
// after each step into an append-only CheckpointLog. Steps call the
// InteractionEngine, which crosses choosers with alternatives in
// row-bounded chunks, evaluates a UtilitySpec's formulas per chunk
// (expr.go, with skim lookups via skims.go), and hands the utility
// column to the choice simulator in one of three modes: simulate,
// sample, or logsums.
//
// Determinism is the load-bearing property: every chooser's random
// draws are seeded from (run seed, step name, chooser id) in rng.go,
// so results are identical across chunk budgets and worker counts.
//
// Built-in model steps (school/workplace location, tour mode choice,
// joint tour frequency, annotation) live in sim/models and register
// against a Pipeline like any external step would.
package sim
