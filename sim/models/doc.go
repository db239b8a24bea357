// Package models holds the built-in model steps: two-phase destination
// choice for school and workplace location (sample, logsums, simulate),
// tour mode choice, joint tour frequency, table annotation, and the
// initialize/write hand-off steps at the pipeline boundary.
//
// Steps register against a sim.Pipeline through RegisterAll and touch
// the table store only through their StepContext. The formula sets and
// coefficients here stand in for externally supplied model spec files;
// the engine treats them as opaque either way.
package models
