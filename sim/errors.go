package sim

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors for the failure modes the engine distinguishes.
// Callers match with errors.Is after unwrapping any context added
// along the way.
var (
	// ErrOutOfRangeHour is returned by skim lookups when an hour falls
	// outside the configured time-period boundaries.
	ErrOutOfRangeHour = errors.New("hour outside configured time period boundaries")

	// ErrUnknownZonePair is returned by skim lookups when either zone id
	// is absent from the matrix index. Lookups never return a default
	// value for missing zones.
	ErrUnknownZonePair = errors.New("zone pair not present in skim matrix")

	// ErrUnresolvedReference is returned when a formula names a column
	// or external binding absent from its evaluation context.
	ErrUnresolvedReference = errors.New("formula references unknown column or binding")

	// ErrChunkTooSmall is returned when a single chooser's interaction
	// rows cannot fit within a nonzero chunk budget.
	ErrChunkTooSmall = errors.New("chunk budget smaller than one chooser's interaction rows")

	// ErrDegenerateUtility is returned when the variability check is
	// enabled and a step's utility column is constant across all rows.
	ErrDegenerateUtility = errors.New("utility has no variability across interaction rows")

	// ErrUnknownResumeTarget is returned when resume names a checkpoint
	// that was never recorded.
	ErrUnknownResumeTarget = errors.New("no checkpoint recorded under resume target")

	// ErrUnknownStep is returned before any step runs when the model
	// list names a step with no registered implementation.
	ErrUnknownStep = errors.New("model list names an unregistered step")

	// ErrUnknownTable is returned when a step asks the store for a
	// table that was never added.
	ErrUnknownTable = errors.New("table not present in store")
)

// ConfigError marks malformed or missing settings. It aborts a run
// before any step executes.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// NoViableAlternative accumulates choosers that could not be offered a
// choice (empty alternative set or all utilities non-finite). The step
// continues past them; the aggregate is surfaced when the step ends.
type NoViableAlternative struct {
	ChooserIDs []int64
}

func (e *NoViableAlternative) Error() string {
	ids := make([]string, 0, len(e.ChooserIDs))
	for _, id := range e.ChooserIDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return fmt.Sprintf("no viable alternative for %d choosers: [%s]",
		len(e.ChooserIDs), strings.Join(ids, " "))
}

// Add records a chooser id. Safe to call on a zero value.
func (e *NoViableAlternative) Add(chooserID int64) {
	e.ChooserIDs = append(e.ChooserIDs, chooserID)
}

// Merge folds another aggregate into this one and re-sorts so the
// report order is independent of chunk execution order.
func (e *NoViableAlternative) Merge(other *NoViableAlternative) {
	if other == nil || len(other.ChooserIDs) == 0 {
		return
	}
	e.ChooserIDs = append(e.ChooserIDs, other.ChooserIDs...)
	sort.Slice(e.ChooserIDs, func(i, j int) bool { return e.ChooserIDs[i] < e.ChooserIDs[j] })
}

// Empty reports whether any chooser has been recorded.
func (e *NoViableAlternative) Empty() bool {
	return e == nil || len(e.ChooserIDs) == 0
}
