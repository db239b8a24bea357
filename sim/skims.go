package sim

import (
	"github.com/pkg/errors"
)

// TimePeriods maps lookup hours to skim period labels. Boundaries are
// half-open on the right except the final bin, which is closed: with
// boundaries [0,11,16,24] and labels [AM,MD,PM], hour 10.9 is AM,
// hour 11 is MD, and hour 24 is PM.
type TimePeriods struct {
	Boundaries []float64
	Labels     []string
}

// NewTimePeriods validates boundary/label arrays from settings.
func NewTimePeriods(boundaries []float64, labels []string) (*TimePeriods, error) {
	if len(boundaries) < 2 {
		return nil, &ConfigError{Field: "skim_time_periods", Msg: "need at least two boundaries"}
	}
	if len(labels) != len(boundaries)-1 {
		return nil, &ConfigError{Field: "skim_time_periods",
			Msg: "labels must be one shorter than boundaries"}
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return nil, &ConfigError{Field: "skim_time_periods",
				Msg: "boundaries must be strictly increasing"}
		}
	}
	return &TimePeriods{Boundaries: boundaries, Labels: labels}, nil
}

// Label bins an hour into its period label. Fails with
// ErrOutOfRangeHour when the hour falls outside [first, last].
func (tp *TimePeriods) Label(hour float64) (string, error) {
	n := len(tp.Boundaries)
	if hour < tp.Boundaries[0] || hour > tp.Boundaries[n-1] {
		return "", errors.Wrapf(ErrOutOfRangeHour, "hour %v", hour)
	}
	for i := 1; i < n-1; i++ {
		if hour < tp.Boundaries[i] {
			return tp.Labels[i-1], nil
		}
	}
	return tp.Labels[n-2], nil
}

// LabelIndex returns the position of a period label, or -1.
func (tp *TimePeriods) LabelIndex(label string) int {
	for i, l := range tp.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// SkimMatrix is a 3-D travel metric cube indexed by (origin zone,
// destination zone, time period). Immutable after construction and
// safe for concurrent reads; the engine's worker pool shares one
// instance across batches.
type SkimMatrix struct {
	periods  *TimePeriods
	zoneOfs  map[int64]int
	numZones int
	// values laid out as [period][origin*numZones + dest]
	values [][]float64
}

// NewSkimMatrix builds a cube over the given zone ids with every cell
// zero. Cells are filled with Set before the pipeline starts; the
// loading collaborator owns the file format.
func NewSkimMatrix(zones []int64, periods *TimePeriods) *SkimMatrix {
	ofs := make(map[int64]int, len(zones))
	for i, z := range zones {
		ofs[z] = i
	}
	vals := make([][]float64, len(periods.Labels))
	for i := range vals {
		vals[i] = make([]float64, len(zones)*len(zones))
	}
	return &SkimMatrix{
		periods:  periods,
		zoneOfs:  ofs,
		numZones: len(zones),
		values:   vals,
	}
}

// Periods returns the matrix's time period mapping.
func (m *SkimMatrix) Periods() *TimePeriods { return m.periods }

// Set stores one cell. Intended for loaders and tests, before any
// concurrent lookups begin.
func (m *SkimMatrix) Set(origin, dest int64, label string, value float64) error {
	p := m.periods.LabelIndex(label)
	if p < 0 {
		return errors.Errorf("unknown skim period label %q", label)
	}
	o, ok := m.zoneOfs[origin]
	if !ok {
		return errors.Wrapf(ErrUnknownZonePair, "origin %d", origin)
	}
	d, ok := m.zoneOfs[dest]
	if !ok {
		return errors.Wrapf(ErrUnknownZonePair, "destination %d", dest)
	}
	m.values[p][o*m.numZones+d] = value
	return nil
}

func (m *SkimMatrix) cell(origin, dest int64, period int) (float64, error) {
	o, ok := m.zoneOfs[origin]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownZonePair, "origin %d", origin)
	}
	d, ok := m.zoneOfs[dest]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownZonePair, "destination %d", dest)
	}
	return m.values[period][o*m.numZones+d], nil
}

// Lookup returns one value per (origin, destination, hour) triple. All
// three slices must be the same length. A missing zone or an hour
// outside the period boundaries fails the whole lookup; downstream
// utilities must never see a silently-defaulted travel metric.
func (m *SkimMatrix) Lookup(origins, dests []int64, hours []float64) ([]float64, error) {
	if len(origins) != len(dests) || len(origins) != len(hours) {
		return nil, errors.Errorf("skim lookup: mismatched lengths %d/%d/%d",
			len(origins), len(dests), len(hours))
	}
	out := make([]float64, len(origins))
	for i := range origins {
		label, err := m.periods.Label(hours[i])
		if err != nil {
			return nil, err
		}
		v, err := m.cell(origins[i], dests[i], m.periods.LabelIndex(label))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LookupPeriod is Lookup with a single fixed period label for every
// pair, used by formulas that bind a column to one period (e.g. an
// AM-peak distance term).
func (m *SkimMatrix) LookupPeriod(origins, dests []int64, label string) ([]float64, error) {
	if len(origins) != len(dests) {
		return nil, errors.Errorf("skim lookup: mismatched lengths %d/%d",
			len(origins), len(dests))
	}
	p := m.periods.LabelIndex(label)
	if p < 0 {
		return nil, errors.Errorf("unknown skim period label %q", label)
	}
	out := make([]float64, len(origins))
	for i := range origins {
		v, err := m.cell(origins[i], dests[i], p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
