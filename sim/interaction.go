package sim

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AlternativeSet is the candidate options offered to choosers: either
// one shared alternative table (all zones, all modes) or a per-chooser
// subset produced by a prior sample step. Alternative ids are the
// table's row identifiers.
type AlternativeSet struct {
	Table *Table
	// PerChooser maps chooser id to row positions in Table. Nil means
	// every chooser sees every row.
	PerChooser map[int64][]int
}

// SharedAlternatives wraps a table as a shared alternative set.
func SharedAlternatives(t *Table) *AlternativeSet {
	return &AlternativeSet{Table: t}
}

// InteractionEngine builds (chooser, alternative) pairs in
// row-count-bounded chunks, evaluates utilities per chunk, and feeds
// the choice simulator, stitching results back in chooser order.
// Chunking only affects memory footprint, never outcomes: draws are
// seeded per chooser, so any chunk budget yields identical choices.
type InteractionEngine struct {
	key     RunKey
	workers int
}

// NewInteractionEngine creates an engine. workers bounds the chunk
// worker pool; values below 2 run chunks serially.
func NewInteractionEngine(key RunKey, workers int) *InteractionEngine {
	if workers < 1 {
		workers = 1
	}
	return &InteractionEngine{key: key, workers: workers}
}

// batch is one chunk's worth of choosers.
type batch struct {
	positions []int // chooser row positions, in insertion order
	rows      int   // total interaction rows
}

// Run executes one interaction model over all choosers.
func (e *InteractionEngine) Run(ctx context.Context, choosers *Table, alts *AlternativeSet,
	spec *UtilitySpec, bindings *Bindings, cfg InteractionConfig) (*ChoiceResult, error) {

	if len(spec.Formulas) == 0 {
		return nil, errors.Errorf("%s: utility spec has no formulas", cfg.StepName)
	}
	if len(spec.Coefficients) != len(spec.Formulas) {
		return nil, errors.Errorf("%s: %d coefficients for %d formulas",
			cfg.StepName, len(spec.Coefficients), len(spec.Formulas))
	}
	altCol := cfg.AltColumn
	if altCol == "" {
		altCol = "alt_id"
	}

	altRows := alternativeRows(choosers, alts)

	// Interaction row width in cells: chooser columns broadcast onto
	// each row, alternative columns, the alternative id column, and
	// one evaluated column per formula.
	cols := choosers.Width() + alts.Table.Width() + 1 + len(spec.Formulas)

	batches, err := planBatches(choosers, altRows, cols, cfg.ChunkBudget, cfg.StepName)
	if err != nil {
		return nil, err
	}

	logrus.Infof("[%s] %s: %d choosers, %d chunks, %d interaction columns",
		cfg.StepName, cfg.Mode, choosers.Len(), len(batches), cols)

	rng := NewChoiceRNG(e.key, cfg.StepName)
	results := make([]*ChoiceResult, len(batches))
	mins := make([]float64, len(batches))
	maxs := make([]float64, len(batches))

	runBatch := func(bi int) error {
		b := batches[bi]
		inter, groups, err := materialize(choosers, alts, altRows, b, altCol)
		if err != nil {
			return errors.Wrapf(err, "%s chunk %d", cfg.StepName, bi)
		}
		values, err := Evaluate(spec.Formulas, inter, bindings)
		if err != nil {
			return errors.Wrapf(err, "%s chunk %d", cfg.StepName, bi)
		}
		utils := weightedSum(values, spec)
		mins[bi], maxs[bi] = minMax(utils)
		results[bi] = simulateGroups(cfg.Mode, utils, groups, cfg.SampleSize, cfg.Nests, rng)
		return nil
	}

	if e.workers > 1 && len(batches) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for bi := range batches {
			bi := bi
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return runBatch(bi)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for bi := range batches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := runBatch(bi); err != nil {
				return nil, err
			}
		}
	}

	if cfg.CheckVariability {
		lo, hi := math.Inf(1), math.Inf(-1)
		for bi := range batches {
			lo = math.Min(lo, mins[bi])
			hi = math.Max(hi, maxs[bi])
		}
		if lo == hi && !math.IsInf(lo, 1) {
			return nil, errors.Wrapf(ErrDegenerateUtility,
				"%s: utility constant at %v", cfg.StepName, lo)
		}
	}

	out := &ChoiceResult{Mode: cfg.Mode}
	for _, r := range results {
		out.append(r)
	}
	if !out.Failed.Empty() {
		logrus.Warnf("[%s] %v", cfg.StepName, out.Failed)
	}
	return out, nil
}

// alternativeRows resolves each chooser's alternative row positions,
// sorted by alternative id so inverse-CDF tie-breaking is well
// defined. Shared sets resolve once and are reused by every chooser.
func alternativeRows(choosers *Table, alts *AlternativeSet) map[int64][]int {
	altIDs := alts.Table.IDs()
	sortByAlt := func(positions []int) []int {
		out := append([]int(nil), positions...)
		sort.Slice(out, func(i, j int) bool { return altIDs[out[i]] < altIDs[out[j]] })
		return out
	}

	if alts.PerChooser == nil {
		shared := make([]int, alts.Table.Len())
		for i := range shared {
			shared[i] = i
		}
		shared = sortByAlt(shared)
		rows := make(map[int64][]int, choosers.Len())
		for _, id := range choosers.IDs() {
			rows[id] = shared
		}
		return rows
	}

	rows := make(map[int64][]int, choosers.Len())
	for _, id := range choosers.IDs() {
		// A chooser absent from the map has an empty alternative set;
		// that is recorded as NoViableAlternative downstream, not an
		// error here.
		rows[id] = sortByAlt(alts.PerChooser[id])
	}
	return rows
}

// planBatches partitions choosers into chunks so that rows x columns
// stays within the cell budget. Chunks fill greedily on each chooser's
// actual alternative count, so every chunk honors the budget even when
// counts are skewed; a single chooser whose own rows exceed the budget
// is an error, never a silent truncation.
func planBatches(choosers *Table, altRows map[int64][]int, cols, budget int,
	stepName string) ([]batch, error) {

	ids := choosers.IDs()
	for _, id := range ids {
		n := len(altRows[id])
		if budget > 0 && n*cols > budget {
			return nil, errors.Wrapf(ErrChunkTooSmall,
				"%s: chooser %d needs %d cells, budget %d", stepName, id, n*cols, budget)
		}
	}

	var batches []batch
	cur := batch{}
	for p, id := range ids {
		n := len(altRows[id])
		if budget > 0 && len(cur.positions) > 0 && (cur.rows+n)*cols > budget {
			batches = append(batches, cur)
			cur = batch{}
		}
		cur.positions = append(cur.positions, p)
		cur.rows += n
	}
	if len(cur.positions) > 0 {
		batches = append(batches, cur)
	}
	if len(batches) == 0 {
		batches = []batch{{}}
	}
	return batches, nil
}

// materialize builds one chunk's interaction table: each chooser's
// columns broadcast against its alternative rows, plus the alternative
// attribute columns and the alternative id column. Chooser and
// alternative column names are expected to be disjoint; on a clash
// the alternative column wins.
func materialize(choosers *Table, alts *AlternativeSet, altRows map[int64][]int,
	b batch, altCol string) (*Table, []chooserGroup, error) {

	ids := choosers.IDs()
	rowChooser := make([]int, 0, b.rows) // chooser position per interaction row
	rowAlt := make([]int, 0, b.rows)     // alternative position per interaction row
	groups := make([]chooserGroup, 0, len(b.positions))
	interIDs := make([]int64, 0, b.rows)
	altIDs := alts.Table.IDs()

	for _, p := range b.positions {
		id := ids[p]
		g := chooserGroup{chooserID: id, lo: len(rowChooser)}
		for _, ap := range altRows[id] {
			rowChooser = append(rowChooser, p)
			rowAlt = append(rowAlt, ap)
			interIDs = append(interIDs, id)
			g.altIDs = append(g.altIDs, altIDs[ap])
		}
		g.hi = len(rowChooser)
		groups = append(groups, g)
	}

	inter := NewTable("interaction", interIDs)
	for _, name := range choosers.ColumnNames() {
		src, _ := choosers.Column(name)
		vals := make([]float64, len(rowChooser))
		for i, p := range rowChooser {
			vals[i] = src[p]
		}
		if err := inter.AddColumn(name, vals); err != nil {
			return nil, nil, err
		}
	}
	for _, name := range alts.Table.ColumnNames() {
		src, _ := alts.Table.Column(name)
		vals := make([]float64, len(rowAlt))
		for i, p := range rowAlt {
			vals[i] = src[p]
		}
		if err := inter.AddColumn(name, vals); err != nil {
			return nil, nil, err
		}
	}
	altIDCol := make([]float64, len(rowAlt))
	for i, p := range rowAlt {
		altIDCol[i] = float64(altIDs[p])
	}
	if err := inter.AddColumn(altCol, altIDCol); err != nil {
		return nil, nil, err
	}
	return inter, groups, nil
}

// weightedSum folds formula output columns into one utility column.
func weightedSum(values *Table, spec *UtilitySpec) []float64 {
	utils := make([]float64, values.Len())
	for fi, f := range spec.Formulas {
		col, _ := values.Column(f.Name)
		coef := spec.Coefficients[fi]
		for i, v := range col {
			utils[i] += coef * v
		}
	}
	return utils
}

func minMax(vals []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
