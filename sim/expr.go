package sim

import (
	"github.com/pkg/errors"
)

// Formulas come in two kinds, mirroring the two expression classes a
// model spec file can hold: "simple" column arithmetic evaluated
// against the interaction table, and "external" formulas that may also
// reach named bindings (the skim matrix, model constants).
//
// The representation is a closed tagged variant rather than an
// interpreted expression string, so the evaluator's contract stays
// testable. Formulas are side-effect-free and order-independent
// except for one documented rule: a later formula may reference an
// earlier formula's output column by name.

// Expr is a simple arithmetic expression over interaction columns.
type Expr interface {
	eval(ctx *EvalContext) ([]float64, error)
}

// Ref reads a column of the interaction table (or an earlier
// formula's output column).
type Ref string

// Lit is a scalar literal broadcast to every row.
type Lit float64

// BinOp is a binary operator. Comparison operators produce 0/1
// indicator columns, the usual shape of utility trigger terms.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
)

// Bin applies op elementwise to two sub-expressions.
type Bin struct {
	Op   BinOp
	L, R Expr
}

// ExternalFn computes one column per row of the interaction table with
// access to the full evaluation context (columns, skims, constants).
type ExternalFn func(ctx *EvalContext) ([]float64, error)

// Formula is one named output column of a model spec: exactly one of
// Simple or External is set.
type Formula struct {
	Name     string
	Simple   Expr
	External ExternalFn
}

// Bindings are the named external objects formulas may reference.
type Bindings struct {
	Skims     *SkimMatrix
	Constants map[string]float64
}

// Constant resolves a named model constant.
func (b *Bindings) Constant(name string) (float64, error) {
	if b == nil {
		return 0, errors.Wrap(ErrUnresolvedReference, name)
	}
	v, ok := b.Constants[name]
	if !ok {
		return 0, errors.Wrap(ErrUnresolvedReference, name)
	}
	return v, nil
}

// EvalContext is the row-indexed view an expression evaluates against.
type EvalContext struct {
	table    *Table
	out      *Table
	bindings *Bindings
}

// Len returns the interaction row count.
func (ctx *EvalContext) Len() int { return ctx.table.Len() }

// Column resolves a column by name: earlier formula outputs shadow
// interaction table columns of the same name.
func (ctx *EvalContext) Column(name string) ([]float64, error) {
	if ctx.out != nil {
		if c, ok := ctx.out.Column(name); ok {
			return c, nil
		}
	}
	if c, ok := ctx.table.Column(name); ok {
		return c, nil
	}
	return nil, errors.Wrap(ErrUnresolvedReference, name)
}

// IDs returns the interaction table's row identifiers (the chooser id
// of each row).
func (ctx *EvalContext) IDs() []int64 { return ctx.table.IDs() }

// Skims returns the bound skim matrix, or fails if none was bound.
func (ctx *EvalContext) Skims() (*SkimMatrix, error) {
	if ctx.bindings == nil || ctx.bindings.Skims == nil {
		return nil, errors.Wrap(ErrUnresolvedReference, "skims")
	}
	return ctx.bindings.Skims, nil
}

// Constant resolves a named model constant from the bindings.
func (ctx *EvalContext) Constant(name string) (float64, error) {
	return ctx.bindings.Constant(name)
}

// IntColumn resolves a column and rounds it to int64, for zone-id
// columns feeding skim lookups.
func (ctx *EvalContext) IntColumn(name string) ([]int64, error) {
	col, err := ctx.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(col))
	for i, v := range col {
		out[i] = int64(v)
	}
	return out, nil
}

func (r Ref) eval(ctx *EvalContext) ([]float64, error) {
	return ctx.Column(string(r))
}

func (l Lit) eval(ctx *EvalContext) ([]float64, error) {
	out := make([]float64, ctx.Len())
	for i := range out {
		out[i] = float64(l)
	}
	return out, nil
}

func (b Bin) eval(ctx *EvalContext) ([]float64, error) {
	lv, err := b.L.eval(ctx)
	if err != nil {
		return nil, err
	}
	rv, err := b.R.eval(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(lv))
	for i := range out {
		l, r := lv[i], rv[i]
		switch b.Op {
		case OpAdd:
			out[i] = l + r
		case OpSub:
			out[i] = l - r
		case OpMul:
			out[i] = l * r
		case OpDiv:
			out[i] = l / r
		case OpLt:
			out[i] = indicator(l < r)
		case OpLe:
			out[i] = indicator(l <= r)
		case OpGt:
			out[i] = indicator(l > r)
		case OpGe:
			out[i] = indicator(l >= r)
		case OpEq:
			out[i] = indicator(l == r)
		}
	}
	return out, nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Evaluate runs each formula against the interaction table and
// returns one output column per formula, aligned to table row order.
// A broken formula fails the whole evaluation: a step cannot use a
// partially-evaluated spec.
func Evaluate(formulas []Formula, table *Table, bindings *Bindings) (*Table, error) {
	out := NewTable(table.Name+"_values", table.IDs())
	ctx := &EvalContext{table: table, out: out, bindings: bindings}
	for _, f := range formulas {
		var (
			col []float64
			err error
		)
		switch {
		case f.Simple != nil:
			col, err = f.Simple.eval(ctx)
		case f.External != nil:
			col, err = f.External(ctx)
		default:
			err = errors.Errorf("formula %s has no body", f.Name)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "formula %s", f.Name)
		}
		if err := out.AddColumn(f.Name, col); err != nil {
			return nil, errors.Wrapf(err, "formula %s", f.Name)
		}
	}
	return out, nil
}
