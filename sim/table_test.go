package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AddColumn_LengthMismatch(t *testing.T) {
	tb := NewTable("persons", []int64{1, 2, 3})
	err := tb.AddColumn("age", []float64{30, 40})
	assert.Error(t, err)
}

func TestTable_AddColumn_ReplacesInPlace(t *testing.T) {
	// GIVEN a table with two columns
	tb := NewTable("persons", []int64{1, 2})
	require.NoError(t, tb.AddColumn("age", []float64{30, 40}))
	require.NoError(t, tb.AddColumn("income", []float64{1, 2}))

	// WHEN a column is re-added under the same name
	require.NoError(t, tb.AddColumn("age", []float64{31, 41}))

	// THEN values are replaced and column order is unchanged
	got, ok := tb.Column("age")
	require.True(t, ok)
	assert.Equal(t, []float64{31, 41}, got)
	assert.Equal(t, []string{"age", "income"}, tb.ColumnNames())
}

func TestTable_Take_RepeatsRows(t *testing.T) {
	tb := NewTable("zones", []int64{10, 20, 30})
	require.NoError(t, tb.AddColumn("size", []float64{1, 2, 3}))

	got := tb.Take([]int{2, 0, 2})

	assert.Equal(t, []int64{30, 10, 30}, got.IDs())
	size, _ := got.Column("size")
	assert.Equal(t, []float64{3, 1, 3}, size)
}

func TestTable_Clone_IsDeep(t *testing.T) {
	tb := NewTable("zones", []int64{1, 2})
	require.NoError(t, tb.AddColumn("size", []float64{5, 6}))

	clone := tb.Clone()
	require.NoError(t, tb.AddColumn("size", []float64{7, 8}))

	got, _ := clone.Column("size")
	assert.Equal(t, []float64{5, 6}, got, "clone must not see later mutation")
	assert.True(t, clone.Equal(clone))
	assert.False(t, clone.Equal(tb))
}

func TestTableStore_ReplaceGetDrop(t *testing.T) {
	s := NewTableStore()
	s.Replace(NewTable("a", []int64{1}))
	s.Replace(NewTable("b", []int64{2}))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, []string{"a", "b"}, s.Names())

	s.Drop("a")
	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.Equal(t, []string{"b"}, s.Names())

	// dropping an absent table is a no-op
	s.Drop("a")
}

func TestTableStore_Clone_Isolated(t *testing.T) {
	s := NewTableStore()
	tb := NewTable("persons", []int64{1, 2})
	require.NoError(t, tb.AddColumn("x", []float64{1, 2}))
	s.Replace(tb)

	snap := s.Clone()
	require.True(t, snap.Equal(s))

	// mutating the live store must not leak into the snapshot
	require.NoError(t, tb.AddColumn("x", []float64{9, 9}))
	assert.False(t, snap.Equal(s))
}

func TestCheckpointLog_RestoreAndTruncate(t *testing.T) {
	// GIVEN a log of three checkpoints over an evolving store
	log := NewCheckpointLog()
	s := NewTableStore()
	tb := NewTable("t", []int64{1})
	require.NoError(t, tb.AddColumn("v", []float64{1}))
	s.Replace(tb)
	log.Append("step_a", s)

	require.NoError(t, tb.AddColumn("v", []float64{2}))
	log.Append("step_b", s)

	require.NoError(t, tb.AddColumn("v", []float64{3}))
	log.Append("step_c", s)

	// WHEN restoring the middle checkpoint
	restored, idx, err := log.Restore("step_b")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	rt, err := restored.Get("t")
	require.NoError(t, err)
	v, _ := rt.Column("v")
	assert.Equal(t, []float64{2}, v, "restore must return the store as of step_b")

	// THEN truncation discards later checkpoints
	log.TruncateAfter(idx)
	assert.Equal(t, []string{"step_a", "step_b"}, log.Names())
}

func TestCheckpointLog_Restore_IsACopy(t *testing.T) {
	log := NewCheckpointLog()
	s := NewTableStore()
	s.Replace(NewTable("t", []int64{1}))
	log.Append("a", s)

	r1, _, err := log.Restore("a")
	require.NoError(t, err)
	r1.Replace(NewTable("extra", []int64{9}))

	r2, _, err := log.Restore("a")
	require.NoError(t, err)
	_, err = r2.Get("extra")
	assert.ErrorIs(t, err, ErrUnknownTable, "mutating one restore must not taint the snapshot")
}

func TestCheckpointLog_UnknownTarget(t *testing.T) {
	log := NewCheckpointLog()
	_, _, err := log.Restore("never_ran")
	assert.ErrorIs(t, err, ErrUnknownResumeTarget)
}
