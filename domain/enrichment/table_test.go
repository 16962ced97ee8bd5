package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peakmotif/domain/core"
)

func TestTable_AppendAndValidate(t *testing.T) {
	tbl := NewTable("peak_id", "a", "b")
	require.NoError(t, tbl.Append("p2", 1, 2))
	require.NoError(t, tbl.Append("p1", 3, 4))
	assert.Error(t, tbl.Append("p3", 1))

	require.NoError(t, tbl.Validate())
	tbl.SortByID()
	assert.Equal(t, []core.PeakID{"p1", "p2"}, tbl.IDs)

	col, ok := tbl.Column("b")
	require.True(t, ok)
	assert.Equal(t, []float64{4, 2}, col)

	_, ok = tbl.Column("missing")
	assert.False(t, ok)
}

func TestTable_ValidateDuplicate(t *testing.T) {
	tbl := NewTable("peak_id", "a")
	require.NoError(t, tbl.Append("p1", 1))
	require.NoError(t, tbl.Append("p1", 2))
	assert.ErrorIs(t, tbl.Validate(), core.ErrDuplicateID)
}

func TestPeakSet(t *testing.T) {
	s := NewPeakSet("b", "a", "b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.Equal(t, []core.PeakID{"a", "b"}, s.Sorted())

	h := HitSets{"m2": s, "m1": NewPeakSet()}
	assert.Equal(t, []core.MotifID{"m1", "m2"}, h.MotifIDs())
}

func TestMotif_Validate(t *testing.T) {
	m := Motif{ID: "m", Counts: [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}}}
	assert.NoError(t, m.Validate(4))
	assert.Error(t, m.Validate(3))
	assert.Error(t, Motif{ID: "empty"}.Validate(4))
}
