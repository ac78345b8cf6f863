package correction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/basequant/aq/internal/crispresso"
	"github.com/basequant/aq/internal/crispresso/crispressotest"
	"github.com/basequant/aq/internal/guide"
)

func ramp(n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i+1) * scale
	}
	return out
}

func TestLookupFor(t *testing.T) {
	fwd, _ := guide.BasesFor(guide.ABE, guide.Forward)
	rev, _ := guide.BasesFor(guide.ABE, guide.Reverse)

	l, err := LookupFor(guide.Forward, fwd, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, Lookup{Row: "G", Column: 5}, l)

	l, err = LookupFor(guide.Reverse, rev, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, Lookup{Row: "C", Column: 18}, l)

	_, err = LookupFor("?", fwd, 3, 20)
	assert.Error(t, err)
}

func TestExtract_Forward(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1").
		WriteQuantWindow(20, map[string][]float64{
			"A": ramp(20, 0.001),
			"G": ramp(20, 0.01),
		})

	v, err := NewExtractor(nil).Extract(crispresso.Locate(s.Dir, nil), Lookup{Row: "G", Column: 5})
	require.NoError(t, err)
	got, ok := v.Get()
	require.True(t, ok)
	assert.InDelta(t, 5.0, got, 1e-9)
}

func TestExtract_Reverse(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1").
		WriteQuantWindow(20, map[string][]float64{"C": ramp(20, 0.02)})

	rev, _ := guide.BasesFor(guide.ABE, guide.Reverse)
	l, err := LookupFor(guide.Reverse, rev, 3, 20)
	require.NoError(t, err)

	v, err := NewExtractor(nil).Extract(crispresso.Locate(s.Dir, nil), l)
	require.NoError(t, err)
	got, ok := v.Get()
	require.True(t, ok)
	assert.InDelta(t, 36.0, got, 1e-9)
}

func TestExtract_ColumnOutOfRange(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1").
		WriteQuantWindow(10, map[string][]float64{"G": ramp(10, 0.01)})

	core, logs := observer.New(zap.WarnLevel)
	v, err := NewExtractor(zap.New(core)).Extract(crispresso.Locate(s.Dir, nil), Lookup{Row: "G", Column: 15})
	require.NoError(t, err)
	assert.False(t, v.Valid())
	assert.Equal(t, 1, logs.FilterMessageSnippet("outside the quantification window").Len())
}

func TestExtract_RowMissing(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1").
		WriteQuantWindow(10, map[string][]float64{"A": ramp(10, 0.01)})

	v, err := NewExtractor(nil).Extract(crispresso.Locate(s.Dir, nil), Lookup{Row: "G", Column: 1})
	require.NoError(t, err)
	assert.False(t, v.Valid())
}

func TestExtract_TableMissing(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1")

	v, err := NewExtractor(nil).Extract(crispresso.Locate(s.Dir, nil), Lookup{Row: "G", Column: 1})
	require.NoError(t, err)
	assert.False(t, v.Valid())
}

func TestExtract_ZeroIsAvailable(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1").
		WriteQuantWindow(3, map[string][]float64{"G": {0, 0, 0}})

	v, err := NewExtractor(nil).Extract(crispresso.Locate(s.Dir, nil), Lookup{Row: "G", Column: 2})
	require.NoError(t, err)
	got, ok := v.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.0, got)
}
