package alleles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/basequant/aq/internal/crispresso"
	"github.com/basequant/aq/internal/crispresso/crispressotest"
)

var search = []string{"AAGTGAGT", "AAGTGAGC", "GAGTGAGT"}

func fixtureRows() []crispressotest.AlleleRow {
	return []crispressotest.AlleleRow{
		{Aligned: "CCAAGTGAGTCC", Percent: "40.5"},  // primary
		{Aligned: "CCAAGTGAGCCC", Percent: "10.25"}, // bystander only
		{Aligned: "CCAAGTAAGTCC", Percent: "30"},    // unedited
		{Aligned: "GAGTGAGTAAAA", Percent: "5"},     // bystander only
		{Aligned: "TTAAGTGAGTTT", Percent: "n/a"},   // primary, malformed weight
		{Aligned: "AAGTGAGTGG", Percent: "-1"},      // primary, negative weight
	}
}

func TestFilter_PrimaryIsSubsetOfAny(t *testing.T) {
	rows := [][]string{
		{"XXAAGTGAGTXX", "1"},
		{"AAGTGAGC", "2"},
		{"nothing", "3"},
		{"GAGTGAGTAAGTGAGT", "4"},
	}
	p := Filter(rows, search)

	assert.Len(t, p.Any, 3)
	assert.Len(t, p.Primary, 2)
	for _, row := range p.Primary {
		assert.Contains(t, p.Any, row)
	}
}

func TestFilter_Empty(t *testing.T) {
	p := Filter([][]string{{"A", "1"}}, nil)
	assert.Empty(t, p.Any)
	assert.Empty(t, p.Primary)

	p = Filter([][]string{{}}, []string{"A"})
	assert.Empty(t, p.Any)
}

func TestSumWeights(t *testing.T) {
	rows := [][]string{
		{"a", "1.5"},
		{"b", "2"},
		{"c", "abc"},
		{"d", "-3"},
		{"e", "1e3"},
		{"f", "1.2.3"},
		{"g", "."},
		{"h", " 0.5 "},
		{},
	}
	sum, bad := SumWeights(rows)
	assert.InDelta(t, 4.0, sum, 1e-9)
	assert.Len(t, bad, 6)
}

func TestMatch(t *testing.T) {
	root := t.TempDir()
	s := crispressotest.NewSample(t, root, "S1").WriteAlleles(fixtureRows()...)

	core, logs := observer.New(zap.WarnLevel)
	res, err := NewMatcher(zap.New(core)).Match(crispresso.Locate(s.Dir, nil), search, ReadQuantPrefix)
	require.NoError(t, err)

	got, ok := res.WithBystanders.Get()
	require.True(t, ok)
	assert.InDelta(t, 40.5+10.25+5, got, 1e-9)

	got, ok = res.WithoutBystanders.Get()
	require.True(t, ok)
	assert.InDelta(t, 40.5, got, 1e-9)

	assert.Equal(t, 2, res.Malformed)
	assert.Equal(t, 2, logs.Len())

	assert.FileExists(t, filepath.Join(s.Dir, "AQ_read_quant_w_bystanders.csv"))
	assert.FileExists(t, filepath.Join(s.Dir, "AQ_read_quant_wo_bystanders.csv"))
}

func TestMatch_AuditRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := crispressotest.NewSample(t, root, "S1").WriteAlleles(fixtureRows()...)

	res, err := NewMatcher(nil).Match(crispresso.Locate(s.Dir, nil), search, ReadQuantPrefix)
	require.NoError(t, err)

	header, anyRows, err := ReadAudit(res.AuditAny)
	require.NoError(t, err)
	assert.Equal(t, "Aligned_Sequence", header[0])
	assert.Len(t, anyRows, 5)

	_, primaryRows, err := ReadAudit(res.AuditPrimary)
	require.NoError(t, err)
	assert.Len(t, primaryRows, 3)

	// Filtering the audit tables again reproduces them exactly.
	again := Filter(anyRows, search)
	assert.Equal(t, anyRows, again.Any)
	assert.Equal(t, primaryRows, again.Primary)

	again = Filter(primaryRows, search)
	assert.Equal(t, primaryRows, again.Primary)
	assert.Equal(t, primaryRows, again.Any)
}

func TestMatch_NoOutputDirIsNA(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "S1")
	require.NoError(t, os.MkdirAll(dir, 0755))

	res, err := NewMatcher(nil).Match(crispresso.Locate(dir, nil), search, ReadQuantPrefix)
	require.NoError(t, err)
	assert.False(t, res.WithBystanders.Valid())
	assert.False(t, res.WithoutBystanders.Valid())
	assert.NoFileExists(t, filepath.Join(dir, "AQ_read_quant_w_bystanders.csv"))
}

func TestMatch_NoTableIsNA(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1")

	res, err := NewMatcher(nil).Match(crispresso.Locate(s.Dir, nil), search, ReadQuantPrefix)
	require.NoError(t, err)
	assert.False(t, res.WithBystanders.Valid())
	assert.Empty(t, res.Table)
}

func TestMatch_NoMatchesIsZeroNotNA(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1").
		WriteAlleles(crispressotest.AlleleRow{Aligned: "CCCC", Percent: "100"})

	res, err := NewMatcher(nil).Match(crispresso.Locate(s.Dir, nil), search, ReadQuantPrefix)
	require.NoError(t, err)
	assert.True(t, res.WithBystanders.Valid())
	got, _ := res.WithBystanders.Get()
	assert.Equal(t, 0.0, got)
}

func TestMatch_HeaderlessTableIsError(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "S1").
		WriteFile("Alleles_frequency_table.txt", "")

	_, err := NewMatcher(nil).Match(crispresso.Locate(s.Dir, nil), search, ReadQuantPrefix)
	assert.Error(t, err)
}

func TestWriteAudit_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv.gz")
	rows := [][]string{{"ACGT", "1,5"}, {"GG\"A", "2"}}
	require.NoError(t, WriteAudit(path, []string{"seq", "pct"}, rows))

	header, got, err := ReadAudit(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"seq", "pct"}, header)
	assert.Equal(t, rows, got)
}
