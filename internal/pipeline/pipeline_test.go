package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/basequant/aq/internal/alleles"
	"github.com/basequant/aq/internal/amplicon"
	"github.com/basequant/aq/internal/crispresso/crispressotest"
	"github.com/basequant/aq/internal/guide"
	"github.com/basequant/aq/internal/metrics"
)

const listHeader = "name,protospacer_or_PEG,editor,guide_orientation_relative_to_amplicon,amplicon,tolerated_edits,intended_edit\n"

const (
	hbbGuide     = "AAGTAAGTAAGATCAAGTAA"
	hbbPrimary   = "AAGTGAGTAAGATCAAGTAA" // position 5 corrected
	hbbBystander = "AAGTGAGTAGGATCAAGTAA" // positions 5 and 10
)

func loadList(t *testing.T, rows ...string) *amplicon.List {
	t.Helper()
	list, err := amplicon.NewLoader(nil).Parse(strings.NewReader(listHeader + strings.Join(rows, "\n") + "\n"))
	require.NoError(t, err)
	return list
}

func abeSample(t *testing.T, root, name string) *crispressotest.Sample {
	t.Helper()
	g := make([]float64, 20)
	g[4] = 0.75
	return crispressotest.NewSample(t, root, name).
		WriteAlleles(
			crispressotest.AlleleRow{Aligned: "CC" + hbbPrimary + "GG", Percent: "50"},
			crispressotest.AlleleRow{Aligned: "CC" + hbbBystander + "GG", Percent: "20"},
			crispressotest.AlleleRow{Aligned: "CC" + hbbGuide + "GG", Percent: "30"},
		).
		WriteQuantWindow(20, map[string][]float64{"G": g}).
		WriteMappingStats(1000, 900)
}

func value(t *testing.T, v metrics.Value) float64 {
	t.Helper()
	f, ok := v.Get()
	require.True(t, ok, "value is NA")
	return f
}

func TestSampleName(t *testing.T) {
	assert.Equal(t, "HBB1_1", SampleName("HBB1_1_L001-ds.5f2e8c"))
	assert.Equal(t, "HBB1_1", SampleName("HBB1_1-ds.5f2e8c"))
	assert.Equal(t, "HBB1_1_L001", SampleName("HBB1_1_L001"))
}

func TestProcess_ABE(t *testing.T) {
	root := t.TempDir()
	s := abeSample(t, root, "HBB1_1_L001-ds.abc")
	p := NewProcessor(loadList(t, "hbb1,"+hbbGuide+",ABE,F,CC"+hbbGuide+"GG,\"10,15\",5"))

	o := p.Process(context.Background(), s.Dir)
	require.NoError(t, o.Err)
	require.NotNil(t, o.Sample)
	m := o.Sample

	assert.Equal(t, "HBB1_1_L001-ds.abc", m.Directory)
	assert.Equal(t, "HBB1_1", m.Sample)
	assert.Equal(t, "HBB1", o.Amplicon)
	assert.Equal(t, metrics.StatusOK, m.Status)
	assert.InDelta(t, 70.0, value(t, m.CorrectionWithBystanders), 1e-9)
	assert.InDelta(t, 50.0, value(t, m.CorrectionWithoutBystanders), 1e-9)
	assert.InDelta(t, 75.0, value(t, m.IndependentCorrection), 1e-9)
	assert.InDelta(t, 5.0, value(t, m.IndepLessWBystanders), 1e-9)
	assert.InDelta(t, 20.0, value(t, m.WBystandersLessWoBystanders), 1e-9)
	assert.Equal(t, metrics.ReadCounts{Aligned: 900, Total: 1000, Known: true}, m.Reads)
	assert.Equal(t, hbbGuide, m.TargetLocus)
	assert.Equal(t, hbbPrimary, m.PerfectCorrection)
	assert.Len(t, m.Variants, 4)

	assert.Equal(t, "Alleles_frequency_table.txt", filepath.Base(o.Table))

	withB, withoutB := alleles.AuditPaths(s.Dir, alleles.ReadQuantPrefix)
	assert.FileExists(t, withB)
	assert.FileExists(t, withoutB)
}

func TestProcess_ABEReverse(t *testing.T) {
	// Guide position 5 (A) lands on position 16 (T) of the reverse
	// complement TTACTTGATCTTACTTACTT.
	rc, err := guide.ReverseComplement(hbbGuide)
	require.NoError(t, err)
	c := make([]float64, 20)
	c[15] = 0.4

	root := t.TempDir()
	s := crispressotest.NewSample(t, root, "REV_2_L001-ds.x").
		WriteAlleles(
			crispressotest.AlleleRow{Aligned: "GG" + rc, Percent: "60"},
			crispressotest.AlleleRow{Aligned: "GGTTACTTGATCTTACTCACTT", Percent: "40"},
		).
		WriteQuantWindow(20, map[string][]float64{"C": c}).
		WriteMappingStats(10, 9)
	p := NewProcessor(loadList(t, "REV,"+hbbGuide+",ABE,R,GG"+rc+",,5"))

	o := p.Process(context.Background(), s.Dir)
	require.NoError(t, o.Err)
	require.NotNil(t, o.Sample)
	assert.Equal(t, hbbGuide, o.Sample.TargetLocus)
	assert.Equal(t, "TTACTTGATCTTACTCACTT", o.Sample.PerfectCorrection)
	assert.InDelta(t, 40.0, value(t, o.Sample.CorrectionWithBystanders), 1e-9)
	assert.InDelta(t, 40.0, value(t, o.Sample.IndependentCorrection), 1e-9)
	assert.InDelta(t, 0.0, value(t, o.Sample.IndepLessWBystanders), 1e-9)
}

func TestProcess_MissingAllelesKeepsRecord(t *testing.T) {
	root := t.TempDir()
	s := crispressotest.NewSample(t, root, "HBB1_3_L001-ds.a")
	p := NewProcessor(loadList(t, "HBB1,"+hbbGuide+",ABE,F,"+hbbGuide+",,5"))

	o := p.Process(context.Background(), s.Dir)
	require.NoError(t, o.Err)
	require.NotNil(t, o.Sample)
	assert.Equal(t, metrics.StatusMissing, o.Sample.Status)
	assert.Empty(t, o.Table)
	assert.False(t, o.Sample.IndepLessWBystanders.Valid())
	assert.False(t, o.Sample.Reads.Known)
}

func TestProcess_OneSeq(t *testing.T) {
	root := t.TempDir()
	s := crispressotest.NewSample(t, root, "OT1_1_L001-ds.q").
		WriteAlleles(
			crispressotest.AlleleRow{Aligned: hbbPrimary, Percent: "10"},            // window edit
			crispressotest.AlleleRow{Aligned: "AAGTAAGTAAGATCGAGTAA", Percent: "5"}, // outside window
			crispressotest.AlleleRow{Aligned: hbbGuide, Percent: "85"},
		).
		WriteMappingStats(200, 150)
	p := NewProcessor(loadList(t, "OT1,"+hbbGuide+",ABE,F,"+hbbGuide+",,ONE-SEQ"))

	o := p.Process(context.Background(), s.Dir)
	require.NoError(t, o.Err)
	require.Nil(t, o.Sample)
	require.NotNil(t, o.OneSeq)

	m := o.OneSeq
	assert.Equal(t, "OT1_1", m.Sample)
	assert.InDelta(t, 10.0, value(t, m.WindowPercent), 1e-9)
	assert.InDelta(t, 15.0, value(t, m.ProtospacerPercent), 1e-9)
	assert.Len(t, m.WindowVariants, 63)        // A at 1,2,5,6,9,10
	assert.Len(t, m.ProtospacerVariants, 2047) // eleven A positions
	assert.Equal(t, int64(150), m.Reads.Aligned)
	assert.Equal(t, "Alleles_frequency_table.txt", filepath.Base(o.Table))

	w, _ := alleles.AuditPaths(s.Dir, alleles.OneSeqWindowPrefix)
	ps, _ := alleles.AuditPaths(s.Dir, alleles.OneSeqProtospacerPrefix)
	assert.FileExists(t, w)
	assert.FileExists(t, ps)
}

func TestProcess_NoOutputDirWarnsOncePerSample(t *testing.T) {
	root := t.TempDir()
	p := NewProcessor(loadList(t,
		"HBB1,"+hbbGuide+",ABE,F,"+hbbGuide+",,5",
		"OT1,"+hbbGuide+",ABE,F,"+hbbGuide+",,ONE-SEQ"))
	core, logs := observer.New(zap.WarnLevel)
	p.SetLogger(zap.New(core))

	for _, name := range []string{"HBB1_1", "OT1_1"} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		o := p.Process(context.Background(), dir)
		require.NoError(t, o.Err)
		assert.True(t, o.Analyzed())
		assert.Empty(t, o.Table)
	}
	assert.Equal(t, 2, logs.FilterMessage("no CRISPResso output directory found").Len())
}

func TestProcess_SkippedEditors(t *testing.T) {
	root := t.TempDir()
	p := NewProcessor(loadList(t,
		"PEX,"+hbbGuide+",PE,F,"+hbbGuide+",,5",
		"CBX,"+hbbGuide+",CBE,F,"+hbbGuide+",,5"))

	for _, name := range []string{"PEX_1", "CBX_1"} {
		s := crispressotest.NewSample(t, root, name)
		o := p.Process(context.Background(), s.Dir)
		assert.NoError(t, o.Err)
		assert.False(t, o.Analyzed())
		assert.NotEmpty(t, o.Skipped)
	}
}

func TestProcess_NoMatchingAmplicon(t *testing.T) {
	s := crispressotest.NewSample(t, t.TempDir(), "MYSTERY_1")
	o := NewProcessor(loadList(t, "HBB1,"+hbbGuide+",ABE,F,"+hbbGuide+",,5")).
		Process(context.Background(), s.Dir)
	assert.NoError(t, o.Err)
	assert.Equal(t, "no matching amplicon", o.Skipped)
}

func TestProcess_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad editor", "BAD,AAGTAAGTAAGATCAAGTAA,XBE,F,ACGT,,5"},
		{"bad orientation", "BAD,AAGTAAGTAAGATCAAGTAA,ABE,X,ACGT,,5"},
		{"intended not substrate", "BAD,AAGTCAGTAAGATCAAGTAA,ABE,F,ACGT,,5"},
		{"missing intended", "BAD,AAGTAAGTAAGATCAAGTAA,ABE,F,ACGT,,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := crispressotest.NewSample(t, t.TempDir(), "BAD_1")
			o := NewProcessor(loadList(t, tt.row)).Process(context.Background(), s.Dir)
			require.Error(t, o.Err)
			var ve *guide.ValidationError
			assert.True(t, errors.As(o.Err, &ve), "got %v", o.Err)
		})
	}
}

func TestBatch_Run(t *testing.T) {
	root := t.TempDir()
	abeSample(t, root, "HBB1_1_L001-ds.a")
	abeSample(t, root, "HBB1_2_L001-ds.b")
	crispressotest.NewSample(t, root, "UNKNOWN_1")
	crispressotest.NewSample(t, root, "BAD_1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scripts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "amplicon_list.csv"), []byte("x"), 0644))

	list := loadList(t,
		"HBB1,"+hbbGuide+",ABE,F,"+hbbGuide+",\"10,15\",5",
		"BAD,"+hbbGuide+",ABE,Q,"+hbbGuide+",,5")

	sum, err := NewBatch(NewProcessor(list), 1).Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"BAD_1", "HBB1_1_L001-ds.a", "HBB1_2_L001-ds.b", "UNKNOWN_1"}, sum.Dirs)
	assert.Contains(t, sum.Failed, "BAD_1")
	assert.Contains(t, sum.Skipped, "UNKNOWN_1")
	assert.Len(t, sum.Tables, 2)
	assert.Error(t, sum.Err())

	samples := sum.Results.Samples()
	require.Len(t, samples, 4)
	var dirs []string
	for _, m := range samples {
		dirs = append(dirs, m.Directory)
	}
	assert.Equal(t, sum.Dirs, dirs)

	assert.Equal(t, metrics.StatusNotAnalyzed, samples[0].Status)
	assert.Equal(t, NotAnalyzedNote, samples[0].CorrectedLocusWithBystanders())
	assert.Equal(t, metrics.StatusOK, samples[1].Status)
	assert.Equal(t, metrics.StatusOK, samples[2].Status)
	assert.Equal(t, metrics.StatusNotAnalyzed, samples[3].Status)
}

func TestBatch_ParallelMatchesSequential(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 12; i++ {
		abeSample(t, root, fmt.Sprintf("HBB1_%d_L001-ds.x", i))
	}
	list := loadList(t, "HBB1,"+hbbGuide+",ABE,F,"+hbbGuide+",\"10,15\",5")

	seq, err := NewBatch(NewProcessor(list), 1).Run(context.Background(), root)
	require.NoError(t, err)
	par, err := NewBatch(NewProcessor(list), 4).Run(context.Background(), root)
	require.NoError(t, err)

	a, b := seq.Results.Samples(), par.Results.Samples()
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Directory, b[i].Directory)
		assert.Equal(t, a[i].CorrectionWithBystanders, b[i].CorrectionWithBystanders)
		assert.Equal(t, a[i].IndependentCorrection, b[i].IndependentCorrection)
	}
}

func TestBatch_SkipDirs(t *testing.T) {
	root := t.TempDir()
	abeSample(t, root, "HBB1_1")
	abeSample(t, root, "HBB1_2")

	b := NewBatch(NewProcessor(loadList(t, "HBB1,"+hbbGuide+",ABE,F,"+hbbGuide+",,5")), 1)
	b.SetSkipDirs([]string{"HBB1_2"})
	dirs, err := b.SampleDirs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"HBB1_1"}, dirs)
}

func TestBatch_Cancelled(t *testing.T) {
	root := t.TempDir()
	abeSample(t, root, "HBB1_1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBatch(NewProcessor(loadList(t, "HBB1,"+hbbGuide+",ABE,F,"+hbbGuide+",,5")), 1).Run(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrderedCollect(t *testing.T) {
	ch := make(chan WorkResult, 5)
	for _, seq := range []int{3, 1, 0, 4, 2} {
		ch <- WorkResult{Seq: seq}
	}
	close(ch)

	var got []int
	require.NoError(t, OrderedCollect(ch, func(r WorkResult) error {
		got = append(got, r.Seq)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestOrderedCollect_StopsOnError(t *testing.T) {
	ch := make(chan WorkResult, 3)
	for i := 0; i < 3; i++ {
		ch <- WorkResult{Seq: i}
	}
	close(ch)

	boom := errors.New("boom")
	n := 0
	err := OrderedCollect(ch, func(WorkResult) error {
		n++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}
