package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/basequant/aq/internal/metrics"
)

// PrismReplicates is the number of replicate columns per metric.
const PrismReplicates = 3

var (
	replicatePattern = regexp.MustCompile(`[-_]([0-9]+)_L\d{3}`)
	replicateSuffix  = regexp.MustCompile(`[-_]([0-9]+)_L\d{3}.*`)
)

// prismFields are the per-replicate metrics, in column order.
var prismFields = []struct {
	name  string
	value func(m *metrics.SampleMetrics) string
}{
	{"directory", func(m *metrics.SampleMetrics) string { return m.Directory }},
	{"reads_aligned", func(m *metrics.SampleMetrics) string { return m.Reads.AlignedString() }},
	{"reads_total", func(m *metrics.SampleMetrics) string { return m.Reads.TotalString() }},
	{"correction_without_bystanders", func(m *metrics.SampleMetrics) string { return m.CorrectionWithoutBystanders.String() }},
	{"w_bystanders_less_wo_bystanders", func(m *metrics.SampleMetrics) string { return m.WBystandersLessWoBystanders.String() }},
	{"indep_less_w_bystanders", func(m *metrics.SampleMetrics) string { return m.IndepLessWBystanders.String() }},
}

// Replicate splits a directory name into its base sample and replicate
// number. Names without a "_<n>_L<lane>" or "-<n>_L<lane>" part are
// replicate "1" of themselves.
func Replicate(dir string) (base, rep string) {
	rep = "1"
	if m := replicatePattern.FindStringSubmatch(dir); m != nil {
		rep = m[1]
	}
	return replicateSuffix.ReplaceAllString(dir, ""), rep
}

// PrismColumns returns the header of the Prism table.
func PrismColumns() []string {
	cols := []string{"base_sample"}
	for _, f := range prismFields {
		for r := 1; r <= PrismReplicates; r++ {
			cols = append(cols, fmt.Sprintf("%s_rep%d", f.name, r))
		}
	}
	return cols
}

// PrismWriter pivots sample records into one row per base sample with a
// column group per replicate, the layout GraphPad Prism imports as grouped
// data.
type PrismWriter struct {
	w      *csv.Writer
	logger *zap.Logger
}

// NewPrismWriter creates a new Prism writer.
func NewPrismWriter(w io.Writer) *PrismWriter {
	return &PrismWriter{w: csv.NewWriter(w), logger: zap.NewNop()}
}

// SetLogger sets the logger for warning messages.
func (pw *PrismWriter) SetLogger(l *zap.Logger) {
	pw.logger = l
}

// WriteAll writes the header and the pivoted records. Replicates above
// PrismReplicates and repeated replicates of a base sample are dropped
// with a warning. Missing cells are left empty.
func (pw *PrismWriter) WriteAll(records []*metrics.SampleMetrics) error {
	groups := make(map[string]map[string]*metrics.SampleMetrics)
	for _, m := range records {
		if m.Directory == "" {
			continue
		}
		base, rep := Replicate(m.Directory)
		g, ok := groups[base]
		if !ok {
			g = make(map[string]*metrics.SampleMetrics)
			groups[base] = g
		}
		if prev, dup := g[rep]; dup {
			pw.logger.Warn("duplicate replicate; keeping the first",
				zap.String("base_sample", base),
				zap.String("rep", rep),
				zap.String("kept", prev.Directory),
				zap.String("dropped", m.Directory))
			continue
		}
		g[rep] = m
	}

	bases := make([]string, 0, len(groups))
	for b := range groups {
		bases = append(bases, b)
	}
	sort.Strings(bases)

	if err := pw.w.Write(PrismColumns()); err != nil {
		return err
	}
	for _, base := range bases {
		g := groups[base]
		for _, rep := range sortedReplicates(g) {
			if !validReplicate(rep) {
				pw.logger.Warn("replicate outside the Prism columns; dropped",
					zap.String("base_sample", base),
					zap.String("rep", rep),
					zap.String("directory", g[rep].Directory))
			}
		}

		row := []string{base}
		for _, f := range prismFields {
			for r := 1; r <= PrismReplicates; r++ {
				cell := ""
				if m, ok := g[fmt.Sprint(r)]; ok {
					cell = f.value(m)
				}
				row = append(row, cell)
			}
		}
		if err := pw.w.Write(row); err != nil {
			return err
		}
	}
	pw.w.Flush()
	return pw.w.Error()
}

// sortedReplicates returns the replicate numbers of g in numeric order.
func sortedReplicates(g map[string]*metrics.SampleMetrics) []string {
	reps := make([]string, 0, len(g))
	for rep := range g {
		reps = append(reps, rep)
	}
	sort.Slice(reps, func(i, j int) bool {
		if len(reps[i]) != len(reps[j]) {
			return len(reps[i]) < len(reps[j])
		}
		return reps[i] < reps[j]
	})
	return reps
}

func validReplicate(rep string) bool {
	for r := 1; r <= PrismReplicates; r++ {
		if rep == fmt.Sprint(r) {
			return true
		}
	}
	return false
}
