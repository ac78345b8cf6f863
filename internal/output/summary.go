// Package output writes quantification reports.
package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shenwei356/xopen"
	"go.uber.org/multierr"

	"github.com/basequant/aq/internal/metrics"
)

// Report file names written to the working directory.
const (
	SummaryFileName = "quantification_summary.csv"
	PrismFileName   = "prism_formatted_output.csv"
	OneSeqFileName  = "oneseq_summary.csv"
)

// SummaryColumns is the header of the quantification summary.
var SummaryColumns = []string{
	"directory",
	"reads_aligned",
	"reads_total",
	"correction_with_bystanders",
	"correction_without_bystanders",
	"independent_correction",
	"indep_less_w_bystanders",
	"w_bystanders_less_wo_bystanders",
	"target_locus",
	"perfect_correction",
	"corrected_locus_with_bystanders",
}

// SummaryWriter writes one CSV row per sample record.
type SummaryWriter struct {
	w *csv.Writer
}

// NewSummaryWriter creates a new summary writer.
func NewSummaryWriter(w io.Writer) *SummaryWriter {
	return &SummaryWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header line.
func (sw *SummaryWriter) WriteHeader() error {
	return sw.w.Write(SummaryColumns)
}

// Write writes a single record. NA values are rendered as "NA".
func (sw *SummaryWriter) Write(m *metrics.SampleMetrics) error {
	return sw.w.Write([]string{
		m.Directory,
		m.Reads.AlignedString(),
		m.Reads.TotalString(),
		m.CorrectionWithBystanders.String(),
		m.CorrectionWithoutBystanders.String(),
		m.IndependentCorrection.String(),
		m.IndepLessWBystanders.String(),
		m.WBystandersLessWoBystanders.String(),
		m.TargetLocus,
		m.PerfectCorrection,
		m.CorrectedLocusWithBystanders(),
	})
}

// WriteAll writes the header followed by every record.
func (sw *SummaryWriter) WriteAll(records []*metrics.SampleMetrics) error {
	if err := sw.WriteHeader(); err != nil {
		return err
	}
	for _, m := range records {
		if err := sw.Write(m); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// Flush flushes any buffered output.
func (sw *SummaryWriter) Flush() error {
	sw.w.Flush()
	return sw.w.Error()
}

// CreateFile opens path for writing, compressed when it ends in .gz, passes
// it to fn, and closes it.
func CreateFile(path string, fn func(w io.Writer) error) (err error) {
	f, err := xopen.Wopen(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
