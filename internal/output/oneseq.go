package output

import (
	"encoding/csv"
	"io"

	"github.com/basequant/aq/internal/metrics"
)

// OneSeqColumns is the header of the ONE-seq summary.
var OneSeqColumns = []string{
	"directory",
	"sample",
	"reads_aligned",
	"reads_total",
	"Percent_of_reads_with_A>G_in_first_10bp",
	"Percent_of_reads_with_A>G_in_protospacer",
	"guide_seq",
	"A>G_10bp_search_sequences",
	"A>G_any_search_sequences",
}

// OneSeqWriter writes ONE-seq survey records.
type OneSeqWriter struct {
	w *csv.Writer
}

// NewOneSeqWriter creates a new ONE-seq writer.
func NewOneSeqWriter(w io.Writer) *OneSeqWriter {
	return &OneSeqWriter{w: csv.NewWriter(w)}
}

// WriteAll writes the header followed by every record.
func (ow *OneSeqWriter) WriteAll(records []*metrics.OneSeqMetrics) error {
	if err := ow.w.Write(OneSeqColumns); err != nil {
		return err
	}
	for _, m := range records {
		if err := ow.w.Write([]string{
			m.Directory,
			m.Sample,
			m.Reads.AlignedString(),
			m.Reads.TotalString(),
			m.WindowPercent.String(),
			m.ProtospacerPercent.String(),
			m.Guide,
			m.WindowSearch(),
			m.ProtospacerSearch(),
		}); err != nil {
			return err
		}
	}
	ow.w.Flush()
	return ow.w.Error()
}
