package alleles

import (
	"encoding/csv"
	"fmt"
	"path/filepath"

	"github.com/shenwei356/xopen"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/basequant/aq/internal/crispresso"
	"github.com/basequant/aq/internal/metrics"
)

// Audit file prefixes.
const (
	ReadQuantPrefix         = "AQ_read_quant"
	OneSeqWindowPrefix      = "AQ_oneseq_window"
	OneSeqProtospacerPrefix = "AQ_oneseq_protospacer"
)

const utf8BOM = "\ufeff"

// Result holds the summed read percentages of one sample.
type Result struct {
	WithBystanders    metrics.Value // rows matching any search string
	WithoutBystanders metrics.Value // rows matching the primary search string
	Table             string        // allele table that was read, empty when missing
	AuditAny          string
	AuditPrimary      string
	Malformed         int
}

// Matcher filters a sample's allele frequency table.
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a matcher. A nil logger discards output.
func NewMatcher(l *zap.Logger) *Matcher {
	if l == nil {
		l = zap.NewNop()
	}
	return &Matcher{logger: l}
}

// AuditPaths returns the two audit files written for prefix in sampleDir.
func AuditPaths(sampleDir, prefix string) (withBystanders, withoutBystanders string) {
	return filepath.Join(sampleDir, prefix+"_w_bystanders.csv"),
		filepath.Join(sampleDir, prefix+"_wo_bystanders.csv")
}

// Match filters the sample's allele frequency table for search, writes the
// two audit files, and sums the last column of each partition. When the
// CRISPResso output or the table is missing, both sums are NA and the error
// is nil. The audit files are written to the sample directory. A table
// without a header is an error.
func (m *Matcher) Match(out crispresso.Output, search []string, prefix string) (Result, error) {
	res := Result{WithBystanders: metrics.NA, WithoutBystanders: metrics.NA}

	path, ok := out.FindArtifact(m.logger,
		crispresso.AlleleTablePattern, crispresso.AlleleTableGzPattern)
	if !ok {
		return res, nil
	}
	res.Table = path

	header, rows, err := crispresso.ReadTable(path)
	if err != nil {
		return res, fmt.Errorf("read allele table: %w", err)
	}

	part := Filter(rows, search)

	res.AuditAny, res.AuditPrimary = AuditPaths(out.SampleDir, prefix)
	if err := WriteAudit(res.AuditAny, header, part.Any); err != nil {
		return res, err
	}
	if err := WriteAudit(res.AuditPrimary, header, part.Primary); err != nil {
		return res, err
	}
	m.logger.Debug("filtered rows written",
		zap.String("with_bystanders", res.AuditAny),
		zap.String("without_bystanders", res.AuditPrimary),
		zap.Int("rows_any", len(part.Any)),
		zap.Int("rows_primary", len(part.Primary)))

	sumAny, badAny := SumWeights(part.Any)
	sumPrimary, _ := SumWeights(part.Primary)
	for _, row := range badAny {
		m.logger.Warn("skipping row with non-numeric read percentage",
			zap.String("table", path),
			zap.String("value", lastField(row)))
	}
	res.Malformed = len(badAny)
	res.WithBystanders = metrics.Of(sumAny)
	res.WithoutBystanders = metrics.Of(sumPrimary)
	return res, nil
}

// WriteAudit writes rows as CSV with the original header. Paths ending in
// .gz are compressed.
func WriteAudit(path string, header []string, rows [][]string) (err error) {
	f, err := xopen.Wopen(path)
	if err != nil {
		return fmt.Errorf("create audit file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write audit header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write audit rows: %w", err)
	}
	return nil
}

// ReadAudit reads an audit file written by WriteAudit.
func ReadAudit(path string) (header []string, rows [][]string, err error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if b, err := f.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		f.Discard(len(utf8BOM))
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read audit file: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, &crispresso.ParseError{Path: path, Line: 1, Message: "no header line found"}
	}
	return all[0], all[1:], nil
}

func lastField(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[len(row)-1]
}
