// Package correction reads the independent correction rate of a sample from
// CRISPResso's per-position nucleotide percentage table.
package correction

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/basequant/aq/internal/crispresso"
	"github.com/basequant/aq/internal/guide"
	"github.com/basequant/aq/internal/metrics"
)

// Lookup identifies the cell holding the independent correction.
type Lookup struct {
	Row    string // converted base, e.g. "G"
	Column int    // 1-based position in the quantification window
}

// LookupFor returns the table cell for an intended edit given in the
// guide's own orientation. Reverse guides are mirrored over windowLength.
func LookupFor(o guide.Orientation, b guide.Bases, intended, windowLength int) (Lookup, error) {
	switch o {
	case guide.Forward:
		return Lookup{Row: string(b.Converted), Column: intended}, nil
	case guide.Reverse:
		return Lookup{Row: string(b.Converted), Column: guide.MirrorPosition(intended, windowLength)}, nil
	default:
		return Lookup{}, &guide.ValidationError{Field: "orientation", Value: string(o), Message: "must be 'F' or 'R'"}
	}
}

// Extractor reads the quantification window table.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an extractor. A nil logger discards output.
func NewExtractor(l *zap.Logger) *Extractor {
	if l == nil {
		l = zap.NewNop()
	}
	return &Extractor{logger: l}
}

// Extract returns 100 × the fraction of reads carrying the converted base at
// the intended position. It is NA when the table, the row, or the column is
// missing; a missing column means CRISPResso ran without a quantification
// window because the window reached past the end of the amplicon.
func (e *Extractor) Extract(out crispresso.Output, l Lookup) (metrics.Value, error) {
	path, ok := out.FindArtifact(e.logger, crispresso.QuantWindowTableName)
	if !ok {
		return metrics.NA, nil
	}

	_, rows, err := crispresso.ReadTable(path)
	if err != nil {
		return metrics.NA, fmt.Errorf("read quantification window table: %w", err)
	}
	return e.lookup(path, rows, l), nil
}

func (e *Extractor) lookup(path string, rows [][]string, l Lookup) metrics.Value {
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) != l.Row {
			continue
		}
		if l.Column < 1 || l.Column >= len(row) {
			e.logger.Warn("intended position outside the quantification window; CRISPResso likely ran without a window",
				zap.String("table", path),
				zap.Int("column", l.Column),
				zap.Int("positions", len(row)-1))
			return metrics.NA
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(row[l.Column]), 64)
		if err != nil {
			e.logger.Warn("non-numeric quantification cell",
				zap.String("table", path),
				zap.Int("column", l.Column),
				zap.String("value", row[l.Column]))
			return metrics.NA
		}
		pct := f * 100
		e.logger.Debug("independent correction", zap.String("row", l.Row), zap.Int("column", l.Column), zap.Float64("percent", pct))
		return metrics.Of(pct)
	}

	e.logger.Warn("converted base row not found", zap.String("table", path), zap.String("row", l.Row))
	return metrics.NA
}
