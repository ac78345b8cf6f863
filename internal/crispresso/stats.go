package crispresso

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/basequant/aq/internal/metrics"
)

// Column offsets in the first data row of the mapping statistics table.
const (
	statsTotalCol   = 1
	statsAlignedCol = 2
)

// ReadMappingStats returns the total and aligned read counts of a sample.
// Counts are unknown when the output directory, the file, or its data row
// is missing or unparsable.
func ReadMappingStats(out Output, logger *zap.Logger) metrics.ReadCounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	path, ok := out.FindArtifact(logger, MappingStatisticsName)
	if !ok {
		return metrics.ReadCounts{}
	}

	_, rows, err := ReadTable(path)
	if err != nil {
		logger.Warn("read mapping statistics", zap.String("path", path), zap.Error(err))
		return metrics.ReadCounts{}
	}
	if len(rows) == 0 || len(rows[0]) <= statsAlignedCol {
		logger.Warn("mapping statistics has no data row", zap.String("path", path))
		return metrics.ReadCounts{}
	}

	total, err1 := strconv.ParseInt(strings.TrimSpace(rows[0][statsTotalCol]), 10, 64)
	aligned, err2 := strconv.ParseInt(strings.TrimSpace(rows[0][statsAlignedCol]), 10, 64)
	if err1 != nil || err2 != nil {
		logger.Warn("mapping statistics counts are not integers",
			zap.String("path", path), zap.Strings("row", rows[0]))
		return metrics.ReadCounts{}
	}
	return metrics.ReadCounts{Aligned: aligned, Total: total, Known: true}
}
