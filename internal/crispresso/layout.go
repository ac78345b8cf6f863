// Package crispresso locates and reads the per-sample output of the
// CRISPResso alignment tool, and runs the tool.
package crispresso

import (
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// Output artifact names.
const (
	OutputDirPattern      = "CRISPResso_on_*"
	AlleleTablePattern    = "Alleles_frequency_table*.txt"
	AlleleTableGzPattern  = "Alleles_frequency_table*.txt.gz"
	QuantWindowTableName  = "Quantification_window_nucleotide_percentage_table.txt"
	MappingStatisticsName = "CRISPResso_mapping_statistics.txt"
)

// FindOutputDir returns the first CRISPResso output directory inside
// sampleDir in lexical order. Additional matches are logged and ignored.
func FindOutputDir(sampleDir string, logger *zap.Logger) (string, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	matches, err := filepath.Glob(filepath.Join(sampleDir, OutputDirPattern))
	if err != nil {
		return "", false
	}
	sort.Strings(matches)

	var dirs []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	if len(dirs) == 0 {
		logger.Warn("no CRISPResso output directory found", zap.String("dir", sampleDir))
		return "", false
	}
	if len(dirs) > 1 {
		logger.Warn("multiple CRISPResso output directories; using the first",
			zap.String("using", filepath.Base(dirs[0])),
			zap.Strings("ignored", dirs[1:]))
	}
	return dirs[0], true
}

// FindFile returns the first regular file in dir matching any of the
// patterns, trying patterns in order.
func FindFile(dir string, patterns ...string) (string, bool) {
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
				return m, true
			}
		}
	}
	return "", false
}

// Output is a sample directory together with its CRISPResso output
// directory. Dir is empty when the sample has none.
type Output struct {
	SampleDir string
	Dir       string
}

// Locate resolves the CRISPResso output directory of sampleDir. Callers
// resolve it once per sample and read every artifact through the result.
func Locate(sampleDir string, logger *zap.Logger) Output {
	dir, _ := FindOutputDir(sampleDir, logger)
	return Output{SampleDir: sampleDir, Dir: dir}
}

// Found reports whether the sample has a CRISPResso output directory.
func (o Output) Found() bool {
	return o.Dir != ""
}

// FindArtifact locates a file inside the output directory. It reports false
// when the directory is missing, and logs a diagnostic when only the file is.
func (o Output) FindArtifact(logger *zap.Logger, patterns ...string) (string, bool) {
	if !o.Found() {
		return "", false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	path, ok := FindFile(o.Dir, patterns...)
	if !ok {
		logger.Warn("CRISPResso artifact not found",
			zap.String("dir", o.Dir),
			zap.Strings("patterns", patterns))
		return "", false
	}
	return path, true
}
