// Package crispressotest builds CRISPResso output directories for tests.
package crispressotest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AlleleRow is one row of an allele frequency table fixture.
type AlleleRow struct {
	Aligned string
	Percent string
}

// Sample is a sample directory under construction.
type Sample struct {
	t      *testing.T
	Dir    string
	OutDir string
}

// NewSample creates root/name with a CRISPResso_on_<name> output directory.
func NewSample(t *testing.T, root, name string) *Sample {
	t.Helper()
	dir := filepath.Join(root, name)
	out := filepath.Join(dir, "CRISPResso_on_"+name)
	require.NoError(t, os.MkdirAll(out, 0755))
	return &Sample{t: t, Dir: dir, OutDir: out}
}

// WriteAlleles writes Alleles_frequency_table.txt.
func (s *Sample) WriteAlleles(rows ...AlleleRow) *Sample {
	s.t.Helper()
	var sb strings.Builder
	sb.WriteString("Aligned_Sequence\tReference_Sequence\tUnedited\tn_deleted\tn_inserted\tn_mutated\t#Reads\t%Reads\n")
	for i, r := range rows {
		fmt.Fprintf(&sb, "%s\t%s\tFalse\t0\t0\t1\t%d\t%s\n", r.Aligned, r.Aligned, 100-i, r.Percent)
	}
	return s.WriteFile("Alleles_frequency_table.txt", sb.String())
}

// WriteQuantWindow writes the quantification window table. Each entry of
// rows maps a base letter to its per-position fractions.
func (s *Sample) WriteQuantWindow(width int, rows map[string][]float64) *Sample {
	s.t.Helper()
	var sb strings.Builder
	sb.WriteString("Nucleotide")
	for i := 1; i <= width; i++ {
		fmt.Fprintf(&sb, "\tP%d", i)
	}
	sb.WriteString("\n")
	for _, base := range []string{"A", "C", "G", "T", "N", "-"} {
		vals, ok := rows[base]
		if !ok {
			continue
		}
		sb.WriteString(base)
		for _, v := range vals {
			fmt.Fprintf(&sb, "\t%g", v)
		}
		sb.WriteString("\n")
	}
	return s.WriteFile("Quantification_window_nucleotide_percentage_table.txt", sb.String())
}

// WriteMappingStats writes CRISPResso_mapping_statistics.txt.
func (s *Sample) WriteMappingStats(total, aligned int) *Sample {
	s.t.Helper()
	content := "READS IN INPUTS\tREADS AFTER PREPROCESSING\tREADS ALIGNED\tN_COMPUTED_ALN\n" +
		fmt.Sprintf("%d\t%d\t%d\t0\n", total+5, total, aligned)
	return s.WriteFile("CRISPResso_mapping_statistics.txt", content)
}

// WriteFile writes an arbitrary file into the output directory.
func (s *Sample) WriteFile(name, content string) *Sample {
	s.t.Helper()
	require.NoError(s.t, os.WriteFile(filepath.Join(s.OutDir, name), []byte(content), 0644))
	return s
}
