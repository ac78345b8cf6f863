// Package alleles filters CRISPResso allele frequency tables for edited
// sequence variants and sums their read percentages.
package alleles

import (
	"strconv"
	"strings"
)

// Partition is the result of filtering table rows against search strings.
// Any holds rows whose sequence contains any search string; Primary holds
// rows whose sequence contains the first search string. Every row in
// Primary is also in Any.
type Partition struct {
	Any     [][]string
	Primary [][]string
}

// Filter partitions rows by their first column. Row order is preserved.
func Filter(rows [][]string, search []string) Partition {
	var p Partition
	if len(search) == 0 {
		return p
	}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		seq := row[0]
		for _, s := range search {
			if strings.Contains(seq, s) {
				p.Any = append(p.Any, row)
				break
			}
		}
		if strings.Contains(seq, search[0]) {
			p.Primary = append(p.Primary, row)
		}
	}
	return p
}

// SumWeights sums the last column of rows. Rows whose last column is not a
// non-negative decimal number are skipped and returned as malformed.
func SumWeights(rows [][]string) (sum float64, malformed [][]string) {
	for _, row := range rows {
		w, ok := parseWeight(row)
		if !ok {
			malformed = append(malformed, row)
			continue
		}
		sum += w
	}
	return sum, malformed
}

// parseWeight accepts digits with at most one decimal point; signs,
// exponents, NaN and Inf are rejected.
func parseWeight(row []string) (float64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	s := strings.TrimSpace(row[len(row)-1])
	if s == "" {
		return 0, false
	}
	dot := false
	digits := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}
	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return w, true
}
