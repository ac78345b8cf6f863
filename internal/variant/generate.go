// Package variant enumerates the edited sequences a base editor can produce
// from a guide, for matching against allele frequency tables.
package variant

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/basequant/aq/internal/guide"
)

// Set is the ordered output of the ABE path. Primary is the guide with only
// the intended edit applied; Bystanders holds one variant per valid subset
// of tolerated positions, in enumeration order.
type Set struct {
	Primary    string
	Bystanders []string
}

// All returns the search strings with the primary variant at index 0.
func (s *Set) All() []string {
	out := make([]string, 0, 1+len(s.Bystanders))
	out = append(out, s.Primary)
	return append(out, s.Bystanders...)
}

// Generator produces search sequences.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a generator. A nil logger discards output.
func NewGenerator(l *zap.Logger) *Generator {
	if l == nil {
		l = zap.NewNop()
	}
	return &Generator{logger: l}
}

// Generate builds the primary corrected variant and every bystander-inclusive
// variant. seq and positions must already be in the normalized frame.
//
// The intended position must hold the substrate base, otherwise a
// *guide.ValidationError is returned. A tolerated subset containing a
// position that does not hold the substrate base in the corrected sequence
// is dropped with a warning.
func (g *Generator) Generate(seq string, intended int, tolerated []int, b guide.Bases) (*Set, error) {
	if intended < 1 || intended > len(seq) {
		return nil, &guide.ValidationError{
			Field:   "intended_edit",
			Value:   fmt.Sprint(intended),
			Message: fmt.Sprintf("outside guide positions 1 to %d", len(seq)),
		}
	}
	if seq[intended-1] != b.Substrate {
		return nil, &guide.ValidationError{
			Field:   "intended_edit",
			Value:   fmt.Sprint(intended),
			Message: fmt.Sprintf("position holds %c, expected %c", seq[intended-1], b.Substrate),
		}
	}

	corrected := []byte(seq)
	corrected[intended-1] = b.Correction
	set := &Set{Primary: string(corrected)}

	g.logger.Info("corrected target locus",
		zap.String("original", seq),
		zap.String("match", MatchLine(seq, set.Primary)),
		zap.String("corrected", set.Primary))

	work := make([]byte, len(corrected))
	err := subsets(tolerated, func(subset []int) {
		copy(work, corrected)
		for _, p := range subset {
			if p < 1 || p > len(work) || work[p-1] != b.Substrate {
				g.logger.Warn("tolerated edit does not hold the substrate base; skipping combination",
					zap.Int("position", p),
					zap.String("substrate", string(b.Substrate)),
					zap.Ints("combination", subset))
				return
			}
			work[p-1] = b.Correction
		}
		set.Bystanders = append(set.Bystanders, string(work))
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate tolerated edits: %w", err)
	}

	for _, v := range set.Bystanders {
		g.logger.Debug("corrected locus with tolerated bystanders",
			zap.String("original", seq),
			zap.String("match", MatchLine(seq, v)),
			zap.String("variant", v))
	}
	return set, nil
}

// MatchLine renders a per-base comparison of two sequences: '|' where they
// agree and '*' where they differ. The shorter sequence is padded with '-'.
func MatchLine(ref, query string) string {
	ref = strings.ToUpper(ref)
	query = strings.ToUpper(query)
	n := max(len(ref), len(query))

	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		a, b := byte('-'), byte('-')
		if i < len(ref) {
			a = ref[i]
		}
		if i < len(query) {
			b = query[i]
		}
		if a == b {
			sb.WriteByte('|')
		} else {
			sb.WriteByte('*')
		}
	}
	return sb.String()
}
