package variant

import (
	"fmt"

	"github.com/basequant/aq/internal/guide"
)

// OneSeqWindow is the number of bases surveyed at the PAM-distal end of the
// protospacer.
const OneSeqWindow = 10

// OneSeqSet holds the ONE-seq survey variants: every combination of
// substrate conversions inside the editing window and inside the whole
// protospacer.
type OneSeqSet struct {
	Window      []string
	Protospacer []string
}

// OneSeq enumerates survey variants for a normalized guide sequence. In
// forward orientation the window is the first OneSeqWindow bases; in reverse
// orientation it is the last OneSeqWindow bases of the reverse complement.
func (g *Generator) OneSeq(seq string, o guide.Orientation, b guide.Bases) (*OneSeqSet, error) {
	start, end := 0, len(seq)
	switch o {
	case guide.Forward:
		end = min(OneSeqWindow, len(seq))
	case guide.Reverse:
		start = max(0, len(seq)-OneSeqWindow)
	default:
		return nil, &guide.ValidationError{Field: "orientation", Value: string(o), Message: "must be 'F' or 'R'"}
	}

	var all, window []int
	for i := 0; i < len(seq); i++ {
		if seq[i] != b.Substrate {
			continue
		}
		all = append(all, i+1)
		if i >= start && i < end {
			window = append(window, i+1)
		}
	}

	set := &OneSeqSet{}
	var err error
	if set.Window, err = convertAll(seq, window, b.Correction); err != nil {
		return nil, fmt.Errorf("enumerate window positions: %w", err)
	}
	if set.Protospacer, err = convertAll(seq, all, b.Correction); err != nil {
		return nil, fmt.Errorf("enumerate protospacer positions: %w", err)
	}
	return set, nil
}

// convertAll returns one variant per non-empty subset of positions.
func convertAll(seq string, positions []int, correction byte) ([]string, error) {
	var out []string
	work := make([]byte, len(seq))
	err := subsets(positions, func(subset []int) {
		copy(work, seq)
		for _, p := range subset {
			work[p-1] = correction
		}
		out = append(out, string(work))
	})
	return out, err
}
