package guide

import (
	"fmt"

	"github.com/shenwei356/bio/seq"
)

// Bases holds the base identities an editor works with in a given frame.
// Substrate is the base the editor converts, Correction is what it becomes
// in the guide frame, and Converted is the row looked up in the
// quantification window table.
type Bases struct {
	Substrate  byte
	Correction byte
	Converted  byte
}

type baseKey struct {
	editor      Editor
	orientation Orientation
}

var baseTable = map[baseKey]Bases{
	{ABE, Forward}: {Substrate: 'A', Correction: 'G', Converted: 'G'},
	{ABE, Reverse}: {Substrate: 'T', Correction: 'C', Converted: 'C'},
	{CBE, Forward}: {Substrate: 'C', Correction: 'T', Converted: 'T'},
	{CBE, Reverse}: {Substrate: 'G', Correction: 'A', Converted: 'A'},
}

// BasesFor returns the substrate/correction bases for an editor and orientation.
func BasesFor(e Editor, o Orientation) (Bases, error) {
	b, ok := baseTable[baseKey{e, o}]
	if !ok {
		return Bases{}, &ValidationError{
			Field:   "editor",
			Value:   string(e),
			Message: fmt.Sprintf("no base conversion defined for orientation %q", o),
		}
	}
	return b, nil
}

// MirrorPosition maps a 1-based position p in a sequence of length n onto
// the opposite strand.
func MirrorPosition(p, n int) int {
	return n - p + 1
}

// ReverseComplement returns the reverse complement of a DNA sequence.
func ReverseComplement(s string) (string, error) {
	sq, err := seq.NewSeq(seq.DNA, []byte(s))
	if err != nil {
		return "", fmt.Errorf("reverse complement: %w", err)
	}
	return string(sq.RevCom().Seq), nil
}

// Normalize puts a guide and 1-based positions into the forward frame.
// Reverse guides are reverse complemented and every position is mirrored;
// forward guides pass through unchanged.
func Normalize(g Guide, positions ...int) (string, []int, error) {
	out := make([]int, len(positions))
	switch g.Orientation {
	case Forward:
		copy(out, positions)
		return g.Sequence, out, nil
	case Reverse:
		rc, err := ReverseComplement(g.Sequence)
		if err != nil {
			return "", nil, err
		}
		n := len(g.Sequence)
		for i, p := range positions {
			out[i] = MirrorPosition(p, n)
		}
		return rc, out, nil
	default:
		return "", nil, &ValidationError{
			Field:   "orientation",
			Value:   string(g.Orientation),
			Message: "must be 'F' for forward or 'R' for reverse",
		}
	}
}
