// Package guide provides guide sequence parsing and orientation normalization.
package guide

import (
	"fmt"
	"strings"

	"github.com/shenwei356/bio/seq"
)

// Orientation is the guide's orientation relative to the amplicon.
type Orientation string

const (
	Forward Orientation = "F"
	Reverse Orientation = "R"
)

// ParseOrientation parses an amplicon list orientation value ("F" or "R").
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(strings.ToUpper(strings.TrimSpace(s))) {
	case Forward:
		return Forward, nil
	case Reverse:
		return Reverse, nil
	default:
		return "", &ValidationError{
			Field:   "orientation",
			Value:   s,
			Message: "must be 'F' for forward or 'R' for reverse",
		}
	}
}

// Editor is the base-editing chemistry used on a sample.
type Editor string

const (
	ABE Editor = "ABE"
	CBE Editor = "CBE"
	PE  Editor = "PE"
)

// ParseEditor parses an amplicon list editor value.
func ParseEditor(s string) (Editor, error) {
	switch Editor(strings.ToUpper(strings.TrimSpace(s))) {
	case ABE:
		return ABE, nil
	case CBE:
		return CBE, nil
	case PE:
		return PE, nil
	default:
		return "", &ValidationError{
			Field:   "editor",
			Value:   s,
			Message: "must be one of ABE, CBE, PE",
		}
	}
}

// Guide is a protospacer together with its orientation relative to the amplicon.
type Guide struct {
	Sequence    string
	Orientation Orientation
}

// NewGuide upper-cases and validates a guide sequence.
func NewGuide(sequence string, o Orientation) (Guide, error) {
	s := strings.ToUpper(strings.TrimSpace(sequence))
	if s == "" {
		return Guide{}, &ValidationError{Field: "guide", Value: sequence, Message: "empty sequence"}
	}
	if err := seq.DNA.IsValid([]byte(s)); err != nil {
		return Guide{}, &ValidationError{Field: "guide", Value: sequence, Message: err.Error()}
	}
	// The DNA alphabet also admits N and gaps.
	if i := strings.IndexFunc(s, func(r rune) bool { return !strings.ContainsRune("ACGT", r) }); i >= 0 {
		return Guide{}, &ValidationError{
			Field:   "guide",
			Value:   sequence,
			Message: fmt.Sprintf("invalid base %q at position %d", s[i], i+1),
		}
	}
	if o != Forward && o != Reverse {
		return Guide{}, &ValidationError{Field: "orientation", Value: string(o), Message: "must be 'F' or 'R'"}
	}
	return Guide{Sequence: s, Orientation: o}, nil
}

// Len returns the guide length.
func (g Guide) Len() int {
	return len(g.Sequence)
}

// ValidationError reports an input that cannot be used to generate variants:
// an unknown orientation or editor, or an edit position that does not hold
// the editor's substrate base.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}
