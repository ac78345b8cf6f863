package metrics

import "strings"

// OneSeqMetrics is the per-sample record of a ONE-seq survey.
type OneSeqMetrics struct {
	Directory           string
	Sample              string
	Reads               ReadCounts
	WindowPercent       Value // reads with any substrate conversion inside the window
	ProtospacerPercent  Value // reads with any substrate conversion in the protospacer
	Guide               string
	WindowVariants      []string
	ProtospacerVariants []string
}

// WindowSearch returns the joined window search strings.
func (m *OneSeqMetrics) WindowSearch() string {
	return strings.Join(m.WindowVariants, VariantSeparator)
}

// ProtospacerSearch returns the joined protospacer search strings.
func (m *OneSeqMetrics) ProtospacerSearch() string {
	return strings.Join(m.ProtospacerVariants, VariantSeparator)
}
