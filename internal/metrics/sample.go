package metrics

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Status summarizes how much of a sample's record could be computed.
type Status string

const (
	StatusOK          Status = "ok"           // every metric available
	StatusPartial     Status = "partial"      // read-based metrics only
	StatusMissing     Status = "missing"      // no read-based metrics; excluded from arithmetic
	StatusNotAnalyzed Status = "not_analyzed" // directory never reached the core
)

// VariantSeparator joins search strings in the corrected_locus_with_bystanders field.
const VariantSeparator = ";"

// ReadCounts holds the mapping statistics of a sample.
type ReadCounts struct {
	Aligned int64
	Total   int64
	Known   bool
}

// AlignedString renders the aligned read count, or NA.
func (r ReadCounts) AlignedString() string {
	if !r.Known {
		return NAString
	}
	return strconv.FormatInt(r.Aligned, 10)
}

// TotalString renders the total read count, or NA.
func (r ReadCounts) TotalString() string {
	if !r.Known {
		return NAString
	}
	return strconv.FormatInt(r.Total, 10)
}

// SampleMetrics is the per-sample output record.
type SampleMetrics struct {
	Directory                   string
	Sample                      string
	Reads                       ReadCounts
	CorrectionWithBystanders    Value
	CorrectionWithoutBystanders Value
	IndependentCorrection       Value
	IndepLessWBystanders        Value
	WBystandersLessWoBystanders Value
	TargetLocus                 string
	PerfectCorrection           string
	Variants                    []string
	Status                      Status
	Note                        string
}

// CorrectedLocusWithBystanders returns the joined search strings, or the
// note for records that carry no variants.
func (m *SampleMetrics) CorrectedLocusWithBystanders() string {
	if len(m.Variants) == 0 {
		return m.Note
	}
	return strings.Join(m.Variants, VariantSeparator)
}

// Inputs are the per-sample values the assembler combines.
type Inputs struct {
	Directory                   string
	Sample                      string
	Reads                       ReadCounts
	CorrectionWithBystanders    Value
	CorrectionWithoutBystanders Value
	IndependentCorrection       Value
	TargetLocus                 string
	Variants                    []string
}

// Assemble builds a SampleMetrics record. Deltas are NA whenever one of
// their operands is NA. Negative deltas are kept and logged as warnings.
func Assemble(in Inputs, logger *zap.Logger) *SampleMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SampleMetrics{
		Directory:                   in.Directory,
		Sample:                      in.Sample,
		Reads:                       in.Reads,
		CorrectionWithBystanders:    in.CorrectionWithBystanders,
		CorrectionWithoutBystanders: in.CorrectionWithoutBystanders,
		IndependentCorrection:       in.IndependentCorrection,
		TargetLocus:                 in.TargetLocus,
		Variants:                    in.Variants,
	}
	if len(in.Variants) > 0 {
		m.PerfectCorrection = in.Variants[0]
	}

	readBased := in.CorrectionWithBystanders.Valid() && in.CorrectionWithoutBystanders.Valid()
	switch {
	case !readBased:
		m.Status = StatusMissing
		m.IndepLessWBystanders = NA
		m.WBystandersLessWoBystanders = NA
		logger.Warn("missing read-based correction data; sample excluded from arithmetic",
			zap.String("sample", in.Sample),
			zap.Stringer("with_bystanders", in.CorrectionWithBystanders),
			zap.Stringer("without_bystanders", in.CorrectionWithoutBystanders))
		return m
	case !in.IndependentCorrection.Valid():
		m.Status = StatusPartial
	default:
		m.Status = StatusOK
	}

	m.IndepLessWBystanders = in.IndependentCorrection.Sub(in.CorrectionWithBystanders)
	m.WBystandersLessWoBystanders = in.CorrectionWithBystanders.Sub(in.CorrectionWithoutBystanders)

	if v, ok := m.IndepLessWBystanders.Get(); ok && v < 0 {
		logger.Warn("negative independent correction rate",
			zap.String("sample", in.Sample), zap.Float64("indep_less_w_bystanders", v))
	}
	if v, ok := m.WBystandersLessWoBystanders.Get(); ok && v < 0 {
		logger.Warn("negative read-based correction rate",
			zap.String("sample", in.Sample), zap.Float64("w_bystanders_less_wo_bystanders", v))
	}

	logger.Info("sample metrics",
		zap.String("sample", in.Sample),
		zap.Stringer("correction_with_bystanders", m.CorrectionWithBystanders),
		zap.Stringer("correction_without_bystanders", m.CorrectionWithoutBystanders),
		zap.Stringer("independent_correction", m.IndependentCorrection))
	return m
}

// NotAnalyzed returns a placeholder record for a directory that produced no
// metrics.
func NotAnalyzed(dir, note string) *SampleMetrics {
	return &SampleMetrics{
		Directory:                   dir,
		Sample:                      dir,
		CorrectionWithBystanders:    NA,
		CorrectionWithoutBystanders: NA,
		IndependentCorrection:       NA,
		IndepLessWBystanders:        NA,
		WBystandersLessWoBystanders: NA,
		Status:                      StatusNotAnalyzed,
		Note:                        note,
	}
}

// Results accumulates records across samples. It is owned by the caller and
// safe for concurrent Add.
type Results struct {
	mu      sync.Mutex
	samples []*SampleMetrics
	oneseq  []*OneSeqMetrics
}

// NewResults creates an empty accumulator.
func NewResults() *Results {
	return &Results{}
}

// Add appends a sample record.
func (r *Results) Add(m *SampleMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, m)
}

// AddOneSeq appends a ONE-seq record.
func (r *Results) AddOneSeq(m *OneSeqMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oneseq = append(r.oneseq, m)
}

// Has reports whether a record exists for the directory.
func (r *Results) Has(dir string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.samples {
		if m.Directory == dir {
			return true
		}
	}
	for _, m := range r.oneseq {
		if m.Directory == dir {
			return true
		}
	}
	return false
}

// Samples returns the sample records sorted by directory.
func (r *Results) Samples() []*SampleMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]*SampleMetrics(nil), r.samples...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Directory < out[j].Directory })
	return out
}

// OneSeq returns the ONE-seq records sorted by directory.
func (r *Results) OneSeq() []*OneSeqMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]*OneSeqMetrics(nil), r.oneseq...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Directory < out[j].Directory })
	return out
}

// Len returns the total number of records.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples) + len(r.oneseq)
}
