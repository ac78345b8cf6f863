// Package pipeline quantifies sample directories: it matches each directory
// to its amplicon, runs the editor-specific analysis, and collects the
// per-sample records.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/basequant/aq/internal/alleles"
	"github.com/basequant/aq/internal/amplicon"
	"github.com/basequant/aq/internal/correction"
	"github.com/basequant/aq/internal/crispresso"
	"github.com/basequant/aq/internal/guide"
	"github.com/basequant/aq/internal/metrics"
	"github.com/basequant/aq/internal/variant"
)

var sampleSuffix = regexp.MustCompile(`(_L\d{3})?-ds\..*`)

// SampleName strips the lane and sequencing-run suffix from a directory name.
func SampleName(dir string) string {
	return sampleSuffix.ReplaceAllString(dir, "")
}

// Outcome is the result of processing one sample directory. At most one of
// Sample and OneSeq is set. Skipped carries the reason when the directory
// was deliberately not analyzed.
type Outcome struct {
	Directory string
	Amplicon  string
	Table     string // allele table the record was computed from, if any
	Sample    *metrics.SampleMetrics
	OneSeq    *metrics.OneSeqMetrics
	Skipped   string
	Err       error
}

// Analyzed reports whether the outcome produced a record.
func (o Outcome) Analyzed() bool {
	return o.Sample != nil || o.OneSeq != nil
}

// Processor analyzes single sample directories against an amplicon list.
type Processor struct {
	list   *amplicon.List
	logger *zap.Logger
}

// NewProcessor creates a processor for the given amplicon list.
func NewProcessor(list *amplicon.List) *Processor {
	return &Processor{
		list:   list,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for progress and warning messages.
func (p *Processor) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Process analyzes one sample directory. Failures are reported in the
// outcome and never panic; a directory that matches no amplicon or uses an
// editor without an analysis path is skipped.
func (p *Processor) Process(ctx context.Context, sampleDir string) Outcome {
	dir := filepath.Base(filepath.Clean(sampleDir))
	out := Outcome{Directory: dir}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	entry, ok := p.list.Identify(dir)
	if !ok {
		p.logger.Warn("no amplicon in the list matches directory; skipping", zap.String("dir", dir))
		out.Skipped = "no matching amplicon"
		return out
	}
	out.Amplicon = entry.Name

	logger := p.logger.With(zap.String("sample", SampleName(dir)), zap.String("amplicon", entry.Name))
	logger.Info("processing directory",
		zap.String("guide", entry.Guide),
		zap.String("orientation", entry.Orientation),
		zap.String("editor", entry.Editor),
		zap.String("intended_edit", entry.RawIntended),
		zap.Ints("tolerated_edits", entry.Tolerated))

	editor, err := guide.ParseEditor(entry.Editor)
	if err != nil {
		out.Err = fmt.Errorf("process %s: %w", dir, err)
		return out
	}

	switch {
	case editor == guide.PE || editor == guide.CBE:
		logger.Info("no analysis for this editor yet; skipping", zap.String("editor", string(editor)))
		out.Skipped = fmt.Sprintf("%s analysis not available", editor)
	case entry.OneSeq:
		out.OneSeq, out.Table, err = p.processOneSeq(sampleDir, dir, entry, logger)
	default:
		out.Sample, out.Table, err = p.processABE(sampleDir, dir, entry, logger)
	}
	if err != nil {
		out.Err = fmt.Errorf("process %s: %w", dir, err)
	}
	return out
}

func (p *Processor) processABE(sampleDir, dir string, e *amplicon.Entry, logger *zap.Logger) (*metrics.SampleMetrics, string, error) {
	if !e.HasIntended() {
		return nil, "", &guide.ValidationError{
			Field:   "intended_edit",
			Value:   e.RawIntended,
			Message: "must be a guide position or ONESEQ",
		}
	}
	o, err := guide.ParseOrientation(e.Orientation)
	if err != nil {
		return nil, "", err
	}
	g, err := guide.NewGuide(e.Guide, o)
	if err != nil {
		return nil, "", err
	}
	b, err := guide.BasesFor(guide.ABE, o)
	if err != nil {
		return nil, "", err
	}

	seq, pos, err := guide.Normalize(g, append([]int{e.Intended}, e.Tolerated...)...)
	if err != nil {
		return nil, "", err
	}
	set, err := variant.NewGenerator(logger).Generate(seq, pos[0], pos[1:], b)
	if err != nil {
		return nil, "", fmt.Errorf("generate search sequences: %w", err)
	}
	search := set.All()

	out := crispresso.Locate(sampleDir, logger)
	match, err := alleles.NewMatcher(logger).Match(out, search, alleles.ReadQuantPrefix)
	if err != nil {
		return nil, "", err
	}

	lookup, err := correction.LookupFor(o, b, e.Intended, g.Len())
	if err != nil {
		return nil, "", err
	}
	indep, err := correction.NewExtractor(logger).Extract(out, lookup)
	if err != nil {
		return nil, "", err
	}

	m := metrics.Assemble(metrics.Inputs{
		Directory:                   dir,
		Sample:                      SampleName(dir),
		Reads:                       crispresso.ReadMappingStats(out, logger),
		CorrectionWithBystanders:    match.WithBystanders,
		CorrectionWithoutBystanders: match.WithoutBystanders,
		IndependentCorrection:       indep,
		TargetLocus:                 e.Guide,
		Variants:                    search,
	}, logger)
	return m, match.Table, nil
}

func (p *Processor) processOneSeq(sampleDir, dir string, e *amplicon.Entry, logger *zap.Logger) (*metrics.OneSeqMetrics, string, error) {
	o, err := guide.ParseOrientation(e.Orientation)
	if err != nil {
		return nil, "", err
	}
	g, err := guide.NewGuide(e.Guide, o)
	if err != nil {
		return nil, "", err
	}
	b, err := guide.BasesFor(guide.ABE, o)
	if err != nil {
		return nil, "", err
	}
	seq, _, err := guide.Normalize(g)
	if err != nil {
		return nil, "", err
	}

	set, err := variant.NewGenerator(logger).OneSeq(seq, o, b)
	if err != nil {
		return nil, "", fmt.Errorf("generate ONE-seq search sequences: %w", err)
	}
	logger.Debug("ONE-seq search sequences",
		zap.Int("window", len(set.Window)),
		zap.Int("protospacer", len(set.Protospacer)))

	out := crispresso.Locate(sampleDir, logger)
	matcher := alleles.NewMatcher(logger)
	window, err := matcher.Match(out, set.Window, alleles.OneSeqWindowPrefix)
	if err != nil {
		return nil, "", err
	}
	protospacer, err := matcher.Match(out, set.Protospacer, alleles.OneSeqProtospacerPrefix)
	if err != nil {
		return nil, "", err
	}

	logger.Info("ONE-seq editing",
		zap.Stringer("window_percent", window.WithBystanders),
		zap.Stringer("protospacer_percent", protospacer.WithBystanders))

	m := &metrics.OneSeqMetrics{
		Directory:           dir,
		Sample:              SampleName(dir),
		Reads:               crispresso.ReadMappingStats(out, logger),
		WindowPercent:       window.WithBystanders,
		ProtospacerPercent:  protospacer.WithBystanders,
		Guide:               e.Guide,
		WindowVariants:      set.Window,
		ProtospacerVariants: set.Protospacer,
	}
	return m, window.Table, nil
}
