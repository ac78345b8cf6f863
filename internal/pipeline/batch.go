package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/basequant/aq/internal/metrics"
)

// DefaultSkipDirs are working-directory entries that never hold samples.
var DefaultSkipDirs = []string{"scripts", "unprocessed_data", "unadultered_fastqs", "logs"}

// NotAnalyzedNote is written for directories that produced no record.
const NotAnalyzedNote = "Directory not analyzed"

// Summary is the outcome of a batch run.
type Summary struct {
	Results *metrics.Results
	Dirs    []string          // sample directories considered, sorted
	Skipped map[string]string // directory -> reason
	Failed  map[string]error  // directory -> error
	Tables  map[string]string // directory -> allele table
}

// Err combines the per-sample failures, or returns nil.
func (s *Summary) Err() error {
	var err error
	for _, dir := range s.Dirs {
		if e, ok := s.Failed[dir]; ok {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// Batch processes every sample directory of a working directory.
type Batch struct {
	proc     *Processor
	workers  int
	skipDirs []string
	logger   *zap.Logger
}

// NewBatch creates a batch runner. workers below 1 processes directories
// sequentially.
func NewBatch(p *Processor, workers int) *Batch {
	if workers < 1 {
		workers = 1
	}
	return &Batch{
		proc:     p,
		workers:  workers,
		skipDirs: DefaultSkipDirs,
		logger:   zap.NewNop(),
	}
}

// SetSkipDirs replaces the list of directory names that are never processed.
func (b *Batch) SetSkipDirs(dirs []string) {
	b.skipDirs = dirs
}

// SetLogger sets the logger for progress and warning messages.
func (b *Batch) SetLogger(l *zap.Logger) {
	b.logger = l
}

// SampleDirs lists the sample directories under root in lexical order.
func (b *Batch) SampleDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list working directory: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if slices.Contains(b.skipDirs, e.Name()) {
			b.logger.Debug("skipping directory", zap.String("dir", e.Name()))
			continue
		}
		if !e.IsDir() {
			b.logger.Debug("skipping non-directory item", zap.String("name", e.Name()))
			continue
		}
		dirs = append(dirs, e.Name())
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run processes every sample directory under root. A failure in one sample
// is recorded in the summary and never stops the batch; the returned error
// is reserved for an unreadable root or a cancelled context. Directories that
// produced no record get a not-analyzed placeholder.
func (b *Batch) Run(ctx context.Context, root string) (*Summary, error) {
	dirs, err := b.SampleDirs(root)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Results: metrics.NewResults(),
		Dirs:    dirs,
		Skipped: make(map[string]string),
		Failed:  make(map[string]error),
		Tables:  make(map[string]string),
	}

	items := make(chan WorkItem, b.workers)
	go func() {
		defer close(items)
		for i, d := range dirs {
			select {
			case items <- WorkItem{Seq: i, Dir: filepath.Join(root, d)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := b.proc.ParallelProcess(ctx, items, b.workers)
	if err := OrderedCollect(results, func(r WorkResult) error {
		o := r.Outcome
		switch {
		case o.Err != nil:
			b.logger.Error("sample failed", zap.String("dir", o.Directory), zap.Error(o.Err))
			sum.Failed[o.Directory] = o.Err
		case o.Sample != nil:
			sum.Results.Add(o.Sample)
			sum.Tables[o.Directory] = o.Table
		case o.OneSeq != nil:
			sum.Results.AddOneSeq(o.OneSeq)
			sum.Tables[o.Directory] = o.Table
		case o.Skipped != "":
			sum.Skipped[o.Directory] = o.Skipped
		}
		return nil
	}); err != nil {
		return sum, err
	}

	if err := ctx.Err(); err != nil {
		return sum, err
	}

	for _, d := range dirs {
		if !sum.Results.Has(d) {
			sum.Results.Add(metrics.NotAnalyzed(d, NotAnalyzedNote))
		}
	}

	b.logger.Info("batch complete",
		zap.Int("directories", len(dirs)),
		zap.Int("records", sum.Results.Len()),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Int("failed", len(sum.Failed)))
	return sum, nil
}
