package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/basequant/aq/internal/amplicon"
	"github.com/basequant/aq/internal/duckdb"
	"github.com/basequant/aq/internal/output"
	"github.com/basequant/aq/internal/pipeline"
)

type quantifyOptions struct {
	outputDir string
	runID     string
	strict    bool
}

func newQuantifyCmd(a *app) *cobra.Command {
	var opts quantifyOptions

	cmd := &cobra.Command{
		Use:   "quantify [workdir]",
		Short: "Quantify base editing in every sample directory",
		Long: `Quantify base editing for every sample directory under workdir (default:
the current directory). Each directory is matched to an entry of the
amplicon list and its CRISPResso output is summarized into
quantification_summary.csv.`,
		Example: `  aq quantify .
  aq quantify --prism --workers 4 /data/run42
  aq quantify --db results.duckdb --run-id run42 /data/run42`,
		Args:        usageArgs(cobra.MaximumNArgs(1)),
		Annotations: map[string]string{fileLogAnnotation: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runQuantify(ctx, a.logger, workDir(args), opts)
		},
	}

	cmd.Flags().StringP("amplicon-list", "a", "", "Amplicon list CSV (default: <workdir>/amplicon_list.csv)")
	cmd.Flags().IntP("workers", "w", 1, "Number of sample directories processed in parallel (0 = all CPUs)")
	cmd.Flags().StringSlice("skip-dirs", pipeline.DefaultSkipDirs, "Directory names that never hold samples")
	cmd.Flags().Bool("prism", false, "Also write a Prism-formatted replicate table")
	cmd.Flags().String("db", "", "DuckDB database to store the results in")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for the reports (default: workdir)")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Run identifier in the database (default: a timestamp)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with an error when any sample failed")

	viper.BindPFlag("amplicon_list", cmd.Flags().Lookup("amplicon-list"))
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("skip_dirs", cmd.Flags().Lookup("skip-dirs"))
	viper.BindPFlag("prism", cmd.Flags().Lookup("prism"))
	viper.BindPFlag("db", cmd.Flags().Lookup("db"))

	return cmd
}

// listPath returns the configured amplicon list, or amplicon_list.csv in
// the working directory.
func listPath(root string) string {
	if p := viper.GetString("amplicon_list"); p != "" {
		return p
	}
	return filepath.Join(root, amplicon.DefaultListName)
}

// loadVerifiedList loads the amplicon list and rejects malformed entries.
func loadVerifiedList(path string, logger *zap.Logger) (*amplicon.List, error) {
	list, err := amplicon.NewLoader(logger).Load(path)
	if err != nil {
		return nil, err
	}
	if _, err := amplicon.Verify(list, logger); err != nil {
		return nil, err
	}
	return list, nil
}

func runQuantify(ctx context.Context, logger *zap.Logger, root string, opts quantifyOptions) error {
	start := time.Now()

	list, err := loadVerifiedList(listPath(root), logger)
	if err != nil {
		return err
	}
	logger.Info("loaded amplicon list", zap.String("path", list.Path), zap.Int("amplicons", len(list.Entries)))

	proc := pipeline.NewProcessor(list)
	proc.SetLogger(logger)

	workers := viper.GetInt("workers")
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	batch := pipeline.NewBatch(proc, workers)
	batch.SetSkipDirs(viper.GetStringSlice("skip_dirs"))
	batch.SetLogger(logger)

	sum, err := batch.Run(ctx, root)
	if err != nil {
		return err
	}

	outDir := opts.outputDir
	if outDir == "" {
		outDir = root
	}
	if err := writeReports(outDir, sum, viper.GetBool("prism"), logger); err != nil {
		return err
	}

	if dbPath := viper.GetString("db"); dbPath != "" {
		runID := opts.runID
		if runID == "" {
			runID = start.UTC().Format("20060102T150405Z")
		}
		if err := storeResults(dbPath, runID, sum, logger); err != nil {
			return err
		}
	}

	logger.Info("quantification complete",
		zap.Int("samples", len(sum.Results.Samples())),
		zap.Int("oneseq", len(sum.Results.OneSeq())),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Int("failed", len(sum.Failed)),
		zap.Duration("elapsed", time.Since(start)))

	if err := sum.Err(); err != nil {
		if opts.strict {
			return fmt.Errorf("%d sample(s) failed: %w", len(sum.Failed), err)
		}
		logger.Warn("some samples failed; see the log for details", zap.Int("failed", len(sum.Failed)))
	}
	return nil
}

// writeReports writes the summary and, when present, the ONE-seq and Prism
// tables into dir.
func writeReports(dir string, sum *pipeline.Summary, prism bool, logger *zap.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, output.SummaryFileName)
	if err := output.CreateFile(path, func(w io.Writer) error {
		return output.NewSummaryWriter(w).WriteAll(sum.Results.Samples())
	}); err != nil {
		return err
	}
	logger.Info("wrote summary", zap.String("path", path))

	if oneseq := sum.Results.OneSeq(); len(oneseq) > 0 {
		path := filepath.Join(dir, output.OneSeqFileName)
		if err := output.CreateFile(path, func(w io.Writer) error {
			return output.NewOneSeqWriter(w).WriteAll(oneseq)
		}); err != nil {
			return err
		}
		logger.Info("wrote ONE-seq summary", zap.String("path", path))
	}

	if prism {
		path := filepath.Join(dir, output.PrismFileName)
		if err := output.CreateFile(path, func(w io.Writer) error {
			pw := output.NewPrismWriter(w)
			pw.SetLogger(logger)
			return pw.WriteAll(sum.Results.Samples())
		}); err != nil {
			return err
		}
		logger.Info("wrote Prism table", zap.String("path", path))
	}
	return nil
}

// storeResults writes a batch summary into the DuckDB store under runID.
func storeResults(dbPath, runID string, sum *pipeline.Summary, logger *zap.Logger) error {
	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	fingerprint := func(dir string) duckdb.FileFingerprint {
		fp, err := duckdb.StatFile(sum.Tables[dir])
		if err != nil {
			logger.Warn("cannot stat allele table", zap.String("dir", dir), zap.Error(err))
		}
		return fp
	}

	var samples []duckdb.SampleResult
	for _, m := range sum.Results.Samples() {
		r := duckdb.SampleResult{Metrics: m, AlleleTable: fingerprint(m.Directory)}
		if prev, ok, err := store.Unchanged(m.Directory, r.AlleleTable); err == nil && ok && prev != runID {
			logger.Debug("allele table unchanged since earlier run",
				zap.String("dir", m.Directory), zap.String("run", prev))
		}
		samples = append(samples, r)
	}
	if err := store.WriteSampleResults(runID, samples); err != nil {
		return err
	}

	var oneseq []duckdb.OneSeqResult
	for _, m := range sum.Results.OneSeq() {
		oneseq = append(oneseq, duckdb.OneSeqResult{Metrics: m, AlleleTable: fingerprint(m.Directory)})
	}
	if err := store.WriteOneSeqResults(runID, oneseq); err != nil {
		return err
	}

	logger.Info("stored results",
		zap.String("db", dbPath), zap.String("run", runID),
		zap.Int("samples", len(samples)), zap.Int("oneseq", len(oneseq)))
	return nil
}
