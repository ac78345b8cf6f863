package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/basequant/aq/internal/amplicon"
	"github.com/basequant/aq/internal/crispresso"
	"github.com/basequant/aq/internal/guide"
	"github.com/basequant/aq/internal/pipeline"
)

func newAlignCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "align [workdir]",
		Short: "Run CRISPResso on every sample directory",
		Long: `Run CRISPResso in base-editor mode on the FASTQ of every sample directory
under workdir. A quantification window is requested first; when CRISPResso
rejects it the sample is aligned again without one. Prime and cytosine
base editor samples are skipped.`,
		Example: `  aq align .
  aq align --crispresso /opt/crispresso/bin/CRISPResso /data/run42
  aq align --dry-run .`,
		Args:        usageArgs(cobra.MaximumNArgs(1)),
		Annotations: map[string]string{fileLogAnnotation: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAlign(ctx, a.logger, workDir(args), dryRun)
		},
	}

	cmd.Flags().String("crispresso", "", "CRISPResso executable (default: CRISPResso on PATH)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the CRISPResso command lines without running them")
	viper.BindPFlag("crispresso.bin", cmd.Flags().Lookup("crispresso"))

	return cmd
}

func runAlign(ctx context.Context, logger *zap.Logger, root string, dryRun bool) error {
	list, err := loadVerifiedList(listPath(root), logger)
	if err != nil {
		return err
	}

	batch := pipeline.NewBatch(nil, 1)
	batch.SetSkipDirs(viper.GetStringSlice("skip_dirs"))
	batch.SetLogger(logger)
	dirs, err := batch.SampleDirs(root)
	if err != nil {
		return err
	}

	runner := crispresso.NewRunner(viper.GetString("crispresso.bin"), logger)

	var errs error
	aligned := 0
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, ok, err := alignJob(list, filepath.Join(root, d), logger)
		if err != nil {
			logger.Error("cannot align sample", zap.String("dir", d), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		if dryRun {
			fmt.Println(runner.Command(job, true))
			continue
		}
		if err := runner.Run(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error("CRISPResso failed", zap.String("dir", d), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("align %s: %w", d, err))
			continue
		}
		aligned++
	}

	logger.Info("alignment complete",
		zap.Int("directories", len(dirs)),
		zap.Int("aligned", aligned),
		zap.Int("failed", len(multierr.Errors(errs))))
	return errs
}

// alignJob builds the CRISPResso job for a sample directory. It reports
// false for directories that are not aligned: unmatched names and editors
// without an analysis.
func alignJob(list *amplicon.List, sampleDir string, logger *zap.Logger) (crispresso.Job, bool, error) {
	dir := filepath.Base(sampleDir)
	entry, ok := list.Identify(dir)
	if !ok {
		logger.Warn("no amplicon in the list matches directory; skipping", zap.String("dir", dir))
		return crispresso.Job{}, false, nil
	}
	editor, err := guide.ParseEditor(entry.Editor)
	if err != nil {
		return crispresso.Job{}, false, fmt.Errorf("align %s: %w", dir, err)
	}
	if editor == guide.PE || editor == guide.CBE {
		logger.Info("no analysis for this editor yet; skipping",
			zap.String("dir", dir), zap.String("editor", string(editor)))
		return crispresso.Job{}, false, nil
	}

	fastq, err := crispresso.FindFASTQ(sampleDir)
	if err != nil {
		return crispresso.Job{}, false, fmt.Errorf("align %s: %w", dir, err)
	}
	return crispresso.Job{
		SampleDir: sampleDir,
		FASTQ:     fastq,
		Amplicon:  entry.Amplicon,
		Guide:     entry.Guide,
	}, true, nil
}
