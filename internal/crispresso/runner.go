package crispresso

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrNoFASTQ is returned when a sample directory holds no reads.
var ErrNoFASTQ = errors.New("no FASTQ file found")

// Quantification window used on the first attempt.
const (
	WindowSize   = 10
	WindowCenter = -10
)

// Job describes one CRISPResso invocation.
type Job struct {
	SampleDir string
	FASTQ     string
	Amplicon  string
	Guide     string
}

// Runner invokes the CRISPResso command line tool.
type Runner struct {
	Bin    string
	logger *zap.Logger

	// run executes a command; replaced in tests.
	run func(cmd *exec.Cmd) error
}

// NewRunner creates a runner for the given executable ("CRISPResso" when empty).
func NewRunner(bin string, logger *zap.Logger) *Runner {
	if bin == "" {
		bin = "CRISPResso"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Bin: bin, logger: logger, run: execCmd}
}

// FindFASTQ returns the single FASTQ file in dir. Directories with more than
// one FASTQ are ambiguous and rejected.
func FindFASTQ(dir string) (string, error) {
	var files []string
	for _, p := range []string{"*.fastq", "*.fastq.gz"} {
		m, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return "", err
		}
		files = append(files, m...)
	}
	sort.Strings(files)
	switch len(files) {
	case 0:
		return "", fmt.Errorf("%s: %w", dir, ErrNoFASTQ)
	case 1:
		return files[0], nil
	default:
		return "", fmt.Errorf("%s: %d FASTQ files found, expected one", dir, len(files))
	}
}

// Args returns the command line for a job, with or without the
// quantification window.
func (r *Runner) Args(j Job, window bool) []string {
	args := []string{
		"--fastq_r1", j.FASTQ,
		"--amplicon_seq", j.Amplicon,
		"--guide_seq", j.Guide,
	}
	if window {
		args = append(args,
			"--quantification_window_size", fmt.Sprint(WindowSize),
			"--quantification_window_center", fmt.Sprint(WindowCenter))
	}
	return append(args, "--base_editor_output", "--output_folder", j.SampleDir)
}

// Command renders the command line of a job for display.
func (r *Runner) Command(j Job, window bool) string {
	return strings.Join(append([]string{r.Bin}, r.Args(j, window)...), " ")
}

// Run aligns one sample. If the run with a quantification window fails, it
// is retried without one; this happens when the window reaches past the end
// of the amplicon.
func (r *Runner) Run(ctx context.Context, j Job) error {
	r.logger.Info("running CRISPResso with quantification window",
		zap.String("fastq", j.FASTQ), zap.String("dir", j.SampleDir))
	err := r.run(exec.CommandContext(ctx, r.Bin, r.Args(j, true)...))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.logger.Warn("CRISPResso failed with quantification window; retrying without window",
		zap.String("dir", j.SampleDir), zap.Error(err))
	if err := r.run(exec.CommandContext(ctx, r.Bin, r.Args(j, false)...)); err != nil {
		return fmt.Errorf("run CRISPResso: %w", err)
	}
	return nil
}

func execCmd(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		fullCmd := strings.Join(cmd.Args, " ")
		if stderr.Len() > 0 {
			return fmt.Errorf("running '%s': %w\n\nstderr:\n%s", fullCmd, err, stderr.String())
		}
		return fmt.Errorf("running '%s': %w", fullCmd, err)
	}
	return nil
}
