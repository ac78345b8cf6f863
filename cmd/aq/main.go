// Package main provides the aq command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/basequant/aq/internal/pipeline"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// fileLogAnnotation marks commands that also log to a run file.
const fileLogAnnotation = "file-log"

// usageError marks errors caused by bad command line input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// app carries state shared by the subcommands.
type app struct {
	cfgFile   string
	logDir    string
	noLogFile bool
	verbose   bool

	logger  *zap.Logger
	logPath string
	closeFn func() error
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a := &app{logger: zap.NewNop()}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.Execute()
	if a.closeFn != nil {
		if cerr := a.closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ue *usageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "aq",
		Short: "Quantify base-editing outcomes from CRISPResso output",
		Long: `aq quantifies adenine base editing at a target locus from CRISPResso
alignments: read-based correction rates with and without bystander edits,
an independent per-position estimate, and ONE-seq off-target surveys.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(a.cfgFile); err != nil {
				return err
			}
			return a.startLogging(cmd, args)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Config file (default: ~/.aq.yaml)")
	root.PersistentFlags().StringVar(&a.logDir, "log-dir", "", "Directory for run log files (default: <workdir>/logs)")
	root.PersistentFlags().BoolVar(&a.noLogFile, "no-log-file", false, "Log to the console only")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Show debug messages on the console")
	viper.BindPFlag("log_dir", root.PersistentFlags().Lookup("log-dir"))

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(newQuantifyCmd(a))
	root.AddCommand(newAlignCmd(a))
	root.AddCommand(newVerifyCmd(a))
	root.AddCommand(newResultsCmd(a))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aq version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// usageArgs reports argument validation failures as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// initConfig reads the config file and environment.
func initConfig(cfgFile string) error {
	viper.SetDefault("workers", 1)
	viper.SetDefault("skip_dirs", pipeline.DefaultSkipDirs)
	viper.SetDefault("crispresso.bin", "CRISPResso")

	viper.SetEnvPrefix("AQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".aq")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile == "" && errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// workDir returns the working directory argument of a command.
func workDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// startLogging builds the logger for a command. Commands annotated with
// fileLogAnnotation also write a per-run log file under the log directory.
func (a *app) startLogging(cmd *cobra.Command, args []string) error {
	logDir := ""
	if _, ok := cmd.Annotations[fileLogAnnotation]; ok && !a.noLogFile {
		logDir = viper.GetString("log_dir")
		if logDir == "" {
			logDir = filepath.Join(workDir(args), "logs")
		}
	}

	l, err := newLogger(logDir, a.verbose)
	if err != nil {
		return err
	}
	a.logger = l.Logger
	a.logPath = l.Path
	a.closeFn = l.Close
	if l.Path != "" {
		a.logger.Info("logging to file", zap.String("path", l.Path))
	}
	return nil
}
