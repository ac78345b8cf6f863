package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// runLogger is a logger that tees the console and an optional run file.
type runLogger struct {
	*zap.Logger
	Path string
	file *os.File
}

// newLogger builds a console logger on stderr. When logDir is set, every
// message is also written as JSON to logDir/aq_run_<timestamp>.log.
func newLogger(logDir string, verbose bool) (*runLogger, error) {
	consoleLevel := zapcore.InfoLevel
	if verbose {
		consoleLevel = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), consoleLevel),
	}

	rl := &runLogger{}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		rl.Path = filepath.Join(logDir, fmt.Sprintf("aq_run_%s.log", time.Now().Format("20060102_150405")))
		f, err := os.OpenFile(rl.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		rl.file = f
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.DebugLevel))
	}

	rl.Logger = zap.New(zapcore.NewTee(cores...))
	return rl, nil
}

// Close flushes buffered entries and closes the run file.
func (rl *runLogger) Close() error {
	// Sync on a console fd fails on some platforms; only the file matters.
	_ = rl.Logger.Sync()
	if rl.file == nil {
		return nil
	}
	return multierr.Combine(rl.file.Sync(), rl.file.Close())
}
