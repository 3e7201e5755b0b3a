// Package app wires configuration, logging, and the evaluation core into a
// runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/fsutil"
	"github.com/NordcomInc/next-plugin-preval/internal/preval"
)

// PrevalSuffix is the file-naming convention directory mode discovers.
const PrevalSuffix = ".preval.star"

// App encapsulates the application's dependencies and configuration.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp constructs an App. Fragments are written to outW (or files);
// diagnostics go to errW through the logger.
func NewApp(outW, errW io.Writer, config *Config) *App {
	return &App{
		outW:   outW,
		logger: newLogger(config.LogLevel, config.LogFormat, errW),
		config: config,
	}
}

// Logger returns the App's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run evaluates the configured target: one module, or every *.preval.star
// file under a directory. Directory mode writes each fragment beside its
// source as <file>.out and fails on the first failing module.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	opts := preval.Options{Extensions: a.config.Extensions}

	if fsutil.IsDir(a.config.TargetPath) {
		return a.runDirectory(ctx, opts)
	}
	return a.runFile(ctx, opts)
}

func (a *App) runFile(ctx context.Context, opts preval.Options) error {
	fragment, err := preval.Run(ctx, a.config.TargetPath, opts)
	if err != nil {
		return err
	}

	if a.config.OutPath != "" {
		if err := os.WriteFile(a.config.OutPath, []byte(fragment), 0o644); err != nil {
			return fmt.Errorf("writing fragment to %s: %w", a.config.OutPath, err)
		}
		a.logger.Info("Fragment written.", "path", a.config.OutPath)
		return nil
	}

	_, err = io.WriteString(a.outW, fragment)
	return err
}

func (a *App) runDirectory(ctx context.Context, opts preval.Options) error {
	files, err := fsutil.FindFilesBySuffix(a.config.TargetPath, PrevalSuffix)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", a.config.TargetPath, err)
	}
	if len(files) == 0 {
		a.logger.Warn("No preval modules found.", "path", a.config.TargetPath, "suffix", PrevalSuffix)
		return nil
	}

	for _, file := range files {
		fragment, err := preval.Run(ctx, file, opts)
		if err != nil {
			return err
		}
		outPath := file + ".out"
		if err := os.WriteFile(outPath, []byte(fragment), 0o644); err != nil {
			return fmt.Errorf("writing fragment to %s: %w", outPath, err)
		}
		a.logger.Info("Fragment written.", "source", file, "path", outPath)
	}

	a.logger.Info("All modules evaluated.", "count", len(files))
	return nil
}
