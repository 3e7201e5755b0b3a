package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/NordcomInc/next-plugin-preval/internal/app"
	"github.com/NordcomInc/next-plugin-preval/internal/cli"
)

// main is the entrypoint for the preval command.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW, errW io.Writer, args []string) error {
	config, shouldExit, err := cli.Parse(args, errW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	prevalApp := app.NewApp(outW, errW, config)
	return prevalApp.Run(context.Background())
}
