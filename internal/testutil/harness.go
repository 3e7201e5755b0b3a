// Package testutil provides a standardized harness for evaluation tests: it
// materializes a project tree from an in-memory file map, runs one
// evaluation against it, and captures the fragment, the error, and the log
// output for assertions.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/preval"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Result holds the outcomes of one harness run.
type Result struct {
	// Dir is the root of the materialized project tree.
	Dir string

	// Fragment is the emitted text, empty on failure.
	Fragment string

	// Err is the evaluation error, nil on success.
	Err error

	// LogOutput is everything the evaluation logged.
	LogOutput string
}

// WriteTree materializes files (relative path to content) under a fresh
// temporary directory and returns its root.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// Context returns a context carrying a debug-level logger writing to buf.
func Context(buf *SafeBuffer) context.Context {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// RunEvaluation materializes files, evaluates the module at the relative
// path entry, and returns the captured outcomes.
func RunEvaluation(t *testing.T, files map[string]string, entry string, opts preval.Options) *Result {
	t.Helper()

	dir := WriteTree(t, files)
	logBuffer := &SafeBuffer{}
	ctx := Context(logBuffer)

	fragment, err := preval.Run(ctx, filepath.Join(dir, entry), opts)

	if os.Getenv("PREVAL_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &Result{
		Dir:       dir,
		Fragment:  fragment,
		Err:       err,
		LogOutput: logBuffer.String(),
	}
}
