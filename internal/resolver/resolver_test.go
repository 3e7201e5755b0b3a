package resolver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/projconfig"
)

var testExtensions = []string{".star", ".json"}

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolve_DefaultRelative(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	importer := writeFile(t, dir, "main.star", "")
	dep := writeFile(t, dir, "dep.star", "")
	r := New(nil)

	// --- Act ---
	path, ok := r.Resolve(testContext(), "./dep", importer, testExtensions)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, dep, path)
}

func TestResolve_ExtensionOrderWins(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	importer := writeFile(t, dir, "main.star", "")
	star := writeFile(t, dir, "dep.star", "")
	writeFile(t, dir, "dep.json", "{}")
	r := New(nil)

	// --- Act ---
	path, ok := r.Resolve(testContext(), "./dep", importer, testExtensions)

	// --- Assert ---
	// .star precedes .json in the recognized extensions, so it must win.
	require.True(t, ok)
	require.Equal(t, star, path)
}

func TestResolve_FilePreferredOverDirectoryIndex(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	importer := writeFile(t, dir, "main.star", "")
	file := writeFile(t, dir, "lib.star", "")
	writeFile(t, dir, "lib/index.star", "")
	r := New(nil)

	// --- Act ---
	path, ok := r.Resolve(testContext(), "./lib", importer, testExtensions)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, file, path)
}

func TestResolve_DirectoryIndex(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	importer := writeFile(t, dir, "main.star", "")
	index := writeFile(t, dir, "lib/index.star", "")
	r := New(nil)

	// --- Act ---
	path, ok := r.Resolve(testContext(), "./lib", importer, testExtensions)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, index, path)
}

func TestResolve_AliasMatch(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	importer := writeFile(t, dir, "pages/main.star", "")
	target := writeFile(t, dir, "src/lib/x.star", "")
	cfg := &projconfig.Config{
		RootDir:  dir,
		BaseDir:  dir,
		Paths:    map[string][]string{"@lib/*": {"src/lib/*"}},
		Patterns: []string{"@lib/*"},
	}
	r := New(cfg)

	// --- Act ---
	path, ok := r.Resolve(testContext(), "@lib/x", importer, testExtensions)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, target, path)
}

func TestResolve_AliasSecondCandidate(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	importer := writeFile(t, dir, "main.star", "")
	target := writeFile(t, dir, "fallback/x.star", "")
	cfg := &projconfig.Config{
		RootDir:  dir,
		BaseDir:  dir,
		Paths:    map[string][]string{"@lib/*": {"missing/*", "fallback/*"}},
		Patterns: []string{"@lib/*"},
	}
	r := New(cfg)

	// --- Act ---
	path, ok := r.Resolve(testContext(), "@lib/x", importer, testExtensions)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, target, path)
}

func TestResolve_AliasFallsBackToDefault(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	// The alias pattern matches but no candidate exists; the specifier must
	// then resolve exactly as the default strategy would resolve it, without
	// raising.
	dir := t.TempDir()
	importer := writeFile(t, dir, "main.star", "")
	viaDefault := writeFile(t, dir, "@lib/x.star", "")
	cfg := &projconfig.Config{
		RootDir:  dir,
		BaseDir:  dir,
		Paths:    map[string][]string{"@lib/*": {"does-not-exist/*"}},
		Patterns: []string{"@lib/*"},
	}
	r := New(cfg)

	// --- Act ---
	path, ok := r.Resolve(testContext(), "@lib/x", importer, testExtensions)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, viaDefault, path)
}

func TestResolve_NothingResolves(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	importer := writeFile(t, dir, "main.star", "")
	r := New(nil)

	// --- Act ---
	_, ok := r.Resolve(testContext(), "./nope", importer, testExtensions)

	// --- Assert ---
	require.False(t, ok)
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	captured, ok := matchPattern("@lib/*", "@lib/deep/x")
	require.True(t, ok)
	require.Equal(t, "deep/x", captured)

	_, ok = matchPattern("@lib/*", "@other/x")
	require.False(t, ok)

	captured, ok = matchPattern("exact", "exact")
	require.True(t, ok)
	require.Equal(t, "", captured)

	_, ok = matchPattern("pre*post", "preXpost")
	require.True(t, ok)
}
