// Package resolver turns import specifiers into absolute file paths. It
// mirrors the project's path-alias configuration when one is present and
// falls back to default, relative-to-importer resolution when it is absent
// or when an alias does not pan out. Alias resolution is best-effort by
// contract: a misconfigured or partially matching alias must never break an
// import that default resolution could satisfy.
package resolver

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/fsutil"
	"github.com/NordcomInc/next-plugin-preval/internal/projconfig"
)

// Resolver resolves import specifiers for one evaluation. A nil configuration
// is valid and disables aliasing entirely.
type Resolver struct {
	cfg *projconfig.Config
}

// New creates a Resolver over the given project configuration, which may be nil.
func New(cfg *projconfig.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Aliased reports whether alias configuration is present.
func (r *Resolver) Aliased() bool {
	return r.cfg != nil && len(r.cfg.Patterns) > 0
}

// Resolve returns the absolute path the specifier refers to when imported
// from importingFile, probing with the recognized extensions. Alias-based
// resolution runs first; on any alias miss the default strategy decides.
// The second result is false when neither strategy finds an existing file.
func (r *Resolver) Resolve(ctx context.Context, specifier, importingFile string, extensions []string) (string, bool) {
	if path, ok := r.resolveAlias(ctx, specifier, extensions); ok {
		return path, true
	}
	return r.resolveDefault(specifier, importingFile, extensions)
}

// resolveAlias attempts alias-based resolution. Every failure mode — no
// configuration, no matching pattern, no existing candidate — reports false
// so the caller falls back; none of them is an error.
func (r *Resolver) resolveAlias(ctx context.Context, specifier string, extensions []string) (string, bool) {
	if !r.Aliased() {
		return "", false
	}
	logger := ctxlog.FromContext(ctx)

	for _, pattern := range r.cfg.Patterns {
		captured, ok := matchPattern(pattern, specifier)
		if !ok {
			continue
		}
		for _, target := range r.cfg.Paths[pattern] {
			candidate := strings.Replace(target, "*", captured, 1)
			if !filepath.IsAbs(candidate) {
				candidate = filepath.Join(r.cfg.BaseDir, candidate)
			}
			if path, ok := probe(candidate, extensions); ok {
				logger.Debug("Alias resolved specifier.",
					"specifier", specifier, "pattern", pattern, "path", path)
				return path, true
			}
		}
		logger.Debug("Alias pattern matched but no candidate exists, falling back.",
			"specifier", specifier, "pattern", pattern)
	}
	return "", false
}

// resolveDefault is the strategy the pipeline would use without aliasing:
// absolute specifiers probe as-is, everything else probes relative to the
// importing file's directory.
func (r *Resolver) resolveDefault(specifier, importingFile string, extensions []string) (string, bool) {
	candidate := specifier
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(filepath.Dir(importingFile), specifier)
	}
	return probe(candidate, extensions)
}

// matchPattern matches specifier against an alias pattern containing at most
// one '*' and returns the text the wildcard captured.
func matchPattern(pattern, specifier string) (string, bool) {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return "", pattern == specifier
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if len(specifier) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
		return "", false
	}
	return specifier[len(prefix) : len(specifier)-len(suffix)], true
}

// probe checks candidate for existence: first as a plain file (verbatim, then
// with each recognized extension appended), then as a directory with an
// index module. Files win over directory indexes.
func probe(candidate string, extensions []string) (string, bool) {
	if fsutil.IsFile(candidate) {
		return candidate, true
	}
	for _, ext := range extensions {
		if path := candidate + ext; fsutil.IsFile(path) {
			return path, true
		}
	}
	if fsutil.IsDir(candidate) {
		for _, ext := range extensions {
			if path := filepath.Join(candidate, "index"+ext); fsutil.IsFile(path) {
				return path, true
			}
		}
	}
	return "", false
}
