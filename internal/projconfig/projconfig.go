// Package projconfig discovers and loads the project-level preval
// configuration. The configuration is optional: a project without a
// preval.hcl (or preval.json) simply evaluates with default resolution and
// default extensions. Loading is deliberately forgiving — any failure to
// find, parse, or decode the file is treated as "no configuration" rather
// than as an error, because alias configuration is a best-effort enhancement
// and must never break an evaluation on its own.
package projconfig

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/fsutil"
)

// candidateNames are the recognized configuration file names, probed in order
// within each directory on the upward search.
var candidateNames = []string{"preval.hcl", "preval.json"}

// Config is the decoded project configuration.
type Config struct {
	// Path is the absolute path of the configuration file this Config was
	// decoded from.
	Path string

	// RootDir is the directory containing the configuration file. It is the
	// project root for the evaluation that discovered this Config.
	RootDir string

	// BaseDir is the directory alias targets are resolved against. Relative
	// values in the file are resolved against RootDir; it defaults to RootDir.
	BaseDir string

	// Paths maps an alias pattern (at most one '*') to its candidate targets.
	Paths map[string][]string

	// Patterns holds the keys of Paths in matching order: longer (more
	// specific) patterns first, ties broken lexically, so resolution is
	// deterministic regardless of source ordering.
	Patterns []string

	// Extensions optionally overrides the recognized source extensions.
	Extensions []string
}

// Discover walks upward from startDir looking for a configuration file. It
// returns the empty string when no candidate exists anywhere up the tree.
func Discover(startDir string) string {
	dir := startDir
	for {
		for _, name := range candidateNames {
			candidate := filepath.Join(dir, name)
			if fsutil.IsFile(candidate) {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load discovers and decodes the project configuration for the project
// containing startDir. It returns nil when the configuration is absent or
// unusable; the reason is logged at debug level and then forgotten.
func Load(ctx context.Context, startDir string) *Config {
	logger := ctxlog.FromContext(ctx)

	path := Discover(startDir)
	if path == "" {
		logger.Debug("No project configuration found.", "start_dir", startDir)
		return nil
	}

	cfg, err := parseFile(path)
	if err != nil {
		logger.Debug("Project configuration unusable, falling back to defaults.",
			"path", path, "error", err)
		return nil
	}

	logger.Debug("Project configuration loaded.",
		"path", path, "aliases", len(cfg.Paths), "base_dir", cfg.BaseDir)
	return cfg
}

// parseFile parses and decodes one configuration file. HCL native syntax and
// HCL JSON syntax are both accepted, keyed on the file extension.
func parseFile(path string) (*Config, error) {
	parser := hclparse.NewParser()

	var file *hcl.File
	var diags hcl.Diagnostics
	if strings.HasSuffix(path, ".json") {
		file, diags = parser.ParseJSONFile(path)
	} else {
		file, diags = parser.ParseHCLFile(path)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	rootDir := filepath.Dir(path)
	cfg := &Config{
		Path:    path,
		RootDir: rootDir,
		BaseDir: rootDir,
		Paths:   map[string][]string{},
	}

	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}

		switch name {
		case "base_dir":
			if val.Type() != cty.String {
				return nil, hcl.Diagnostics{&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "base_dir must be a string",
					Subject:  attr.Range.Ptr(),
				}}
			}
			base := val.AsString()
			if !filepath.IsAbs(base) {
				base = filepath.Join(rootDir, base)
			}
			cfg.BaseDir = base

		case "extensions":
			exts, err := stringList(val)
			if err != nil {
				return nil, err
			}
			cfg.Extensions = exts

		case "paths":
			if !val.CanIterateElements() {
				return nil, hcl.Diagnostics{&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "paths must be a mapping from alias pattern to target(s)",
					Subject:  attr.Range.Ptr(),
				}}
			}
			for it := val.ElementIterator(); it.Next(); {
				key, elem := it.Element()
				if key.Type() != cty.String {
					continue
				}
				targets, err := stringList(elem)
				if err != nil {
					return nil, err
				}
				cfg.Paths[key.AsString()] = targets
			}

		default:
			// Unknown attributes are ignored so the file can carry settings
			// for outer tooling without breaking this loader.
		}
	}

	cfg.Patterns = orderPatterns(cfg.Paths)
	return cfg, nil
}

// stringList accepts a single string or any iterable of strings.
func stringList(val cty.Value) ([]string, error) {
	if val.Type() == cty.String {
		return []string{val.AsString()}, nil
	}
	if !val.CanIterateElements() {
		return nil, hcl.Diagnostics{&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "expected a string or a list of strings",
		}}
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.Type() != cty.String {
			return nil, hcl.Diagnostics{&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "expected a string or a list of strings",
			}}
		}
		out = append(out, elem.AsString())
	}
	return out, nil
}

// orderPatterns sorts alias patterns most-specific-first. Specificity is the
// length of the literal text around the wildcard; ties break lexically.
func orderPatterns(paths map[string][]string) []string {
	patterns := make([]string, 0, len(paths))
	for p := range paths {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		li := len(strings.ReplaceAll(patterns[i], "*", ""))
		lj := len(strings.ReplaceAll(patterns[j], "*", ""))
		if li != lj {
			return li > lj
		}
		return patterns[i] < patterns[j]
	})
	return patterns
}

