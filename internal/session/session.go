// Package session owns the source-transform pipeline for one evaluation.
//
// Starting a session registers, process-wide, the machinery that compiles the
// target module and everything it loads: the fixed interpreter baseline, the
// source-transform chain (applied to every loaded file — dependencies are not
// exempt, since workspace-linked dependencies may themselves be untranspiled
// source), and the specifier rewrite that delegates to the path-alias
// resolver. Ending a session reverses the registration unconditionally.
//
// The registration is the single shared mutable resource in this program: a
// leaked session would bleed one evaluation's transform configuration into
// the next one executed in the same process. Sessions are therefore explicit
// caller-owned objects whose End must be paired with Start on every exit
// path, and a package-level mutex serializes whole evaluations so that at
// most one session is ever active per process.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/resolver"
)

// fileOptions is the fixed target-environment baseline every module in a
// session is compiled against. It is pinned rather than configurable so that
// a fragment produced on one machine is reproducible on any other.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  false,
	Recursion:       true,
}

// Transform rewrites the source text of one module before compilation.
type Transform func(path string, src []byte) ([]byte, error)

// Options configures a session.
type Options struct {
	// Resolver rewrites load() specifiers. Required; use resolver.New(nil)
	// for alias-free resolution.
	Resolver *resolver.Resolver

	// Extensions is the ordered set of recognized source suffixes used when
	// probing specifiers. Required, non-empty.
	Extensions []string

	// Predeclared is the environment every module in the session compiles
	// against: the mocked host binding and the preval builtins.
	Predeclared starlark.StringDict

	// Transforms extends the default source-transform chain. The defaults
	// always run first.
	Transforms []Transform
}

var (
	// runMu serializes evaluations. The original design assumed evaluations
	// never overlap within one process; Go hosts do overlap them, so the
	// exactly-one-active-session invariant is enforced with a lock instead
	// of being assumed.
	runMu sync.Mutex

	// activeFlag mirrors whether a session currently holds runMu, for
	// observation without touching the lock.
	activeFlag atomic.Bool
)

// Active reports whether a session is currently registered process-wide.
func Active() bool {
	return activeFlag.Load()
}

// Session is one evaluation's registration of the transform pipeline.
type Session struct {
	resolver    *resolver.Resolver
	extensions  []string
	predeclared starlark.StringDict
	transforms  []Transform

	// cache holds modules loaded during this session only. It dies with the
	// session, so nothing is ever served from a previous evaluation.
	cache map[string]*moduleEntry

	// loading tracks in-flight loads for cycle detection.
	loading map[string]bool

	// stack tracks the chain of files currently being loaded; the top entry
	// is the importer of whatever specifier arrives next.
	stack []string

	endOnce sync.Once
}

type moduleEntry struct {
	globals starlark.StringDict
	err     error
}

// Start validates opts and registers a new session, blocking until any
// previously active session has ended. Failure to start propagates: a
// session that cannot start is fatal to its evaluation.
func Start(ctx context.Context, opts Options) (*Session, error) {
	logger := ctxlog.FromContext(ctx)

	if opts.Resolver == nil {
		return nil, errors.New("session: Options.Resolver is required")
	}
	if len(opts.Extensions) == 0 {
		return nil, errors.New("session: Options.Extensions must not be empty")
	}

	runMu.Lock()
	activeFlag.Store(true)

	s := &Session{
		resolver:    opts.Resolver,
		extensions:  opts.Extensions,
		predeclared: opts.Predeclared,
		transforms:  append([]Transform{stripBOM, normalizeNewlines}, opts.Transforms...),
		cache:       map[string]*moduleEntry{},
		loading:     map[string]bool{},
	}

	logger.Debug("Transform session started.",
		"extensions", strings.Join(opts.Extensions, ","),
		"aliased", opts.Resolver.Aliased())
	return s, nil
}

// End reverses the registration. It is safe to call more than once and from
// any exit path; only the first call has effect.
func (s *Session) End(ctx context.Context) {
	s.endOnce.Do(func() {
		logger := ctxlog.FromContext(ctx)
		s.cache = nil
		s.loading = nil
		s.stack = nil
		activeFlag.Store(false)
		runMu.Unlock()
		logger.Debug("Transform session ended.")
	})
}

// Load implements starlark.Thread.Load for this session. The specifier is
// resolved relative to the file currently being loaded.
func (s *Session) Load(thread *starlark.Thread, specifier string) (starlark.StringDict, error) {
	importer := ""
	if len(s.stack) > 0 {
		importer = s.stack[len(s.stack)-1]
	}
	return s.loadFrom(thread, specifier, importer)
}

// LoadModule loads the session's entry module by absolute path.
func (s *Session) LoadModule(thread *starlark.Thread, path string) (starlark.StringDict, error) {
	return s.loadFrom(thread, path, path)
}

func (s *Session) loadFrom(thread *starlark.Thread, specifier, importer string) (starlark.StringDict, error) {
	if s.cache == nil {
		return nil, errors.New("session: load after End")
	}

	ctx := context.Background()
	if threadCtx, ok := thread.Local("ctx").(context.Context); ok {
		ctx = threadCtx
	}

	path, ok := s.resolver.Resolve(ctx, specifier, importer, s.extensions)
	if !ok {
		return nil, fmt.Errorf("cannot resolve %q imported from %s", specifier, importer)
	}

	if entry, ok := s.cache[path]; ok {
		return entry.globals, entry.err
	}
	if s.loading[path] {
		return nil, fmt.Errorf("load cycle involving %s", path)
	}

	s.loading[path] = true
	s.stack = append(s.stack, path)
	globals, err := s.execute(thread, path)
	s.stack = s.stack[:len(s.stack)-1]
	delete(s.loading, path)

	s.cache[path] = &moduleEntry{globals: globals, err: err}
	return globals, err
}

// execute reads, transforms, and compiles one file. JSON files are data
// modules: they decode into a single binding named "data".
func (s *Session) execute(thread *starlark.Thread, path string) (starlark.StringDict, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	for _, transform := range s.transforms {
		if src, err = transform(path, src); err != nil {
			return nil, fmt.Errorf("transforming %s: %w", path, err)
		}
	}

	if filepath.Ext(path) == ".json" {
		value, err := decodeJSONModule(thread, string(src))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		// Frozen like executed module globals: the entry may be served to
		// several importers within the session.
		value.Freeze()
		return starlark.StringDict{"data": value}, nil
	}

	return starlark.ExecFileOptions(fileOptions, thread, path, src, s.predeclared)
}

// decodeJSONModule parses a JSON data module with the interpreter's own
// decoder, so its value model matches what compiled modules produce.
func decodeJSONModule(thread *starlark.Thread, src string) (starlark.Value, error) {
	decode, ok := starlarkjson.Module.Members["decode"]
	if !ok {
		return nil, errors.New("json decoder unavailable")
	}
	return starlark.Call(thread, decode, starlark.Tuple{starlark.String(src)}, nil)
}

func stripBOM(_ string, src []byte) ([]byte, error) {
	return []byte(strings.TrimPrefix(string(src), "\uFEFF")), nil
}

func normalizeNewlines(_ string, src []byte) ([]byte, error) {
	return []byte(strings.ReplaceAll(string(src), "\r\n", "\n")), nil
}
