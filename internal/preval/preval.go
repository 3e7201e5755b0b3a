// Package preval is the core of the build-time pre-evaluation pipeline.
//
// Run takes the path of one user-authored module, compiles it with the
// project's transform configuration, executes its default export inside the
// embedded interpreter, verifies the resolved value is pure data, and returns
// the embeddable fragment a downstream bundler step treats as the module's
// compiled output. Every terminal failure crosses the boundary as an *Error.
package preval

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/encode"
	"github.com/NordcomInc/next-plugin-preval/internal/projconfig"
	"github.com/NordcomInc/next-plugin-preval/internal/resolver"
	"github.com/NordcomInc/next-plugin-preval/internal/session"
	"github.com/NordcomInc/next-plugin-preval/internal/validate"
)

// DefaultExtensions is the standard ordered set of recognized source
// suffixes, used when neither the caller nor the project overrides them.
var DefaultExtensions = []string{".star", ".bzl", ".sky", ".json"}

// Options tunes one evaluation. The zero value is valid.
type Options struct {
	// Extensions overrides the recognized source suffixes. When empty, the
	// project configuration's setting applies, then DefaultExtensions.
	Extensions []string
}

// Run performs one end-to-end evaluation of the module at resourcePath and
// returns the embeddable fragment. The transform session it registers is
// torn down on every exit path; output is deterministic for an unchanged
// module and configuration.
func Run(ctx context.Context, resourcePath string, opts Options) (string, error) {
	logger := ctxlog.FromContext(ctx)

	abs, err := filepath.Abs(resourcePath)
	if err != nil {
		return "", &Error{
			Kind:         KindExecutionFailure,
			ResourcePath: resourcePath,
			Message:      fmt.Sprintf("cannot resolve path %s: %s", resourcePath, err),
			Cause:        err,
		}
	}

	cfg := projconfig.Load(ctx, filepath.Dir(abs))

	extensions := opts.Extensions
	if len(extensions) == 0 && cfg != nil {
		extensions = cfg.Extensions
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	sess, err := session.Start(ctx, session.Options{
		Resolver:    resolver.New(cfg),
		Extensions:  extensions,
		Predeclared: predeclared(),
	})
	if err != nil {
		return "", &Error{
			Kind:         KindExecutionFailure,
			ResourcePath: abs,
			Message:      fmt.Sprintf("failed to start transform session for %s: %s", abs, err),
			Cause:        err,
		}
	}
	// execute ends the session itself; this defer is the backstop for panics
	// between here and there. End is idempotent.
	defer sess.End(ctx)

	value, err := execute(ctx, sess, abs)
	if err != nil {
		return "", err
	}

	if err := validate.Validate(abs, value); err != nil {
		return "", &Error{
			Kind:         KindSerializationFailure,
			ResourcePath: abs,
			Message:      err.Error(),
			Cause:        err,
		}
	}

	fragment, err := encode.Fragment(value)
	if err != nil {
		return "", &Error{
			Kind:         KindSerializationFailure,
			ResourcePath: abs,
			Message:      fmt.Sprintf("failed to encode the result of %s: %s", abs, err),
			Cause:        err,
		}
	}

	logger.Debug("Fragment produced.", "path", abs, "bytes", len(fragment))
	return fragment, nil
}
