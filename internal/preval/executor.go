package preval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"

	"github.com/NordcomInc/next-plugin-preval/internal/ctxlog"
	"github.com/NordcomInc/next-plugin-preval/internal/session"
)

// logTag is the fixed tag carried by the diagnostic line written when an
// execution fails.
const logTag = "preval"

// execute produces the resolved value of the target module's default export.
// It loads the module fresh through the session's pipeline, requires a
// `default` global, and awaits it. One attempt only: a failing user
// computation is terminal for the evaluation.
//
// Teardown is this function's responsibility. The session must be inactive
// by the time the result (or the failure) crosses back to the caller,
// whatever happened in between, so End is deferred before anything else.
func execute(ctx context.Context, sess *session.Session, resourcePath string) (starlark.Value, error) {
	logger := ctxlog.FromContext(ctx)
	defer sess.End(ctx)

	thread := &starlark.Thread{
		Name: "preval " + resourcePath,
		Load: sess.Load,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info(msg, "module", resourcePath)
		},
	}
	thread.SetLocal("ctx", ctx)

	logger.Debug("Loading target module.", "path", resourcePath)
	globals, err := sess.LoadModule(thread, resourcePath)
	if err != nil {
		return nil, executionFailure(logger, resourcePath, err)
	}

	exported, ok := globals["default"]
	if !ok {
		return nil, &Error{
			Kind:         KindMissingDefaultExport,
			ResourcePath: resourcePath,
			Message: fmt.Sprintf(
				"%s has no default export; did you forget to assign `default = preval(...)`?",
				resourcePath),
		}
	}

	value := exported
	if future, ok := exported.(*Future); ok {
		logger.Debug("Awaiting default export.", "path", resourcePath)
		value, err = future.Await(ctx, thread)
		if err != nil {
			return nil, executionFailure(logger, resourcePath, err)
		}
	}

	logger.Debug("Target module resolved.", "path", resourcePath, "type", value.Type())
	return value, nil
}

// executionFailure writes the best-effort diagnostic line — fixed tag plus
// the underlying trace — and wraps err into the distinguished kind.
func executionFailure(logger *slog.Logger, resourcePath string, err error) error {
	trace := err.Error()
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		trace = evalErr.Backtrace()
	}
	logger.Error("Evaluation failed.", "tag", logTag, "path", resourcePath, "trace", trace)

	return &Error{
		Kind:         KindExecutionFailure,
		ResourcePath: resourcePath,
		Message: fmt.Sprintf("failed to pre-evaluate %s: %s (see the logged trace)",
			resourcePath, err),
		Cause: err,
	}
}
