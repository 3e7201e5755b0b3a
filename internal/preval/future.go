package preval

import (
	"context"
	"fmt"
	"sync"

	"go.starlark.net/starlark"
)

// Future is the pending asynchronous computation created by the preval(...)
// builtin. User modules assign one to their default export:
//
//	default = preval(lambda: {"answer": 42})
//
// The wrapped callable does not run at construction time: module globals are
// still mutable while the module executes, so the computation is forced only
// after loading completes, via Await. A non-callable argument produces an
// already-resolved future, mirroring "await" on a plain value.
type Future struct {
	thunk starlark.Callable

	once  sync.Once
	value starlark.Value
	err   error
}

var _ starlark.Value = (*Future)(nil)

// NewFuture wraps v: callables become pending computations, anything else is
// already resolved.
func NewFuture(v starlark.Value) *Future {
	if thunk, ok := v.(starlark.Callable); ok {
		return &Future{thunk: thunk}
	}
	return &Future{value: v}
}

// Await forces the computation on thread and returns its result. It is
// single-flight: later calls observe the first outcome. Cancelling ctx
// cancels the running computation.
func (f *Future) Await(ctx context.Context, thread *starlark.Thread) (starlark.Value, error) {
	f.once.Do(func() {
		if f.thunk == nil {
			return
		}
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				thread.Cancel(ctx.Err().Error())
			case <-done:
			}
		}()
		f.value, f.err = starlark.Call(thread, f.thunk, nil, nil)
		close(done)
	})
	return f.value, f.err
}

// String implements starlark.Value.
func (f *Future) String() string {
	if f.thunk != nil {
		return fmt.Sprintf("<future %s>", f.thunk.Name())
	}
	return "<future resolved>"
}

// Type implements starlark.Value.
func (f *Future) Type() string { return "future" }

// Freeze implements starlark.Value. The future's own resolution state is
// guarded by sync.Once, so only the held values need freezing.
func (f *Future) Freeze() {
	if f.thunk != nil {
		f.thunk.Freeze()
	}
	if f.value != nil {
		f.value.Freeze()
	}
}

// Truth implements starlark.Value.
func (f *Future) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (f *Future) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: future")
}

// prevalBuiltin is the builtin users wrap their computation with. It accepts
// exactly one positional argument.
func prevalBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	return NewFuture(v), nil
}
