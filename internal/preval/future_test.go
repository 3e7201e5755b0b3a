package preval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestFuture_ResolvedValue(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	f := NewFuture(starlark.String("done"))

	// --- Act ---
	value, err := f.Await(context.Background(), &starlark.Thread{Name: "test"})

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, starlark.String("done"), value)
}

func TestFuture_SingleFlight(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	calls := 0
	thunk := starlark.NewBuiltin("compute", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		calls++
		return starlark.MakeInt(calls), nil
	})
	f := NewFuture(thunk)
	thread := &starlark.Thread{Name: "test"}

	// --- Act ---
	first, err := f.Await(context.Background(), thread)
	require.NoError(t, err)
	second, err := f.Await(context.Background(), thread)
	require.NoError(t, err)

	// --- Assert ---
	require.Equal(t, 1, calls, "the computation must run at most once")
	require.Equal(t, first, second)
}

func TestFuture_ValueInterface(t *testing.T) {
	t.Parallel()

	f := NewFuture(starlark.MakeInt(1))
	require.Equal(t, "future", f.Type())
	require.Equal(t, starlark.True, f.Truth())
	_, err := f.Hash()
	require.Error(t, err)
}

func TestPrevalBuiltin_RequiresOneArgument(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	builtin := starlark.NewBuiltin("preval", prevalBuiltin)
	thread := &starlark.Thread{Name: "test"}

	// --- Act / Assert ---
	_, err := starlark.Call(thread, builtin, nil, nil)
	require.Error(t, err)

	value, err := starlark.Call(thread, builtin, starlark.Tuple{starlark.MakeInt(1)}, nil)
	require.NoError(t, err)
	require.IsType(t, (*Future)(nil), value)
}
