// Package encode turns a validated evaluation result into the embeddable
// fragment returned to the build tool.
//
// The fragment is one assignment whose right-hand side re-parses an embedded
// JSON string: `exports = json.decode("...")`. The value is double-encoded —
// serialized to JSON, then quoted as source text — because a quoted data
// literal is far cheaper for downstream tooling to parse than the equivalent
// literal expression tree, and the fragment may be large and re-parsed on
// every later build step.
package encode

import (
	"errors"
	"fmt"
	"strconv"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
)

// Fragment encodes value into the embeddable assignment statement. The
// output is deterministic: record keys keep the order in which the user's
// computation produced them.
func Fragment(value starlark.Value) (string, error) {
	text, err := encodeJSON(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("exports = json.decode(%s)\n", strconv.Quote(text)), nil
}

// Decode is the consumer side of the contract: it evaluates a fragment the
// way the downstream bundler step does and returns the resulting value. It
// exists so the round-trip law is checkable without a real bundler.
func Decode(fragment string) (starlark.Value, error) {
	thread := &starlark.Thread{Name: "preval-decode"}
	predeclared := starlark.StringDict{"json": starlarkjson.Module}
	globals, err := starlark.ExecFile(thread, "fragment.star", fragment, predeclared)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	exports, ok := globals["exports"]
	if !ok {
		return nil, errors.New("fragment does not assign exports")
	}
	return exports, nil
}

// encodeJSON serializes value with the interpreter's own JSON encoder, which
// preserves record key order as encountered.
func encodeJSON(value starlark.Value) (string, error) {
	encode, ok := starlarkjson.Module.Members["encode"]
	if !ok {
		return "", errors.New("json encoder unavailable")
	}
	thread := &starlark.Thread{Name: "preval-encode"}
	encoded, err := starlark.Call(thread, encode, starlark.Tuple{value}, nil)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	text, ok := starlark.AsString(encoded)
	if !ok {
		return "", fmt.Errorf("unexpected encoder result of type %s", encoded.Type())
	}
	return text, nil
}
