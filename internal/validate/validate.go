// Package validate gates evaluation results before they are encoded. A
// result may only contain pure data — string-keyed records, ordered
// sequences, strings, finite numbers, booleans, and None — because anything
// else cannot be losslessly re-parsed by the consuming build step.
//
// The gate is hard: a value that fails here fails the whole evaluation.
// Silently dropping the offending field would only surface much later, as a
// confusing missing value in whatever consumes the fragment.
package validate

import (
	"fmt"
	"math"
	"reflect"

	"go.starlark.net/starlark"
)

// Error reports a value that cannot be represented as static data.
type Error struct {
	// ResourcePath is the module whose result failed validation.
	ResourcePath string

	// Path locates the offending value inside the result, e.g. "fn" or
	// "items[2].callback". Empty means the result itself.
	Path string

	// Reason describes what made the value unserializable.
	Reason string
}

func (e *Error) Error() string {
	at := e.Path
	if at == "" {
		at = "the result value"
	}
	return fmt.Sprintf("cannot serialize the result of %s: %s at %s", e.ResourcePath, e.Reason, at)
}

// Validate walks value and returns an *Error for the first non-data
// construct it finds: a callable, a circular reference, a non-string record
// key, a non-finite number, or any other unsupported kind.
func Validate(resourcePath string, value starlark.Value) error {
	w := &walker{resourcePath: resourcePath, ancestors: map[uintptr]bool{}}
	return w.walk(value, "")
}

type walker struct {
	resourcePath string

	// ancestors holds the identities of the mutable containers on the
	// current traversal path. Any cycle must pass through a mutable
	// container, so tracking dicts and lists is sufficient.
	ancestors map[uintptr]bool
}

func (w *walker) walk(value starlark.Value, path string) error {
	switch v := value.(type) {
	case starlark.NoneType, starlark.Bool, starlark.String, starlark.Int:
		return nil

	case starlark.Float:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return w.fail(path, "non-finite number %v", f)
		}
		return nil

	case *starlark.Dict:
		return w.walkRecord(v, path)

	case *starlark.List:
		id := reflect.ValueOf(v).Pointer()
		if w.ancestors[id] {
			return w.fail(path, "circular reference")
		}
		w.ancestors[id] = true
		defer delete(w.ancestors, id)
		return w.walkSequence(v, path)

	case starlark.Tuple:
		return w.walkSequence(v, path)

	case starlark.Callable:
		return w.fail(path, "a function (%s)", v.Name())

	default:
		return w.fail(path, "an unsupported %s value", value.Type())
	}
}

func (w *walker) walkRecord(d *starlark.Dict, path string) error {
	id := reflect.ValueOf(d).Pointer()
	if w.ancestors[id] {
		return w.fail(path, "circular reference")
	}
	w.ancestors[id] = true
	defer delete(w.ancestors, id)

	for _, item := range d.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return w.fail(path, "a record keyed by %s (keys must be strings)", item[0].Type())
		}
		if err := w.walk(item[1], childPath(path, string(key))); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkSequence(seq starlark.Indexable, path string) error {
	for i := 0; i < seq.Len(); i++ {
		if err := w.walk(seq.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) fail(path, format string, args ...any) error {
	return &Error{
		ResourcePath: w.resourcePath,
		Path:         path,
		Reason:       fmt.Sprintf(format, args...),
	}
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
