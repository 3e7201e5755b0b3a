package preval

// Kind classifies the terminal failure modes of an evaluation.
type Kind string

const (
	// KindMissingDefaultExport means the target module loaded but declared
	// no default export.
	KindMissingDefaultExport Kind = "missing default export"

	// KindExecutionFailure means compiling or running the target module (or
	// one of its dependencies) failed, or its computation did.
	KindExecutionFailure Kind = "execution failure"

	// KindSerializationFailure means the resolved value contains a non-data
	// construct and cannot be embedded.
	KindSerializationFailure Kind = "serialization failure"
)

// Error is the one error kind that crosses the preval boundary. Every
// terminal failure — missing default export, execution failure, rejected
// result — is wrapped into an *Error before being returned, so callers can
// present a single predictable failure surface while the underlying cause's
// text stays embedded in the message.
type Error struct {
	Kind         Kind
	ResourcePath string
	Message      string
	Cause        error
}

func (e *Error) Error() string {
	return "preval: " + e.Message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}
