package pty

import "github.com/pkg/errors"

// Result is the closed error taxonomy spec.md §6 defines for the C-ABI
// surface. Internally, functions return ordinary Go errors (often wrapping
// one of these sentinels with github.com/pkg/errors for context); the
// C-ABI layer maps any internal error back to the matching Result.
type Result int

const (
	Ok Result = iota
	ErrOpen
	ErrSpawn
	ErrResize
	ErrRead
	ErrWrite
	ErrNull
	ErrWait
	ErrKill
	ErrMode
	ErrSize
	ErrWaitBlocking
	ErrProcessGroup
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "Ok"
	case ErrOpen:
		return "ErrOpen"
	case ErrSpawn:
		return "ErrSpawn"
	case ErrResize:
		return "ErrResize"
	case ErrRead:
		return "ErrRead"
	case ErrWrite:
		return "ErrWrite"
	case ErrNull:
		return "ErrNull"
	case ErrWait:
		return "ErrWait"
	case ErrKill:
		return "ErrKill"
	case ErrMode:
		return "ErrMode"
	case ErrSize:
		return "ErrSize"
	case ErrWaitBlocking:
		return "ErrWaitBlocking"
	case ErrProcessGroup:
		return "ErrProcessGroup"
	default:
		return "ErrUnknown"
	}
}

func (r Result) Error() string { return r.String() }

// resultError pairs a closed-taxonomy kind with the underlying cause, so the
// C-ABI layer can recover the kind via errors.Is while callers further up
// still see the full pkg/errors-decorated message and stack.
type resultError struct {
	kind  Result
	cause error
}

func (e *resultError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.cause.Error()
}

func (e *resultError) Unwrap() error { return e.cause }

func (e *resultError) Is(target error) bool {
	kind, ok := target.(Result)
	return ok && kind == e.kind
}

// wrapErr decorates cause with pkg/errors context (stack + message) while
// keeping kind as the sentinel errors.Is callers (and the C-ABI layer) match
// against.
func wrapErr(kind Result, cause error) error {
	if cause == nil {
		return kind
	}
	return &resultError{kind: kind, cause: errors.WithStack(cause)}
}

// ResultOf maps an error produced by this package back to its Result kind,
// defaulting to fallback when err doesn't wrap a known kind. Used by the
// C-ABI layer, which only ever surfaces the closed enum.
func ResultOf(err error, fallback Result) Result {
	if err == nil {
		return Ok
	}
	for _, kind := range []Result{
		ErrOpen, ErrSpawn, ErrResize, ErrRead, ErrWrite, ErrNull,
		ErrWait, ErrKill, ErrMode, ErrSize, ErrWaitBlocking, ErrProcessGroup,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return fallback
}
