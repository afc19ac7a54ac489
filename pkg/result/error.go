package result

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/furrow/pkg/core"
)

// Kind classifies a failure at the service boundary.
type Kind int

const (
	// Exception covers store, mapping and concurrency faults.
	Exception Kind = iota
	NotFound
	ArgumentNull
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case ArgumentNull:
		return "argument_null"
	default:
		return "exception"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNotFound     = &Error{Kind: NotFound, Message: "not found"}
	ErrArgumentNull = &Error{Kind: ArgumentNull, Message: "argument is null"}
	ErrException    = &Error{Kind: Exception, Message: "exception"}
)

// Error is the failure carried by a Result.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches other errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewNotFound builds a NotFound error.
func NewNotFound(what string) *Error {
	return &Error{Kind: NotFound, Message: what + " not found", Cause: core.ErrNotFound}
}

// NewArgumentNull builds an ArgumentNull error for the named parameter.
func NewArgumentNull(param string) *Error {
	return &Error{Kind: ArgumentNull, Message: fmt.Sprintf("argument %q is null", param), Cause: core.ErrArgumentNull}
}

// NewException wraps err as an Exception.
func NewException(err error) *Error {
	msg := "exception"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: Exception, Message: msg, Cause: err}
}

// Classify converts any error into an *Error, keeping an existing kind.
// Errors wrapping core.ErrNotFound or core.ErrArgumentNull get the matching kind.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		if re == err {
			return re
		}
		return &Error{Kind: re.Kind, Message: err.Error(), Cause: err}
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		return &Error{Kind: NotFound, Message: err.Error(), Cause: err}
	case errors.Is(err, core.ErrArgumentNull):
		return &Error{Kind: ArgumentNull, Message: err.Error(), Cause: err}
	default:
		return NewException(err)
	}
}

// KindOf returns the kind err would be classified as.
func KindOf(err error) Kind {
	return Classify(err).Kind
}

func recovered(v any) *Error {
	if err, ok := v.(error); ok {
		return &Error{Kind: Exception, Message: "panic: " + err.Error(), Cause: err}
	}
	return &Error{Kind: Exception, Message: fmt.Sprintf("panic: %v", v)}
}

func cancelled(ctx context.Context) *Error {
	if err := ctx.Err(); err != nil {
		return NewException(err)
	}
	return nil
}
