// Package result carries the outcome of a data service operation: exactly one of a
// value or a classified error.
package result

import "context"

// Result is the outcome of an operation without a value.
type Result struct {
	err *Error
}

// Success returns a successful Result.
func Success() Result { return Result{} }

// Failure returns a failed Result. A nil err is classified as an Exception.
func Failure(err error) Result {
	if err == nil {
		return Result{err: NewException(nil)}
	}
	return Result{err: Classify(err)}
}

func (r Result) IsSuccess() bool { return r.err == nil }
func (r Result) IsFailure() bool { return r.err != nil }

// Err returns the failure, or nil on success.
func (r Result) Err() *Error { return r.err }

// Is reports whether the result failed with the given kind.
func (r Result) Is(kind Kind) bool { return r.err != nil && r.err.Kind == kind }

// AsError returns the failure as a plain error (nil on success).
func (r Result) AsError() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Of is the outcome of an operation producing a T.
type Of[T any] struct {
	value T
	err   *Error
}

// Ok returns a successful result carrying v.
func Ok[T any](v T) Of[T] { return Of[T]{value: v} }

// Fail returns a failed result. A nil err is classified as an Exception.
func Fail[T any](err error) Of[T] {
	if err == nil {
		return Of[T]{err: NewException(nil)}
	}
	return Of[T]{err: Classify(err)}
}

func (r Of[T]) IsSuccess() bool { return r.err == nil }
func (r Of[T]) IsFailure() bool { return r.err != nil }
func (r Of[T]) Err() *Error { return r.err }
func (r Of[T]) Is(kind Kind) bool {
	return r.err != nil && r.err.Kind == kind
}

// Value returns the value and whether the result succeeded.
func (r Of[T]) Value() (T, bool) {
	return r.value, r.err == nil
}

// OrElse returns the value on success and fallback otherwise.
func (r Of[T]) OrElse(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// Unwrap returns the value and the failure as a plain error.
func (r Of[T]) Unwrap() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}

// Result drops the value.
func (r Of[T]) Result() Result { return Result{err: r.err} }

// Wrap runs fn and turns its error or panic into a failed Result.
func Wrap(fn func() error) (res Result) {
	defer func() {
		if v := recover(); v != nil {
			res = Result{err: recovered(v)}
		}
	}()
	if err := fn(); err != nil {
		return Failure(err)
	}
	return Success()
}

// WrapValue runs fn and turns its error or panic into a failed Of.
func WrapValue[T any](fn func() (T, error)) (res Of[T]) {
	defer func() {
		if v := recover(); v != nil {
			res = Of[T]{err: recovered(v)}
		}
	}()
	v, err := fn()
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// Do is Wrap for context-aware operations. A context cancelled before the call
// yields an Exception without running fn.
func Do(ctx context.Context, fn func(context.Context) error) Result {
	if e := cancelled(ctx); e != nil {
		return Result{err: e}
	}
	return Wrap(func() error { return fn(ctx) })
}

// DoValue is WrapValue for context-aware operations.
func DoValue[T any](ctx context.Context, fn func(context.Context) (T, error)) Of[T] {
	if e := cancelled(ctx); e != nil {
		return Of[T]{err: e}
	}
	return WrapValue(func() (T, error) { return fn(ctx) })
}

// Map transforms a successful value; failures pass through unchanged.
func Map[T, U any](r Of[T], fn func(T) U) Of[U] {
	if r.err != nil {
		return Of[U]{err: r.err}
	}
	return Ok(fn(r.value))
}

// Bind chains a fallible step; failures pass through unchanged.
func Bind[T, U any](r Of[T], fn func(T) Of[U]) Of[U] {
	if r.err != nil {
		return Of[U]{err: r.err}
	}
	return fn(r.value)
}
