package fn

import "fmt"

// Result holds either a value or the error that prevented producing it.
// Retry and the pipeline stages pass Results between steps.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

func Ok[T any](v T) Result[T] { return Result[T]{val: v, ok: true} }

func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Errf is Err(fmt.Errorf(format, args...)); %w wraps as usual.
func Errf[T any](format string, args ...any) Result[T] {
	return Err[T](fmt.Errorf(format, args...))
}

// FromPair lifts a (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) IsOk() bool  { return r.ok }
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and the error. The value is the zero T when the
// Result failed.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }
