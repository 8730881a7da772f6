package capture

// Status is the outcome of an operation that produces no value. A nil Err means success.
type Status struct {
	Err error
}

// OK reports whether the operation succeeded.
func (s Status) OK() bool {
	return s.Err == nil
}

// Result is the outcome of an operation that produces a value of type T. Value is the zero value
// of T when the operation failed.
type Result[T any] struct {
	Value T
	Status
}

// Unpack returns the value and whether the operation succeeded.
func (r Result[T]) Unpack() (T, bool) {
	return r.Value, r.OK()
}

func succeeded[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Status: Status{Err: err}}
}
