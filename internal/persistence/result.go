package persistence

import "time"

// Result is the outcome of a storage operation. A failed Result still
// carries a usable value (the defaults, for a failed load); its error is for
// diagnostics and never needs to be handled.
type Result[T any] struct {
	value     T
	err       error
	op        string
	createdAt time.Time
}

func Success[T any](op string, v T) Result[T] {
	return Result[T]{value: v, op: op, createdAt: time.Now().UTC()}
}

func Fallback[T any](op string, v T, err error) Result[T] {
	return Result[T]{value: v, err: err, op: op, createdAt: time.Now().UTC()}
}

func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Err() error { return r.err }

func (r Result[T]) IsSuccess() bool { return r.err == nil }

// Op names the operation: "load", "save" or "purge".
func (r Result[T]) Op() string { return r.op }

func (r Result[T]) CreatedAt() time.Time { return r.createdAt }
