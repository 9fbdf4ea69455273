// Package result holds the outcome of one item of a batch, so a batch can
// report every item instead of stopping at the first failure.
package result

type Of[T any] struct {
	v   *T
	err error
}

// Unwrap returns the value of a successful result. It panics on a failed one.
func (r Of[T]) Unwrap() *T {
	if nil != r.err {
		panic("cannot get value of failed result: " + r.err.Error())
	}

	return r.v
}

func (r Of[T]) Err() error {
	return r.err
}

// Get returns the value and the error, exactly one of which is set.
func (r Of[T]) Get() (*T, error) {
	return r.v, r.err
}

func Ok[T any](v *T) Of[T] {
	return Of[T]{v: v, err: nil}
}

func Err[T any](err error) Of[T] {
	return Of[T]{v: nil, err: err}
}
