// Package either provides a value that is one of two things: a Left, which by
// convention carries a typed failure, or a Right, which carries a success value.
// It is how typed (non-error) failures flow through retry, breaker and saga code.
package either

// Either holds exactly one of a Left or a Right value.
type Either[L, R any] struct {
	left    L
	right   R
	isRight bool
}

// Left builds an Either holding a failure.
func Left[L, R any](value L) Either[L, R] {
	return Either[L, R]{left: value}
}

// Right builds an Either holding a success.
func Right[L, R any](value R) Either[L, R] {
	return Either[L, R]{right: value, isRight: true}
}

func (e Either[L, R]) IsLeft() bool {
	return !e.isRight
}

func (e Either[L, R]) IsRight() bool {
	return e.isRight
}

// GetLeft returns the Left value and whether the Either is a Left.
func (e Either[L, R]) GetLeft() (L, bool) { //nolint:ireturn
	return e.left, !e.isRight
}

// GetRight returns the Right value and whether the Either is a Right.
func (e Either[L, R]) GetRight() (R, bool) { //nolint:ireturn
	return e.right, e.isRight
}

func (e Either[L, R]) GetOrElse(defaultValue R) R { //nolint:ireturn
	if e.isRight {
		return e.right
	}

	return defaultValue
}

// Swap turns a Left into a Right and vice versa.
func (e Either[L, R]) Swap() Either[R, L] {
	if e.isRight {
		return Left[R, L](e.right)
	}

	return Right[R, L](e.left)
}

// Fold collapses the Either into a single value.
func Fold[L, R, T any](e Either[L, R], onLeft func(L) T, onRight func(R) T) T { //nolint:ireturn
	if e.isRight {
		return onRight(e.right)
	}

	return onLeft(e.left)
}

// Map transforms the Right value, leaving a Left untouched.
func Map[L, R, T any](e Either[L, R], f func(R) T) Either[L, T] {
	if e.isRight {
		return Right[L](f(e.right))
	}

	return Left[L, T](e.left)
}

// FlatMap chains a computation that may itself fail.
func FlatMap[L, R, T any](e Either[L, R], f func(R) Either[L, T]) Either[L, T] {
	if e.isRight {
		return f(e.right)
	}

	return Left[L, T](e.left)
}

// FromResult lifts a Go (value, error) pair into an Either with an error Left.
func FromResult[R any](value R, err error) Either[error, R] {
	if err != nil {
		return Left[error, R](err)
	}

	return Right[error](value)
}

// ToResult lowers an error-typed Either back into a (value, error) pair.
func ToResult[R any](e Either[error, R]) (R, error) { //nolint:ireturn
	if e.isRight {
		return e.right, nil
	}

	var zero R

	return zero, e.left
}
