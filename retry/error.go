package retry

import "errors"

// ErrExhausted is returned when the retry budget refuses a retry. It is not
// returned when a schedule halts; that surfaces the last failure instead.
var ErrExhausted = errors.New("retry budget exhausted")

// Error is an error that knows whether it is worth retrying. An error whose
// Temporary method returns false stops the retry loop immediately.
type Error interface {
	Temporary() bool
	error
}

type permanentError struct {
	error
}

func (e *permanentError) Temporary() bool { return false }

func (e *permanentError) Unwrap() error {
	return e.error
}

// Abort marks err as permanent. The retry loop stops without consulting the
// schedule and returns err itself (not the wrapper).
//
//	if err := validate(req); err != nil {
//	    return retry.Abort(err)
//	}
func Abort(err error) Error {
	return &permanentError{err}
}

// permanentCause reports whether err asks the loop to stop, and the error to
// surface in that case.
func permanentCause(err error) (error, bool) {
	var retryErr Error
	if !errors.As(err, &retryErr) || retryErr.Temporary() {
		return nil, false
	}

	var p *permanentError
	if errors.As(err, &p) {
		return p.error, true
	}

	return err, true
}
