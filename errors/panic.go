package errors

import "fmt"

// FromPanic converts a recovered panic value and optional stack trace
// into a standard error. If the panic value is nil, it returns nil.
// If the panic value is an error, it wraps it with ErrPanicRecovery.
// If the panic value is not an error, it formats it as a string and wraps it.
// If a stack trace is provided, it appends it to the error message.
func FromPanic(recovered any, stack []byte) error {
	if recovered == nil {
		return nil
	}

	if err, ok := recovered.(error); ok {
		if stack != nil {
			return fmt.Errorf("%w: %w\nstack trace:\n%s", ErrPanicRecovery, err, string(stack))
		}

		return fmt.Errorf("%w: %w", ErrPanicRecovery, err)
	}

	if stack != nil {
		return fmt.Errorf("%w: %v\nstack trace:\n%s", ErrPanicRecovery, recovered, string(stack))
	}

	return fmt.Errorf("%w: %v", ErrPanicRecovery, recovered)
}
