package scope

import (
	"context"
	"errors"
	"fmt"
)

// ExitKind says how a scope ended.
type ExitKind int

const (
	// Completed means the body returned without error.
	Completed ExitKind = iota
	// Failed means the body returned an error or panicked.
	Failed
	// Cancelled means the body returned because its context ended.
	Cancelled
)

func (k ExitKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("ExitKind(%d)", int(k))
	}
}

// ExitCase is handed to every release function.
type ExitCase struct {
	Kind ExitKind
	// Err is the failure that ended the scope; nil when Completed.
	Err error
}

func (e ExitCase) String() string {
	if e.Err == nil {
		return e.Kind.String()
	}

	return fmt.Sprintf("%s(%v)", e.Kind, e.Err)
}

// exitCaseFor classifies the outcome of a body run under ctx.
func exitCaseFor(ctx context.Context, err error) ExitCase {
	switch {
	case err == nil:
		return ExitCase{Kind: Completed}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return ExitCase{Kind: Cancelled, Err: err}
	default:
		return ExitCase{Kind: Failed, Err: err}
	}
}
