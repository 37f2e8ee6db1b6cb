package saga

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrIllegalEvent is returned by MemoryJournal for an event that does not
// follow from the step's recorded status.
var ErrIllegalEvent = errors.New("illegal saga journal event")

// EventType is the kind of a journal entry for one step.
type EventType int

const (
	EventStarted EventType = iota
	EventSucceeded
	EventFailed
	EventUndoStarted
	EventUndoFinished
	EventUndoFailed
)

func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventUndoStarted:
		return "undo_started"
	case EventUndoFinished:
		return "undo_finished"
	case EventUndoFailed:
		return "undo_failed"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Event is one entry of a saga's journal.
type Event struct {
	SagaID string
	Saga   string
	Step   string
	Index  int
	Type   EventType
	Err    string
	At     time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("S%03d %s %s", e.Index, e.Step, e.Type)
}

// Journal receives every step event of a transaction, in order. A failing
// journal is logged and never changes the outcome of the saga.
type Journal interface {
	Record(ctx context.Context, event Event) error
}

// status is a step's position in its lifecycle, derived from its events.
type status int

const (
	statusNeverStarted status = iota
	statusStarted
	statusSucceeded
	statusFailed
	statusUndoStarted
	statusUndoFinished
	statusUndoFailed
)

func (s status) next(event EventType) (status, bool) {
	switch s {
	case statusNeverStarted:
		if event == EventStarted {
			return statusStarted, true
		}
	case statusStarted:
		switch event {
		case EventSucceeded:
			return statusSucceeded, true
		case EventFailed:
			return statusFailed, true
		default:
		}
	case statusSucceeded:
		if event == EventUndoStarted {
			return statusUndoStarted, true
		}
	case statusUndoStarted:
		switch event {
		case EventUndoFinished:
			return statusUndoFinished, true
		case EventUndoFailed:
			return statusUndoFailed, true
		default:
		}
	case statusFailed, statusUndoFinished, statusUndoFailed:
	}

	return s, false
}

type sagaLog struct {
	events []Event
	status map[int]status
}

// MemoryJournal keeps journals in memory, keyed by saga ID. It validates
// that each step's events follow started, succeeded or failed, then
// undo_started, undo_finished or undo_failed.
type MemoryJournal struct {
	logs *xsync.MapOf[string, sagaLog]
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		logs: xsync.NewMapOf[string, sagaLog](),
	}
}

// Record appends event to its saga's journal.
func (j *MemoryJournal) Record(_ context.Context, event Event) error {
	var recordErr error

	j.logs.Compute(event.SagaID, func(old sagaLog, loaded bool) (sagaLog, bool) {
		cur := old.status[event.Index]

		next, ok := cur.next(event.Type)
		if !ok {
			recordErr = fmt.Errorf("%w: %s after status %d for step %q",
				ErrIllegalEvent, event.Type, cur, event.Step)

			return old, !loaded
		}

		// Copy on write so readers holding an older log are unaffected.
		statuses := make(map[int]status, len(old.status)+1)
		for k, v := range old.status {
			statuses[k] = v
		}

		statuses[event.Index] = next

		return sagaLog{
			events: append(slices.Clone(old.events), event),
			status: statuses,
		}, false
	})

	return recordErr
}

// Events returns the journal of one saga, oldest first.
func (j *MemoryJournal) Events(sagaID string) []Event {
	l, ok := j.logs.Load(sagaID)
	if !ok {
		return nil
	}

	return slices.Clone(l.events)
}

// SagaIDs returns the IDs of every saga with at least one event, sorted.
func (j *MemoryJournal) SagaIDs() []string {
	ids := make([]string, 0, j.logs.Size())

	j.logs.Range(func(id string, _ sagaLog) bool {
		ids = append(ids, id)

		return true
	})

	slices.Sort(ids)

	return ids
}
