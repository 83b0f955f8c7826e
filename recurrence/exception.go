package recurrence

import (
	"fmt"

	"github.com/samber/mo"

	"github.com/shinbukan/icsfeed/temporal"
)

// Exception modifies or cancels a single occurrence of a recurring series.
// Key is the occurrence instant the rule itself generates; a key that lies
// off the rule's timeline is a data-integrity error, never silently ignored.
type Exception struct {
	Key       temporal.Instant
	Cancelled bool
	Override  Override
}

// Override carries the replaced fields of a modified occurrence. Absent
// fields keep the base event's values. A present Start moves the occurrence
// to the replacement time; otherwise it stays at its original slot.
type Override struct {
	Start       mo.Option[temporal.Instant]
	End         mo.Option[temporal.Instant]
	Summary     mo.Option[string]
	Location    mo.Option[string]
	Description mo.Option[string]
}

// Occurrence is one resolved, active instance of a recurring series.
// Cancelled instances are never surfaced.
type Occurrence struct {
	// Start is the effective start: the original slot, or the replacement
	// start when the matching exception carries one.
	Start temporal.Instant

	// Original is the slot generated by the rule. Occurrence identity (UID
	// derivation) keys off Original so a rescheduled occurrence keeps its
	// identity.
	Original temporal.Instant

	// Override holds the exception's replacement fields; the zero value
	// means the occurrence is unmodified.
	Override Override
}

// UnmatchedException reports an exception keyed to an instant the rule never
// produces.
type UnmatchedException struct {
	Key string
}

func (e *UnmatchedException) Error() string {
	return fmt.Sprintf("exception key %s matches no occurrence of the rule", e.Key)
}

// ExceptionOrderingConflict reports a replacement start that would break the
// strictly ascending order of the occurrence sequence. The engine signals it
// instead of reordering or emitting a malformed sequence.
type ExceptionOrderingConflict struct {
	Key      string // original slot of the conflicting occurrence
	Moved    string // its effective start
	Previous string // effective start of the preceding emitted occurrence
}

func (e *ExceptionOrderingConflict) Error() string {
	return fmt.Sprintf("replacement for occurrence %s starts at %s, not after preceding occurrence %s",
		e.Key, e.Moved, e.Previous)
}
