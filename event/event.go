// Package event holds the validated calendar entry model: a single
// occurrence or a recurring series with its exception set. Events are built
// once per feed-generation pass from source schedule data and treated as
// immutable afterwards.
package event

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/shinbukan/icsfeed/recurrence"
	"github.com/shinbukan/icsfeed/temporal"
)

// InvalidEvent reports the first invariant an event violates. Validation is
// fail-fast in a fixed order so error messages are reproducible: identity,
// summary, time bounds, recurrence rule, exceptions.
type InvalidEvent struct {
	ID      string
	Message string
}

func (e *InvalidEvent) Error() string {
	if e.ID == "" {
		return "invalid event: " + e.Message
	}
	return fmt.Sprintf("invalid event %s: %s", e.ID, e.Message)
}

// Event is one schedule entry.
//
// ID is the stable identity token; it must not change across regenerations
// of the feed, since occurrence UIDs are derived from it. End may be zero
// for point-in-time entries and single all-day dates, in which case it is
// read as equal to Start.
type Event struct {
	ID          string
	Summary     string
	Location    string
	Description string
	URL         string

	Start temporal.Instant
	End   temporal.Instant

	Rule       mo.Option[recurrence.Rule]
	Exceptions []recurrence.Exception
}

// Recurring reports whether the event carries a recurrence rule.
func (e *Event) Recurring() bool { return e.Rule.IsPresent() }

// EffectiveEnd returns End, or Start when no end was supplied.
func (e *Event) EffectiveEnd() temporal.Instant {
	if e.End.IsZero() {
		return e.Start
	}
	return e.End
}

// Span is the duration between start and effective end.
func (e *Event) Span() time.Duration {
	return e.EffectiveEnd().Time().Sub(e.Start.Time())
}

// Validate checks the construction invariants, failing on the first
// violation in the documented order.
func (e *Event) Validate() error {
	if e.ID == "" {
		return &InvalidEvent{Message: "missing identity token"}
	}
	if e.Summary == "" {
		return &InvalidEvent{ID: e.ID, Message: "missing summary"}
	}

	if e.Start.IsZero() {
		return &InvalidEvent{ID: e.ID, Message: "missing start instant"}
	}
	if !e.End.IsZero() {
		if e.End.AllDay() != e.Start.AllDay() {
			return &InvalidEvent{ID: e.ID, Message: "start and end mix all-day and timed instants"}
		}
		if e.End.Before(e.Start) {
			return &InvalidEvent{ID: e.ID, Message: "end precedes start"}
		}
	}

	if rule, ok := e.Rule.Get(); ok {
		if err := rule.Validate(); err != nil {
			return &InvalidEvent{ID: e.ID, Message: fmt.Sprintf("recurrence rule: %v", err)}
		}
	} else if len(e.Exceptions) > 0 {
		return &InvalidEvent{ID: e.ID, Message: "exceptions without a recurrence rule"}
	}

	seen := make(map[string]bool, len(e.Exceptions))
	for _, ex := range e.Exceptions {
		if ex.Key.IsZero() {
			return &InvalidEvent{ID: e.ID, Message: "exception without an occurrence key"}
		}
		k := ex.Key.Key()
		if seen[k] {
			return &InvalidEvent{ID: e.ID, Message: "duplicate exception key " + k}
		}
		seen[k] = true
		if ex.Key.AllDay() != e.Start.AllDay() {
			return &InvalidEvent{ID: e.ID, Message: "exception key " + k + " mixes all-day and timed instants"}
		}
		if s, ok := ex.Override.Start.Get(); ok && s.AllDay() != e.Start.AllDay() {
			return &InvalidEvent{ID: e.ID, Message: "replacement start for " + k + " mixes all-day and timed instants"}
		}
		if ex.Cancelled && ex.Override != (recurrence.Override{}) {
			return &InvalidEvent{ID: e.ID, Message: "exception " + k + " is both cancelled and overridden"}
		}
	}

	return nil
}
