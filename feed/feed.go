// Package feed assembles validated events into one materialized calendar
// feed. Each assembly pass is a pure function of its inputs: events, the
// expansion window, and an explicit generation time. The assembler keeps no
// state between passes.
package feed

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shinbukan/icsfeed/event"
	"github.com/shinbukan/icsfeed/recurrence"
	"github.com/shinbukan/icsfeed/temporal"
)

// uidNamespace scopes derived occurrence UIDs. Never change this value:
// calendar clients rely on UID stability across regenerations to recognize
// updates instead of duplicating entries.
var uidNamespace = uuid.MustParse("5c1f8a46-9c0b-4a70-9e37-8ec9713d7a21")

// Metadata is the feed-level header information.
type Metadata struct {
	// ProdID is the RFC 5545 product identifier.
	ProdID string
	// Name is the calendar display name.
	Name string
	// Refresh is the client refresh hint; zero omits it from the output.
	Refresh time.Duration
}

// Entry is one VEVENT-to-be: a single event, or one materialized occurrence
// of a recurring series.
type Entry struct {
	UID         string
	Start       temporal.Instant
	End         temporal.Instant
	Summary     string
	Location    string
	Description string
	URL         string
}

// Feed is the fully materialized input to the serializer. It owns its
// entries exclusively for the duration of serialization.
type Feed struct {
	Metadata

	// Generated is the pass's explicit "now", emitted as DTSTAMP. It is a
	// parameter rather than a process-wide clock so output is reproducible.
	Generated time.Time

	Entries []Entry
}

// Warning reports a schedule entry that failed validation or expansion and
// was excluded from the feed. One bad entry never takes down the calendar.
type Warning struct {
	EventID string
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("event %s excluded: %v", w.EventID, w.Err)
}

// Assemble expands events into a Feed bounded by window. Recurring events
// run through the recurrence engine; non-recurring events are included when
// their start falls inside the window. Data-integrity failures demote the
// affected event to a warning.
func Assemble(meta Metadata, events []event.Event, window temporal.Window, now time.Time) (Feed, []Warning) {
	f := Feed{Metadata: meta, Generated: now.UTC()}
	var warnings []Warning

	for i := range events {
		ev := &events[i]
		if err := ev.Validate(); err != nil {
			warnings = append(warnings, Warning{EventID: ev.ID, Err: err})
			continue
		}

		entries, err := materialize(ev, window)
		if err != nil {
			warnings = append(warnings, Warning{EventID: ev.ID, Err: err})
			continue
		}
		f.Entries = append(f.Entries, entries...)
	}

	return f, warnings
}

func materialize(ev *event.Event, window temporal.Window) ([]Entry, error) {
	rule, recurring := ev.Rule.Get()
	if !recurring {
		if !window.Contains(ev.Start) {
			return nil, nil
		}
		return []Entry{baseEntry(ev, ev.Start, ev.Start)}, nil
	}

	it, err := recurrence.Expand(rule, ev.Start, ev.Exceptions, window)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for {
		occ, ok := it.Next()
		if !ok {
			break
		}
		entries = append(entries, occurrenceEntry(ev, occ))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func baseEntry(ev *event.Event, start, original temporal.Instant) Entry {
	return Entry{
		UID:         occurrenceUID(ev.ID, original),
		Start:       start,
		End:         endFor(ev, start),
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		URL:         ev.URL,
	}
}

func occurrenceEntry(ev *event.Event, occ recurrence.Occurrence) Entry {
	// UID keys off the original slot: a rescheduled occurrence keeps its
	// identity, so clients see an update rather than a new event.
	e := baseEntry(ev, occ.Start, occ.Original)

	if end, ok := occ.Override.End.Get(); ok {
		e.End = end
	}
	if s, ok := occ.Override.Summary.Get(); ok {
		e.Summary = s
	}
	if l, ok := occ.Override.Location.Get(); ok {
		e.Location = l
	}
	if d, ok := occ.Override.Description.Get(); ok {
		e.Description = d
	}
	return e
}

// endFor shifts the event's span onto the given occurrence start.
func endFor(ev *event.Event, start temporal.Instant) temporal.Instant {
	if ev.Start.AllDay() {
		days := int(ev.EffectiveEnd().Time().Sub(ev.Start.Time()) / (24 * time.Hour))
		return start.AddDays(days)
	}
	return temporal.FromTime(start.Time().Add(ev.Span()))
}

// occurrenceUID derives the stable identifier for one occurrence from the
// event identity and the occurrence instant, with no persisted state.
func occurrenceUID(eventID string, original temporal.Instant) string {
	return uuid.NewSHA1(uidNamespace, []byte(eventID+"\x00"+original.Key())).String()
}
