// Package icsfeed turns loosely-typed schedule records into an RFC 5545
// calendar feed. Generate is the only entry point the transport layer
// consumes; everything underneath it is a pure, stateless computation.
package icsfeed

import (
	"fmt"

	"github.com/samber/mo"

	"github.com/shinbukan/icsfeed/event"
	"github.com/shinbukan/icsfeed/recurrence"
	"github.com/shinbukan/icsfeed/temporal"
)

// Record is the raw schedule shape produced by the acquisition layer.
// Recurrence and exception data arrive as text and are validated here, at
// the boundary; unvalidated shapes never reach the engine or serializer.
type Record struct {
	ID          string
	Summary     string
	Location    string
	Description string
	URL         string

	Start temporal.Instant
	End   temporal.Instant

	// RRule is raw RRULE property text (without the "RRULE:" prefix).
	RRule string

	Exceptions []RecordException
}

// RecordException is the textual form of a per-occurrence override or
// cancellation. Keys use the canonical occurrence-key encodings: YYYYMMDD
// for all-day series, YYYYMMDDTHHMMSSZ otherwise.
type RecordException struct {
	Key       string
	Cancelled bool

	// Replacement fields; empty strings mean "keep the base value".
	Start       string
	Summary     string
	Location    string
	Description string
}

// toEvent converts and validates the record.
func (r Record) toEvent() (event.Event, error) {
	ev := event.Event{
		ID:          r.ID,
		Summary:     r.Summary,
		Location:    r.Location,
		Description: r.Description,
		URL:         r.URL,
		Start:       r.Start,
		End:         r.End,
	}

	if r.RRule != "" {
		rule, err := recurrence.ParseRRule(r.RRule)
		if err != nil {
			return event.Event{}, err
		}
		ev.Rule = mo.Some(rule)
	}

	for _, rx := range r.Exceptions {
		key, err := temporal.ParseKey(rx.Key)
		if err != nil {
			return event.Event{}, fmt.Errorf("exception key %q: %w", rx.Key, err)
		}
		ex := recurrence.Exception{Key: key, Cancelled: rx.Cancelled}
		if rx.Start != "" {
			start, err := temporal.ParseKey(rx.Start)
			if err != nil {
				return event.Event{}, fmt.Errorf("replacement start %q: %w", rx.Start, err)
			}
			ex.Override.Start = mo.Some(start)
		}
		if rx.Summary != "" {
			ex.Override.Summary = mo.Some(rx.Summary)
		}
		if rx.Location != "" {
			ex.Override.Location = mo.Some(rx.Location)
		}
		if rx.Description != "" {
			ex.Override.Description = mo.Some(rx.Description)
		}
		ev.Exceptions = append(ev.Exceptions, ex)
	}

	if err := ev.Validate(); err != nil {
		return event.Event{}, err
	}
	return ev, nil
}
