package icsfeed

import (
	"fmt"
	"time"

	"github.com/shinbukan/icsfeed/event"
	"github.com/shinbukan/icsfeed/feed"
	"github.com/shinbukan/icsfeed/ics"
	"github.com/shinbukan/icsfeed/temporal"
)

// Generate converts schedule records into serialized iCalendar output.
//
// Per-record failures (bad dates, bad rules, unmatched exceptions) are
// collected into warnings and the record is left out of the feed; a bad
// schedule entry never takes down the whole calendar. A serialization error
// aborts the pass entirely, since events are validated before encoding and
// such a failure means an internal invariant broke.
func Generate(records []Record, window temporal.Window, now time.Time, meta feed.Metadata) ([]byte, []feed.Warning, error) {
	var (
		events   []event.Event
		warnings []feed.Warning
	)
	for _, rec := range records {
		ev, err := rec.toEvent()
		if err != nil {
			warnings = append(warnings, feed.Warning{EventID: rec.ID, Err: err})
			continue
		}
		events = append(events, ev)
	}

	f, assembleWarnings := feed.Assemble(meta, events, window, now)
	warnings = append(warnings, assembleWarnings...)

	out, err := ics.Serialize(f)
	if err != nil {
		return nil, warnings, fmt.Errorf("serialize feed: %w", err)
	}
	return out, warnings, nil
}
