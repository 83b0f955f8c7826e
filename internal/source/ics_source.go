package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/shinbukan/icsfeed"
	"github.com/shinbukan/icsfeed/temporal"
)

// FetchICS pulls an upstream iCalendar export and converts its events into
// schedule records, so an existing calendar export can be re-served through
// the same pipeline. Per-event conversion failures are collected; a broken
// VEVENT never drops the rest of the export.
func FetchICS(ctx context.Context, client *http.Client, url string) ([]icsfeed.Record, []error, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	cal, err := ical.NewDecoder(resp.Body).Decode()
	if err != nil {
		return nil, nil, fmt.Errorf("decode calendar %s: %w", url, err)
	}

	var (
		records  []icsfeed.Record
		warnings []error
	)
	for _, ev := range cal.Events() {
		rec, err := recordFromEvent(ev)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", url, err))
			continue
		}
		records = append(records, rec)
	}
	return records, warnings, nil
}

func recordFromEvent(ev ical.Event) (icsfeed.Record, error) {
	uid := textProp(ev, ical.PropUID)
	if uid == "" {
		return icsfeed.Record{}, fmt.Errorf("event without UID")
	}

	dtstart := ev.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return icsfeed.Record{}, fmt.Errorf("event %s: missing DTSTART", uid)
	}
	allDay := dtstart.ValueType() == ical.ValueDate

	start, err := ev.Props.DateTime(ical.PropDateTimeStart, nil)
	if err != nil {
		return icsfeed.Record{}, fmt.Errorf("event %s: DTSTART: %w", uid, err)
	}

	rec := icsfeed.Record{
		ID:          uid,
		Summary:     textProp(ev, ical.PropSummary),
		Location:    textProp(ev, ical.PropLocation),
		Description: textProp(ev, ical.PropDescription),
		URL:         textProp(ev, ical.PropURL),
		Start:       instantFor(start, allDay),
	}

	if ev.Props.Get(ical.PropDateTimeEnd) != nil {
		end, err := ev.Props.DateTime(ical.PropDateTimeEnd, nil)
		if err != nil {
			return icsfeed.Record{}, fmt.Errorf("event %s: DTEND: %w", uid, err)
		}
		rec.End = instantFor(end, allDay)
	}

	if prop := ev.Props.Get(ical.PropRecurrenceRule); prop != nil {
		rec.RRule = prop.Value
	}

	// EXDATEs become cancellation exceptions.
	for _, prop := range ev.Props.Values(ical.PropExceptionDates) {
		for _, raw := range strings.Split(prop.Value, ",") {
			key, err := exceptionKey(strings.TrimSpace(raw), allDay)
			if err != nil {
				return icsfeed.Record{}, fmt.Errorf("event %s: EXDATE: %w", uid, err)
			}
			rec.Exceptions = append(rec.Exceptions, icsfeed.RecordException{
				Key:       key,
				Cancelled: true,
			})
		}
	}

	return rec, nil
}

func instantFor(t time.Time, allDay bool) temporal.Instant {
	if allDay {
		return temporal.FromDate(t)
	}
	return temporal.FromTime(t)
}

// exceptionKey normalizes an EXDATE value into the canonical occurrence-key
// encoding.
func exceptionKey(raw string, allDay bool) (string, error) {
	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		if err != nil {
			continue
		}
		if allDay {
			return temporal.FromDate(t).Key(), nil
		}
		return temporal.FromTime(t).Key(), nil
	}
	return "", fmt.Errorf("malformed date %q", raw)
}

func textProp(ev ical.Event, name string) string {
	if prop := ev.Props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}
