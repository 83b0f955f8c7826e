// Package ics encodes a materialized feed as RFC 5545 iCalendar text. The
// encoder is deterministic: identical input always yields byte-identical
// output, which the transport layer relies on for ETag computation.
package ics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shinbukan/icsfeed/feed"
	"github.com/shinbukan/icsfeed/temporal"
)

const dtstampLayout = "20060102T150405Z"

// SerializationError reports a value the encoder cannot legally represent.
// Events are validated before they reach the encoder, so this always
// indicates an upstream bug; the generation pass is aborted rather than
// degraded.
type SerializationError struct {
	Property string
	Message  string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s: %s", e.Property, e.Message)
}

// Serialize encodes the feed as UTF-8 iCalendar text with CRLF line endings.
//
// Property order within each VEVENT is fixed (UID, DTSTAMP, DTSTART, DTEND,
// SUMMARY, LOCATION, DESCRIPTION, URL) so that output never depends on map
// iteration order.
func Serialize(f feed.Feed) ([]byte, error) {
	w := &writer{}

	w.line("BEGIN:VCALENDAR")
	w.line("VERSION:2.0")
	if f.ProdID == "" {
		return nil, &SerializationError{Property: "PRODID", Message: "missing product identifier"}
	}
	w.text("PRODID", f.ProdID)
	w.line("CALSCALE:GREGORIAN")
	if f.Name != "" {
		w.text("NAME", f.Name)
		w.text("X-WR-CALNAME", f.Name)
	}
	if f.Refresh > 0 {
		d := formatDuration(f.Refresh)
		w.line("REFRESH-INTERVAL;VALUE=DURATION:" + d)
		w.line("X-PUBLISHED-TTL:" + d)
	}

	dtstamp := f.Generated.UTC().Format(dtstampLayout)
	for _, e := range f.Entries {
		w.line("BEGIN:VEVENT")
		w.text("UID", e.UID)
		w.line("DTSTAMP:" + dtstamp)
		w.date("DTSTART", e.Start)
		if !e.End.IsZero() {
			w.date("DTEND", e.End)
		}
		w.text("SUMMARY", e.Summary)
		if e.Location != "" {
			w.text("LOCATION", e.Location)
		}
		if e.Description != "" {
			w.text("DESCRIPTION", e.Description)
		}
		if e.URL != "" {
			w.uri("URL", e.URL)
		}
		w.line("END:VEVENT")
	}
	w.line("END:VCALENDAR")

	return w.output()
}

// writer accumulates folded content lines, keeping only the first error.
type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) output() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// line folds and emits one already-assembled content line.
func (w *writer) line(s string) {
	if w.err != nil {
		return
	}
	folded, err := foldLine(s)
	if err != nil {
		w.err = err
		return
	}
	w.buf.WriteString(folded)
	w.buf.WriteString("\r\n")
}

// text emits a property with a TEXT value, escaping it first.
func (w *writer) text(name, value string) {
	if w.err != nil {
		return
	}
	escaped, err := escapeText(name, value)
	if err != nil {
		w.err = err
		return
	}
	w.line(name + ":" + escaped)
}

// uri emits a property with a URI value. URIs take no TEXT escaping, but
// control characters are still illegal.
func (w *writer) uri(name, value string) {
	if w.err != nil {
		return
	}
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			w.err = &SerializationError{Property: name, Message: fmt.Sprintf("control character %#02x in URI value", r)}
			return
		}
	}
	w.line(name + ":" + value)
}

// date emits a date or date-time property with the parameters its instant
// kind requires.
func (w *writer) date(name string, i temporal.Instant) {
	switch {
	case i.AllDay():
		w.line(name + ";VALUE=DATE:" + i.Encode())
	case i.TZID() != "":
		w.line(name + ";TZID=" + i.TZID() + ":" + i.Encode())
	default:
		w.line(name + ":" + i.Encode())
	}
}

// formatDuration renders d as an RFC 5545 DURATION value.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	out := "PT"
	if h > 0 {
		out += fmt.Sprintf("%dH", h)
	}
	if m > 0 {
		out += fmt.Sprintf("%dM", m)
	}
	if s > 0 || out == "PT" {
		out += fmt.Sprintf("%dS", s)
	}
	return out
}
