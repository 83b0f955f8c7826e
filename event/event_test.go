package event

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinbukan/icsfeed/recurrence"
	"github.com/shinbukan/icsfeed/temporal"
)

func timed(t *testing.T, day, hour int) temporal.Instant {
	t.Helper()
	i, err := temporal.NewDateTime(2024, time.January, day, hour, 0, 0, time.UTC)
	require.NoError(t, err)
	return i
}

func allDay(t *testing.T, day int) temporal.Instant {
	t.Helper()
	i, err := temporal.NewDate(2024, time.January, day)
	require.NoError(t, err)
	return i
}

func validEvent(t *testing.T) Event {
	t.Helper()
	return Event{
		ID:      "keiko/20240101",
		Summary: "稽古",
		Start:   timed(t, 1, 18),
		End:     timed(t, 1, 20),
	}
}

func TestValidateOK(t *testing.T) {
	ev := validEvent(t)
	require.NoError(t, ev.Validate())

	ev.Rule = mo.Some(recurrence.Rule{Freq: recurrence.Weekly, Count: mo.Some(4)})
	ev.Exceptions = []recurrence.Exception{
		{Key: timed(t, 8, 18), Cancelled: true},
	}
	require.NoError(t, ev.Validate())
}

func TestValidateFailFastOrder(t *testing.T) {
	// The check order is fixed so messages are reproducible: an event
	// violating several invariants always reports the first one.
	broken := Event{}
	err := broken.Validate()
	var invalid *InvalidEvent
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "missing identity token", invalid.Message)

	broken.ID = "x"
	err = broken.Validate()
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "missing summary", invalid.Message)

	broken.Summary = "s"
	err = broken.Validate()
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "missing start instant", invalid.Message)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*testing.T, *Event)
		message string
	}{
		{
			"end precedes start",
			func(t *testing.T, ev *Event) { ev.End = timed(t, 1, 9) },
			"end precedes start",
		},
		{
			"mixed all-day and timed bounds",
			func(t *testing.T, ev *Event) { ev.End = allDay(t, 2) },
			"start and end mix all-day and timed instants",
		},
		{
			"invalid rule",
			func(t *testing.T, ev *Event) {
				ev.Rule = mo.Some(recurrence.Rule{Freq: recurrence.Daily, Count: mo.Some(0)})
			},
			"recurrence rule: COUNT 0 is not positive",
		},
		{
			"exceptions without rule",
			func(t *testing.T, ev *Event) {
				ev.Exceptions = []recurrence.Exception{{Key: timed(t, 8, 18), Cancelled: true}}
			},
			"exceptions without a recurrence rule",
		},
		{
			"duplicate exception keys",
			func(t *testing.T, ev *Event) {
				ev.Rule = mo.Some(recurrence.Rule{Freq: recurrence.Weekly})
				ev.Exceptions = []recurrence.Exception{
					{Key: timed(t, 8, 18), Cancelled: true},
					{Key: timed(t, 8, 18), Cancelled: true},
				}
			},
			"duplicate exception key 20240108T180000Z",
		},
		{
			"all-day exception on timed series",
			func(t *testing.T, ev *Event) {
				ev.Rule = mo.Some(recurrence.Rule{Freq: recurrence.Weekly})
				ev.Exceptions = []recurrence.Exception{{Key: allDay(t, 8), Cancelled: true}}
			},
			"exception key 20240108 mixes all-day and timed instants",
		},
		{
			"cancelled and overridden at once",
			func(t *testing.T, ev *Event) {
				ev.Rule = mo.Some(recurrence.Rule{Freq: recurrence.Weekly})
				ev.Exceptions = []recurrence.Exception{{
					Key:       timed(t, 8, 18),
					Cancelled: true,
					Override:  recurrence.Override{Summary: mo.Some("x")},
				}}
			},
			"exception 20240108T180000Z is both cancelled and overridden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent(t)
			tt.mutate(t, &ev)

			err := ev.Validate()
			var invalid *InvalidEvent
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.message, invalid.Message)
		})
	}
}

func TestSpan(t *testing.T) {
	ev := validEvent(t)
	assert.Equal(t, 2*time.Hour, ev.Span())

	ev.End = temporal.Instant{}
	assert.Equal(t, time.Duration(0), ev.Span())
	assert.True(t, ev.EffectiveEnd().Equal(ev.Start))
}
