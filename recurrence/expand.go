package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/shinbukan/icsfeed/temporal"
)

// maxEmptyPeriods caps how many consecutive constraint periods may yield no
// candidate before the raw stream is treated as exhausted. It guards against
// constraint sets that can never match (e.g. BYMONTHDAY=31 with a yearly
// interval landing on February).
const maxEmptyPeriods = 1000

// Expand resolves a rule anchored at anchor into a lazy iterator over its
// active occurrences within window, applying exceptions as it goes.
//
// All exception keys are checked eagerly against the rule's full, unwindowed
// timeline; a key the rule never generates fails with UnmatchedException.
// The iterator itself reports ExceptionOrderingConflict through Err when a
// replacement start breaks ascending order.
func Expand(rule Rule, anchor temporal.Instant, exceptions []Exception, window temporal.Window) (*Iterator, error) {
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recurrence rule: %w", err)
	}
	if anchor.IsZero() {
		return nil, fmt.Errorf("expansion requires an anchor instant")
	}

	exc := make(map[string]Exception, len(exceptions))
	for _, ex := range exceptions {
		if ex.Key.IsZero() {
			return nil, fmt.Errorf("exception without an occurrence key")
		}
		k := ex.Key.Key()
		if _, dup := exc[k]; dup {
			return nil, fmt.Errorf("duplicate exception key %s", k)
		}
		exc[k] = ex
	}
	if err := validateExceptions(rule, anchor, exc); err != nil {
		return nil, err
	}

	return &Iterator{
		raw:    newRawIter(rule, anchor),
		window: window,
		exc:    exc,
	}, nil
}

// validateExceptions walks the raw timeline until every exception key has
// been seen or the timeline has moved past the latest key. The scan is
// bounded by the keys themselves, so it terminates for unbounded rules too.
func validateExceptions(rule Rule, anchor temporal.Instant, exc map[string]Exception) error {
	if len(exc) == 0 {
		return nil
	}

	pending := make(map[string]struct{}, len(exc))
	var latest temporal.Instant
	for k, ex := range exc {
		pending[k] = struct{}{}
		if ex.Key.After(latest) {
			latest = ex.Key
		}
	}

	raw := newRawIter(rule, anchor)
	for {
		occ, ok := raw.next()
		if !ok {
			break
		}
		delete(pending, occ.Key())
		if len(pending) == 0 {
			return nil
		}
		if occ.After(latest) {
			break
		}
	}

	// Deterministic error: report the smallest unmatched key.
	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &UnmatchedException{Key: keys[0]}
}

// Iterator lazily walks a resolved occurrence sequence in strictly ascending
// order. Usage follows the scanner idiom: call Next until it returns false,
// then check Err.
type Iterator struct {
	raw    *rawIter
	window temporal.Window
	exc    map[string]Exception

	last    temporal.Instant
	hasLast bool
	err     error
	done    bool
}

// Next returns the next active occurrence inside the window. It returns
// false once the sequence is exhausted or an ordering conflict was detected.
func (it *Iterator) Next() (Occurrence, bool) {
	if it.done {
		return Occurrence{}, false
	}
	for {
		raw, ok := it.raw.next()
		if !ok {
			it.done = true
			return Occurrence{}, false
		}
		if it.window.EndsBefore(raw) {
			it.done = true
			return Occurrence{}, false
		}

		ex, found := it.exc[raw.Key()]
		if found && ex.Cancelled {
			continue
		}

		occ := Occurrence{Start: raw, Original: raw}
		if found {
			occ.Override = ex.Override
			if s, moved := ex.Override.Start.Get(); moved {
				occ.Start = s
			}
		}
		if !it.window.Contains(occ.Start) {
			continue
		}
		if it.hasLast && !occ.Start.After(it.last) {
			it.err = &ExceptionOrderingConflict{
				Key:      raw.Key(),
				Moved:    occ.Start.Key(),
				Previous: it.last.Key(),
			}
			it.done = true
			return Occurrence{}, false
		}

		it.last = occ.Start
		it.hasLast = true
		return occ, true
	}
}

// Err returns the error that terminated iteration, if any.
func (it *Iterator) Err() error { return it.err }

// rawIter produces the rule's raw occurrences (before exception filtering)
// in strictly ascending order, honoring COUNT and UNTIL bounds.
type rawIter struct {
	rule   Rule
	anchor temporal.Instant

	period    int
	queue     []temporal.Instant
	produced  int
	exhausted bool
}

func newRawIter(rule Rule, anchor temporal.Instant) *rawIter {
	return &rawIter{rule: rule, anchor: anchor}
}

func (r *rawIter) next() (temporal.Instant, bool) {
	if r.exhausted {
		return temporal.Instant{}, false
	}
	if n, bounded := r.rule.Count.Get(); bounded && r.produced >= n {
		r.exhausted = true
		return temporal.Instant{}, false
	}

	empty := 0
	for len(r.queue) == 0 {
		r.queue = r.fillPeriod(r.period)
		r.period++
		if len(r.queue) == 0 {
			empty++
			if empty >= maxEmptyPeriods {
				r.exhausted = true
				return temporal.Instant{}, false
			}
		}
	}

	occ := r.queue[0]
	r.queue = r.queue[1:]

	if until, bounded := r.rule.Until.Get(); bounded && occ.After(until) {
		r.exhausted = true
		return temporal.Instant{}, false
	}
	r.produced++
	return occ, true
}

// fillPeriod generates the candidate instants of period k, ascending,
// filtered to instants at or after the anchor.
func (r *rawIter) fillPeriod(k int) []temporal.Instant {
	iv := r.rule.interval()

	switch r.rule.Freq {
	case Daily:
		return []temporal.Instant{r.anchor.AddDays(k * iv)}

	case Weekly:
		if len(r.rule.ByDay) == 0 {
			return []temporal.Instant{r.anchor.AddDays(7 * k * iv)}
		}
		// Weeks run Monday through Sunday, anchored at the anchor's week.
		offset := (int(r.anchor.Time().Weekday()) + 6) % 7
		weekStart := r.anchor.AddDays(-offset + 7*k*iv)
		allowed := weekdaySet(r.rule.ByDay)
		var out []temporal.Instant
		for d := 0; d < 7; d++ {
			c := weekStart.AddDays(d)
			if allowed[c.Time().Weekday()] && !c.Before(r.anchor) {
				out = append(out, c)
			}
		}
		return out

	case Monthly:
		base := r.anchor.AddMonths(k * iv)
		if len(r.rule.ByDay) == 0 && len(r.rule.ByMonthDay) == 0 {
			return []temporal.Instant{base}
		}
		y, m, _ := base.Time().Date()
		dim := temporal.DaysIn(y, m)
		var out []temporal.Instant
		for _, day := range monthDays(r.rule, y, m, dim) {
			c, err := base.WithDay(day)
			if err != nil {
				continue
			}
			if !c.Before(r.anchor) {
				out = append(out, c)
			}
		}
		return out

	case Yearly:
		return []temporal.Instant{r.anchor.AddMonths(12 * k * iv)}
	}
	return nil
}

// monthDays resolves the rule's day constraints within one month, ascending.
// With both BYDAY and BYMONTHDAY present, a day must satisfy both.
func monthDays(rule Rule, year int, month time.Month, dim int) []int {
	byMonthDay := make(map[int]bool, len(rule.ByMonthDay))
	for _, d := range rule.ByMonthDay {
		if d < 0 {
			d = dim + d + 1
		}
		if d >= 1 && d <= dim {
			byMonthDay[d] = true
		}
	}
	allowed := weekdaySet(rule.ByDay)

	var out []int
	for day := 1; day <= dim; day++ {
		if len(rule.ByMonthDay) > 0 && !byMonthDay[day] {
			continue
		}
		if len(rule.ByDay) > 0 {
			wd := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Weekday()
			if !allowed[wd] {
				continue
			}
		}
		out = append(out, day)
	}
	return out
}

func weekdaySet(days []time.Weekday) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}
