// Package recurrence expands recurrence rules into window-bounded, lazily
// produced occurrence sequences, resolving per-occurrence exception
// overrides and cancellations along the way.
package recurrence

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/shinbukan/icsfeed/temporal"
)

// Frequency is the base stepping unit of a rule.
type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Monthly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// Rule describes a recurrence pattern anchored at an event's start instant.
//
// Exactly one of Count, Until or neither (unbounded) terminates the
// expansion. An unbounded rule is still safe to expand: the engine only ever
// walks it through a caller-supplied window.
type Rule struct {
	Freq     Frequency
	Interval int // stepping multiple; 0 is treated as 1

	// ByDay restricts Weekly and Monthly rules to the given weekdays; all
	// matching days within each period are emitted in ascending order.
	ByDay []time.Weekday

	// ByMonthDay restricts Monthly rules to the given days of month.
	// Negative values count back from the month end (-1 is the last day).
	// Days that do not exist in a given month are skipped, not clamped.
	ByMonthDay []int

	Count mo.Option[int]
	Until mo.Option[temporal.Instant]
}

// Validate checks the rule's internal consistency. The assembler rejects an
// event whose rule fails here before any expansion is attempted.
func (r Rule) Validate() error {
	if r.Freq < Daily || r.Freq > Yearly {
		return fmt.Errorf("unknown frequency %d", int(r.Freq))
	}
	if r.Interval < 0 {
		return fmt.Errorf("negative interval %d", r.Interval)
	}
	if r.Count.IsPresent() && r.Until.IsPresent() {
		return fmt.Errorf("rule carries both COUNT and UNTIL; exactly one bound is allowed")
	}
	if n := r.Count.OrElse(1); n < 1 {
		return fmt.Errorf("COUNT %d is not positive", n)
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly && r.Freq != Monthly {
		return fmt.Errorf("BYDAY is only supported for WEEKLY and MONTHLY rules")
	}
	for _, wd := range r.ByDay {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("invalid weekday %d in BYDAY", int(wd))
		}
	}
	if len(r.ByMonthDay) > 0 && r.Freq != Monthly {
		return fmt.Errorf("BYMONTHDAY is only supported for MONTHLY rules")
	}
	for _, d := range r.ByMonthDay {
		if d == 0 || d < -31 || d > 31 {
			return fmt.Errorf("invalid day %d in BYMONTHDAY", d)
		}
	}
	return nil
}

func (r Rule) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}
