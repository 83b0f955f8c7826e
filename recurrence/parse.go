package recurrence

import (
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"github.com/shinbukan/icsfeed/temporal"
)

// ParseRRule converts RRULE property text (without the "RRULE:" prefix) into
// a Rule. Parsing is delegated to rrule-go; only the subset this engine
// expands is accepted, anything else is rejected rather than dropped.
func ParseRRule(s string) (Rule, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return Rule{}, fmt.Errorf("parse RRULE %q: %w", s, err)
	}

	var rule Rule
	switch opt.Freq {
	case rrule.DAILY:
		rule.Freq = Daily
	case rrule.WEEKLY:
		rule.Freq = Weekly
	case rrule.MONTHLY:
		rule.Freq = Monthly
	case rrule.YEARLY:
		rule.Freq = Yearly
	default:
		return Rule{}, fmt.Errorf("RRULE %q: unsupported frequency", s)
	}

	rule.Interval = opt.Interval
	if opt.Count > 0 {
		rule.Count = mo.Some(opt.Count)
	}
	if !opt.Until.IsZero() {
		rule.Until = mo.Some(temporal.FromTime(opt.Until))
	}

	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			return Rule{}, fmt.Errorf("RRULE %q: ordinal BYDAY entries are not supported", s)
		}
		// rrule-go numbers weekdays from Monday; time.Weekday from Sunday.
		rule.ByDay = append(rule.ByDay, time.Weekday((wd.Day()+1)%7))
	}
	rule.ByMonthDay = append(rule.ByMonthDay, opt.Bymonthday...)

	if len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 ||
		len(opt.Bysetpos) > 0 {
		return Rule{}, fmt.Errorf("RRULE %q: unsupported BY* constraint", s)
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, fmt.Errorf("RRULE %q: %w", s, err)
	}
	return rule, nil
}
