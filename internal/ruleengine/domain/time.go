package domain

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// RepeatingMode selects the base period of a RepeatingOption.
type RepeatingMode int

const (
	RepeatNone RepeatingMode = iota
	RepeatHourly
	RepeatDaily
	RepeatWeekly
	RepeatMonthly
	RepeatYearly
)

// RepeatingOption resolves deterministically: an unset Weekdays/MonthDays
// set means "every"; the mode selects the base period (§4.3).
type RepeatingOption struct {
	Mode RepeatingMode

	// Weekdays is a sparse subset of 1..7 (1 = Monday, per ISO-8601).
	Weekdays []int

	// MonthDays is a sparse subset of 1..31.
	MonthDays []int
}

func (o RepeatingOption) Validate() error {
	for _, wd := range o.Weekdays {
		if wd < 1 || wd > 7 {
			return fmt.Errorf("%w: weekday %d out of range 1..7", ErrInvalidRepeatingOption, wd)
		}
	}
	for _, md := range o.MonthDays {
		if md < 1 || md > 31 {
			return fmt.Errorf("%w: month day %d out of range 1..31", ErrInvalidRepeatingOption, md)
		}
	}
	if o.Mode == RepeatNone && (len(o.Weekdays) > 0 || len(o.MonthDays) > 0) {
		return fmt.Errorf("%w: weekday/month-day filters require a repeating mode", ErrInvalidRepeatingOption)
	}
	return nil
}

var isoWeekdayToRRule = map[int]rrule.Weekday{
	1: rrule.MO, 2: rrule.TU, 3: rrule.WE, 4: rrule.TH, 5: rrule.FR, 6: rrule.SA, 7: rrule.SU,
}

func (o RepeatingOption) frequency() (rrule.Frequency, bool) {
	switch o.Mode {
	case RepeatHourly:
		return rrule.HOURLY, true
	case RepeatDaily:
		return rrule.DAILY, true
	case RepeatWeekly:
		return rrule.WEEKLY, true
	case RepeatMonthly:
		return rrule.MONTHLY, true
	case RepeatYearly:
		return rrule.YEARLY, true
	default:
		return 0, false
	}
}

// rule builds an *rrule.RRule anchored at dtstart, or nil if the option is
// RepeatNone (a non-repeating single occurrence).
func (o RepeatingOption) rule(dtstart time.Time) (*rrule.RRule, error) {
	freq, ok := o.frequency()
	if !ok {
		return nil, nil
	}

	opt := rrule.ROption{
		Freq:     freq,
		Dtstart:  dtstart,
		Interval: 1,
	}
	for _, wd := range o.Weekdays {
		opt.Byweekday = append(opt.Byweekday, isoWeekdayToRRule[wd])
	}
	opt.Bymonthday = append(opt.Bymonthday, o.MonthDays...)

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRepeatingOption, err)
	}
	return r, nil
}

// TimeOfDay anchors a repeating item to a wall-clock time of day, used
// instead of an absolute DateTime when the first occurrence's date does not
// matter (only its hour/minute/second do).
type TimeOfDay struct {
	Hour, Minute, Second int
}

func (t TimeOfDay) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, t.Second, 0, day.Location())
}

// CalendarItem defines a recurring "active" window: an anchor (absolute
// DateTime, or a StartTime of day combined with a repeating pattern), a
// duration, and a RepeatingOption (§3).
type CalendarItem struct {
	DateTime  *time.Time
	StartTime *TimeOfDay
	Duration  time.Duration
	Repeating RepeatingOption
}

// Validate implements §9 open question (c): a calendar item with mode=None
// and no anchor fails validation rather than being silently ignored.
func (c CalendarItem) Validate() error {
	if err := c.Repeating.Validate(); err != nil {
		return err
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: calendar item duration must be positive", ErrInvalidCalendarItem)
	}
	if c.Repeating.Mode == RepeatNone {
		if c.DateTime == nil {
			return fmt.Errorf("%w: non-repeating calendar item requires a dateTime anchor", ErrInvalidCalendarItem)
		}
		return nil
	}
	if c.DateTime == nil && c.StartTime == nil {
		return fmt.Errorf("%w: repeating calendar item requires a dateTime or startTime anchor", ErrInvalidCalendarItem)
	}
	return nil
}

func (c CalendarItem) anchor(reference time.Time) time.Time {
	if c.DateTime != nil {
		return *c.DateTime
	}
	return c.StartTime.on(reference)
}

// activeAt reports whether the item is in-window at tick.
func (c CalendarItem) activeAt(tick time.Time) (bool, error) {
	if c.Repeating.Mode == RepeatNone {
		start := *c.DateTime
		return !tick.Before(start) && tick.Before(start.Add(c.Duration)), nil
	}

	anchor := c.anchor(tick)
	r, err := c.Repeating.rule(anchor)
	if err != nil {
		return false, err
	}
	last := r.Before(tick, true)
	if last.IsZero() {
		return false, nil
	}
	return tick.Before(last.Add(c.Duration)), nil
}

// TimeEventItem defines a point-in-time fire: an anchor (absolute DateTime,
// or a Time of day combined with a repeating pattern) and a RepeatingOption
// (§3).
type TimeEventItem struct {
	DateTime  *time.Time
	Time      *TimeOfDay
	Repeating RepeatingOption
}

// Validate implements §9 open question (c) for time events, mirroring
// CalendarItem.Validate: a mode=None item must anchor on an absolute
// dateTime, since a bare TimeOfDay gives firedIn nothing to fire once at.
func (t TimeEventItem) Validate() error {
	if err := t.Repeating.Validate(); err != nil {
		return err
	}
	if t.Repeating.Mode == RepeatNone {
		if t.DateTime == nil {
			return fmt.Errorf("%w: non-repeating time event item requires a dateTime anchor", ErrInvalidTimeEventItem)
		}
		return nil
	}
	if t.DateTime == nil && t.Time == nil {
		return fmt.Errorf("%w: repeating time event item requires a dateTime or time anchor", ErrInvalidTimeEventItem)
	}
	return nil
}

func (t TimeEventItem) anchor(reference time.Time) time.Time {
	if t.DateTime != nil {
		return *t.DateTime
	}
	return t.Time.on(reference)
}

// firedIn reports whether the item has an occurrence in the half-open
// interval (lastTick, currentTick] (§4.3, §8 boundary behavior: exactly-on-
// boundary fires are attributed to the later tick, never double-fired).
func (t TimeEventItem) firedIn(lastTick, currentTick time.Time) (bool, error) {
	if t.Repeating.Mode == RepeatNone {
		fireAt := *t.DateTime
		return fireAt.After(lastTick) && !fireAt.After(currentTick), nil
	}

	anchor := t.anchor(currentTick)
	r, err := t.Repeating.rule(anchor)
	if err != nil {
		return false, err
	}
	// rrule's Between is symmetric on its inc flag; request inclusive
	// occurrences and manually exclude any landing exactly on lastTick so
	// the interval stays half-open on the left.
	occurrences := r.Between(lastTick, currentTick, true)
	for _, occ := range occurrences {
		if !occ.Equal(lastTick) {
			return true, nil
		}
	}
	return false, nil
}

// TimeDescriptor is the pair of calendar windows and time events a Rule may
// carry (§3).
type TimeDescriptor struct {
	CalendarItems  []CalendarItem
	TimeEventItems []TimeEventItem
}

func (t TimeDescriptor) IsEmpty() bool {
	return len(t.CalendarItems) == 0 && len(t.TimeEventItems) == 0
}

func (t TimeDescriptor) Validate() error {
	for i := range t.CalendarItems {
		if err := t.CalendarItems[i].Validate(); err != nil {
			return err
		}
	}
	for i := range t.TimeEventItems {
		if err := t.TimeEventItems[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate returns (stateActive, fired) per §4.3: stateActive is true iff
// any calendar item is in-window at currentTick; fired is true iff any
// time-event item has an occurrence in (lastTick, currentTick]. On the
// first call the caller passes lastTick = currentTick - 1s (§4.3, §4.6).
func (t TimeDescriptor) Evaluate(lastTick, currentTick time.Time) (stateActive bool, fired bool, err error) {
	for _, item := range t.CalendarItems {
		active, aerr := item.activeAt(currentTick)
		if aerr != nil {
			return false, false, aerr
		}
		if active {
			stateActive = true
		}
	}
	for _, item := range t.TimeEventItems {
		f, ferr := item.firedIn(lastTick, currentTick)
		if ferr != nil {
			return false, false, ferr
		}
		if f {
			fired = true
		}
	}
	return stateActive, fired, nil
}

// FirstLastTick implements "on the first call lastTick is taken to be
// currentTick − 1s" (§4.3).
func FirstLastTick(currentTick time.Time) time.Time {
	return currentTick.Add(-time.Second)
}
