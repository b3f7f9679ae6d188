package domain_test

import (
	"testing"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarItem_NoneModeRequiresAnchor(t *testing.T) {
	item := domain.CalendarItem{Duration: time.Hour}
	err := item.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCalendarItem)
}

func TestTimeDescriptor_CalendarWindowNoneMode(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	td := domain.TimeDescriptor{CalendarItems: []domain.CalendarItem{
		{DateTime: &anchor, Duration: time.Hour},
	}}

	inside := anchor.Add(30 * time.Minute)
	before := anchor.Add(-time.Minute)
	after := anchor.Add(2 * time.Hour)

	active, _, err := td.Evaluate(domain.FirstLastTick(inside), inside)
	require.NoError(t, err)
	assert.True(t, active)

	active, _, err = td.Evaluate(domain.FirstLastTick(before), before)
	require.NoError(t, err)
	assert.False(t, active)

	active, _, err = td.Evaluate(domain.FirstLastTick(after), after)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestTimeDescriptor_TimeEventHalfOpenInterval(t *testing.T) {
	fireAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	td := domain.TimeDescriptor{TimeEventItems: []domain.TimeEventItem{
		{DateTime: &fireAt},
	}}

	// Exactly on the upper boundary: fires.
	_, fired, err := td.Evaluate(fireAt.Add(-time.Second), fireAt)
	require.NoError(t, err)
	assert.True(t, fired)

	// Exactly on the lower boundary: must not double-fire on the next tick.
	_, fired, err = td.Evaluate(fireAt, fireAt.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestTimeDescriptor_DailyRepeatingTimeEvent(t *testing.T) {
	startOfDay := domain.TimeOfDay{Hour: 7, Minute: 30}
	td := domain.TimeDescriptor{TimeEventItems: []domain.TimeEventItem{
		{Time: &startOfDay, Repeating: domain.RepeatingOption{Mode: domain.RepeatDaily}},
	}}

	day1 := time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)
	day0 := day1.AddDate(0, 0, -1)

	_, fired, err := td.Evaluate(day0, day1)
	require.NoError(t, err)
	assert.True(t, fired)

	midday := day1.Add(6 * time.Hour)
	_, fired, err = td.Evaluate(day1, midday)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestTimeEventItem_NoneModeRequiresAnchor(t *testing.T) {
	item := domain.TimeEventItem{Time: &domain.TimeOfDay{Hour: 7}}
	err := item.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeEventItem)
}

func TestTimeEventItem_NoneModeWithDateTimeIsValid(t *testing.T) {
	fireAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	item := domain.TimeEventItem{DateTime: &fireAt}
	assert.NoError(t, item.Validate())
}

func TestRepeatingOption_WeekdayOutOfRange(t *testing.T) {
	opt := domain.RepeatingOption{Mode: domain.RepeatWeekly, Weekdays: []int{0}}
	err := opt.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRepeatingOption)
}
