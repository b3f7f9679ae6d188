package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/application"
	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_TimeEventFiresUnconditionally(t *testing.T) {
	engine, things, dispatcher, _ := setupEngine(t)

	classId := domain.ThingClassId(domain.NewThingId())
	actionTypeId := domain.ActionTypeId(domain.NewThingId())
	things.AddClass(ports.ThingClass{Id: classId, ActionTypes: []ports.ActionTypeDef{{Id: actionTypeId, Name: "a"}}})
	thingA := addThing(things, classId)

	fireAt := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	td := domain.TimeDescriptor{TimeEventItems: []domain.TimeEventItem{{DateTime: &fireAt}}}

	rule := domain.NewRule("time event", nil, domain.StateEvaluator{}, td, []domain.RuleAction{
		{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actionTypeId},
	}, nil)
	require.NoError(t, engine.AddRule(context.Background(), rule))

	require.NoError(t, engine.HandleTick(context.Background(), fireAt.Add(-time.Minute)))
	assert.Empty(t, dispatcher.submissions)

	require.NoError(t, engine.HandleTick(context.Background(), fireAt))
	require.Len(t, dispatcher.submissions, 1)

	// Same tick delivered again must not re-fire (half-open interval, §8
	// boundary behavior).
	require.NoError(t, engine.HandleTick(context.Background(), fireAt))
	assert.Len(t, dispatcher.submissions, 1)
}

func TestEngine_CalendarWindowDrivesStateBasedActive(t *testing.T) {
	engine, things, dispatcher, _ := setupEngine(t)

	classId := domain.ThingClassId(domain.NewThingId())
	actionTypeId := domain.ActionTypeId(domain.NewThingId())
	things.AddClass(ports.ThingClass{Id: classId, ActionTypes: []ports.ActionTypeDef{{Id: actionTypeId, Name: "a"}}})
	thingA := addThing(things, classId)

	start := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	td := domain.TimeDescriptor{CalendarItems: []domain.CalendarItem{{DateTime: &start, Duration: time.Hour}}}
	stateEvaluator := domain.StateEvaluator{} // empty: always true, so only timeActive gates `active`.

	rule := domain.NewRule("calendar window", nil, stateEvaluator, td, []domain.RuleAction{
		{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actionTypeId},
	}, nil)
	require.NoError(t, engine.AddRule(context.Background(), rule))

	// AddRule ran outside the window, so the rule starts inactive; a tick
	// inside the window activates it.
	require.NoError(t, engine.HandleTick(context.Background(), start.Add(10*time.Minute)))
	require.Len(t, dispatcher.submissions, 1, "entering the window fires actions")
}
