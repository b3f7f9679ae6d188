package domain_test

import (
	"testing"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actionOn(thingId domain.ThingId) domain.RuleAction {
	return domain.RuleAction{Kind: domain.RuleActionThing, ThingId: thingId, ActionTypeId: domain.ActionTypeId(domain.NewThingId())}
}

func TestRule_IsConsistent_RequiresActions(t *testing.T) {
	r := domain.NewRule("no actions", nil, domain.StateEvaluator{}, domain.TimeDescriptor{}, nil, nil)
	err := r.IsConsistent()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleFormat)
}

func TestRule_IsConsistent_ExitActionsRequireNonEventTrigger(t *testing.T) {
	thingA := domain.NewThingId()
	r := domain.NewRule("exit without trigger", nil, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{actionOn(thingA)}, []domain.RuleAction{actionOn(thingA)})
	err := r.IsConsistent()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleFormat)

	evaluator := domain.StateEvaluator{Descriptor: &domain.StateDescriptor{
		Kind: domain.DescriptorThingBound, ThingId: thingA, StateTypeId: domain.StateTypeId(domain.NewThingId()),
		Operator: domain.OperatorEquals, Value: 1.0,
	}}
	r2 := domain.NewRule("exit with state trigger", nil, evaluator, domain.TimeDescriptor{}, []domain.RuleAction{actionOn(thingA)}, []domain.RuleAction{actionOn(thingA)})
	assert.NoError(t, r2.IsConsistent())
}

func TestRule_RecomputeActive(t *testing.T) {
	r := domain.NewRule("active flag", nil, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{actionOn(domain.NewThingId())}, nil)
	r.SetStatesActive(true)
	r.SetTimeActive(true)

	changed := r.RecomputeActive()
	assert.True(t, changed)
	assert.True(t, r.Active())

	r.SetStatesActive(false)
	changed = r.RecomputeActive()
	assert.True(t, changed)
	assert.False(t, r.Active())

	changed = r.RecomputeActive()
	assert.False(t, changed)
}

func TestRule_ContainedThingsAndWithoutThing(t *testing.T) {
	thingA := domain.NewThingId()
	thingB := domain.NewThingId()

	r := domain.NewRule("two things", nil, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{actionOn(thingA), actionOn(thingB)}, nil)

	contained := r.ContainedThings()
	assert.ElementsMatch(t, []domain.ThingId{thingA, thingB}, contained)

	trimmed := r.WithoutThing(thingA)
	assert.False(t, trimmed.ContainsThing(thingA))
	assert.True(t, trimmed.ContainsThing(thingB))
	assert.Len(t, trimmed.Actions, 1)
}

func TestRule_WithoutThing_RemovesLastActionLeavesNoActions(t *testing.T) {
	thingA := domain.NewThingId()
	r := domain.NewRule("single thing", nil, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{actionOn(thingA)}, nil)

	trimmed := r.WithoutThing(thingA)
	assert.Empty(t, trimmed.Actions)
	assert.Empty(t, trimmed.ExitActions)
}
