package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/application"
	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
	rtesting "github.com/hearthctl/ruleengine/internal/ruleengine/ports/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory domain.RuleStore for engine tests.
type memStore struct {
	rules map[domain.RuleId]*domain.Rule
}

func newMemStore() *memStore { return &memStore{rules: map[domain.RuleId]*domain.Rule{}} }

func (s *memStore) Save(ctx context.Context, r *domain.Rule) error {
	s.rules[r.Id] = r
	return nil
}
func (s *memStore) Delete(ctx context.Context, id domain.RuleId) error {
	delete(s.rules, id)
	return nil
}
func (s *memStore) LoadAll(ctx context.Context) ([]*domain.Rule, error) {
	var out []*domain.Rule
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out, nil
}

// fakeDispatcher records every submission directly, bypassing the circuit
// breaker, so engine tests exercise §4.7 without the dispatch package.
type fakeDispatcher struct {
	things      *rtesting.ThingManager
	submissions []ports.ConcreteAction
}

func (d *fakeDispatcher) Submit(ctx context.Context, action ports.ConcreteAction, timeout time.Duration) (*ports.ActionInfo, error) {
	d.submissions = append(d.submissions, action)
	return d.things.SubmitAction(ctx, action, timeout)
}

func (d *fakeDispatcher) SubmitBrowser(ctx context.Context, action ports.BrowserAction, timeout time.Duration) (*ports.ActionInfo, error) {
	return d.things.SubmitBrowserAction(ctx, action, timeout)
}

func setupEngine(t *testing.T) (*application.Engine, *rtesting.ThingManager, *fakeDispatcher, *memStore) {
	t.Helper()
	things := rtesting.NewThingManager()
	store := newMemStore()
	dispatcher := &fakeDispatcher{things: things}
	logSink := rtesting.NewLogSink()
	engine := application.NewEngine(store, things, dispatcher, logSink, application.DefaultConfig())
	require.NoError(t, engine.Load(context.Background()))
	return engine, things, dispatcher, store
}

func addThing(t *rtesting.ThingManager, classId domain.ThingClassId) domain.ThingId {
	thingId := domain.NewThingId()
	t.AddThing(ports.Thing{Id: thingId, ClassId: classId})
	return thingId
}

// scenario 1: event triggers thing action (§8 scenario 1).
func TestEngine_EventTriggersThingAction(t *testing.T) {
	engine, things, dispatcher, _ := setupEngine(t)

	classId := domain.ThingClassId(domain.NewThingId())
	eventTypeId := domain.EventTypeId(domain.NewThingId())
	actionTypeId := domain.ActionTypeId(domain.NewThingId())
	things.AddClass(ports.ThingClass{
		Id:          classId,
		EventTypes:  []ports.EventTypeDef{{Id: eventTypeId, Name: "mockEvent1"}},
		ActionTypes: []ports.ActionTypeDef{{Id: actionTypeId, Name: "mockActionNoParams"}},
	})
	thingA := addThing(things, classId)

	rule := domain.NewRule("event to action", []domain.EventDescriptor{
		{Kind: domain.DescriptorThingBound, EventTypeId: eventTypeId, ThingId: thingA},
	}, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{
		{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actionTypeId},
	}, nil)
	require.NoError(t, engine.AddRule(context.Background(), rule))

	err := engine.HandleEvent(context.Background(), ports.Event{ThingId: thingA, EventTypeId: eventTypeId})
	require.NoError(t, err)

	require.Len(t, dispatcher.submissions, 1)
	assert.Equal(t, actionTypeId, dispatcher.submissions[0].ActionTypeId)
	assert.Equal(t, thingA, dispatcher.submissions[0].ThingId)
}

// scenario 2: event-based parameter binding (§8 scenario 2).
func TestEngine_EventBasedParameterBinding(t *testing.T) {
	engine, things, dispatcher, _ := setupEngine(t)

	classId := domain.ThingClassId(domain.NewThingId())
	eventTypeId := domain.EventTypeId(domain.NewThingId())
	intParamId := domain.ParamTypeId(domain.NewThingId())
	actionTypeId := domain.ActionTypeId(domain.NewThingId())
	param1Id := domain.ParamTypeId(domain.NewThingId())
	param2Id := domain.ParamTypeId(domain.NewThingId())

	things.AddClass(ports.ThingClass{
		Id:         classId,
		EventTypes: []ports.EventTypeDef{{Id: eventTypeId, Name: "mockEvent2", Params: []ports.ParamTypeDef{{Id: intParamId, Name: "intParam"}}}},
		ActionTypes: []ports.ActionTypeDef{{Id: actionTypeId, Name: "mockActionWithParams", Params: []ports.ParamTypeDef{
			{Id: param1Id, Name: "param1"}, {Id: param2Id, Name: "param2"},
		}}},
	})
	thingA := addThing(things, classId)

	rule := domain.NewRule("event param binding", []domain.EventDescriptor{
		{Kind: domain.DescriptorThingBound, EventTypeId: eventTypeId, ThingId: thingA},
	}, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{
		{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actionTypeId, Params: []domain.RuleActionParam{
			{ParamTypeId: param1Id, Binding: domain.BindingEvent, EventTypeId: eventTypeId, EventParamTypeId: intParamId},
			{ParamTypeId: param2Id, Binding: domain.BindingValue, Value: true},
		}},
	}, nil)
	require.NoError(t, engine.AddRule(context.Background(), rule))

	err := engine.HandleEvent(context.Background(), ports.Event{
		ThingId: thingA, EventTypeId: eventTypeId,
		Params: map[domain.ParamTypeId]any{intParamId: 7},
	})
	require.NoError(t, err)

	require.Len(t, dispatcher.submissions, 1)
	assert.Equal(t, 7, dispatcher.submissions[0].Params[param1Id])
	assert.Equal(t, true, dispatcher.submissions[0].Params[param2Id])
}

// scenario 3: state-based rule entering/leaving active (§8 scenario 3).
func TestEngine_StateBasedActiveTransition(t *testing.T) {
	engine, things, dispatcher, _ := setupEngine(t)

	classId := domain.ThingClassId(domain.NewThingId())
	stateTypeId := domain.StateTypeId(domain.NewThingId())
	actNoParamsId := domain.ActionTypeId(domain.NewThingId())
	actWithParamsId := domain.ActionTypeId(domain.NewThingId())
	paramAId := domain.ParamTypeId(domain.NewThingId())
	paramBId := domain.ParamTypeId(domain.NewThingId())

	things.AddClass(ports.ThingClass{
		Id:         classId,
		StateTypes: []ports.StateTypeDef{{Id: stateTypeId, Name: "intState"}},
		ActionTypes: []ports.ActionTypeDef{
			{Id: actNoParamsId, Name: "actNoParams"},
			{Id: actWithParamsId, Name: "actWithParams", Params: []ports.ParamTypeDef{{Id: paramAId, Name: "a"}, {Id: paramBId, Name: "b"}}},
		},
	})
	thingA := addThing(things, classId)
	things.SetState(thingA, stateTypeId, 50.0)

	evaluator := domain.StateEvaluator{Descriptor: &domain.StateDescriptor{
		Kind: domain.DescriptorThingBound, ThingId: thingA, StateTypeId: stateTypeId,
		Operator: domain.OperatorLess, Value: 20.0,
	}}
	rule := domain.NewRule("state transition", nil, evaluator, domain.TimeDescriptor{},
		[]domain.RuleAction{{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actNoParamsId}},
		[]domain.RuleAction{{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actWithParamsId, Params: []domain.RuleActionParam{
			{ParamTypeId: paramAId, Binding: domain.BindingValue, Value: 5},
			{ParamTypeId: paramBId, Binding: domain.BindingValue, Value: true},
		}}},
	)
	require.NoError(t, engine.AddRule(context.Background(), rule))
	drainEvents(engine)

	things.SetState(thingA, stateTypeId, 10.0)
	require.NoError(t, engine.HandleEvent(context.Background(), ports.Event{ThingId: thingA, EventTypeId: domain.EventTypeId(stateTypeId)}))

	require.Len(t, dispatcher.submissions, 1)
	assert.Equal(t, actNoParamsId, dispatcher.submissions[0].ActionTypeId)

	events := drainEvents(engine)
	require.Len(t, events, 1)
	assert.Equal(t, domain.RuleEventActiveChanged, events[0].Kind)
	assert.True(t, events[0].Active)

	things.SetState(thingA, stateTypeId, 30.0)
	require.NoError(t, engine.HandleEvent(context.Background(), ports.Event{ThingId: thingA, EventTypeId: domain.EventTypeId(stateTypeId)}))

	require.Len(t, dispatcher.submissions, 2)
	assert.Equal(t, actWithParamsId, dispatcher.submissions[1].ActionTypeId)

	events = drainEvents(engine)
	require.Len(t, events, 1)
	assert.False(t, events[0].Active)
}

func drainEvents(engine *application.Engine) []domain.RuleEvent {
	var out []domain.RuleEvent
	for {
		select {
		case evt := <-engine.Events():
			out = append(out, evt)
		default:
			return out
		}
	}
}

// scenario 5: housekeeping on thing removal (§8 scenario 5).
func TestEngine_HousekeepingRemovesThing(t *testing.T) {
	engine, things, _, _ := setupEngine(t)

	classId := domain.ThingClassId(domain.NewThingId())
	eventTypeId := domain.EventTypeId(domain.NewThingId())
	stateTypeId := domain.StateTypeId(domain.NewThingId())
	actionTypeId := domain.ActionTypeId(domain.NewThingId())
	things.AddClass(ports.ThingClass{
		Id:          classId,
		EventTypes:  []ports.EventTypeDef{{Id: eventTypeId, Name: "e"}},
		StateTypes:  []ports.StateTypeDef{{Id: stateTypeId, Name: "s"}},
		ActionTypes: []ports.ActionTypeDef{{Id: actionTypeId, Name: "a"}},
	})
	thingA := addThing(things, classId)
	things.SetState(thingA, stateTypeId, 1.0)

	evaluator := domain.StateEvaluator{Descriptor: &domain.StateDescriptor{
		Kind: domain.DescriptorThingBound, ThingId: thingA, StateTypeId: stateTypeId, Operator: domain.OperatorEquals, Value: 1.0,
	}}
	rule := domain.NewRule("housekeeping", []domain.EventDescriptor{
		{Kind: domain.DescriptorThingBound, EventTypeId: eventTypeId, ThingId: thingA},
	}, evaluator, domain.TimeDescriptor{}, []domain.RuleAction{
		{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actionTypeId},
	}, nil)
	require.NoError(t, engine.AddRule(context.Background(), rule))
	drainEvents(engine)

	things.RemoveThing(thingA)
	require.NoError(t, engine.HandleThingRemoved(context.Background(), thingA))

	_, err := engine.FindRule(rule.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)

	events := drainEvents(engine)
	require.Len(t, events, 1)
	assert.Equal(t, domain.RuleEventRemoved, events[0].Kind)
}

// reentrantDispatcher simulates an action whose submission synchronously
// triggers another event matching the same rule, the way a misconfigured
// automation can re-trigger itself mid-dispatch (§8 scenario 6, §5 "Loop
// guard").
type reentrantDispatcher struct {
	things     *rtesting.ThingManager
	engine     *application.Engine
	reentrant  ports.Event
	fired      bool
	submitted  int
}

func (d *reentrantDispatcher) Submit(ctx context.Context, action ports.ConcreteAction, timeout time.Duration) (*ports.ActionInfo, error) {
	d.submitted++
	if !d.fired {
		d.fired = true
		_ = d.engine.HandleEvent(ctx, d.reentrant)
	}
	return d.things.SubmitAction(ctx, action, timeout)
}

func (d *reentrantDispatcher) SubmitBrowser(ctx context.Context, action ports.BrowserAction, timeout time.Duration) (*ports.ActionInfo, error) {
	return d.things.SubmitBrowserAction(ctx, action, timeout)
}

// scenario 6: loop guard suppresses re-entrant dispatch within one handler
// call (§8 scenario 6).
func TestEngine_LoopGuardSuppressesReentrantDispatch(t *testing.T) {
	things := rtesting.NewThingManager()
	store := newMemStore()
	logSink := rtesting.NewLogSink()

	classId := domain.ThingClassId(domain.NewThingId())
	eventTypeId := domain.EventTypeId(domain.NewThingId())
	actionTypeId := domain.ActionTypeId(domain.NewThingId())
	things.AddClass(ports.ThingClass{
		Id:          classId,
		EventTypes:  []ports.EventTypeDef{{Id: eventTypeId, Name: "e"}},
		ActionTypes: []ports.ActionTypeDef{{Id: actionTypeId, Name: "a"}},
	})
	thingA := addThing(things, classId)
	evt := ports.Event{ThingId: thingA, EventTypeId: eventTypeId}

	dispatcher := &reentrantDispatcher{things: things, reentrant: evt}
	engine := application.NewEngine(store, things, dispatcher, logSink, application.DefaultConfig())
	dispatcher.engine = engine
	require.NoError(t, engine.Load(context.Background()))

	rule := domain.NewRule("loop guard", []domain.EventDescriptor{
		{Kind: domain.DescriptorThingBound, EventTypeId: eventTypeId, ThingId: thingA},
	}, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{
		{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actionTypeId},
	}, nil)
	require.NoError(t, engine.AddRule(context.Background(), rule))

	require.NoError(t, engine.HandleEvent(context.Background(), evt))

	assert.Equal(t, 1, dispatcher.submitted, "the re-entrant event must not trigger a second dispatch of the same rule")
}

// fakeDistributedGuard simulates a second engine instance having already
// claimed a rule for this cycle.
type fakeDistributedGuard struct {
	denyFirst bool
	cleared   []domain.RuleId
}

func (g *fakeDistributedGuard) TryMark(ctx context.Context, id domain.RuleId) (bool, error) {
	if g.denyFirst {
		g.denyFirst = false
		return false, nil
	}
	return true, nil
}

func (g *fakeDistributedGuard) Clear(ctx context.Context, id domain.RuleId) error {
	g.cleared = append(g.cleared, id)
	return nil
}

// scenario 6b: a distributed loop guard that denies the claim suppresses
// dispatch even though the local in-memory guard alone would have allowed it.
func TestEngine_DistributedLoopGuardSuppressesDispatch(t *testing.T) {
	engine, things, dispatcher, _ := setupEngine(t)
	guard := &fakeDistributedGuard{denyFirst: true}
	engine.SetDistributedLoopGuard(guard)

	classId := domain.ThingClassId(domain.NewThingId())
	eventTypeId := domain.EventTypeId(domain.NewThingId())
	actionTypeId := domain.ActionTypeId(domain.NewThingId())
	things.AddClass(ports.ThingClass{
		Id:          classId,
		EventTypes:  []ports.EventTypeDef{{Id: eventTypeId, Name: "e"}},
		ActionTypes: []ports.ActionTypeDef{{Id: actionTypeId, Name: "a"}},
	})
	thingA := addThing(things, classId)

	rule := domain.NewRule("distributed guard", []domain.EventDescriptor{
		{Kind: domain.DescriptorThingBound, EventTypeId: eventTypeId, ThingId: thingA},
	}, domain.StateEvaluator{}, domain.TimeDescriptor{}, []domain.RuleAction{
		{Kind: domain.RuleActionThing, ThingId: thingA, ActionTypeId: actionTypeId},
	}, nil)
	require.NoError(t, engine.AddRule(context.Background(), rule))

	require.NoError(t, engine.HandleEvent(context.Background(), ports.Event{ThingId: thingA, EventTypeId: eventTypeId}))
	assert.Empty(t, dispatcher.submissions, "a denied distributed claim must suppress dispatch")

	require.NoError(t, engine.HandleEvent(context.Background(), ports.Event{ThingId: thingA, EventTypeId: eventTypeId}))
	require.Len(t, dispatcher.submissions, 1, "the next cycle's claim should succeed once the guard allows it")
	assert.Contains(t, guard.cleared, rule.Id, "a successful claim must be cleared at the end of its cycle")
}
