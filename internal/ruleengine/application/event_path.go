package application

import (
	"context"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
)

// HandleEvent implements the event path of §4.4: resolve the thing, skip
// disabled rules, re-evaluate statesActive for rules the event's state
// touches, classify state-based vs event-based rules, collect the matching
// set, then dispatch. The loop guard (§5) is cleared when this call returns.
func (e *Engine) HandleEvent(ctx context.Context, evt ports.Event) error {
	defer e.clearLoopGuard(ctx)

	if _, ok := e.things.Thing(evt.ThingId); !ok {
		e.log(map[string]any{"event": "triggered", "thingId": evt.ThingId.String(), "note": "unconfigured thing, ignored"})
		return nil
	}

	e.mu.Lock()
	var toDispatch []dispatchTrigger

	for _, id := range e.order {
		r := e.byID[id]
		if !r.Enabled {
			continue
		}

		if r.StateEvaluator.ContainsState(evt.ThingId, domain.StateTypeId(evt.EventTypeId)) {
			r.SetStatesActive(r.StateEvaluator.Evaluate(e.things))
		}

		switch {
		case r.IsStateBased():
			if r.RecomputeActive() {
				toDispatch = append(toDispatch, dispatchTrigger{rule: r, unconditional: false})
			}
		case r.IsEventBased():
			if eventMatchesRule(r, evt, e.things) {
				toDispatch = append(toDispatch, dispatchTrigger{rule: r, unconditional: true, event: &evt})
			}
		}
	}
	e.mu.Unlock()

	for _, d := range toDispatch {
		e.dispatchForTransitionOrEvent(ctx, d.rule, d.unconditional, d.event)
	}
	return nil
}

// dispatchTrigger records one rule's pending dispatch decision, collected
// under the lock and executed after release (§5 "Ordering guarantees": all
// affected rules are evaluated, all actions collected, then dispatched).
type dispatchTrigger struct {
	rule          *domain.Rule
	unconditional bool
	event         *ports.Event
}

func (e *Engine) clearLoopGuard(ctx context.Context) {
	e.mu.Lock()
	e.loopGuard = make(map[domain.RuleId]bool)
	claimed := e.distributedClaimed
	e.distributedClaimed = make(map[domain.RuleId]bool)
	guard := e.distributedGuard
	e.mu.Unlock()

	if guard == nil {
		return
	}
	for id := range claimed {
		if err := guard.Clear(ctx, id); err != nil {
			e.log(map[string]any{"id": id.String(), "event": "triggered", "error": err.Error(), "note": "distributed loop guard clear failed"})
		}
	}
}

// dispatchForTransitionOrEvent picks actions vs exitActions and dispatches,
// honoring the loop guard (§4.4, §5). unconditional rules (event matches,
// time-event fires) always fire and select their action list from the
// rule's current (statesActive ∧ timeActive); state/calendar transitions
// fire based on the just-recomputed active flag and emit ruleActiveChanged
// (§4.8).
func (e *Engine) dispatchForTransitionOrEvent(ctx context.Context, r *domain.Rule, unconditional bool, triggeringEvent *ports.Event) {
	e.mu.Lock()
	if e.loopGuard[r.Id] {
		e.mu.Unlock()
		e.log(map[string]any{"id": r.Id.String(), "event": "triggered", "note": "loop guard suppressed re-entrant dispatch"})
		return
	}
	e.loopGuard[r.Id] = true
	guard := e.distributedGuard
	e.mu.Unlock()

	if guard != nil {
		ok, err := guard.TryMark(ctx, r.Id)
		if err != nil {
			e.log(map[string]any{"id": r.Id.String(), "event": "triggered", "error": err.Error(), "note": "distributed loop guard check failed, proceeding on the local guard alone"})
		} else if !ok {
			e.log(map[string]any{"id": r.Id.String(), "event": "triggered", "note": "distributed loop guard suppressed re-entrant dispatch"})
			return
		} else {
			e.mu.Lock()
			e.distributedClaimed[r.Id] = true
			e.mu.Unlock()
		}
	}

	var actions []domain.RuleAction
	var notifyActive *bool

	if unconditional {
		if r.StatesActive() && r.TimeActive() {
			actions = r.Actions
		} else {
			actions = r.ExitActions
		}
	} else {
		active := r.Active()
		notifyActive = &active
		if active {
			actions = r.Actions
		} else {
			actions = r.ExitActions
		}
	}

	if len(actions) > 0 {
		e.dispatchActions(ctx, r, actions, triggeringEvent)
	}
	if notifyActive != nil {
		e.emit(domain.RuleEvent{Kind: domain.RuleEventActiveChanged, RuleId: r.Id, Active: *notifyActive})
	}
}

// eventMatchesRule implements §4.5: an event matches a descriptor if the
// thing-bound or interface-bound identity check passes and every param
// descriptor matches.
func eventMatchesRule(r *domain.Rule, evt ports.Event, things ports.ThingManager) bool {
	for _, ed := range r.EventDescriptors {
		if eventMatchesDescriptor(ed, evt, things) {
			return true
		}
	}
	return false
}

func eventMatchesDescriptor(ed domain.EventDescriptor, evt ports.Event, things ports.ThingManager) bool {
	switch ed.Kind {
	case domain.DescriptorThingBound:
		if ed.ThingId != evt.ThingId || ed.EventTypeId != evt.EventTypeId {
			return false
		}
	case domain.DescriptorInterfaceBound:
		thing, ok := things.Thing(evt.ThingId)
		if !ok {
			return false
		}
		class, ok := things.ThingClass(thing.ClassId)
		if !ok || !class.ImplementsInterface(ed.InterfaceName) {
			return false
		}
		name, ok := eventDeclaredName(class, evt.EventTypeId)
		if !ok || name != ed.InterfaceEvent {
			return false
		}
	default:
		return false
	}

	for _, pd := range ed.ParamDescriptors {
		if !paramMatches(pd, evt) {
			return false
		}
	}
	return true
}

func eventDeclaredName(class ports.ThingClass, eventTypeId domain.EventTypeId) (string, bool) {
	if et, ok := class.EventType(eventTypeId); ok {
		return et.Name, true
	}
	if st, ok := class.StateType(domain.StateTypeId(eventTypeId)); ok {
		return st.Name, true
	}
	return "", false
}

func paramMatches(pd domain.ParamDescriptor, evt ports.Event) bool {
	var live any
	var ok bool
	if pd.HasParamId {
		live, ok = evt.Params[pd.ParamTypeId]
	} else {
		live, ok = evt.ParamsByName[pd.Name]
	}
	if !ok {
		return false
	}
	matched, err := pd.Matches(live)
	if err != nil {
		return false
	}
	return matched
}
