package domain

import "fmt"

// Rule is the aggregate described in §3: identity, flags, event descriptors,
// a state evaluator tree, a time descriptor, an action list and an exit-
// action list, plus three derived runtime flags updated only by the engine.
type Rule struct {
	Id         RuleId
	Name       string
	Enabled    bool
	Executable bool

	EventDescriptors []EventDescriptor
	StateEvaluator   StateEvaluator
	TimeDescriptor   TimeDescriptor
	Actions          []RuleAction
	ExitActions      []RuleAction

	// Derived runtime flags. Only the engine may mutate these (§3
	// "Lifecycle"; design note keeps them unexported fields with exported
	// setters on the aggregate rather than behind virtual dispatch, since Go has no
	// friend-class mechanism — callers outside application.Engine should
	// treat them as read-only).
	statesActive bool
	timeActive   bool
	active       bool
}

// NewRule constructs a rule with enabled=true, executable=true, and a
// freshly generated id. Derived flags start false; the engine initializes
// them on a successful addRule (§4.1).
func NewRule(name string, eventDescriptors []EventDescriptor, evaluator StateEvaluator, timeDescriptor TimeDescriptor, actions, exitActions []RuleAction) *Rule {
	return &Rule{
		Id:               NewRuleId(),
		Name:             name,
		Enabled:          true,
		Executable:       true,
		EventDescriptors: eventDescriptors,
		StateEvaluator:   evaluator,
		TimeDescriptor:   timeDescriptor,
		Actions:          actions,
		ExitActions:      exitActions,
	}
}

func (r *Rule) StatesActive() bool { return r.statesActive }
func (r *Rule) TimeActive() bool   { return r.timeActive }
func (r *Rule) Active() bool       { return r.active }

// SetStatesActive is called by application.Engine after re-evaluating the
// state evaluator tree.
func (r *Rule) SetStatesActive(v bool) { r.statesActive = v }

// SetTimeActive is called by application.Engine after re-evaluating the
// time descriptor.
func (r *Rule) SetTimeActive(v bool) { r.timeActive = v }

// SetActive is called by application.Engine after recomputing the derived
// active flag (§4.8: active = enabled ∧ statesActive ∧ timeActive).
func (r *Rule) SetActive(v bool) { r.active = v }

// RecomputeActive applies §4.8's formula and returns whether the value
// changed.
func (r *Rule) RecomputeActive() (changed bool) {
	next := r.Enabled && r.statesActive && r.timeActive
	changed = next != r.active
	r.active = next
	return changed
}

// IsStateBased reports whether this rule is driven purely by state/time
// transitions rather than discrete events (§4.4 "Classify the rule"): no
// event descriptors, no time-event items, and a non-empty state evaluator.
func (r *Rule) IsStateBased() bool {
	return len(r.EventDescriptors) == 0 && len(r.TimeDescriptor.TimeEventItems) == 0 && !r.StateEvaluator.IsEmpty()
}

// IsEventBased reports whether this rule carries explicit event descriptors
// (§4.4).
func (r *Rule) IsEventBased() bool {
	return len(r.EventDescriptors) > 0
}

// HasNonEventTrigger reports whether the rule has a non-empty state
// evaluator or at least one calendar item — the precondition for carrying
// exit actions (§3 invariant, §4.1 rule 2).
func (r *Rule) HasNonEventTrigger() bool {
	return !r.StateEvaluator.IsEmpty() || len(r.TimeDescriptor.CalendarItems) > 0
}

// HasEventBasedActionParams reports whether any action (in Actions) binds a
// parameter from the triggering event (§4.7, §8 "ContainsEventBasesAction").
func (r *Rule) HasEventBasedActionParams() bool {
	for _, a := range r.Actions {
		if a.HasEventBasedParams() {
			return true
		}
	}
	return false
}

// IsConsistent implements §3's structural invariant: actions non-empty;
// exit actions only permitted alongside a non-event trigger.
func (r *Rule) IsConsistent() error {
	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: rule has no actions", ErrInvalidRuleFormat)
	}
	if len(r.ExitActions) > 0 && !r.HasNonEventTrigger() {
		return fmt.Errorf("%w: exit actions require a non-event trigger (state evaluator or calendar item)", ErrInvalidRuleFormat)
	}
	return nil
}

// ContainsThing reports whether thingId is referenced anywhere in the rule:
// event descriptors, the state evaluator, or action bindings (§4.9).
func (r *Rule) ContainsThing(thingId ThingId) bool {
	for _, ed := range r.EventDescriptors {
		if ed.Kind == DescriptorThingBound && ed.ThingId == thingId {
			return true
		}
	}
	if r.StateEvaluator.ContainsThing(thingId) {
		return true
	}
	for _, actions := range [][]RuleAction{r.Actions, r.ExitActions} {
		for _, a := range actions {
			if actionReferencesThing(a, thingId) {
				return true
			}
		}
	}
	return false
}

func actionReferencesThing(a RuleAction, thingId ThingId) bool {
	switch a.Kind {
	case RuleActionThing:
		if a.ThingId == thingId {
			return true
		}
	case RuleActionBrowser:
		if a.BrowserThingId == thingId {
			return true
		}
	}
	for _, p := range a.Params {
		if p.Binding == BindingState && p.StateThingId == thingId {
			return true
		}
	}
	return false
}

// ContainedThings collects every thing referenced anywhere in the rule.
func (r *Rule) ContainedThings() []ThingId {
	seen := map[ThingId]bool{}
	var result []ThingId
	add := func(id ThingId) {
		if id.IsNil() || seen[id] {
			return
		}
		seen[id] = true
		result = append(result, id)
	}
	for _, ed := range r.EventDescriptors {
		if ed.Kind == DescriptorThingBound {
			add(ed.ThingId)
		}
	}
	for _, t := range r.StateEvaluator.ContainedThings() {
		add(t)
	}
	for _, actions := range [][]RuleAction{r.Actions, r.ExitActions} {
		for _, a := range actions {
			switch a.Kind {
			case RuleActionThing:
				add(a.ThingId)
			case RuleActionBrowser:
				add(a.BrowserThingId)
			}
			for _, p := range a.Params {
				if p.Binding == BindingState {
					add(p.StateThingId)
				}
			}
		}
	}
	return result
}

// WithoutThing returns a trimmed copy of the rule with every reference to
// thingId purged from event descriptors, the state evaluator, and action
// lists (§4.9). The trimmed copy preserves id, name, flags and derived
// state; the caller decides whether the result still has actions.
func (r *Rule) WithoutThing(thingId ThingId) *Rule {
	trimmed := &Rule{
		Id:             r.Id,
		Name:           r.Name,
		Enabled:        r.Enabled,
		Executable:     r.Executable,
		StateEvaluator: r.StateEvaluator.RemoveThing(thingId),
		TimeDescriptor: r.TimeDescriptor,
		statesActive:   r.statesActive,
		timeActive:     r.timeActive,
		active:         r.active,
	}
	for _, ed := range r.EventDescriptors {
		if ed.Kind == DescriptorThingBound && ed.ThingId == thingId {
			continue
		}
		trimmed.EventDescriptors = append(trimmed.EventDescriptors, ed)
	}
	trimmed.Actions = filterActions(r.Actions, thingId)
	trimmed.ExitActions = filterActions(r.ExitActions, thingId)
	return trimmed
}

func filterActions(actions []RuleAction, thingId ThingId) []RuleAction {
	var result []RuleAction
	for _, a := range actions {
		if actionReferencesThing(a, thingId) {
			continue
		}
		result = append(result, a)
	}
	return result
}

// Clone returns a deep-enough copy safe to mutate without affecting r; used
// by editRule to restore the original on failure (§4.1).
func (r *Rule) Clone() *Rule {
	clone := *r
	clone.EventDescriptors = append([]EventDescriptor(nil), r.EventDescriptors...)
	clone.Actions = append([]RuleAction(nil), r.Actions...)
	clone.ExitActions = append([]RuleAction(nil), r.ExitActions...)
	return &clone
}
