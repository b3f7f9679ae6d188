package application

import (
	"context"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
)

// AddRule runs the six-step validation of §4.1 in order, halting at the
// first failure, then appends and persists the rule with its derived flags
// initialized.
func (e *Engine) AddRule(ctx context.Context, r *domain.Rule) error {
	return e.addRule(ctx, r, false)
}

func (e *Engine) addRule(ctx context.Context, r *domain.Rule, fromEdit bool) error {
	e.mu.Lock()

	if err := e.validateIdentity(r); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := r.IsConsistent(); err != nil {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrInvalidRuleFormat, r.Id, err.Error())
	}
	if err := e.validateEventDescriptors(r); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.validateStateEvaluator(r); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := r.TimeDescriptor.Validate(); err != nil {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrInvalidTimeDescriptor, r.Id, err.Error())
	}
	if err := e.validateActions(r); err != nil {
		e.mu.Unlock()
		return err
	}

	now := time.Now()
	r.SetStatesActive(r.StateEvaluator.Evaluate(e.things))
	timeActive, _, err := r.TimeDescriptor.Evaluate(domain.FirstLastTick(now), now)
	if err != nil {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrInvalidTimeDescriptor, r.Id, err.Error())
	}
	if len(r.TimeDescriptor.CalendarItems) == 0 {
		// No calendar items: time never gates active (§4.8).
		timeActive = true
	}
	r.SetTimeActive(timeActive)
	// active is deliberately left at its zero value here (§4.1 "active is
	// not yet set"): the first subsequent event or tick establishes it and
	// emits ruleActiveChanged on the resulting transition.

	if err := e.store.Save(ctx, r); err != nil {
		e.mu.Unlock()
		return err
	}
	e.insert(r)
	e.mu.Unlock()

	if !fromEdit {
		e.log(map[string]any{"id": r.Id.String(), "event": "created"})
		e.emit(domain.RuleEvent{Kind: domain.RuleEventAdded, Rule: r})
	}
	return nil
}

func (e *Engine) validateIdentity(r *domain.Rule) error {
	if r.Id.IsNil() {
		return domain.NewValidationError(domain.ErrInvalidRuleId, r.Id, "rule id must not be null")
	}
	if _, exists := e.byID[r.Id]; exists {
		return domain.NewValidationError(domain.ErrInvalidRuleId, r.Id, "a rule with this id already exists")
	}
	return nil
}

func (e *Engine) validateEventDescriptors(r *domain.Rule) error {
	for _, ed := range r.EventDescriptors {
		if err := ed.Validate(); err != nil {
			return domain.NewValidationError(domain.ErrInvalidRuleFormat, r.Id, err.Error())
		}
		switch ed.Kind {
		case domain.DescriptorThingBound:
			thing, ok := e.things.Thing(ed.ThingId)
			if !ok {
				return domain.NewValidationError(domain.ErrThingNotFound, r.Id, ed.ThingId.String())
			}
			class, ok := e.things.ThingClass(thing.ClassId)
			if !ok {
				return domain.NewValidationError(domain.ErrThingNotFound, r.Id, thing.ClassId.String())
			}
			if _, ok := class.EventType(ed.EventTypeId); !ok {
				if _, ok := class.StateType(domain.StateTypeId(ed.EventTypeId)); !ok {
					return domain.NewValidationError(domain.ErrEventTypeNotFound, r.Id, ed.EventTypeId.String())
				}
			}
		case domain.DescriptorInterfaceBound:
			if len(e.things.ThingsImplementing(ed.InterfaceName)) == 0 {
				// An interface with zero current implementers is still a
				// valid, if inert, rule target; only an unknown interface
				// name is rejected, which requires a registry of declared
				// interfaces the Thing Manager does not expose here. We
				// treat any named interface as provisionally valid and let
				// event matching (§4.5) simply never fire for it.
				continue
			}
		}
	}
	return nil
}

func (e *Engine) validateStateEvaluator(r *domain.Rule) error {
	return e.validateEvaluatorNode(r.Id, r.StateEvaluator)
}

func (e *Engine) validateEvaluatorNode(ruleId domain.RuleId, node domain.StateEvaluator) error {
	if node.IsEmpty() {
		return nil
	}
	if node.IsLeaf() {
		return e.validateStateDescriptor(ruleId, *node.Descriptor)
	}
	for _, child := range node.Children {
		if err := e.validateEvaluatorNode(ruleId, child); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) validateStateDescriptor(ruleId domain.RuleId, d domain.StateDescriptor) error {
	if err := d.Validate(); err != nil {
		return domain.NewValidationError(domain.ErrInvalidRuleFormat, ruleId, err.Error())
	}
	if d.Kind == domain.DescriptorInterfaceBound {
		return nil
	}

	thing, ok := e.things.Thing(d.ThingId)
	if !ok {
		return domain.NewValidationError(domain.ErrThingNotFound, ruleId, d.ThingId.String())
	}
	class, ok := e.things.ThingClass(thing.ClassId)
	if !ok {
		return domain.NewValidationError(domain.ErrThingNotFound, ruleId, thing.ClassId.String())
	}
	stateType, ok := class.StateType(d.StateTypeId)
	if !ok {
		return domain.NewValidationError(domain.ErrStateTypeNotFound, ruleId, d.StateTypeId.String())
	}
	if d.HasValueRef() {
		// §9 open question (a): existence of the referenced state is
		// checked up front; its live value is dereferenced at evaluation
		// time and treated as false if it has since disappeared.
		refThing, ok := e.things.Thing(d.ValueRef.ValueThingId)
		if !ok {
			return domain.NewValidationError(domain.ErrThingNotFound, ruleId, d.ValueRef.ValueThingId.String())
		}
		refClass, ok := e.things.ThingClass(refThing.ClassId)
		if !ok {
			return domain.NewValidationError(domain.ErrThingNotFound, ruleId, refThing.ClassId.String())
		}
		if _, ok := refClass.StateType(d.ValueRef.ValueStateTypeId); !ok {
			return domain.NewValidationError(domain.ErrStateTypeNotFound, ruleId, d.ValueRef.ValueStateTypeId.String())
		}
		return nil
	}
	return validateStateValue(ruleId, stateType, d.Value)
}

func validateStateValue(ruleId domain.RuleId, stateType ports.StateTypeDef, value any) error {
	if len(stateType.PossibleValues) > 0 {
		for _, pv := range stateType.PossibleValues {
			if pv == value {
				return nil
			}
		}
		return domain.NewValidationError(domain.ErrInvalidStateEvaluatorValue, ruleId, "value is not one of the state type's possible values")
	}
	if f, ok := asComparableFloat(value); ok {
		if minF, ok := asComparableFloat(stateType.MinValue); ok && f < minF {
			return domain.NewValidationError(domain.ErrInvalidStateEvaluatorValue, ruleId, "value below state type minimum")
		}
		if maxF, ok := asComparableFloat(stateType.MaxValue); ok && f > maxF {
			return domain.NewValidationError(domain.ErrInvalidStateEvaluatorValue, ruleId, "value above state type maximum")
		}
	}
	return nil
}

func asComparableFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (e *Engine) validateActions(r *domain.Rule) error {
	for _, a := range r.Actions {
		if err := e.validateAction(r, a); err != nil {
			return err
		}
	}
	for _, a := range r.ExitActions {
		if err := e.validateAction(r, a); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) validateAction(r *domain.Rule, a domain.RuleAction) error {
	if err := a.Validate(); err != nil {
		return domain.NewValidationError(domain.ErrInvalidRuleFormat, r.Id, err.Error())
	}

	var actionType ports.ActionTypeDef
	switch a.Kind {
	case domain.RuleActionThing:
		thing, ok := e.things.Thing(a.ThingId)
		if !ok {
			return domain.NewValidationError(domain.ErrThingNotFound, r.Id, a.ThingId.String())
		}
		class, ok := e.things.ThingClass(thing.ClassId)
		if !ok {
			return domain.NewValidationError(domain.ErrThingNotFound, r.Id, thing.ClassId.String())
		}
		actionType, ok = class.ActionType(a.ActionTypeId)
		if !ok {
			return domain.NewValidationError(domain.ErrActionTypeNotFound, r.Id, a.ActionTypeId.String())
		}
	case domain.RuleActionInterface:
		implementers := e.things.ThingsImplementing(a.InterfaceName)
		if len(implementers) == 0 {
			return domain.NewValidationError(domain.ErrInterfaceNotFound, r.Id, a.InterfaceName)
		}
		thing, _ := e.things.Thing(implementers[0])
		class, _ := e.things.ThingClass(thing.ClassId)
		found, ok := class.ActionTypeByName(a.InterfaceAction)
		if !ok {
			return domain.NewValidationError(domain.ErrActionTypeNotFound, r.Id, a.InterfaceAction)
		}
		actionType, _ = class.ActionType(found)
	case domain.RuleActionBrowser:
		return nil
	}

	return e.validateActionParams(r, a, actionType)
}

func (e *Engine) validateActionParams(r *domain.Rule, a domain.RuleAction, actionType ports.ActionTypeDef) error {
	supplied := map[domain.ParamTypeId]domain.RuleActionParam{}
	for _, p := range a.Params {
		supplied[p.ParamTypeId] = p
	}

	for _, decl := range actionType.Params {
		p, ok := supplied[decl.Id]
		if !ok {
			if decl.DefaultValue == nil {
				return domain.NewValidationError(domain.ErrMissingParameter, r.Id, decl.Name)
			}
			continue
		}
		if p.Binding == domain.BindingEvent {
			if !eventDescriptorDeclares(r.EventDescriptors, p.EventTypeId) {
				return domain.NewValidationError(domain.ErrInvalidRuleActionParameter, r.Id, "event-based param references an event type not present in this rule")
			}
		}
	}
	return nil
}

func eventDescriptorDeclares(descriptors []domain.EventDescriptor, eventTypeId domain.EventTypeId) bool {
	for _, ed := range descriptors {
		if ed.Kind == domain.DescriptorThingBound && ed.EventTypeId == eventTypeId {
			return true
		}
	}
	return false
}

// EditRule implements §4.1: removeRule(fromEdit=true) then addRule(fromEdit
// =true); on failure of the second step, the original rule is restored and
// its error returned. Only a configuration-changed notification is emitted
// on success.
func (e *Engine) EditRule(ctx context.Context, next *domain.Rule) error {
	e.mu.Lock()
	original, ok := e.byID[next.Id]
	e.mu.Unlock()
	if !ok {
		return domain.NewValidationError(domain.ErrRuleNotFound, next.Id, "")
	}
	originalCopy := original.Clone()

	if err := e.removeRule(ctx, next.Id, true); err != nil {
		return err
	}
	if err := e.addRule(ctx, next, true); err != nil {
		// restore: re-insert the original without re-running validation,
		// since it was valid before and nothing about the store changed.
		e.mu.Lock()
		e.insert(originalCopy)
		e.mu.Unlock()
		_ = e.store.Save(ctx, originalCopy)
		return err
	}

	e.log(map[string]any{"id": next.Id.String(), "event": "changed"})
	e.emit(domain.RuleEvent{Kind: domain.RuleEventChanged, Rule: next})
	return nil
}
