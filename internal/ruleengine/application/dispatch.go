package application

import (
	"context"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
)

// dispatchActions expands each RuleAction into zero or more concrete
// actions, submits them, and logs completion (§4.7). Binding errors abort
// just the offending concrete action; the rest proceed.
func (e *Engine) dispatchActions(ctx context.Context, r *domain.Rule, actions []domain.RuleAction, triggeringEvent *ports.Event) {
	for _, a := range actions {
		concretes, browser, err := e.expandAction(r, a, triggeringEvent)
		if err != nil {
			e.log(map[string]any{"id": r.Id.String(), "event": "executed", "status": "bindingError", "error": err.Error()})
			continue
		}
		for _, c := range concretes {
			e.submitAndLog(ctx, r, c)
		}
		for _, b := range browser {
			e.submitBrowserAndLog(ctx, r, b)
		}
	}
}

func (e *Engine) submitAndLog(ctx context.Context, r *domain.Rule, c ports.ConcreteAction) {
	info, err := e.dispatcher.Submit(ctx, c, e.config.ActionTimeout)
	status := ports.StatusSetupFailed
	display := ""
	if err == nil && info != nil {
		status = info.Status
		display = info.DisplayMessage
	}
	e.log(map[string]any{
		"id":      r.Id.String(),
		"event":   "executed",
		"status":  status.String(),
		"thingId": c.ThingId.String(),
		"action":  c.ActionName,
		"message": display,
	})
}

func (e *Engine) submitBrowserAndLog(ctx context.Context, r *domain.Rule, b ports.BrowserAction) {
	info, err := e.dispatcher.SubmitBrowser(ctx, b, e.config.ActionTimeout)
	status := ports.StatusSetupFailed
	if err == nil && info != nil {
		status = info.Status
	}
	e.log(map[string]any{
		"id":      r.Id.String(),
		"event":   "executed",
		"status":  status.String(),
		"thingId": b.ThingId.String(),
		"action":  "browserItem:" + b.BrowserItemId,
	})
}

// expandAction implements §4.7 step 1.
func (e *Engine) expandAction(r *domain.Rule, a domain.RuleAction, triggeringEvent *ports.Event) ([]ports.ConcreteAction, []ports.BrowserAction, error) {
	switch a.Kind {
	case domain.RuleActionThing:
		params, err := e.bindParams(a.Params, triggeringEvent)
		if err != nil {
			return nil, nil, err
		}
		thing, ok := e.things.Thing(a.ThingId)
		if !ok {
			return nil, nil, domain.NewValidationError(domain.ErrThingNotFound, r.Id, a.ThingId.String())
		}
		class, _ := e.things.ThingClass(thing.ClassId)
		actionType, _ := class.ActionType(a.ActionTypeId)
		return []ports.ConcreteAction{{
			ThingId:      a.ThingId,
			ActionTypeId: a.ActionTypeId,
			ActionName:   actionType.Name,
			Params:       params,
		}}, nil, nil

	case domain.RuleActionInterface:
		params, err := e.bindParams(a.Params, triggeringEvent)
		if err != nil {
			return nil, nil, err
		}
		var concretes []ports.ConcreteAction
		for _, thingId := range e.things.ThingsImplementing(a.InterfaceName) {
			thing, ok := e.things.Thing(thingId)
			if !ok {
				continue
			}
			class, ok := e.things.ThingClass(thing.ClassId)
			if !ok {
				continue
			}
			actionTypeId, ok := class.ActionTypeByName(a.InterfaceAction)
			if !ok {
				continue
			}
			concretes = append(concretes, ports.ConcreteAction{
				ThingId:      thingId,
				ActionTypeId: actionTypeId,
				ActionName:   a.InterfaceAction,
				Params:       params,
			})
		}
		return concretes, nil, nil

	case domain.RuleActionBrowser:
		return nil, []ports.BrowserAction{{ThingId: a.BrowserThingId, BrowserItemId: a.BrowserItemId}}, nil

	default:
		return nil, nil, domain.NewValidationError(domain.ErrInvalidRuleFormat, r.Id, "unknown rule action kind")
	}
}

// bindParams resolves each RuleActionParam's value per its binding kind
// (§4.7 step 1: value literal, state read, or event substitution).
func (e *Engine) bindParams(params []domain.RuleActionParam, triggeringEvent *ports.Event) (map[domain.ParamTypeId]any, error) {
	result := make(map[domain.ParamTypeId]any, len(params))
	for _, p := range params {
		switch p.Binding {
		case domain.BindingValue:
			result[p.ParamTypeId] = p.Value

		case domain.BindingState:
			v, ok := e.things.StateValue(p.StateThingId, p.StateTypeId)
			if !ok {
				return nil, domain.NewValidationError(domain.ErrStateTypeNotFound, domain.RuleId{}, "state-bound action parameter references an unknown thing/state")
			}
			result[p.ParamTypeId] = v

		case domain.BindingEvent:
			if triggeringEvent == nil {
				return nil, domain.NewValidationError(domain.ErrInvalidRuleActionParameter, domain.RuleId{}, "event-bound parameter with no triggering event")
			}
			v, ok := triggeringEvent.Params[p.EventParamTypeId]
			if !ok {
				return nil, domain.NewValidationError(domain.ErrInvalidRuleActionParameter, domain.RuleId{}, "triggering event missing the bound parameter")
			}
			result[p.ParamTypeId] = v
		}
	}
	return result, nil
}

// ExecuteActions implements §4.7 "executeActions(ruleId)": unconditional
// execution of a rule's actions, provided the rule is executable and none
// of its action parameters are event-based.
func (e *Engine) ExecuteActions(ctx context.Context, id domain.RuleId) error {
	e.mu.Lock()
	r, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrRuleNotFound, id, "")
	}
	if !r.Executable {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrNotExecutable, id, "")
	}
	if r.HasEventBasedActionParams() {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrContainsEventBasedAction, id, "")
	}
	actions := r.Actions
	e.mu.Unlock()

	e.dispatchActions(ctx, r, actions, nil)
	return nil
}

// ExecuteExitActions is the exitActions analog of ExecuteActions.
func (e *Engine) ExecuteExitActions(ctx context.Context, id domain.RuleId) error {
	e.mu.Lock()
	r, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrRuleNotFound, id, "")
	}
	if !r.Executable {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrNotExecutable, id, "")
	}
	if len(r.ExitActions) == 0 {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrNoExitActions, id, "")
	}
	actions := r.ExitActions
	e.mu.Unlock()

	e.dispatchActions(ctx, r, actions, nil)
	return nil
}
