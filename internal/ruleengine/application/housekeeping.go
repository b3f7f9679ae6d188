package application

import (
	"context"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
)

// HandleThingRemoved implements §4.9: find every rule referencing thingId,
// trim it, and either delete it (no actions/exitActions remain) or save the
// trimmed rule, notifying accordingly.
func (e *Engine) HandleThingRemoved(ctx context.Context, thingId domain.ThingId) error {
	e.mu.Lock()
	var affected []*domain.Rule
	for _, id := range e.order {
		r := e.byID[id]
		if r.ContainsThing(thingId) {
			affected = append(affected, r)
		}
	}
	e.mu.Unlock()

	for _, r := range affected {
		trimmed := r.WithoutThing(thingId)

		if len(trimmed.Actions) == 0 && len(trimmed.ExitActions) == 0 {
			if err := e.RemoveRule(ctx, r.Id); err != nil {
				e.log(map[string]any{"id": r.Id.String(), "event": "removed", "error": err.Error()})
			}
			continue
		}

		e.mu.Lock()
		if err := e.store.Save(ctx, trimmed); err != nil {
			e.mu.Unlock()
			e.log(map[string]any{"id": r.Id.String(), "event": "changed", "error": err.Error()})
			continue
		}
		e.insert(trimmed)
		e.mu.Unlock()

		e.log(map[string]any{"id": r.Id.String(), "event": "changed"})
		e.emit(domain.RuleEvent{Kind: domain.RuleEventChanged, Rule: trimmed})
	}
	return nil
}
