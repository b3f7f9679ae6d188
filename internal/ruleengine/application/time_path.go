package application

import (
	"context"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
)

// HandleTick implements the time path of §4.6: evaluate calendar windows
// and time-event items for every enabled rule with a non-empty time
// descriptor, collect transitions/fires, then dispatch.
func (e *Engine) HandleTick(ctx context.Context, tick time.Time) error {
	defer e.clearLoopGuard(ctx)

	e.mu.Lock()
	lastTick := e.lastEvaluationTime
	if !e.haveEvaluated {
		lastTick = domain.FirstLastTick(tick)
	}

	var toDispatch []dispatchTrigger

	for _, id := range e.order {
		r := e.byID[id]
		if !r.Enabled || r.TimeDescriptor.IsEmpty() {
			continue
		}

		stateActive, fired, err := r.TimeDescriptor.Evaluate(lastTick, tick)
		if err != nil {
			e.log(map[string]any{"id": id.String(), "event": "triggered", "error": err.Error()})
			continue
		}

		if len(r.TimeDescriptor.CalendarItems) > 0 {
			r.SetTimeActive(stateActive)
			// §4.6: a rule with calendar items, no event descriptors and no
			// time-event items is treated as state-based for this purpose
			// regardless of whether its state evaluator is empty.
			if len(r.EventDescriptors) == 0 && len(r.TimeDescriptor.TimeEventItems) == 0 {
				if r.RecomputeActive() {
					toDispatch = append(toDispatch, dispatchTrigger{rule: r, unconditional: false})
				}
			}
		}

		if len(r.TimeDescriptor.TimeEventItems) > 0 && fired {
			toDispatch = append(toDispatch, dispatchTrigger{rule: r, unconditional: true})
		}
	}

	e.lastEvaluationTime = tick
	e.haveEvaluated = true
	e.mu.Unlock()

	for _, d := range toDispatch {
		e.dispatchForTransitionOrEvent(ctx, d.rule, d.unconditional, d.event)
	}
	return nil
}
