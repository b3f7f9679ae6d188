// Package application implements the rule engine proper: validation,
// the event and time evaluation paths, action dispatch, and housekeeping
// (§4, §5). It depends only on domain and the collaborator ports, never on
// a concrete storage or transport technology.
package application

import (
	"context"
	"sync"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
)

// ActionDispatcher submits a fully-bound concrete action and returns its
// completion handle. Implementations are expected to apply a per-thing
// circuit breaker and timeout (§5 "Cancellation & timeouts"); see
// infrastructure/dispatch.
type ActionDispatcher interface {
	Submit(ctx context.Context, action ports.ConcreteAction, timeout time.Duration) (*ports.ActionInfo, error)
	SubmitBrowser(ctx context.Context, action ports.BrowserAction, timeout time.Duration) (*ports.ActionInfo, error)
}

// Config bounds the engine's dispatch behavior.
type Config struct {
	// ActionTimeout is the upper bound passed to every action submission
	// (§5 "Cancellation & timeouts").
	ActionTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{ActionTimeout: 10 * time.Second}
}

// Engine is the rule engine aggregate root (§2, §6.4). It owns the
// in-memory rule set exclusively; per §5 all mutation and evaluation is
// meant to run on a single logical executor (the caller's goroutine), so
// the mutex below guards against accidental concurrent callers rather than
// implementing fine-grained parallelism.
type Engine struct {
	mu sync.Mutex

	store      domain.RuleStore
	things     ports.ThingManager
	dispatcher ActionDispatcher
	logger     ports.Logger
	config     Config

	// order + byID together implement design note "Rule store indexing":
	// order gives stable iteration, byID gives O(1) lookup.
	order []domain.RuleId
	byID  map[domain.RuleId]*domain.Rule

	lastEvaluationTime time.Time
	haveEvaluated      bool

	// loopGuard tracks rules currently mid-dispatch within the top-level
	// handler invocation that triggered them (§4.4, §5 "Loop guard"). It is
	// cleared at the end of every HandleEvent/HandleTick call.
	loopGuard map[domain.RuleId]bool

	// distributedGuard is an optional cross-instance companion to
	// loopGuard, consulted in addition to it; see SetDistributedLoopGuard.
	distributedGuard DistributedLoopGuard

	// distributedClaimed tracks rules this instance itself won the
	// distributed claim for this cycle, so clearLoopGuard releases only
	// claims it holds rather than one another instance is still using.
	distributedClaimed map[domain.RuleId]bool

	events chan domain.RuleEvent
}

// DistributedLoopGuard is an optional cross-instance companion to the
// engine's per-cycle in-memory loop guard (§5 "Loop guard"), for
// deployments running more than one engine instance against a shared thing
// manager that must still agree on single-writer semantics per rule per
// cycle. See infrastructure/loopguard for the Redis-backed implementation.
type DistributedLoopGuard interface {
	TryMark(ctx context.Context, id domain.RuleId) (bool, error)
	Clear(ctx context.Context, id domain.RuleId) error
}

// SetDistributedLoopGuard installs g as the engine's cross-instance loop
// guard. Optional: a nil (the default) leaves loop suppression entirely to
// the in-memory per-cycle guard, correct for a single engine instance.
func (e *Engine) SetDistributedLoopGuard(g DistributedLoopGuard) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.distributedGuard = g
}

// NewEngine constructs an engine with an empty rule set. Call Load to
// populate it from the store before serving traffic.
func NewEngine(store domain.RuleStore, things ports.ThingManager, dispatcher ActionDispatcher, logSink ports.LogSink, config Config) *Engine {
	var logger ports.Logger
	if logSink != nil {
		logger = logSink.Register("rules", "id", "event")
	}
	return &Engine{
		store:              store,
		things:             things,
		dispatcher:         dispatcher,
		logger:             logger,
		config:             config,
		byID:               make(map[domain.RuleId]*domain.Rule),
		loopGuard:          make(map[domain.RuleId]bool),
		distributedClaimed: make(map[domain.RuleId]bool),
		events:             make(chan domain.RuleEvent, 64),
	}
}

// Events returns the broadcast channel of RuleEvent notifications (design
// note "Signals to channels"; §6.4 "Signals").
func (e *Engine) Events() <-chan domain.RuleEvent { return e.events }

func (e *Engine) emit(evt domain.RuleEvent) {
	select {
	case e.events <- evt:
	default:
		e.log(map[string]any{"event": "dropped", "reason": "events channel full"})
	}
}

func (e *Engine) log(fields map[string]any) {
	if e.logger != nil {
		e.logger.Log(fields)
	}
}

// Load populates the engine from the rule store in lexicographic key order
// (§4.10), initializing statesActive and timeActive as addRule does and,
// unlike addRule, also computing active.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, r := range rules {
		r.SetStatesActive(r.StateEvaluator.Evaluate(e.things))
		timeActive, _, err := r.TimeDescriptor.Evaluate(domain.FirstLastTick(now), now)
		if err != nil {
			e.log(map[string]any{"id": r.Id.String(), "event": "skipped", "error": err.Error()})
			continue
		}
		if len(r.TimeDescriptor.CalendarItems) == 0 {
			// No calendar items: time never gates active (§4.8).
			timeActive = true
		}
		r.SetTimeActive(timeActive)
		r.RecomputeActive()
		e.insert(r)
	}
	e.lastEvaluationTime = now
	e.haveEvaluated = true
	return nil
}

func (e *Engine) insert(r *domain.Rule) {
	if _, exists := e.byID[r.Id]; !exists {
		e.order = append(e.order, r.Id)
	}
	e.byID[r.Id] = r
}

func (e *Engine) remove(id domain.RuleId) {
	delete(e.byID, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Rules returns every rule in stable insertion/load order (§6.4 "rules").
func (e *Engine) Rules() []*domain.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]*domain.Rule, 0, len(e.order))
	for _, id := range e.order {
		result = append(result, e.byID[id])
	}
	return result
}

// RuleIds returns every rule id in stable order (§6.4 "ruleIds").
func (e *Engine) RuleIds() []domain.RuleId {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.RuleId(nil), e.order...)
}

// FindRule looks up a single rule by id (§6.4 "findRule").
func (e *Engine) FindRule(id domain.RuleId) (*domain.Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.byID[id]
	if !ok {
		return nil, domain.NewValidationError(domain.ErrRuleNotFound, id, "")
	}
	return r, nil
}

// FindRules returns every rule referencing thingId (§6.4 "findRules(thingId)").
func (e *Engine) FindRules(thingId domain.ThingId) []*domain.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	var result []*domain.Rule
	for _, id := range e.order {
		r := e.byID[id]
		if r.ContainsThing(thingId) {
			result = append(result, r)
		}
	}
	return result
}

// ThingsInRules returns the union of every thing referenced by any rule
// (§6.4 "thingsInRules").
func (e *Engine) ThingsInRules() []domain.ThingId {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := map[domain.ThingId]bool{}
	var result []domain.ThingId
	for _, id := range e.order {
		for _, t := range e.byID[id].ContainedThings() {
			if !seen[t] {
				seen[t] = true
				result = append(result, t)
			}
		}
	}
	return result
}

// EnableRule sets enabled=true, recomputes active, persists, and emits
// ruleActiveChanged if active crossed (§4.8 transition (c)).
func (e *Engine) EnableRule(ctx context.Context, id domain.RuleId) error {
	return e.setEnabled(ctx, id, true)
}

// DisableRule is the inverse of EnableRule.
func (e *Engine) DisableRule(ctx context.Context, id domain.RuleId) error {
	return e.setEnabled(ctx, id, false)
}

func (e *Engine) setEnabled(ctx context.Context, id domain.RuleId, enabled bool) error {
	e.mu.Lock()
	r, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrRuleNotFound, id, "")
	}
	r.Enabled = enabled
	changed := r.RecomputeActive()
	active := r.Active()
	if err := e.store.Save(ctx, r); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	event := "disabled"
	if enabled {
		event = "enabled"
	}
	e.log(map[string]any{"id": id.String(), "event": event})
	if changed {
		e.emit(domain.RuleEvent{Kind: domain.RuleEventActiveChanged, RuleId: id, Active: active})
	}
	return nil
}

// RemoveRule deletes a rule by id, persists the deletion, and emits
// ruleRemoved (§6.4). suppressNotify is used internally by editRule.
func (e *Engine) RemoveRule(ctx context.Context, id domain.RuleId) error {
	return e.removeRule(ctx, id, false)
}

func (e *Engine) removeRule(ctx context.Context, id domain.RuleId, suppressNotify bool) error {
	e.mu.Lock()
	if _, ok := e.byID[id]; !ok {
		e.mu.Unlock()
		return domain.NewValidationError(domain.ErrRuleNotFound, id, "")
	}
	if err := e.store.Delete(ctx, id); err != nil {
		e.mu.Unlock()
		return err
	}
	e.remove(id)
	e.mu.Unlock()

	if !suppressNotify {
		e.log(map[string]any{"id": id.String(), "event": "removed"})
		e.emit(domain.RuleEvent{Kind: domain.RuleEventRemoved, RuleId: id})
	}
	return nil
}
