// Package dispatch wraps ports.ThingManager action submission with a
// per-thing circuit breaker, grounded on the teacher corpus's
// internal/engine/runtime executor pattern.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
	"github.com/sony/gobreaker/v2"
)

// Config configures the circuit breaker applied to every thing's action
// submissions.
type Config struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultConfig() Config {
	return Config{
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Dispatcher submits concrete actions to a ports.ThingManager, tripping a
// per-thing breaker after repeated failures so a single unresponsive
// device cannot stall dispatch for the rest of a batch (§5 "Suspension
// points").
type Dispatcher struct {
	things   ports.ThingManager
	config   Config
	logger   *slog.Logger
	breakers map[string]*gobreaker.CircuitBreaker[*ports.ActionInfo]
}

func NewDispatcher(things ports.ThingManager, config Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		things:   things,
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*ports.ActionInfo]),
	}
}

func (d *Dispatcher) breaker(key string) *gobreaker.CircuitBreaker[*ports.ActionInfo] {
	if b, ok := d.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[*ports.ActionInfo](gobreaker.Settings{
		Name:        key,
		MaxRequests: d.config.MaxRequests,
		Interval:    d.config.Interval,
		Timeout:     d.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= d.config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Info("action dispatch circuit breaker state changed",
				"thing_id", name, "from", from.String(), "to", to.String())
		},
	})
	d.breakers[key] = b
	return b
}

func (d *Dispatcher) Submit(ctx context.Context, action ports.ConcreteAction, timeout time.Duration) (*ports.ActionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := d.breaker(action.ThingId.String())
	return b.Execute(func() (*ports.ActionInfo, error) {
		return d.things.SubmitAction(ctx, action, timeout)
	})
}

func (d *Dispatcher) SubmitBrowser(ctx context.Context, action ports.BrowserAction, timeout time.Duration) (*ports.ActionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := d.breaker(action.ThingId.String())
	return b.Execute(func() (*ports.ActionInfo, error) {
		return d.things.SubmitBrowserAction(ctx, action, timeout)
	})
}
