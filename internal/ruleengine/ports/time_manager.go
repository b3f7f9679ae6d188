package ports

import "time"

// TimeManager is the consumed port described in §6.2: it emits wall-clock
// ticks with timezone at ≥ 1 Hz. The engine only consumes the tick stream.
type TimeManager interface {
	// Subscribe registers a callback invoked on every tick. Returns an
	// unsubscribe function.
	Subscribe(fn func(tick time.Time)) (unsubscribe func())
}
