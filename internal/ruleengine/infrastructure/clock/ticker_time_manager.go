// Package clock provides a production ports.TimeManager backed by a plain
// time.Ticker (§6.2: "emits wall-clock ticks... at >= 1 Hz").
package clock

import (
	"sync"
	"time"
)

// TickerTimeManager emits a tick on every interval, broadcasting to every
// subscriber in subscription order.
type TickerTimeManager struct {
	mu     sync.Mutex
	subs   map[int]func(tick time.Time)
	next   int
	ticker *time.Ticker
	stop   chan struct{}
}

func NewTickerTimeManager(interval time.Duration) *TickerTimeManager {
	return &TickerTimeManager{
		subs: make(map[int]func(tick time.Time)),
		stop: make(chan struct{}),
	}
}

// Run starts the underlying ticker and blocks until Stop is called.
func (m *TickerTimeManager) Run(interval time.Duration) {
	m.ticker = time.NewTicker(interval)
	defer m.ticker.Stop()
	for {
		select {
		case now := <-m.ticker.C:
			m.broadcast(now)
		case <-m.stop:
			return
		}
	}
}

func (m *TickerTimeManager) broadcast(tick time.Time) {
	m.mu.Lock()
	fns := make([]func(tick time.Time), 0, len(m.subs))
	for i := 0; i < m.next; i++ {
		if fn, ok := m.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(tick)
	}
}

func (m *TickerTimeManager) Subscribe(fn func(tick time.Time)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *TickerTimeManager) Stop() {
	close(m.stop)
}
