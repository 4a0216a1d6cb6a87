package service

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// transitionTimers schedules the delayed self-transitions, one slot per match.
// Scheduling again replaces the previous timer; a cancelled or replaced timer
// that already fired is harmless because every transition write is
// conditional.
type transitionTimers struct {
	clock  clockwork.Clock
	mu     sync.Mutex
	timers map[string]clockwork.Timer
}

func newTransitionTimers(clock clockwork.Clock) *transitionTimers {
	return &transitionTimers{
		clock:  clock,
		timers: make(map[string]clockwork.Timer),
	}
}

func (t *transitionTimers) schedule(matchID string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.timers[matchID]; ok {
		old.Stop()
	}

	var timer clockwork.Timer
	timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.timers[matchID] == timer {
			delete(t.timers, matchID)
		}
		t.mu.Unlock()
		fn()
	})
	t.timers[matchID] = timer
}

func (t *transitionTimers) cancel(matchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[matchID]; ok {
		timer.Stop()
		delete(t.timers, matchID)
	}
}
