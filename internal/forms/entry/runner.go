package entry

import (
	"sync"
	"time"
)

// TimerRunner drives one timer field with a repeating tick. The runner
// is owned by whoever opened the entry session: Start returns
// immediately and Stop must be called on teardown so a tick never
// outlives its owner. Start and Stop are idempotent.
type TimerRunner struct {
	mu sync.Mutex

	interval time.Duration
	onTick   func()

	stopChan chan struct{}
	running  bool
}

// NewTimerRunner creates a runner firing onTick every interval. The
// callback performs the actual mutation (and any locking the owner
// needs); the runner only schedules it.
func NewTimerRunner(interval time.Duration, onTick func()) *TimerRunner {
	if interval <= 0 {
		interval = time.Second
	}
	return &TimerRunner{
		interval: interval,
		onTick:   onTick,
	}
}

// Start begins ticking. Calling Start on a running runner is a no-op.
func (r *TimerRunner) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopChan = make(chan struct{})
	stop := r.stopChan
	r.mu.Unlock()

	go r.loop(stop)
}

// Stop cancels the tick deterministically. Calling Stop on a stopped
// runner is a no-op.
func (r *TimerRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()
}

// IsRunning reports whether the runner is ticking.
func (r *TimerRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *TimerRunner) loop(stop chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.onTick()
		}
	}
}
