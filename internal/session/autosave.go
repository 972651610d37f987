package session

import (
	"context"
	"sync"
	"time"
)

const DefaultAutosaveInterval = 30 * time.Second

// Autosaver calls save on a fixed interval until stopped.
type Autosaver struct {
	interval time.Duration
	save     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAutosaver(interval time.Duration, save func(ctx context.Context)) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{interval: interval, save: save}
}

func (a *Autosaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(ctx, a.done)
}

func (a *Autosaver) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.save(ctx)
		}
	}
}

// Stop cancels the loop; a save already running sees its context cancelled.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Autosaver) stopped() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}
