package tracker

import (
	"context"
	"time"
)

const (
	DefaultBeaconInterval = 60 * time.Second
	// DefaultResetEvery deliveries (about an hour at the default interval)
	// the error, console and image buffers are cleared.
	DefaultResetEvery = 60
)

// Scheduler sends the buffer on a fixed interval and periodically clears the
// unbounded collections. Failed deliveries are not retried.
type Scheduler struct {
	interval   time.Duration
	resetEvery int
	deliver    func()
	reset      func()

	deliveries int
}

func NewScheduler(interval time.Duration, resetEvery int, deliver, reset func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultBeaconInterval
	}
	if resetEvery <= 0 {
		resetEvery = DefaultResetEvery
	}
	return &Scheduler{
		interval:   interval,
		resetEvery: resetEvery,
		deliver:    deliver,
		reset:      reset,
	}
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	s.deliver()
	s.deliveries++
	if s.deliveries >= s.resetEvery {
		s.reset()
		s.deliveries = 0
	}
}
