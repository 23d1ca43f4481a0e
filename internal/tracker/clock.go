package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

const tickInterval = time.Second

// Clock measures the wall time of one running session.
type Clock struct {
	mu      sync.Mutex
	start   time.Time
	cancel  context.CancelFunc
	wg      *conc.WaitGroup
	running bool
}

func NewClock() *Clock {
	return &Clock{}
}

// Start records the start instant and calls onTick once per second with the
// elapsed time until Stop. onTick must not call back into the Clock.
func (c *Clock) Start(onTick func(elapsed time.Duration)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrTaskRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	c.start, c.cancel, c.running = start, cancel, true
	c.wg = conc.NewWaitGroup()
	c.wg.Go(func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				if onTick != nil {
					onTick(time.Since(start))
				}
			}
		}
	})
	return nil
}

// Stop halts the ticker and returns the measured interval. No onTick call
// is in flight or pending once Stop returns. Stopping an idle clock returns
// zero values.
func (c *Clock) Stop() (start, stop time.Time, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return time.Time{}, time.Time{}, 0
	}
	stop = time.Now()
	c.cancel()
	c.wg.Wait()
	c.running = false
	return c.start, stop, stop.Sub(c.start)
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	return time.Since(c.start)
}
