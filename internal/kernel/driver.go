package kernel

import (
	"context"
	"time"
)

// RunWallPaced drives ticks on a fixed wall-clock timer matching the
// kernel's configured tick size, so virtual time advances in lockstep
// with wall time. This is the pacing device for interactive use (the
// HTTP/WS gateway, a terminal renderer): it lets external I/O flow in
// between ticks while every tick itself stays deterministic. It
// blocks until ctx is canceled.
func (k *Kernel) RunWallPaced(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(k.tickNs))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Tick()
		}
	}
}

// RunFast drives ticks back-to-back with no sleeping, for tests and
// batch load generation. It stops once n ticks have run. Given the
// same configuration and seeds, RunFast produces bit-identical
// results to RunWallPaced, since virtual time and message delivery
// never depend on wall-clock speed.
func (k *Kernel) RunFast(n int) {
	for i := 0; i < n; i++ {
		k.Tick()
	}
}

// RunFastUntilIdle runs ticks with no sleeping until the time queue
// is empty, up to maxTicks as a safety bound against a runaway
// scenario that keeps scheduling work forever.
func (k *Kernel) RunFastUntilIdle(maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		k.Tick()
		if k.q.Len() == 0 {
			return
		}
	}
}
