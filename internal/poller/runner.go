// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run polls once immediately, then on every tick and every refresh request,
// emitting each Result on out. One goroutine per device. No overlap. No retries.
func (p *Poller) Run(ctx context.Context, out chan<- Result) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.emit(ctx, out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emit(ctx, out)
		case <-p.refresh:
			p.emit(ctx, out)
		}
	}
}

// RequestRefresh asks Run for an out-of-band cycle. Never blocks; requests
// made while one is pending are merged.
func (p *Poller) RequestRefresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *Poller) emit(ctx context.Context, out chan<- Result) {
	res := p.PollOnce(ctx)
	select {
	case out <- res:
	case <-ctx.Done():
	}
}
