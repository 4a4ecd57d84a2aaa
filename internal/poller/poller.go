package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattsolo1/grove-core/logging"
	"github.com/sirupsen/logrus"
)

// RefreshFunc performs one background reconciliation pass.
type RefreshFunc func(ctx context.Context)

// Poller triggers background refreshes at an adaptive interval. While a
// sensitive foreground flow is in progress (session creation, approval) the
// cadence shortens so its outcome shows up quickly. At most one refresh
// runs at a time; a trigger that lands during a running refresh is skipped
// outright, never queued.
type Poller struct {
	interval     time.Duration
	fastInterval time.Duration
	refresh      RefreshFunc
	log          *logrus.Entry

	mu        sync.Mutex
	cancel    context.CancelFunc
	sensitive int
	rearm     chan struct{}

	inFlight atomic.Bool
}

// New creates a stopped poller.
func New(interval, fastInterval time.Duration, refresh RefreshFunc) *Poller {
	return &Poller{
		interval:     interval,
		fastInterval: fastInterval,
		refresh:      refresh,
		log:          logging.NewLogger("watch.poller"),
		rearm:        make(chan struct{}, 1),
	}
}

// Start installs the polling timer. Calling Start on a running poller is a
// no-op. The poller stops when ctx is canceled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(runCtx)
}

// Stop clears the active timer. In-flight refreshes are not interrupted;
// each outbound request carries its own deadline.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
}

// Reset performs stop-then-start.
func (p *Poller) Reset(ctx context.Context) {
	p.Stop()
	p.Start(ctx)
}

// BeginSensitive switches to the fast interval for the duration of a
// sensitive foreground flow. Calls nest.
func (p *Poller) BeginSensitive() {
	p.mu.Lock()
	p.sensitive++
	p.mu.Unlock()
	p.poke()
}

// EndSensitive reverts to the normal interval once every sensitive flow is
// done. Callers pair it with BeginSensitive via defer so the cadence
// recovers even on error.
func (p *Poller) EndSensitive() {
	p.mu.Lock()
	if p.sensitive > 0 {
		p.sensitive--
	}
	p.mu.Unlock()
	p.poke()
}

func (p *Poller) poke() {
	select {
	case p.rearm <- struct{}{}:
	default:
	}
}

func (p *Poller) currentInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sensitive > 0 {
		return p.fastInterval
	}
	return p.interval
}

func (p *Poller) run(ctx context.Context) {
	p.log.WithFields(logrus.Fields{
		"interval":      p.interval.String(),
		"fast_interval": p.fastInterval.String(),
	}).Info("Poller started")

	timer := time.NewTimer(p.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Poller stopped")
			return
		case <-p.rearm:
			// Cadence changed; re-arm with the new interval.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.currentInterval())
		case <-timer.C:
			p.trigger(ctx)
			timer.Reset(p.currentInterval())
		}
	}
}

// trigger starts one refresh unless a previous one is still running.
func (p *Poller) trigger(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Debug("Refresh already in progress; skipping this tick")
		return
	}
	// Stop tears down the timer loop, never work already in flight; each
	// outbound request bounds itself with its own deadline.
	refreshCtx := context.WithoutCancel(ctx)
	go func() {
		defer p.inFlight.Store(false)
		p.refresh(refreshCtx)
	}()
}
