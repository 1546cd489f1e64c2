package stats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AccountState summarizes the last cycle outcome for the host's
// status/availability surface.
type AccountState string

// Account states.
const (
	StateStarting     AccountState = "starting"
	StateOK           AccountState = "ok"
	StateUpdateFailed AccountState = "update_failed"
	StateAuthRequired AccountState = "auth_required"
)

// Status is the host-visible health of one account's polling loop.
type Status struct {
	State             AccountState `json:"state"`
	LastError         string       `json:"last_error,omitempty"`
	LastSuccess       time.Time    `json:"last_success"`
	TickPeriodSeconds int          `json:"tick_period_seconds"`
}

// Runner drives one account's coordinator on a periodic tick. The tick
// period is min(now-playing interval, recently-played interval) and can be
// changed at runtime; a reconfiguration queues exactly one immediate
// out-of-band refresh without interrupting a cycle already in flight.
type Runner struct {
	coord *Coordinator
	log   zerolog.Logger

	refreshCh chan struct{}
	periodCh  chan time.Duration

	mu     sync.RWMutex
	status Status
}

// NewRunner creates a runner for the coordinator.
func NewRunner(coord *Coordinator, logger zerolog.Logger) *Runner {
	return &Runner{
		coord:     coord,
		log:       logger.With().Str("username", coord.Username()).Logger(),
		refreshCh: make(chan struct{}, 1),
		periodCh:  make(chan time.Duration, 1),
		status: Status{
			State:             StateStarting,
			TickPeriodSeconds: int(coord.Policy().TickPeriod() / time.Second),
		},
	}
}

// Coordinator returns the runner's coordinator.
func (r *Runner) Coordinator() *Coordinator {
	return r.coord
}

// Status returns the last cycle outcome.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// RequestRefresh queues one immediate refresh. Requests made while one is
// already queued coalesce.
func (r *Runner) RequestRefresh() {
	select {
	case r.refreshCh <- struct{}{}:
	default:
	}
}

// SetUpdateInterval reconfigures the polling intervals (zero leaves a value
// unchanged), retunes the ticker to the new period, and queues one immediate
// refresh. Returns the new tick period.
func (r *Runner) SetUpdateInterval(nowPlaying, recentlyPlayed time.Duration) time.Duration {
	period := r.coord.SetUpdateInterval(nowPlaying, recentlyPlayed)

	r.mu.Lock()
	r.status.TickPeriodSeconds = int(period / time.Second)
	// Drain and refill under the lock; the send must never block, even once
	// the loop has stopped after an auth failure.
	select {
	case <-r.periodCh:
	default:
	}
	select {
	case r.periodCh <- period:
	default:
	}
	r.mu.Unlock()

	r.RequestRefresh()
	return period
}

// Run polls until ctx is canceled or the account requires reauthorization.
// It performs one refresh immediately on start. Transient failures are
// logged and retried on the next tick; an auth failure stops the loop since
// retrying without new consent cannot succeed.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info().
		Dur("tick_period", r.coord.Policy().TickPeriod()).
		Msg("poller started")
	defer r.log.Info().Msg("poller stopped")

	ticker := time.NewTicker(r.coord.Policy().TickPeriod())
	defer ticker.Stop()

	if !r.refresh(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.refresh(ctx) {
				return
			}
		case <-r.refreshCh:
			if !r.refresh(ctx) {
				return
			}
		case period := <-r.periodCh:
			ticker.Reset(period)
			r.log.Info().Dur("tick_period", period).Msg("tick period changed")
		}
	}
}

// refresh runs one cycle and records the outcome. Returns false when the
// loop should stop.
func (r *Runner) refresh(ctx context.Context) bool {
	_, err := r.coord.Refresh(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err == nil:
		r.status.State = StateOK
		r.status.LastError = ""
		r.status.LastSuccess = time.Now()
		return true
	case errors.Is(err, ErrAuthRequired):
		r.status.State = StateAuthRequired
		r.status.LastError = err.Error()
		r.log.Error().Err(err).Msg("reauthorization required, stopping poller")
		return false
	case ctx.Err() != nil:
		return false
	default:
		r.status.State = StateUpdateFailed
		r.status.LastError = err.Error()
		r.log.Warn().Err(err).Msg("refresh cycle failed, previous snapshot kept")
		return true
	}
}
