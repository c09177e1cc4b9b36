package fusion

import (
	"context"
	"log/slog"
	"time"

	"github.com/ambientlearn/watcher/internal/backend"
	"github.com/ambientlearn/watcher/internal/domain"
)

// Pusher is the outbound delivery side of the backend link.
type Pusher interface {
	PushContext(ctx context.Context, env *domain.ContextEnvelope) backend.Result
}

// Journal records dispatched envelopes. May be nil.
type Journal interface {
	JournalEnvelope(ctx context.Context, env *domain.ContextEnvelope, delivered bool) error
}

// Dispatcher ships one fused envelope per tick. Its cadence is decoupled
// from both producer cadences; it never waits for fresh data, it sends
// whatever is latest.
type Dispatcher struct {
	state    *State
	pusher   Pusher
	journal  Journal
	interval time.Duration
	logger   *slog.Logger
}

// NewDispatcher wires a dispatch loop over the fusion state.
func NewDispatcher(state *State, pusher Pusher, journal Journal, interval time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		state:    state,
		pusher:   pusher,
		journal:  journal,
		interval: interval,
		logger:   logger,
	}
}

// Run dispatches envelopes until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Dispatch(ctx, now)
		}
	}
}

// Dispatch builds and delivers one envelope. Delivery loss is accepted;
// the touch flag is cleared only when the envelope that carried it was
// actually delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) {
	env := d.state.BuildEnvelope(now)

	res := d.pusher.PushContext(ctx, &env)
	if res.Delivered && env.UserTouchedAgent {
		d.state.ClearTouch()
	}

	if d.journal != nil {
		if err := d.journal.JournalEnvelope(ctx, &env, res.Delivered); err != nil {
			d.logger.Debug("[FUSION] Journal write failed", "error", err)
		}
	}
}
