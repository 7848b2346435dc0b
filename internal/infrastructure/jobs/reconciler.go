package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper expires overdue subscriptions in bulk.
type Sweeper interface {
	Reconcile(ctx context.Context) (int64, error)
}

// Reconciler runs a Sweeper on a fixed interval. Request-time checks never
// depend on it; it only keeps stored statuses close to the truth for
// reporting.
type Reconciler struct {
	sweeper  Sweeper
	interval time.Duration
	log      zerolog.Logger
	done     chan struct{}
}

func NewReconciler(sweeper Sweeper, interval time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		sweeper:  sweeper,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start launches the loop. It stops when ctx is cancelled; Done is closed
// once the in-flight sweep has returned. A non-positive interval disables
// the loop.
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		close(r.done)
		return
	}
	go r.run(ctx)
}

func (r *Reconciler) Done() <-chan struct{} { return r.done }

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("subscription reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("subscription reconciler stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	n, err := r.sweeper.Reconcile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error().Err(err).Msg("subscription sweep failed")
		}
		return
	}
	if n > 0 {
		r.log.Info().Int64("expired", n).Msg("subscription sweep expired overdue subscriptions")
	}
}
