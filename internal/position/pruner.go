package position

import (
	"context"
	"time"

	"github.com/geobus/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

// Notifier announces completed prunes.
type Notifier interface {
	PublishPrune(ctx context.Context, event models.PruneEvent) error
}

// PruneObserver records the outcome of each prune.
type PruneObserver interface {
	ObservePrune(deleted int, elapsed time.Duration, err error)
}

// Pruner applies the retention policy, once or on an interval.
type Pruner struct {
	tracker     *Tracker
	maxAgeHours int
	interval    time.Duration
	notifier    Notifier
	observer    PruneObserver
}

type PrunerOption func(*Pruner)

func WithNotifier(n Notifier) PrunerOption {
	return func(p *Pruner) {
		p.notifier = n
	}
}

func WithObserver(o PruneObserver) PrunerOption {
	return func(p *Pruner) {
		p.observer = o
	}
}

func NewPruner(tracker *Tracker, maxAgeHours int, interval time.Duration, opts ...PrunerOption) *Pruner {
	p := &Pruner{
		tracker:     tracker,
		maxAgeHours: maxAgeHours,
		interval:    interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOnce prunes positions older than the retention and announces the result.
// A failed announcement is logged, not returned.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	if p.maxAgeHours <= 0 {
		return 0, models.NewInvalidInputError("hours", "max age must be positive")
	}

	started := time.Now()
	now := p.tracker.now()
	cutoff := lookback(now, p.maxAgeHours, time.Hour)

	deleted, err := p.tracker.PruneBefore(ctx, cutoff)
	if p.observer != nil {
		p.observer.ObservePrune(deleted, time.Since(started), err)
	}
	if err != nil {
		return 0, err
	}

	if p.notifier != nil {
		event := models.PruneEvent{
			Deleted:     deleted,
			MaxAgeHours: p.maxAgeHours,
			Cutoff:      cutoff.UTC(),
			At:          now.UTC(),
		}
		if err := p.notifier.PublishPrune(ctx, event); err != nil {
			log.Warn().Err(err).Msg("Failed to publish prune event")
		}
	}
	return deleted, nil
}

// Run prunes every interval until ctx is cancelled. A non-positive interval
// disables the loop.
func (p *Pruner) Run(ctx context.Context) {
	if p.interval <= 0 {
		log.Debug().Msg("Background pruning disabled")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Int("max_age_hours", p.maxAgeHours).Msg("Background pruning started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Background pruning stopped")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Scheduled prune failed")
			}
		}
	}
}
