package position

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/geobus/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	events []models.PruneEvent
	err    error
}

func (r *recordingNotifier) PublishPrune(_ context.Context, event models.PruneEvent) error {
	r.events = append(r.events, event)
	return r.err
}

type observation struct {
	deleted int
	err     error
}

type channelObserver chan observation

func (c channelObserver) ObservePrune(deleted int, _ time.Duration, err error) {
	select {
	case c <- observation{deleted: deleted, err: err}:
	default:
	}
}

func TestPrunerRunOnce(t *testing.T) {
	ctx := context.Background()
	tracker, mem := newTestTracker(t)
	insert(t, mem, models.BusPosition{BusID: "B1", Line: "L1", Timestamp: ago(48 * time.Hour)})
	insert(t, mem, models.BusPosition{BusID: "B1", Line: "L1", Timestamp: ago(time.Hour)})

	notifier := &recordingNotifier{}
	observed := make(channelObserver, 2)
	pruner := NewPruner(tracker, 24, 0, WithNotifier(notifier), WithObserver(observed))

	deleted, err := pruner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, observation{deleted: 1}, <-observed)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.PruneEvent{
		Deleted:     1,
		MaxAgeHours: 24,
		Cutoff:      ago(24 * time.Hour),
		At:          testNow,
	}, notifier.events[0])

	deleted, err = pruner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, notifier.events, 2)
}

func TestPrunerLargeRetention(t *testing.T) {
	ctx := context.Background()
	tracker, mem := newTestTracker(t)
	insert(t, mem, models.BusPosition{BusID: "B1", Line: "L1", Timestamp: ago(time.Minute)})
	insert(t, mem, models.BusPosition{BusID: "B1", Line: "L1", Timestamp: ago(time.Hour)})

	notifier := &recordingNotifier{}
	pruner := NewPruner(tracker, math.MaxInt, 0, WithNotifier(notifier))

	deleted, err := pruner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, testNow.Add(-time.Duration(math.MaxInt64)), notifier.events[0].Cutoff)

	count, err := tracker.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestPrunerPublishFailureIsNotFatal(t *testing.T) {
	tracker, _ := newTestTracker(t)
	pruner := NewPruner(tracker, 24, 0, WithNotifier(&recordingNotifier{err: errors.New("nats down")}))

	_, err := pruner.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestPrunerStorageFailure(t *testing.T) {
	boom := errors.New("disk full")
	tracker := NewTracker(&failingPositionStore{err: boom}, nil)
	notifier := &recordingNotifier{}
	observed := make(channelObserver, 1)
	pruner := NewPruner(tracker, 24, 0, WithNotifier(notifier), WithObserver(observed))

	_, err := pruner.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, (<-observed).err, boom)
	assert.Empty(t, notifier.events)
}

func TestPrunerInvalidRetention(t *testing.T) {
	tracker, _ := newTestTracker(t)
	_, err := NewPruner(tracker, 0, time.Minute).RunOnce(context.Background())
	var invalid *models.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestPrunerRun(t *testing.T) {
	t.Run("disabled interval returns immediately", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		done := make(chan struct{})
		go func() {
			NewPruner(tracker, 24, 0).Run(context.Background())
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return")
		}
	})

	t.Run("prunes on every tick until cancelled", func(t *testing.T) {
		tracker, mem := newTestTracker(t)
		insert(t, mem, models.BusPosition{BusID: "B1", Line: "L1", Timestamp: ago(48 * time.Hour)})

		observed := make(channelObserver, 16)
		pruner := NewPruner(tracker, 24, 5*time.Millisecond, WithObserver(observed))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			pruner.Run(ctx)
			close(done)
		}()

		select {
		case obs := <-observed:
			assert.Equal(t, 1, obs.deleted)
		case <-time.After(2 * time.Second):
			t.Fatal("no prune observed")
		}

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after cancel")
		}
	})
}
