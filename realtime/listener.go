// Package realtime turns bus change events into snapshot streams. A
// listener never hands partial deltas to its owner: every delivery is the
// complete current result set, reloaded from the repository.
package realtime

import (
	"context"

	"go.uber.org/zap"

	"instaclone/events"
)

// LoadFunc produces the full current snapshot.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// AcceptFunc filters raw bus events before a reload is triggered. A nil
// AcceptFunc accepts everything.
type AcceptFunc func(subject string, data []byte) bool

// Listener delivers snapshots on Updates until Close is called or the
// parent context is cancelled. Bus callbacks arrive on the broker's own
// goroutine and are only used to schedule a reload; the snapshot itself is
// loaded and delivered from the listener's single worker goroutine, so the
// owner never sees concurrent state mutation. Bursts of change events are
// coalesced into one reload. Owners must call Close on teardown, otherwise
// the bus subscription leaks.
type Listener[T any] struct {
	updates chan T
	cancel  context.CancelFunc
	sub     events.Subscription
}

// Subscribe attaches to subject, delivers the initial snapshot, then one
// snapshot per (coalesced) change event. A failed reload is logged and
// skipped; the listener stays alive.
func Subscribe[T any](
	ctx context.Context,
	bus events.Bus,
	subject string,
	accept AcceptFunc,
	load LoadFunc[T],
	logger *zap.Logger,
) (*Listener[T], error) {
	ctx, cancel := context.WithCancel(ctx)

	kick := make(chan struct{}, 1)
	sub, err := bus.Subscribe(subject, func(subj string, data []byte) {
		if accept != nil && !accept(subj, data) {
			return
		}
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}

	l := &Listener[T]{
		updates: make(chan T, 1),
		cancel:  cancel,
		sub:     sub,
	}

	go func() {
		l.reload(ctx, load, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
				l.reload(ctx, load, logger)
			}
		}
	}()

	return l, nil
}

func (l *Listener[T]) reload(ctx context.Context, load LoadFunc[T], logger *zap.Logger) {
	snapshot, err := load(ctx)
	if err != nil {
		if ctx.Err() == nil && logger != nil {
			logger.Warn("snapshot reload failed", zap.Error(err))
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	// Conflate: replace an unconsumed snapshot with the newer one.
	select {
	case l.updates <- snapshot:
	default:
		select {
		case <-l.updates:
		default:
		}
		l.updates <- snapshot
	}
}

// Updates is the snapshot stream. It stops receiving after Close; it is
// never closed, so a blocked receive must also select on the owner's
// context.
func (l *Listener[T]) Updates() <-chan T {
	return l.updates
}

// Close cancels the worker and releases the bus subscription.
func (l *Listener[T]) Close() error {
	l.cancel()
	return l.sub.Unsubscribe()
}
