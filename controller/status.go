package controller

import (
	"context"
	"sync"
)

// Phase is the lifecycle of an asynchronous operation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Status pairs a phase with the error that produced it.
type Status struct {
	Phase Phase
	Err   error
}

func statusLoading() Status { return Status{Phase: PhaseLoading} }
func statusSuccess() Status { return Status{Phase: PhaseSuccess} }
func statusError(err error) Status {
	return Status{Phase: PhaseError, Err: err}
}

// base carries the lifetime shared by all controllers. Work spawned through
// run is cancelled when Close is called.
type base struct {
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	onClose   []func()
}

func newBase() base {
	ctx, cancel := context.WithCancel(context.Background())
	return base{ctx: ctx, cancel: cancel}
}

// run executes fn on a goroutine scoped to the controller's context and
// reports its outcome through the returned channel. A closed controller
// reports context.Canceled without running fn.
func (b *base) run(fn func(ctx context.Context) error) <-chan error {
	result := make(chan error, 1)
	go func() {
		if err := b.ctx.Err(); err != nil {
			result <- err
			return
		}
		result <- fn(b.ctx)
	}()
	return result
}

// Close cancels in-flight work and releases subscriptions.
func (b *base) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		for _, fn := range b.onClose {
			fn()
		}
	})
}
