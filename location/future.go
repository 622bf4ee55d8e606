package location

import "context"

// Future is the handle of a request running in its own goroutine.
type Future struct {
	cancel context.CancelFunc
	done   chan struct{}
	loc    *Location
	err    error
}

func start(ctx context.Context, fn func(context.Context) (*Location, error)) *Future {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer cancel()
		f.loc, f.err = fn(ctx)
	}()
	return f
}

// Go runs chain asynchronously.
func (m *Manager) Go(ctx context.Context, chain Chain) *Future {
	return start(ctx, func(ctx context.Context) (*Location, error) {
		return m.Execute(ctx, chain)
	})
}

// GoLastKnown runs LastKnown asynchronously.
func (m *Manager) GoLastKnown(ctx context.Context, provider string, maxAge LocationTime) *Future {
	return start(ctx, func(ctx context.Context) (*Location, error) {
		return m.LastKnown(ctx, provider, maxAge)
	})
}

// GoRequestLocation runs RequestLocation asynchronously.
func (m *Manager) GoRequestLocation(ctx context.Context, provider string, opts LiveOptions) *Future {
	return start(ctx, func(ctx context.Context) (*Location, error) {
		return m.RequestLocation(ctx, provider, opts)
	})
}

// Cancel stops the request. It is safe to call more than once and after
// completion. A request still pending resolves to context.Canceled.
func (f *Future) Cancel() { f.cancel() }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result blocks until the request ends and returns its outcome.
func (f *Future) Result() (*Location, error) {
	<-f.done
	return f.loc, f.err
}

// Wait is Result bounded by ctx. Giving up on the wait does not cancel the
// request.
func (f *Future) Wait(ctx context.Context) (*Location, error) {
	select {
	case <-f.done:
		return f.loc, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
