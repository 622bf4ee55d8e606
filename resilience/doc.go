// Package resilience provides the cancellation and failure-isolation glue
// used by the location core and its storage backends.
//
//   - Timeout: races an operation against a deadline and reports ErrTimeout
//     only when its own deadline fired, never when the caller's context did.
//
//   - Circuit Breaker: stops calling a failing backend (Valkey, Postgres)
//     after a threshold so chain steps fail fast instead of stalling.
//
// Both patterns run the operation on the calling goroutine. The operation
// must honor the context it is given.
//
//	t := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: 5 * time.Second})
//	err := t.Execute(ctx, func(ctx context.Context) error {
//	    select {
//	    case fix := <-fixes:
//	        use(fix)
//	        return nil
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    }
//	})
package resilience
