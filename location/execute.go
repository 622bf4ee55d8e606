package location

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonwraymond/locator/observe"
)

// Execute runs chain and returns the first fix a step yields.
//
// Steps run one at a time in order. A LastKnown step moves on when there is
// no cached fix or the fix is too old; a Live step moves on when it times
// out. Either kind moves on when its provider is disabled. Other errors are
// offered to the step's filter and then to the chain's return-default-on-error
// policy; if neither absorbs the error it is returned. When every step moves
// on, the chain's default is returned, which may be nil.
//
// Cancellation of ctx is never absorbed: it stops the active step and is
// returned, and later steps do not start.
func (m *Manager) Execute(ctx context.Context, chain Chain) (*Location, error) {
	run := uuid.NewString()

	for i, step := range chain.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		meta := observe.StepMeta{Run: run, Index: i, Kind: step.Kind.String(), Provider: step.Provider}

		var (
			loc  *Location
			done bool
		)
		_, err := m.middleware.Wrap(func(ctx context.Context, meta observe.StepMeta) (observe.Outcome, error) {
			var err error
			loc, done, err = m.runStep(ctx, chain, step, meta)
			switch {
			case err != nil:
				return observe.OutcomeFailed, err
			case done:
				return observe.OutcomeFound, nil
			default:
				return observe.OutcomeEmpty, nil
			}
		})(ctx, meta)

		if err != nil {
			m.logger.WithStep(meta).Error(ctx, "location chain failed",
				observe.Field{Key: "kind", Value: KindOf(err).String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return nil, err
		}
		if done {
			return loc, nil
		}
	}

	return chain.Default(), nil
}

// runStep runs one step. done reports that the chain ends here with loc,
// which is nil only for a NullIsValid LastKnown step without a cached fix.
func (m *Manager) runStep(ctx context.Context, chain Chain, step Step, meta observe.StepMeta) (loc *Location, done bool, err error) {
	switch step.Kind {
	case StepLastKnown:
		loc, err = m.LastKnown(ctx, step.Provider, step.MaxAge)
		if err == nil && loc == nil {
			return nil, step.NullIsValid, nil
		}
	case StepLive:
		loc, err = m.RequestLocation(ctx, step.Provider, LiveOptions{Timeout: step.Timeout})
	default:
		return nil, false, fmt.Errorf("location: unknown step kind %d", step.Kind)
	}

	if err == nil {
		return loc, true, nil
	}
	if isCancellation(err) {
		return nil, false, err
	}

	reason, absorbed := absorb(chain, step, err)
	if !absorbed {
		return nil, false, err
	}
	m.logger.WithStep(meta).Debug(ctx, "location step skipped",
		observe.Field{Key: "reason", Value: reason},
		observe.Field{Key: "kind", Value: KindOf(err).String()},
		observe.Field{Key: "error", Value: err.Error()},
	)
	return nil, false, nil
}

// absorb decides whether err lets the chain move on, and why.
func absorb(chain Chain, step Step, err error) (string, bool) {
	kind := KindOf(err)
	switch {
	case kind == KindProviderDisabled:
		return "provider_disabled", true
	case step.Kind == StepLastKnown && kind == KindLocationTooOld:
		return "too_old", true
	case step.Kind == StepLive && kind == KindRequestTimeout:
		return "timeout", true
	case step.Filter != nil && step.Filter(kind, err):
		return "filtered", true
	case chain.returnDefaultOnError:
		return "return_default_on_error", true
	default:
		return "", false
	}
}
