package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/resilience"
)

// Valkey stores fixes as JSON under Key(provider). Concurrent reads for the
// same provider share one round trip, and calls go through a circuit breaker
// so an unreachable server fails fast.
type Valkey struct {
	client  valkey.Client
	policy  Policy
	breaker *resilience.CircuitBreaker
	group   singleflight.Group

	// read fetches the raw value of key; nil data means missing.
	read func(ctx context.Context, key string) ([]byte, error)
}

// NewValkey wraps an existing client. A nil breaker gets a default one.
func NewValkey(client valkey.Client, policy Policy, breaker *resilience.CircuitBreaker) *Valkey {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "valkey"})
	}
	s := &Valkey{client: client, policy: policy, breaker: breaker}
	s.read = s.clientGet
	return s
}

func (s *Valkey) clientGet(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	return b, err
}

// DialValkey connects to addr.
func DialValkey(addr string, policy Policy, breaker *resilience.CircuitBreaker) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("store: valkey connect: %w", err)
	}
	return NewValkey(client, policy, breaker), nil
}

// Get returns the latest fix for provider. The elapsed reading belongs to the
// writer's clock and is cleared.
func (s *Valkey) Get(ctx context.Context, provider string) (*location.Location, error) {
	if err := ValidateProvider(provider); err != nil {
		return nil, err
	}

	key := Key(provider)
	// The shared fetch must not end with whichever caller started it.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		var data []byte
		err := s.breaker.Execute(flightCtx, func(ctx context.Context) error {
			b, err := s.read(ctx, key)
			data = b
			return err
		})
		return data, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("store: valkey get %s: %w", key, res.Err)
	}

	data, _ := res.Val.([]byte)
	if len(data) == 0 {
		return nil, nil
	}

	var loc location.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("store: valkey decode %s: %w", key, err)
	}
	loc.ElapsedRealtime = 0
	return &loc, nil
}

// Put records loc with the policy TTL.
func (s *Valkey) Put(ctx context.Context, loc location.Location) error {
	if err := ValidateProvider(loc.Provider); err != nil {
		return err
	}

	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("store: valkey encode: %w", err)
	}

	key := Key(loc.Provider)
	var cmd valkey.Completed
	if s.policy.TTL > 0 {
		cmd = s.client.B().Set().Key(key).Value(valkey.BinaryString(data)).Ex(s.policy.TTL).Build()
	} else {
		cmd = s.client.B().Set().Key(key).Value(valkey.BinaryString(data)).Build()
	}

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.client.Do(ctx, cmd).Error()
	})
	if err != nil {
		return fmt.Errorf("store: valkey set %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Valkey) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (s *Valkey) Close() {
	s.client.Close()
}

var _ Store = (*Valkey)(nil)
