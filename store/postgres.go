package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/resilience"
)

// Schema creates the fix history table.
const Schema = `
CREATE TABLE IF NOT EXISTS location_fixes (
	id                  BIGSERIAL PRIMARY KEY,
	provider            TEXT             NOT NULL,
	latitude            DOUBLE PRECISION NOT NULL,
	longitude           DOUBLE PRECISION NOT NULL,
	accuracy            DOUBLE PRECISION NOT NULL DEFAULT 0,
	altitude            DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at         TIMESTAMPTZ      NOT NULL,
	elapsed_realtime_ns BIGINT           NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ      NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS location_fixes_provider_recorded_idx
	ON location_fixes (provider, recorded_at DESC);
`

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres appends every fix to location_fixes and reads back the most
// recent one per provider. With a TTL, older fixes are ignored on read.
type Postgres struct {
	db      querier
	pool    *pgxpool.Pool
	policy  Policy
	breaker *resilience.CircuitBreaker
	now     func() time.Time
}

// NewPostgres wraps an existing pool. A nil breaker gets a default one.
func NewPostgres(pool *pgxpool.Pool, policy Policy, breaker *resilience.CircuitBreaker) *Postgres {
	s := newPostgres(pool, policy, breaker)
	s.pool = pool
	return s
}

func newPostgres(db querier, policy Policy, breaker *resilience.CircuitBreaker) *Postgres {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "postgres"})
	}
	return &Postgres{db: db, policy: policy, breaker: breaker, now: time.Now}
}

// ConnectPostgres opens a pool for dsn and verifies it with a ping.
func ConnectPostgres(ctx context.Context, dsn string, policy Policy, breaker *resilience.CircuitBreaker) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return NewPostgres(pool, policy, breaker), nil
}

// Migrate creates the schema if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Get returns the most recent fix for provider. The stored elapsed reading
// belongs to the writer's clock and is not returned.
func (s *Postgres) Get(ctx context.Context, provider string) (*location.Location, error) {
	if err := ValidateProvider(provider); err != nil {
		return nil, err
	}

	var since time.Time
	if s.policy.TTL > 0 {
		since = s.now().Add(-s.policy.TTL)
	}

	var (
		loc   location.Location
		found bool
	)
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, `
			SELECT provider, latitude, longitude, accuracy, altitude, recorded_at
			FROM location_fixes
			WHERE provider = $1 AND created_at >= $2
			ORDER BY recorded_at DESC
			LIMIT 1
		`, provider, since).Scan(
			&loc.Provider, &loc.Latitude, &loc.Longitude,
			&loc.Accuracy, &loc.Altitude, &loc.Time,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: postgres get %s: %w", provider, err)
	}
	if !found {
		return nil, nil
	}

	return &loc, nil
}

// Put appends loc to the history.
func (s *Postgres) Put(ctx context.Context, loc location.Location) error {
	if err := ValidateProvider(loc.Provider); err != nil {
		return err
	}

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO location_fixes (provider, latitude, longitude, accuracy, altitude, recorded_at, elapsed_realtime_ns)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, loc.Provider, loc.Latitude, loc.Longitude, loc.Accuracy, loc.Altitude,
			loc.Time, int64(loc.ElapsedRealtime))
		return err
	})
	if err != nil {
		return fmt.Errorf("store: postgres put %s: %w", loc.Provider, err)
	}
	return nil
}

// Ping checks connectivity. It is a no-op for stores built without a pool.
func (s *Postgres) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var _ Store = (*Postgres)(nil)
