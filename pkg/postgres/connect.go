// Package postgres dials the database at process startup the same way the
// broker is dialed: blocking behind exponential backoff until the
// dependency is reachable, instead of crash-looping under the supervisor.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acmecorp/orderflow/pkg/resilience"
)

// Connect returns a pool that has answered a ping. It blocks through
// connection failures and errors only when ctx is done.
func Connect(ctx context.Context, log *slog.Logger, url string) (*pgxpool.Pool, error) {
	conn := resilience.New(log, "postgres",
		func(ctx context.Context) (*pgxpool.Pool, error) {
			pool, err := pgxpool.New(ctx, url)
			if err != nil {
				return nil, err
			}
			if err := pool.Ping(ctx); err != nil {
				pool.Close()
				return nil, err
			}
			return pool, nil
		},
		func(p *pgxpool.Pool) error {
			p.Close()
			return nil
		})
	return conn.Acquire(ctx)
}
