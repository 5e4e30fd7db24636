package resilience

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fastBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Millisecond
	bo.MaxInterval = 2 * time.Millisecond
	bo.MaxElapsedTime = 0
	return bo
}

func TestAcquireRetriesUntilDialSucceeds(t *testing.T) {
	dials := 0
	c := New(testLogger(), "broker", func(ctx context.Context) (string, error) {
		dials++
		if dials < 4 {
			return "", errors.New("connection refused")
		}
		return "handle", nil
	}, nil)
	c.newBackOff = fastBackOff

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "handle", h)
	assert.Equal(t, 4, dials)
}

func TestAcquireReturnsCachedHandle(t *testing.T) {
	dials := 0
	c := New(testLogger(), "db", func(ctx context.Context) (int, error) {
		dials++
		return 42, nil
	}, nil)
	c.newBackOff = fastBackOff

	_, err := c.Acquire(context.Background())
	require.NoError(t, err)
	_, err = c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dials, "second Acquire must reuse the live handle")
}

func TestInvalidateClosesAndForcesRedial(t *testing.T) {
	dials, closes := 0, 0
	c := New(testLogger(), "broker", func(ctx context.Context) (int, error) {
		dials++
		return dials, nil
	}, func(int) error {
		closes++
		return nil
	})
	c.newBackOff = fastBackOff

	h1, err := c.Acquire(context.Background())
	require.NoError(t, err)
	c.Invalidate()
	h2, err := c.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, closes)
	assert.NotEqual(t, h1, h2)
}

func TestInvalidateWithoutHandleIsNoop(t *testing.T) {
	closes := 0
	c := New(testLogger(), "db", func(ctx context.Context) (int, error) { return 0, nil },
		func(int) error { closes++; return nil })
	c.Invalidate()
	assert.Zero(t, closes)
}

func TestAcquireStopsOnContextCancel(t *testing.T) {
	c := New(testLogger(), "broker", func(ctx context.Context) (string, error) {
		return "", errors.New("unreachable")
	}, nil)
	c.newBackOff = fastBackOff

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Acquire(ctx)
	require.Error(t, err)
}
