package bootstrap_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretchain/internal/bootstrap"
	dserrors "github.com/systmms/secretchain/internal/errors"
)

func TestSingleFlightAuthentication(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})

	boot := bootstrap.New(bootstrap.Config{
		Backend: "infisical",
		Enabled: true,
		Authenticate: func(ctx context.Context) error {
			calls.Add(1)
			<-release
			return nil
		},
	})
	assert.Equal(t, bootstrap.NotStarted, boot.State())

	const callers = 50
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = boot.EnsureReady(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return boot.State() == bootstrap.Initializing
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one authentication attempt")
	assert.Equal(t, 1, boot.Attempts())
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, bootstrap.Ready, boot.State())
	assert.True(t, boot.Usable())

	// later callers never re-authenticate
	require.NoError(t, boot.EnsureReady(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDisabledWithoutCredentials(t *testing.T) {
	t.Parallel()

	called := false
	boot := bootstrap.New(bootstrap.Config{
		Enabled: false,
		Authenticate: func(ctx context.Context) error {
			called = true
			return nil
		},
	})

	err := boot.EnsureReady(context.Background())
	assert.ErrorIs(t, err, bootstrap.ErrProviderDisabled)
	assert.False(t, called, "no network call without credentials")
	assert.Equal(t, bootstrap.Ready, boot.State())
	assert.False(t, boot.Usable())
	assert.Equal(t, 0, boot.Attempts())
}

func TestFailedAuthenticationFailsOpen(t *testing.T) {
	t.Parallel()

	authErr := errors.New("status 401: invalid client secret")
	var calls atomic.Int32
	boot := bootstrap.New(bootstrap.Config{
		Backend: "infisical",
		Enabled: true,
		Authenticate: func(ctx context.Context) error {
			calls.Add(1)
			return authErr
		},
	})

	err := boot.EnsureReady(context.Background())
	var initErr *dserrors.InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "infisical", initErr.Backend)
	assert.ErrorIs(t, err, authErr)

	assert.Equal(t, bootstrap.Ready, boot.State(), "failure still ends in Ready")
	assert.False(t, boot.Usable())
	assert.Equal(t, err, boot.Err())

	// no retry storm on later calls
	_ = boot.EnsureReady(context.Background())
	_ = boot.EnsureReady(context.Background())
	assert.Equal(t, int32(1), calls.Load())
}

func TestWaiterCancellationDoesNotAbortHandshake(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	boot := bootstrap.New(bootstrap.Config{
		Enabled: true,
		Authenticate: func(ctx context.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- boot.EnsureReady(ctx) }()

	require.Eventually(t, func() bool {
		return boot.State() == bootstrap.Initializing
	}, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, bootstrap.Initializing, boot.State())

	close(release)
	require.NoError(t, boot.EnsureReady(context.Background()))
	assert.True(t, boot.Usable())
	assert.Equal(t, 1, boot.Attempts())
}

func TestHandshakeTimeout(t *testing.T) {
	t.Parallel()

	boot := bootstrap.New(bootstrap.Config{
		Enabled: true,
		Timeout: 20 * time.Millisecond,
		Authenticate: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	err := boot.EnsureReady(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, bootstrap.Ready, boot.State())
	assert.False(t, boot.Usable())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not_started", bootstrap.NotStarted.String())
	assert.Equal(t, "initializing", bootstrap.Initializing.String())
	assert.Equal(t, "ready", bootstrap.Ready.String())
}
