// Package bootstrap authenticates the provider client exactly once per process.
//
// The initializer is a small state machine:
//
//	NotStarted -> Initializing -> Ready(usable)
//
// It never leaves Ready. Callers arriving while a handshake is in flight wait
// for that handshake instead of starting their own. A failed or skipped
// handshake still ends in Ready, with the provider marked unusable, so
// resolution falls back to the environment instead of blocking startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/internal/metrics"
)

// ErrProviderDisabled is returned when no provider credentials are configured
var ErrProviderDisabled = errors.New("secret provider disabled: no credentials configured")

// State is the initializer lifecycle state
type State int

const (
	NotStarted State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthFunc performs the provider handshake
type AuthFunc func(ctx context.Context) error

// Config configures an Initializer
type Config struct {
	// Backend names the provider in logs and errors
	Backend string
	// Enabled is false when no credentials are configured; the handshake is skipped
	Enabled bool
	// Authenticate runs the handshake
	Authenticate AuthFunc
	// Timeout bounds the handshake; zero means no bound beyond the caller's
	Timeout time.Duration
	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

// Initializer is safe for concurrent use
type Initializer struct {
	cfg Config

	mu       sync.Mutex
	state    State
	inflight chan struct{}
	usable   bool
	err      error
	attempts int
}

// New creates an initializer in the NotStarted state
func New(cfg Config) *Initializer {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Backend == "" {
		cfg.Backend = "provider"
	}
	return &Initializer{cfg: cfg}
}

// EnsureReady triggers the handshake on first call and waits for it to settle.
//
// It returns nil when the provider is usable, ErrProviderDisabled when no
// credentials are configured, an *errors.InitializationError when the handshake
// failed, or ctx.Err() if ctx ends while waiting. Only the last case leaves the
// initializer outside Ready, and the handshake keeps running for other callers.
func (i *Initializer) EnsureReady(ctx context.Context) error {
	i.mu.Lock()
	switch i.state {
	case Ready:
		err := i.err
		i.mu.Unlock()
		return err

	case Initializing:
		wait := i.inflight
		i.mu.Unlock()
		return i.wait(ctx, wait)

	default:
		i.state = Initializing
		i.inflight = make(chan struct{})
		wait := i.inflight
		i.mu.Unlock()

		// detached so one caller's cancellation cannot fail the shared handshake
		go i.run(context.WithoutCancel(ctx))
		return i.wait(ctx, wait)
	}
}

func (i *Initializer) wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		i.mu.Lock()
		defer i.mu.Unlock()
		return i.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Initializer) run(ctx context.Context) {
	usable, err := i.handshake(ctx)

	i.mu.Lock()
	i.usable = usable
	i.err = err
	i.state = Ready
	close(i.inflight)
	i.inflight = nil
	i.mu.Unlock()
}

func (i *Initializer) handshake(ctx context.Context) (bool, error) {
	log := i.cfg.Logger

	if !i.cfg.Enabled || i.cfg.Authenticate == nil {
		log.Debug("%s credentials not configured, using environment variables only", i.cfg.Backend)
		i.cfg.Metrics.Initialization("disabled")
		return false, ErrProviderDisabled
	}

	if i.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
	}

	i.mu.Lock()
	i.attempts++
	i.mu.Unlock()

	if err := i.cfg.Authenticate(ctx); err != nil {
		log.Warn("%s authentication failed, falling back to environment variables: %v", i.cfg.Backend, err)
		i.cfg.Metrics.Initialization("failed")
		return false, &dserrors.InitializationError{Backend: i.cfg.Backend, Err: err}
	}

	log.Debug("%s client authenticated", i.cfg.Backend)
	i.cfg.Metrics.Initialization("ready")
	return true, nil
}

// State returns the current lifecycle state
func (i *Initializer) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Usable reports whether the provider authenticated successfully
func (i *Initializer) Usable() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state == Ready && i.usable
}

// Err returns the settled handshake error, nil before Ready or on success
func (i *Initializer) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// Attempts returns how many handshakes were started; at most one
func (i *Initializer) Attempts() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attempts
}
