package secrets_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretchain/internal/bootstrap"
	"github.com/systmms/secretchain/internal/config"
	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/pkg/provider"
	"github.com/systmms/secretchain/pkg/secrets"
	"github.com/systmms/secretchain/tests/fakes"
	"github.com/systmms/secretchain/tests/testutil"
)

var defaultScopes = []config.Scope{
	{ID: "proj-a", Name: "project"},
	{ID: "proj-b", Name: "shared"},
}

type managerSetup struct {
	client provider.Client
	env    map[string]string
	scopes []config.Scope
	tweak  func(*config.ResolverConfig)
	opts   []secrets.Option
}

func newManager(t *testing.T, s managerSetup) *secrets.Manager {
	t.Helper()

	cfg := config.Default()
	cfg.Scopes = s.scopes
	cfg.RetryDelay = time.Millisecond
	if s.tweak != nil {
		s.tweak(&cfg)
	}
	if s.env == nil {
		s.env = map[string]string{}
	}

	opts := []secrets.Option{
		secrets.WithConfig(cfg),
		secrets.WithEnv(s.env),
		secrets.WithLogger(logging.Discard()),
	}
	if s.client != nil {
		opts = append(opts, secrets.WithClient(s.client))
	}
	m, err := secrets.New(append(opts, s.opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestEnvironmentOnlyExample(t *testing.T) {
	t.Parallel()

	m := newManager(t, managerSetup{
		env: map[string]string{"DATABASE_URL": "postgres://x"},
		tweak: func(c *config.ResolverConfig) {
			c.CacheTTL = 5 * time.Minute
		},
	})
	ctx := context.Background()

	value, ok, err := m.GetSecretContext(ctx, "DATABASE_URL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "postgres://x", value)

	value, ok, err = m.GetSecretContext(ctx, "MISSING")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)

	_, err = m.GetRequiredSecret(ctx, "MISSING")
	require.Error(t, err)
	assert.ErrorIs(t, err, dserrors.ErrMissingSecret)
	var missing *dserrors.MissingSecretError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "MISSING", missing.Key)
	assert.Equal(t, []string{"env"}, missing.Checked)

	st := m.Status()
	assert.False(t, st.ProviderConfigured)
	assert.Equal(t, "not_started", st.State)
	assert.ErrorIs(t, m.Initialize(ctx), bootstrap.ErrProviderDisabled)
}

func TestNewLoadsConfigurationFromEnvironment(t *testing.T) {
	t.Parallel()

	m, err := secrets.New(
		secrets.WithEnv(map[string]string{
			config.EnvProjectID:       "proj-a",
			config.EnvSharedProjectID: "proj-b",
			config.EnvEnvironment:     "staging",
			"API_KEY":                 "from-env",
		}),
		secrets.WithoutKeyring(),
		secrets.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	cfg := m.Config()
	assert.Equal(t, "staging", cfg.Environment)
	assert.False(t, cfg.ProviderConfigured())
	assert.Equal(t, []string{"proj-a", "proj-b"}, []string{m.Scopes()[0].ID, m.Scopes()[1].ID})

	// scopes without credentials are skipped, the environment still answers
	value, ok, err := m.GetSecretContext(context.Background(), "API_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-env", value)
}

func TestNewLoadsConfigurationFile(t *testing.T) {
	t.Parallel()

	path := testutil.NewTestConfig(t).
		WithBackend("none").
		WithScope("file-proj", "team").
		WithRetry(5, "250ms").
		WithSection("timeouts", map[string]any{"provider": "2s"}).
		Write()

	m, err := secrets.New(
		secrets.WithConfigFile(path),
		secrets.WithEnv(map[string]string{}),
		secrets.WithoutKeyring(),
		secrets.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	cfg := m.Config()
	assert.Equal(t, config.BackendNone, cfg.Backend)
	assert.Equal(t, uint(5), cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 2*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []config.Scope{{ID: "file-proj", Name: "team"}}, m.Scopes())
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	t.Parallel()

	_, err := secrets.New(
		secrets.WithEnv(map[string]string{config.EnvMaxRetries: "many"}),
		secrets.WithoutKeyring(),
		secrets.WithLogger(logging.Discard()),
	)
	require.Error(t, err)
	var cfgErr dserrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestAbsentEverywhereListsCheckedSources(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").
		WithProjectError("proj-b", errors.New("connection refused"))
	m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})

	_, err := m.GetRequiredSecret(context.Background(), "NOPE")
	var missing *dserrors.MissingSecretError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"scope:project", "scope:shared", "env"}, missing.Checked)
	assert.Equal(t, "not_found", missing.Failures["project"])
	assert.Contains(t, missing.Failures["shared"], "connection refused")
}

func TestHierarchyPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setup      func(*fakes.FakeProviderClient)
		env        map[string]string
		wantValue  string
		wantSource string
	}{
		{
			name: "first scope wins",
			setup: func(f *fakes.FakeProviderClient) {
				f.WithSecret("proj-a", "KEY", "from-a").WithSecret("proj-b", "KEY", "from-b")
			},
			env:        map[string]string{"KEY": "from-env"},
			wantValue:  "from-a",
			wantSource: "scope:project",
		},
		{
			name: "empty first scope falls through",
			setup: func(f *fakes.FakeProviderClient) {
				f.WithSecret("proj-a", "KEY", "").WithSecret("proj-b", "KEY", "v")
			},
			wantValue:  "v",
			wantSource: "scope:shared",
		},
		{
			name: "failing first scope falls through",
			setup: func(f *fakes.FakeProviderClient) {
				f.WithProjectError("proj-a", errors.New("timeout")).WithSecret("proj-b", "KEY", "v")
			},
			wantValue:  "v",
			wantSource: "scope:shared",
		},
		{
			name:       "environment is the last resort",
			setup:      func(*fakes.FakeProviderClient) {},
			env:        map[string]string{"KEY": "from-env"},
			wantValue:  "from-env",
			wantSource: "env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := fakes.NewFakeProviderClient("fake")
			tt.setup(fake)
			m := newManager(t, managerSetup{client: fake, env: tt.env, scopes: defaultScopes})

			out, err := m.Lookup(context.Background(), "KEY")
			require.NoError(t, err)
			assert.True(t, out.Found)
			assert.Equal(t, tt.wantValue, out.Value)
			assert.Equal(t, tt.wantSource, out.Source)
		})
	}
}

func TestCacheIdempotence(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").WithSecret("proj-a", "KEY", "v1")
	m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})
	ctx := context.Background()

	first, err := m.Lookup(ctx, "KEY")
	require.NoError(t, err)
	fetches := fake.TotalFetches()

	second, err := m.Lookup(ctx, "KEY")
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.Source, second.Source)
	assert.True(t, second.Cached)
	assert.Equal(t, fetches, fake.TotalFetches(), "second lookup must not reach the provider")

	_, _, err = m.GetSecretContext(ctx, "KEY", secrets.WithNoCache())
	require.NoError(t, err)
	assert.Equal(t, fetches+1, fake.TotalFetches())
}

func TestCacheTTLBoundary(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	fake := fakes.NewFakeProviderClient("fake").WithSecret("proj-a", "KEY", "v")
	m := newManager(t, managerSetup{
		client: fake,
		scopes: defaultScopes,
		tweak:  func(c *config.ResolverConfig) { c.CacheTTL = time.Minute },
		opts:   []secrets.Option{secrets.WithClock(clock)},
	})
	ctx := context.Background()

	_, err := m.Lookup(ctx, "KEY")
	require.NoError(t, err)
	require.Equal(t, 1, fake.TotalFetches())

	advance(time.Minute - time.Nanosecond)
	out, err := m.Lookup(ctx, "KEY")
	require.NoError(t, err)
	assert.True(t, out.Cached, "entry is fresh just before the TTL")
	assert.Equal(t, 1, fake.TotalFetches())

	advance(time.Nanosecond)
	out, err = m.Lookup(ctx, "KEY")
	require.NoError(t, err)
	assert.False(t, out.Cached, "entry expires exactly at the TTL")
	assert.Equal(t, 2, fake.TotalFetches())
}

func TestSingleFlightInitialization(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").
		WithSecret("proj-a", "KEY", "v").
		WithDelay(20 * time.Millisecond)
	m := newManager(t, managerSetup{
		client: fake,
		scopes: defaultScopes,
		tweak:  func(c *config.ResolverConfig) { c.CacheEnabled = false },
	})

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, ok, err := m.GetSecretContext(context.Background(), "KEY")
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", value)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fake.CallCount("Authenticate"))
	st := m.Status()
	assert.Equal(t, "ready", st.State)
	assert.True(t, st.Usable)
	assert.Equal(t, 1, st.InitAttempts)
}

func TestInitializationFailureFallsBackToEnvironment(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").
		WithSecret("proj-a", "KEY", "remote").
		WithAuthError(provider.AuthError{Provider: "fake", Message: "bad credentials"})
	m := newManager(t, managerSetup{
		client: fake,
		scopes: defaultScopes,
		env:    map[string]string{"KEY": "local"},
	})
	ctx := context.Background()

	value, ok, err := m.GetSecretContext(ctx, "KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "local", value)
	assert.Zero(t, fake.TotalFetches())

	st := m.Status()
	assert.False(t, st.Usable)
	assert.Contains(t, st.InitError, "bad credentials")

	err = m.CreateSecret(ctx, "NEW", "v", secrets.MutationOptions{})
	var unavailable *dserrors.ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "create", unavailable.Operation)
	assert.Zero(t, fake.CallCount("CreateSecret"))
}

func TestMutationInvalidatesCache(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").WithSecret("proj-a", "KEY", "old")
	m := newManager(t, managerSetup{
		client: fake,
		scopes: defaultScopes,
		env:    map[string]string{"KEY": "env"},
	})
	ctx := context.Background()

	value, _, err := m.GetSecretContext(ctx, "KEY")
	require.NoError(t, err)
	require.Equal(t, "old", value)

	require.NoError(t, m.UpdateSecret(ctx, "KEY", "new", secrets.MutationOptions{}))
	value, _, err = m.GetSecretContext(ctx, "KEY")
	require.NoError(t, err)
	assert.Equal(t, "new", value)

	require.NoError(t, m.DeleteSecret(ctx, "KEY", secrets.MutationOptions{}))
	out, err := m.Lookup(ctx, "KEY")
	require.NoError(t, err)
	assert.Equal(t, "env", out.Value)
	assert.Equal(t, "env", out.Source)
}

// stallingClient pauses the first fetch after it has read the stored value,
// until release is closed
type stallingClient struct {
	*fakes.FakeProviderClient
	once    sync.Once
	fetched chan struct{}
	release chan struct{}
}

func newStallingClient(fake *fakes.FakeProviderClient) *stallingClient {
	return &stallingClient{
		FakeProviderClient: fake,
		fetched:            make(chan struct{}),
		release:            make(chan struct{}),
	}
}

func (c *stallingClient) FetchSecret(ctx context.Context, req provider.SecretRequest) (provider.Secret, error) {
	secret, err := c.FakeProviderClient.FetchSecret(ctx, req)
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.fetched)
		<-c.release
	}
	return secret, err
}

func TestMutationWinsOverInFlightFetch(t *testing.T) {
	t.Parallel()

	client := newStallingClient(fakes.NewFakeProviderClient("fake").WithSecret("proj-a", "TOKEN", "old"))
	m := newManager(t, managerSetup{client: client, scopes: defaultScopes})
	ctx := context.Background()

	inFlight := make(chan string, 1)
	go func() {
		value, _, err := m.GetSecretContext(ctx, "TOKEN")
		assert.NoError(t, err)
		inFlight <- value
	}()

	<-client.fetched
	require.NoError(t, m.UpdateSecret(ctx, "TOKEN", "new", secrets.MutationOptions{}))
	close(client.release)
	assert.Equal(t, "old", <-inFlight, "the in-flight lookup returns what it read")

	out, err := m.Lookup(ctx, "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "new", out.Value)
	assert.False(t, out.Cached, "the stale read was not cached")

	out, err = m.Lookup(ctx, "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "new", out.Value)
	assert.True(t, out.Cached)
}

func TestCreateSecretAtPath(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake")
	m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})
	ctx := context.Background()

	_, ok, err := m.GetSecretContext(ctx, "TOKEN", secrets.WithPath("/app"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.CreateSecret(ctx, "TOKEN", "t1", secrets.MutationOptions{Path: "app/"}))

	value, ok, err := m.GetSecretContext(ctx, "TOKEN", secrets.WithPath("/app"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t1", value)

	_, ok, err = m.GetSecretContext(ctx, "TOKEN")
	require.NoError(t, err)
	assert.False(t, ok, "root folder is a different cache entry")

	list, err := m.ListSecrets(ctx, secrets.MutationOptions{Path: "/app"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "TOKEN", list[0].Name)
}

func TestMutationTargetsExplicitProject(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake")
	m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})
	ctx := context.Background()

	require.NoError(t, m.CreateSecret(ctx, "KEY", "shared-value", secrets.MutationOptions{ProjectID: "proj-b"}))

	out, err := m.Lookup(ctx, "KEY")
	require.NoError(t, err)
	assert.Equal(t, "shared-value", out.Value)
	assert.Equal(t, "shared", out.Scope)
}

func TestMutationErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, managerSetup{scopes: defaultScopes})

		err := m.UpdateSecret(ctx, "KEY", "v", secrets.MutationOptions{})
		var unavailable *dserrors.ProviderUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.ErrorIs(t, err, bootstrap.ErrProviderDisabled)

		_, err = m.ListSecrets(ctx, secrets.MutationOptions{})
		assert.ErrorAs(t, err, &unavailable)
	})

	t.Run("no project", func(t *testing.T) {
		t.Parallel()
		fake := fakes.NewFakeProviderClient("fake")
		m := newManager(t, managerSetup{client: fake})

		err := m.CreateSecret(ctx, "KEY", "v", secrets.MutationOptions{})
		var cfgErr dserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "project_id", cfgErr.Field)
		assert.Zero(t, fake.CallCount("CreateSecret"))

		require.NoError(t, m.CreateSecret(ctx, "KEY", "v", secrets.MutationOptions{ProjectID: "proj-x"}))
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()
		fake := fakes.NewFakeProviderClient("fake")
		m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})

		var cfgErr dserrors.ConfigError
		assert.ErrorAs(t, m.DeleteSecret(ctx, "", secrets.MutationOptions{}), &cfgErr)
		_, _, err := m.GetSecretContext(ctx, "")
		assert.ErrorAs(t, err, &cfgErr)
		assert.Zero(t, fake.CallCount("Authenticate"))
	})

	t.Run("not found is not retried", func(t *testing.T) {
		t.Parallel()
		fake := fakes.NewFakeProviderClient("fake")
		m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})

		err := m.UpdateSecret(ctx, "GHOST", "v", secrets.MutationOptions{})
		require.Error(t, err)
		assert.True(t, provider.IsNotFound(err))
		assert.Equal(t, 1, fake.CallCount("UpdateSecret"))
	})

	t.Run("transport errors are retried", func(t *testing.T) {
		t.Parallel()
		fake := fakes.NewFakeProviderClient("fake").
			WithProjectError("proj-a", errors.New("connection reset"))
		m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})

		err := m.DeleteSecret(ctx, "KEY", secrets.MutationOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fake provider error during delete")
		assert.Equal(t, 3, fake.CallCount("DeleteSecret"))
	})
}

func TestMutationMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	fake := fakes.NewFakeProviderClient("fake")
	m := newManager(t, managerSetup{
		client: fake,
		scopes: defaultScopes,
		opts:   []secrets.Option{secrets.WithRegisterer(reg)},
	})
	ctx := context.Background()

	require.NoError(t, m.CreateSecret(ctx, "KEY", "v", secrets.MutationOptions{}))
	require.Error(t, m.UpdateSecret(ctx, "GHOST", "v", secrets.MutationOptions{}))

	series, err := promtestutil.GatherAndCount(reg, "secretchain_mutations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "create/success and update/error")

	// not-found answers are not failed attempts
	series, err = promtestutil.GatherAndCount(reg, "secretchain_provider_failed_attempts_total")
	require.NoError(t, err)
	assert.Zero(t, series)
}

func TestGetSecrets(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").WithSecret("proj-b", "A", "remote-a")
	m := newManager(t, managerSetup{
		client: fake,
		scopes: defaultScopes,
		env:    map[string]string{"B": "env-b", "EMPTY": ""},
	})

	got := m.GetSecrets(context.Background(), []string{"A", "B", "C", "A", "EMPTY", ""})
	require.Len(t, got, 5)
	require.NotNil(t, got["A"])
	assert.Equal(t, "remote-a", *got["A"])
	require.NotNil(t, got["B"])
	assert.Equal(t, "env-b", *got["B"])
	assert.Nil(t, got["C"])
	assert.Nil(t, got["EMPTY"])
	assert.Contains(t, got, "")
	assert.Nil(t, got[""])
}

func TestValidateRequiredSecrets(t *testing.T) {
	t.Parallel()

	m := newManager(t, managerSetup{env: map[string]string{"A": "1", "C": "3"}})

	report := m.ValidateRequiredSecrets(context.Background(), []string{"A", "B", "C", "B"})
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"B"}, report.Missing)
	assert.Equal(t, []string{"A", "C"}, report.Present)

	report = m.ValidateRequiredSecrets(context.Background(), []string{"A"})
	assert.True(t, report.Valid)
	assert.Empty(t, report.Missing)
}

func TestDefaultAndContextAccessors(t *testing.T) {
	t.Parallel()

	m := newManager(t, managerSetup{env: map[string]string{"SET": "yes"}})
	ctx := context.Background()

	assert.Equal(t, "yes", m.GetSecretOrDefaultContext(ctx, "SET", "no"))
	assert.Equal(t, "no", m.GetSecretOrDefaultContext(ctx, "UNSET", "no"))
	assert.True(t, m.HasSecretContext(ctx, "SET"))
	assert.False(t, m.HasSecretContext(ctx, "UNSET"))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, "fallback", m.GetSecretOrDefaultContext(canceled, "OTHER", "fallback"))
}

func TestLegacyAccessorsReadEnvironmentOnly(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").WithSecret("proj-a", "REMOTE_ONLY", "v")
	m := newManager(t, managerSetup{
		client: fake,
		scopes: defaultScopes,
		env:    map[string]string{"LOCAL": "l", "BLANK": ""},
	})

	value, ok := m.GetSecret("LOCAL")
	assert.True(t, ok)
	assert.Equal(t, "l", value)

	_, ok = m.GetSecret("REMOTE_ONLY")
	assert.False(t, ok)
	assert.False(t, m.HasSecret("BLANK"))
	assert.Equal(t, "d", m.GetSecretOrDefault("BLANK", "d"))
	assert.Zero(t, fake.CallCount("Authenticate"), "legacy accessors never touch the provider")
}

func TestCacheControls(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").
		WithSecret("proj-a", "ROOT", "r1").
		WithSecretAt("proj-a", "/svc", "NESTED", "n1")
	m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})
	ctx := context.Background()

	_, _, err := m.GetSecretContext(ctx, "ROOT")
	require.NoError(t, err)
	_, _, err = m.GetSecretContext(ctx, "NESTED", secrets.WithPath("/svc"))
	require.NoError(t, err)
	_, _, err = m.GetSecretContext(ctx, "ABSENT")
	require.NoError(t, err)

	stats := m.CacheStats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, []string{"/svc:NESTED", "ROOT"}, stats.Keys)

	fake.WithSecret("proj-a", "ROOT", "r2").WithSecretAt("proj-a", "/svc", "NESTED", "n2")
	assert.Equal(t, 2, m.RefreshCache(ctx))

	value, _, err := m.GetSecretContext(ctx, "ROOT")
	require.NoError(t, err)
	assert.Equal(t, "r2", value)
	value, _, err = m.GetSecretContext(ctx, "NESTED", secrets.WithPath("svc"))
	require.NoError(t, err)
	assert.Equal(t, "n2", value)

	m.ClearCache()
	assert.Zero(t, m.CacheStats().Size)
}

func TestRefreshCacheKeepsKeysThatLookLikePaths(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake").
		WithSecret("proj-a", "/a:b", "v1").
		WithSecretAt("proj-a", "/x:y", "KEY", "k1")
	m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})
	ctx := context.Background()

	_, ok, err := m.GetSecretContext(ctx, "/a:b")
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = m.GetSecretContext(ctx, "KEY", secrets.WithPath("/x:y"))
	require.NoError(t, err)
	require.True(t, ok)

	fake.WithSecret("proj-a", "/a:b", "v2").WithSecretAt("proj-a", "/x:y", "KEY", "k2")
	assert.Equal(t, 2, m.RefreshCache(ctx))

	out, err := m.Lookup(ctx, "/a:b")
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, "v2", out.Value)

	out, err = m.Lookup(ctx, "KEY", secrets.WithPath("/x:y"))
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, "k2", out.Value)
}

func TestEnvironmentLookupsFollowCache(t *testing.T) {
	t.Parallel()

	env := testutil.NewFakeEnv(map[string]string{"PORT": "8080"})
	m := newManager(t, managerSetup{opts: []secrets.Option{secrets.WithLookupEnv(env.Lookup)}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		value, ok, err := m.GetSecretContext(ctx, "PORT")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "8080", value)
	}
	assert.Equal(t, 1, env.Lookups("PORT"), "cached after the first lookup")

	env.Unset("PORT")
	value, _, err := m.GetSecretContext(ctx, "PORT")
	require.NoError(t, err)
	assert.Equal(t, "8080", value, "served from cache until invalidated")

	m.ClearCache()
	_, ok, err := m.GetSecretContext(ctx, "PORT")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, env.Lookups("PORT"))
}

func TestStatusDoesNotTriggerInitialization(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake")
	m := newManager(t, managerSetup{client: fake, scopes: defaultScopes})

	st := m.Status()
	assert.True(t, st.ProviderConfigured)
	assert.Equal(t, "not_started", st.State)
	assert.Equal(t, defaultScopes, st.Scopes)
	assert.Zero(t, fake.CallCount("Authenticate"))

	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, "ready", m.Status().State)
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, secrets.Default(), secrets.Default())
}
