// File: internal/authgate/gate_test.go
package authgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gateDriver simulates the browser side of the login flow. CurrentURL pops
// through the urls queue, sticking on the last entry.
type gateDriver struct {
	urls        []string
	urlCalls    int
	visibleSels map[string]bool
	storage     []byte
	restored    []byte
	restoreErr  error
	navigated   []string
	filled      map[string]string
	fillErr     error
	clicked     []string
}

func (d *gateDriver) Navigate(_ context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *gateDriver) CurrentURL(context.Context) (string, error) {
	idx := d.urlCalls
	if idx >= len(d.urls) {
		idx = len(d.urls) - 1
	}
	d.urlCalls++
	if idx < 0 {
		return "", nil
	}
	return d.urls[idx], nil
}

func (d *gateDriver) Fill(_ context.Context, selector, value string) error {
	if d.fillErr != nil {
		return d.fillErr
	}
	if d.filled == nil {
		d.filled = map[string]string{}
	}
	d.filled[selector] = value
	return nil
}

func (d *gateDriver) Click(_ context.Context, selector string) error {
	d.clicked = append(d.clicked, selector)
	return nil
}

func (d *gateDriver) SelectOption(context.Context, string, string) error { return nil }
func (d *gateDriver) SetChecked(context.Context, string, bool) error     { return nil }
func (d *gateDriver) AttachFile(context.Context, string, string) error   { return nil }
func (d *gateDriver) Close(context.Context) error                        { return nil }

func (d *gateDriver) WaitVisible(_ context.Context, selector string, _ time.Duration) (bool, error) {
	return d.visibleSels[selector], nil
}

func (d *gateDriver) StorageState(context.Context) ([]byte, error) {
	return d.storage, nil
}

func (d *gateDriver) RestoreStorageState(_ context.Context, state []byte) error {
	if d.restoreErr != nil {
		return d.restoreErr
	}
	d.restored = state
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		SessionTTL:          30 * 24 * time.Hour,
		PollInterval:        5 * time.Second,
		PollAttempts:        5,
		UsernameSelector:    `input[type="email"]`,
		PasswordSelector:    `input[type="password"]`,
		SubmitSelector:      `input[type="submit"]`,
		TwoFactorSelectors:  []string{`input[name="otc"]`},
		LoginURLKeywords:    []string{"login", "signin"},
		SelectorWaitTimeout: time.Second,
	}
}

// newTestGate wires a gate with a temp cache, a fake clock and a counting
// sleep that never actually waits.
func newTestGate(t *testing.T, cfg config.AuthConfig, now func() time.Time) (*Gate, *SessionCache, *int) {
	t.Helper()
	cache, err := NewSessionCache(t.TempDir(), now)
	require.NoError(t, err)

	sleeps := 0
	gate := New(cache, cfg, zap.NewNop(), WithSleep(func(ctx context.Context, _ time.Duration) error {
		sleeps++
		return ctx.Err()
	}))
	return gate, cache, &sleeps
}

func TestEnsureAuthenticated_CachedSessionRestored(t *testing.T) {
	gate, cache, sleeps := newTestGate(t, testAuthConfig(), nil)
	require.NoError(t, cache.Save([]byte(`{"cookies":[]}`), "https://app.example.com", "ua", time.Hour))

	driver := &gateDriver{urls: []string{"https://app.example.com/dashboard"}}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com")
	require.NoError(t, err)

	assert.Equal(t, StateAuthenticated, gate.State())
	assert.Equal(t, []byte(`{"cookies":[]}`), driver.restored)
	assert.Equal(t, 0, *sleeps, "a cached session must not enter the poll loop")
}

func TestEnsureAuthenticated_ExpiredCacheForcesLogin(t *testing.T) {
	current := time.Now()
	gate, cache, _ := newTestGate(t, testAuthConfig(), func() time.Time { return current })
	require.NoError(t, cache.Save([]byte("state"), "u", "ua", time.Hour))

	// Jump past the expiry; the cached session must be ignored.
	current = current.Add(2 * time.Hour)

	driver := &gateDriver{urls: []string{"https://app.example.com/home"}}
	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com/login")
	require.NoError(t, err)

	assert.Nil(t, driver.restored, "expired state must not be restored")
	assert.Equal(t, StateAuthenticated, gate.State())
}

func TestEnsureAuthenticated_CacheRejectedByLoginRedirect(t *testing.T) {
	gate, cache, _ := newTestGate(t, testAuthConfig(), nil)
	require.NoError(t, cache.Save([]byte("state"), "u", "ua", time.Hour))

	driver := &gateDriver{urls: []string{
		"https://app.example.com/signin?next=home", // cached session bounced
		"https://app.example.com/home",             // manual login finishes
	}}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, gate.State())
	// Cached restore was attempted, then the interactive path ran.
	assert.NotNil(t, driver.restored)
	assert.Len(t, driver.navigated, 2)
}

func TestEnsureAuthenticated_TwoFactorBlocksWholeWindow(t *testing.T) {
	cfg := testAuthConfig()
	gate, _, sleeps := newTestGate(t, cfg, nil)

	driver := &gateDriver{
		urls:        []string{"https://app.example.com/login"},
		visibleSels: map[string]bool{`input[name="otc"]`: true},
	}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com/login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication not completed within")
	assert.Equal(t, StateFailed, gate.State())
	assert.Equal(t, cfg.PollAttempts, *sleeps, "the poll window is bounded")
}

func TestEnsureAuthenticated_LoginCompletesMidWindow(t *testing.T) {
	gate, cache, sleeps := newTestGate(t, testAuthConfig(), nil)

	driver := &gateDriver{
		storage: []byte(`{"cookies":["session"]}`),
		urls: []string{
			"https://app.example.com/login", // attempt 1
			"https://app.example.com/login", // attempt 2
			"https://app.example.com/home",  // attempt 3: logged in
		},
	}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com/login")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, gate.State())
	assert.Equal(t, 2, *sleeps)

	// The fresh session got cached.
	state, meta, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, driver.storage, state)
	assert.True(t, cache.Valid(meta))
	assert.Equal(t, "https://app.example.com/home", meta.URL)
}

func TestEnsureAuthenticated_SubmitsConfiguredCredentials(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Username = "dev@example.com"
	cfg.Password = "hunter2!"
	gate, _, sleeps := newTestGate(t, cfg, nil)

	driver := &gateDriver{
		storage: []byte(`{"cookies":["session"]}`),
		urls:    []string{"https://app.example.com/home"},
		visibleSels: map[string]bool{
			`input[type="email"]`:    true,
			`input[type="password"]`: true,
		},
	}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com/login")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, gate.State())

	// Username and password each got filled and submitted before the poll.
	assert.Equal(t, "dev@example.com", driver.filled[`input[type="email"]`])
	assert.Equal(t, "hunter2!", driver.filled[`input[type="password"]`])
	assert.Equal(t, []string{`input[type="submit"]`, `input[type="submit"]`}, driver.clicked)
	assert.Equal(t, 1, *sleeps, "only the inter-step settle wait runs")
}

func TestEnsureAuthenticated_PasswordlessSecondStep(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Username = "dev@example.com"
	cfg.Password = "hunter2!"
	gate, _, _ := newTestGate(t, cfg, nil)

	// The provider never shows a password input; the flow moves on to the
	// poll loop after the username step.
	driver := &gateDriver{
		storage:     []byte("state"),
		urls:        []string{"https://app.example.com/home"},
		visibleSels: map[string]bool{`input[type="email"]`: true},
	}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com/login")
	require.NoError(t, err)
	assert.Equal(t, []string{`input[type="submit"]`}, driver.clicked)
	_, filledPassword := driver.filled[`input[type="password"]`]
	assert.False(t, filledPassword)
}

func TestEnsureAuthenticated_CredentialFailureFallsBackToManualLogin(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Username = "dev@example.com"
	cfg.Password = "hunter2!"
	gate, _, _ := newTestGate(t, cfg, nil)

	driver := &gateDriver{
		storage:     []byte("state"),
		fillErr:     errors.New("element detached"),
		visibleSels: map[string]bool{`input[type="email"]`: true},
		urls: []string{
			"https://app.example.com/login", // attempt 1: still on the form
			"https://app.example.com/home",  // attempt 2: logged in by hand
		},
	}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com/login")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, gate.State())
	assert.Empty(t, driver.clicked, "a failed fill must not submit the form")
}

func TestEnsureAuthenticated_LoggedInSelector(t *testing.T) {
	cfg := testAuthConfig()
	cfg.LoggedInSelector = "#avatar"
	gate, _, _ := newTestGate(t, cfg, nil)

	driver := &gateDriver{
		urls:        []string{"https://app.example.com/login"},
		visibleSels: map[string]bool{"#avatar": true},
	}

	err := gate.EnsureAuthenticated(context.Background(), driver, "https://app.example.com/login")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, gate.State())
}

func TestEnsureAuthenticated_ContextCancelled(t *testing.T) {
	gate, _, _ := newTestGate(t, testAuthConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver := &gateDriver{urls: []string{"https://app.example.com/login"}}
	err := gate.EnsureAuthenticated(ctx, driver, "https://app.example.com/login")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, gate.State())
}

func TestStatusAndLogout(t *testing.T) {
	gate, cache, _ := newTestGate(t, testAuthConfig(), nil)

	st := gate.Status()
	assert.False(t, st.Authenticated)
	assert.False(t, st.StateFileExists)

	require.NoError(t, cache.Save([]byte("state"), "u", "ua", time.Hour))
	st = gate.Status()
	assert.True(t, st.Authenticated)
	assert.True(t, st.StateFileExists)
	assert.True(t, st.MetaFileExists)
	require.NotNil(t, st.CachedExpiry)
	assert.True(t, st.CachedExpiry.After(time.Now()))

	require.NoError(t, gate.Logout())
	st = gate.Status()
	assert.False(t, st.Authenticated)
	assert.False(t, st.StateFileExists)
	assert.Equal(t, StateUnknown, gate.State())
}
