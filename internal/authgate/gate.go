// File: internal/authgate/gate.go

// Package authgate gets a browser session into an authenticated state before
// any form work happens. It restores cached sessions when possible, submits
// configured credentials to the provider's entry form, and waits, bounded,
// for the rest of the login (including any two-factor prompt) to complete in
// the browser window.
package authgate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/config"
)

// State tracks where the gate is in its lifecycle.
type State string

const (
	StateUnknown              State = "unknown"
	StateCachedValid          State = "cached_valid"
	StateAwaitingLogin        State = "awaiting_login"
	StateCredentialsSubmitted State = "credentials_submitted"
	StateAuthenticated        State = "authenticated"
	StateFailed               State = "failed"
)

// Gate runs the authentication flow against a UIDriver.
type Gate struct {
	cache  *SessionCache
	cfg    config.AuthConfig
	logger *zap.Logger
	state  State
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customizes a Gate.
type Option func(*Gate)

// WithSleep injects the poll-interval wait. Tests only.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gate) { g.sleep = fn }
}

// New creates a Gate using the given session cache.
func New(cache *SessionCache, cfg config.AuthConfig, logger *zap.Logger, opts ...Option) *Gate {
	g := &Gate{
		cache:  cache,
		cfg:    cfg,
		logger: logger.Named("authgate"),
		state:  StateUnknown,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the gate's current lifecycle state.
func (g *Gate) State() State { return g.state }

// Status reports what the session cache holds.
func (g *Gate) Status() schemas.AuthStatus { return g.cache.Status() }

// Logout discards the cached session.
func (g *Gate) Logout() error {
	g.state = StateUnknown
	return g.cache.Clear()
}

// EnsureAuthenticated leaves the driver logged in at targetURL. A valid
// cached session short-circuits the whole flow. Otherwise the gate submits
// configured credentials to the provider's entry form when it has them, then
// waits for the login (including any second factor) to complete, checking
// the page once per poll interval.
func (g *Gate) EnsureAuthenticated(ctx context.Context, driver schemas.UIDriver, targetURL string) error {
	if g.tryCachedSession(ctx, driver, targetURL) {
		g.state = StateAuthenticated
		return nil
	}

	g.state = StateAwaitingLogin
	if err := driver.Navigate(ctx, targetURL); err != nil {
		g.state = StateFailed
		return fmt.Errorf("navigating to login page: %w", err)
	}

	if g.cfg.Username != "" && g.cfg.Password != "" {
		if err := g.submitCredentials(ctx, driver); err != nil {
			if ctx.Err() != nil {
				g.state = StateFailed
				return ctx.Err()
			}
			g.logger.Warn("Credential submission failed, falling back to manual login", zap.Error(err))
		} else {
			g.state = StateCredentialsSubmitted
		}
	}

	g.logger.Info("Waiting for login to complete",
		zap.String("url", targetURL),
		zap.Int("attempts", g.cfg.PollAttempts),
		zap.Duration("interval", g.cfg.PollInterval))

	for attempt := 1; attempt <= g.cfg.PollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			g.state = StateFailed
			return err
		}

		if g.twoFactorPromptVisible(ctx, driver) {
			g.logger.Debug("Two-factor prompt on screen, waiting",
				zap.Int("attempt", attempt))
		} else if g.loginComplete(ctx, driver) {
			if err := g.persistSession(ctx, driver); err != nil {
				g.logger.Warn("Login succeeded but caching the session failed", zap.Error(err))
			}
			g.state = StateAuthenticated
			g.logger.Info("Authentication complete", zap.Int("attempt", attempt))
			return nil
		}

		if err := g.sleep(ctx, g.cfg.PollInterval); err != nil {
			g.state = StateFailed
			return err
		}
	}

	g.state = StateFailed
	return fmt.Errorf("authentication not completed within %s",
		time.Duration(g.cfg.PollAttempts)*g.cfg.PollInterval)
}

// tryCachedSession restores a persisted session and verifies it still works.
func (g *Gate) tryCachedSession(ctx context.Context, driver schemas.UIDriver, targetURL string) bool {
	state, meta, ok := g.cache.Load()
	if !ok {
		return false
	}
	if !g.cache.Valid(meta) {
		g.logger.Info("Cached session expired", zap.Time("expiry", meta.Expiry))
		return false
	}
	g.state = StateCachedValid

	if err := driver.RestoreStorageState(ctx, state); err != nil {
		g.logger.Warn("Restoring cached session failed", zap.Error(err))
		return false
	}
	if err := driver.Navigate(ctx, targetURL); err != nil {
		g.logger.Warn("Navigation with cached session failed", zap.Error(err))
		return false
	}

	url, err := driver.CurrentURL(ctx)
	if err != nil {
		return false
	}
	if g.isLoginURL(url) {
		// The site bounced us back to its login page; the session is dead
		// regardless of what the expiry claims.
		g.logger.Info("Cached session rejected by site", zap.String("url", url))
		return false
	}
	g.logger.Info("Cached session restored", zap.Time("cached_at", meta.Timestamp))
	return true
}

// submitCredentials drives the identity provider's entry form. Providers
// often split the flow in two, showing the password input only after the
// username is accepted, so each step probes for its input first.
func (g *Gate) submitCredentials(ctx context.Context, driver schemas.UIDriver) error {
	visible, err := driver.WaitVisible(ctx, g.cfg.UsernameSelector, g.cfg.SelectorWaitTimeout)
	if err != nil {
		return fmt.Errorf("probing username input: %w", err)
	}
	if !visible {
		return fmt.Errorf("username input %q not on page", g.cfg.UsernameSelector)
	}
	if err := driver.Fill(ctx, g.cfg.UsernameSelector, g.cfg.Username); err != nil {
		return fmt.Errorf("filling username: %w", err)
	}
	if err := driver.Click(ctx, g.cfg.SubmitSelector); err != nil {
		return fmt.Errorf("submitting username: %w", err)
	}
	if err := g.sleep(ctx, g.cfg.SelectorWaitTimeout); err != nil {
		return err
	}

	visible, err = driver.WaitVisible(ctx, g.cfg.PasswordSelector, g.cfg.SelectorWaitTimeout)
	if err != nil {
		return fmt.Errorf("probing password input: %w", err)
	}
	if !visible {
		// Passwordless providers jump straight to a second factor; the poll
		// loop takes it from here.
		g.logger.Debug("No password input after username step")
		return nil
	}
	if err := driver.Fill(ctx, g.cfg.PasswordSelector, g.cfg.Password); err != nil {
		return fmt.Errorf("filling password: %w", err)
	}
	if err := driver.Click(ctx, g.cfg.SubmitSelector); err != nil {
		return fmt.Errorf("submitting password: %w", err)
	}
	g.logger.Info("Credentials submitted")
	return nil
}

// loginComplete checks whether the page now looks authenticated.
func (g *Gate) loginComplete(ctx context.Context, driver schemas.UIDriver) bool {
	if g.cfg.LoggedInSelector != "" {
		visible, err := driver.WaitVisible(ctx, g.cfg.LoggedInSelector, g.cfg.SelectorWaitTimeout)
		return err == nil && visible
	}
	url, err := driver.CurrentURL(ctx)
	if err != nil {
		return false
	}
	return !g.isLoginURL(url)
}

// twoFactorPromptVisible probes the known two-factor UI selectors.
func (g *Gate) twoFactorPromptVisible(ctx context.Context, driver schemas.UIDriver) bool {
	for _, sel := range g.cfg.TwoFactorSelectors {
		visible, err := driver.WaitVisible(ctx, sel, g.cfg.SelectorWaitTimeout)
		if err == nil && visible {
			return true
		}
	}
	return false
}

// persistSession snapshots the driver's storage state into the cache.
func (g *Gate) persistSession(ctx context.Context, driver schemas.UIDriver) error {
	state, err := driver.StorageState(ctx)
	if err != nil {
		return fmt.Errorf("capturing storage state: %w", err)
	}
	url, err := driver.CurrentURL(ctx)
	if err != nil {
		url = ""
	}
	return g.cache.Save(state, url, g.userAgent(), g.cfg.SessionTTL)
}

func (g *Gate) userAgent() string {
	// The concrete driver sets the real UA; the cache records a stable tag
	// so mismatched restores are traceable.
	return "formpilot-cli"
}

func (g *Gate) isLoginURL(url string) bool {
	lowered := strings.ToLower(url)
	for _, kw := range g.cfg.LoginURLKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
