// File: internal/browser/driver.go

// Package browser implements the UIDriver interface on top of chromedp. One
// Driver owns one Chrome instance; callers serialize access.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/internal/config"
)

// Driver drives a headless (or headed, for manual login flows) Chrome.
type Driver struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
	netCfg      config.NetworkConfig
}

// NewDriver launches a browser per the configuration. Close must be called
// to tear the process down.
func NewDriver(ctx context.Context, cfg config.BrowserConfig, netCfg config.NetworkConfig, logger *zap.Logger) (*Driver, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Start the browser process up front so later actions fail fast.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Driver{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		logger:      logger.Named("browser"),
		netCfg:      netCfg,
	}, nil
}

// run executes chromedp actions under the combined session/operation context.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, opCancel := CombineContext(d.ctx, ctx)
	defer opCancel()

	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(opCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the URL and waits for the page to settle.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating to URL", zap.String("url", url))

	navTimeout := d.netCfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	if err := d.run(ctx, navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed for %s: %w", url, err)
	}

	if wait := d.netCfg.PostLoadWait; wait > 0 {
		if err := d.run(ctx, 0, chromedp.Sleep(wait)); err != nil {
			return err
		}
	}
	return nil
}

// CurrentURL returns the page's current location.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, 10*time.Second, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return url, nil
}

// Fill clears the element and types the value.
func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	d.logger.Debug("Filling element", zap.String("selector", selector), zap.Int("value_length", len(value)))

	err := d.run(ctx, 0,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill failed for selector %q: %w", selector, err)
	}
	return nil
}

// SelectOption sets a select element to the option value and fires a change
// event so framework listeners notice. Radio groups go through SetChecked on
// the matched group member instead; SetValue does not check a radio input.
func (d *Driver) SelectOption(ctx context.Context, selector, value string) error {
	d.logger.Debug("Selecting option", zap.String("selector", selector), zap.String("value", value))

	err := d.run(ctx, 0,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(dispatchChangeScript(selector), nil),
	)
	if err != nil {
		return fmt.Errorf("select failed for selector %q: %w", selector, err)
	}
	return nil
}

// SetChecked forces a checkbox or radio input into the given state.
func (d *Driver) SetChecked(ctx context.Context, selector string, checked bool) error {
	d.logger.Debug("Setting checkbox", zap.String("selector", selector), zap.Bool("checked", checked))

	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return false; }
		if (el.checked !== %t) {
			el.checked = %t;
			el.dispatchEvent(new Event('change', {bubbles: true}));
		}
		return true;
	})()`, selector, checked, checked)

	var found bool
	if err := d.run(ctx, 0, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("checkbox update failed for selector %q: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("no element matches selector %q", selector)
	}
	return nil
}

// Click scrolls the element into view and clicks it.
func (d *Driver) Click(ctx context.Context, selector string) error {
	d.logger.Debug("Clicking element", zap.String("selector", selector))

	err := d.run(ctx, 0,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return nil
}

// WaitVisible reports whether the element becomes visible within the
// timeout. A timeout is an answer, not an error.
func (d *Driver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := d.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return false, fmt.Errorf("waiting for selector %q: %w", selector, err)
}

// AttachFile sets the file on an <input type="file"> element.
func (d *Driver) AttachFile(ctx context.Context, selector, path string) error {
	d.logger.Debug("Attaching file", zap.String("selector", selector), zap.String("path", path))

	err := d.run(ctx, 0, chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("file attach failed for selector %q: %w", selector, err)
	}
	return nil
}

// StorageState snapshots the browser's cookies as JSON.
func (d *Driver) StorageState(ctx context.Context) ([]byte, error) {
	var cookies []*network.Cookie
	err := d.run(ctx, 10*time.Second, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capturing cookies: %w", err)
	}
	return json.Marshal(cookies)
}

// RestoreStorageState loads a cookie snapshot back into the browser.
func (d *Driver) RestoreStorageState(ctx context.Context, state []byte) error {
	var cookies []*network.Cookie
	if err := json.Unmarshal(state, &cookies); err != nil {
		return fmt.Errorf("decoding storage state: %w", err)
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	err := d.run(ctx, 10*time.Second, chromedp.ActionFunc(func(c context.Context) error {
		return storage.SetCookies(params).Do(c)
	}))
	if err != nil {
		return fmt.Errorf("restoring cookies: %w", err)
	}
	return nil
}

// Close tears the browser process down.
func (d *Driver) Close(ctx context.Context) error {
	d.cancelCtx()
	d.cancelAlloc()
	return nil
}

func dispatchChangeScript(selector string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) { el.dispatchEvent(new Event('change', {bubbles: true})); }
	})()`, selector)
}
