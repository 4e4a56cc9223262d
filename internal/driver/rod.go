package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// Options configures the rod-backed driver.
type Options struct {
	Headless   bool
	Width      int
	Height     int
	Timeout    time.Duration // per-action bound for hover/click/eval
	ProfileDir string        // Chrome/Chromium profile directory for authenticated sessions
}

// Rod drives a single Chromium tab through go-rod.
type Rod struct {
	browser *rod.Browser
	page    *rod.Page
	opts    Options
}

var _ Driver = (*Rod)(nil)

// Launch starts a browser and opens a blank tab.
func Launch(opts Options) (*Rod, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		browser.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return &Rod{browser: browser, page: page, opts: opts}, nil
}

func (d *Rod) Navigate(ctx context.Context, url string) error {
	page := d.page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}

	// Let SPAs hydrate and late network activity settle. Bounded so pages
	// with persistent connections (websockets, polling) don't hang us.
	d.WaitStable(ctx, 5*time.Second)
	return nil
}

func (d *Rod) Eval(ctx context.Context, script string, args ...interface{}) (gson.JSON, error) {
	page := d.page.Context(ctx).Timeout(d.opts.Timeout)
	obj, err := page.Eval(script, args...)
	if err != nil {
		return gson.New(nil), mapActionErr(err)
	}
	return obj.Value, nil
}

func (d *Rod) Hover(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return mapActionErr(err)
	}
	return nil
}

func (d *Rod) Click(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return mapActionErr(err)
	}
	return nil
}

func (d *Rod) WaitStable(ctx context.Context, timeout time.Duration) {
	page := d.page.Context(ctx).Timeout(timeout)
	page.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
}

func (d *Rod) Title(ctx context.Context) (string, error) {
	v, err := d.Eval(ctx, `() => document.title`)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (d *Rod) CurrentURL() string {
	info, err := d.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (d *Rod) Back(ctx context.Context) error {
	page := d.page.Context(ctx)
	if err := page.NavigateBack(); err != nil {
		return mapActionErr(err)
	}
	if err := page.WaitLoad(); err != nil {
		return mapActionErr(err)
	}
	return nil
}

func (d *Rod) Screenshot(ctx context.Context) ([]byte, error) {
	page := d.page.Context(ctx)
	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, mapActionErr(err)
	}
	return data, nil
}

func (d *Rod) Close() {
	if d.page != nil {
		d.page.Close()
	}
	if d.browser != nil {
		d.browser.Close()
	}
}

func (d *Rod) element(ctx context.Context, selector string) (*rod.Element, error) {
	page := d.page.Context(ctx).Timeout(d.opts.Timeout)
	el, err := page.Element(selector)
	if err != nil {
		return nil, mapActionErr(err)
	}
	return el, nil
}

// mapActionErr folds rod failures into the driver error taxonomy. Timeouts
// become ErrActionTimeout; anything else on an element action means the node
// we classified earlier is gone or unreachable, which callers treat as
// detachment.
func mapActionErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrActionTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrElementDetached, err)
}
