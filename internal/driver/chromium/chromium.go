// Package chromium drives real Chromium sessions through playwright-go.
package chromium

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/slotchaser/internal/driver"
	"github.com/playwright-community/playwright-go"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Options struct {
	Headless bool
	// ExecutablePath overrides the bundled Chromium.
	ExecutablePath string
	// ActionTimeout bounds a single click/type/press.
	ActionTimeout time.Duration
}

// Launcher owns the playwright runtime. Every NewSession call starts a
// separate browser so sessions share no cookies or storage.
type Launcher struct {
	opts Options

	mu sync.Mutex
	pw *playwright.Playwright
}

// Start boots the playwright driver process. Browsers must already be
// installed (playwright install chromium).
func Start(opts Options) (*Launcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	return &Launcher{opts: opts, pw: pw}, nil
}

func (l *Launcher) NewSession(ctx context.Context) (driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	pw := l.pw
	l.mu.Unlock()
	if pw == nil {
		return nil, errors.New("playwright: launcher stopped")
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
		},
	}
	if l.opts.ExecutablePath != "" {
		launch.ExecutablePath = playwright.String(l.opts.ExecutablePath)
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(userAgent),
		Viewport:  &playwright.Size{Width: 1280, Height: 720},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(ms(l.opts.ActionTimeout))

	return &session{browser: browser, context: bctx, page: page, timeout: l.opts.ActionTimeout}, nil
}

// Stop shuts the runtime down. Sessions must be closed first.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	return err
}

type session struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return mapErr(err)
}

func (s *session) Find(ctx context.Context, sel driver.Selector) (driver.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	loc := s.page.Locator(sel.CSS)
	if sel.Text != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: sel.Text})
	}
	loc = loc.First()

	n, err := loc.Count()
	if err != nil {
		return nil, false, mapErr(err)
	}
	if n == 0 {
		return nil, false, nil
	}
	return &element{loc: loc, timeout: s.timeout}, true, nil
}

func (s *session) Close() error {
	// Closing the browser also tears down its context and page.
	if err := s.browser.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		return err
	}
	return nil
}

type element struct {
	loc     playwright.Locator
	timeout time.Duration
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(e.loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(ms(e.timeout))}))
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(e.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Timeout: playwright.Float(ms(e.timeout)),
	}))
}

func (e *element) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(e.loc.Press(key, playwright.LocatorPressOptions{Timeout: playwright.Float(ms(e.timeout))}))
}

// Attribute asks the page whether the attribute exists before reading it,
// since GetAttribute returns "" for both empty and missing attributes.
func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	has, err := e.loc.Evaluate("(el, name) => el.hasAttribute(name)", name,
		playwright.LocatorEvaluateOptions{Timeout: playwright.Float(ms(e.timeout))})
	if err != nil {
		return "", false, mapErr(err)
	}
	if ok, _ := has.(bool); !ok {
		return "", false, nil
	}
	v, err := e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: playwright.Float(ms(e.timeout))})
	if err != nil {
		return "", false, mapErr(err)
	}
	return v, true, nil
}

func (e *element) Disabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d, err := e.loc.IsDisabled(playwright.LocatorIsDisabledOptions{Timeout: playwright.Float(ms(e.timeout))})
	return d, mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%w: %w", driver.ErrSessionLost, err)
	}
	return err
}

func ms(d time.Duration) float64 { return float64(d / time.Millisecond) }
