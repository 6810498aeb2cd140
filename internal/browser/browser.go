package browser

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/SofiaChang/shopping-agent/internal/scraper"
)

// Options configures the headless browser behind the PageDriver.
type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	ProxyServer    string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "en-US",
		TimezoneID:     "America/New_York",
	}
}

// Driver implements scraper.PageDriver over a playwright Chromium instance.
// One driver owns one page; identity rotation recreates the browser context
// with a fresh user agent.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger
}

// New launches a browser and opens its single page.
func New(opts *Options, logger *slog.Logger) (*Driver, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--window-size=1920,1080",
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	d := &Driver{
		pw:      pw,
		browser: b,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}

	if err := d.openContext(opts.UserAgent); err != nil {
		b.Close()
		pw.Stop()
		return nil, err
	}

	return d, nil
}

func (d *Driver) openContext(userAgent string) error {
	ctx, err := d.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &userAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &d.opts.Locale,
		TimezoneId:        &d.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  d.opts.ViewportWidth,
			Height: d.opts.ViewportHeight,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := ctx.NewPage()
	if err != nil {
		ctx.Close()
		return fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(d.opts.Timeout.Milliseconds()))

	d.context = ctx
	d.page = page
	return nil
}

func (d *Driver) Navigate(url string) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(d.opts.Timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (d *Driver) WaitForAny(selectors []string, timeout time.Duration) (string, error) {
	joined := strings.Join(selectors, ", ")
	_, err := d.page.WaitForSelector(joined, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return "", scraper.ErrWaitTimeout
	}

	for _, sel := range selectors {
		count, err := d.page.Locator(sel).Count()
		if err == nil && count > 0 {
			return sel, nil
		}
	}
	return "", scraper.ErrWaitTimeout
}

func (d *Driver) QueryAll(selector string) ([]scraper.Element, error) {
	handles, err := d.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	elements := make([]scraper.Element, len(handles))
	for i, h := range handles {
		elements[i] = element{handle: h}
	}
	return elements, nil
}

// SetIdentity tears down the current context and opens a fresh one reporting
// the given user agent.
func (d *Driver) SetIdentity(userAgent string) error {
	if d.page != nil {
		d.page.Close()
	}
	if d.context != nil {
		if err := d.context.Close(); err != nil {
			d.logger.Warn("failed to close old context", "error", err)
		}
	}
	d.logger.Info("browser identity rotated")
	return d.openContext(userAgent)
}

// Close releases the page, context, browser and playwright runtime, reporting
// every failure so the caller knows cleanup was incomplete.
func (d *Driver) Close() error {
	var errs []error

	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}
	if d.context != nil {
		if err := d.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

type element struct {
	handle playwright.ElementHandle
}

func (e element) HTML() (string, error) {
	return e.handle.InnerHTML()
}
