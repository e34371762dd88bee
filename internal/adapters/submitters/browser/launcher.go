package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Page is the slice of a browser page the form flow drives. Timeouts are
// applied per call.
type Page interface {
	Goto(url string, timeout time.Duration) error
	Count(selector string) (int, error)
	Fill(selector, value string, timeout time.Duration) error
	SetInputFiles(selector, path string, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	Close() error
}

// PageOpener hands out fresh, isolated pages.
type PageOpener interface {
	OpenPage(ctx context.Context) (Page, error)
}

// LauncherOptions configures the shared Chromium instance.
type LauncherOptions struct {
	Headless bool
	Logger   *slog.Logger
}

// Launcher starts Playwright and Chromium on first use and shares the browser
// between submissions. Each page gets its own browser context so cookies never
// leak from one application to the next.
type Launcher struct {
	headless bool
	logger   *slog.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

var _ PageOpener = (*Launcher)(nil)

// NewLauncher builds a Launcher. Nothing is started until OpenPage.
func NewLauncher(opts LauncherOptions) *Launcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{headless: opts.Headless, logger: logger.With("component", "browser_launcher")}
}

// OpenPage implements PageOpener.
func (l *Launcher) OpenPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	browser, err := l.ensureBrowser()
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &pwPage{ctx: bctx, page: page}, nil
}

func (l *Launcher) ensureBrowser() (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil && l.browser.IsConnected() {
		return l.browser, nil
	}
	if l.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
		l.pw = pw
	}
	browser, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.headless),
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	l.logger.Info("chromium launched", "headless", l.headless)
	l.browser = browser
	return browser, nil
}

// Close shuts down the browser and the Playwright driver.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.browser != nil {
		if err := l.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		l.browser = nil
	}
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		l.pw = nil
	}
	return errors.Join(errs...)
}

// ErrPageTimeout is returned by Page methods whose timeout elapsed.
var ErrPageTimeout = errors.New("browser operation timed out")

func wrapTimeout(err error) error {
	if err != nil && errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrPageTimeout, err)
	}
	return err
}

// pwPage adapts a Playwright page to Page.
type pwPage struct {
	ctx  playwright.BrowserContext
	page playwright.Page
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *pwPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(timeout),
	})
	return wrapTimeout(err)
}

func (p *pwPage) Count(selector string) (int, error) {
	return p.page.Locator(selector).Count()
}

func (p *pwPage) Fill(selector, value string, timeout time.Duration) error {
	return wrapTimeout(p.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{Timeout: ms(timeout)}))
}

func (p *pwPage) SetInputFiles(selector, path string, timeout time.Duration) error {
	return wrapTimeout(p.page.Locator(selector).First().SetInputFiles(path, playwright.LocatorSetInputFilesOptions{
		Timeout: ms(timeout),
	}))
}

func (p *pwPage) Click(selector string, timeout time.Duration) error {
	return wrapTimeout(p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: ms(timeout)}))
}

func (p *pwPage) WaitVisible(selector string, timeout time.Duration) error {
	return wrapTimeout(p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	}))
}

func (p *pwPage) Close() error {
	return p.ctx.Close()
}
