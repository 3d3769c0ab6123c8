// Package playwright backs tabs.View with Chromium pages driven through
// playwright-go. All pages share one browser context.
package playwright

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	DefaultTimeout        = 30000 // milliseconds
	DefaultJPEGQuality    = 60
)

// Options configures the browser.
type Options struct {
	Headless bool
	// Install downloads browser binaries before starting.
	Install     bool
	Timeout     float64
	JPEGQuality int
	Logger      *slog.Logger
}

// Factory owns the playwright driver, one browser, and one context.
type Factory struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    Options
	logger  *slog.Logger
}

// Compile-time check that Factory implements tabs.ViewFactory.
var _ tabs.ViewFactory = (*Factory)(nil)

// NewFactory starts playwright and launches Chromium.
func NewFactory(opts Options) (*Factory, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
	})
	if err != nil {
		browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create context: %w", err)
	}

	return &Factory{pw: pw, browser: browser, context: bctx, opts: opts, logger: opts.Logger}, nil
}

// NewView opens a page and wires its events to sink.
func (f *Factory) NewView(tabID string, sink func(tabs.ViewEvent)) (tabs.View, error) {
	page, err := f.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(f.opts.Timeout)

	v := &View{
		tabID:   tabID,
		page:    page,
		sink:    sink,
		quality: f.opts.JPEGQuality,
		logger:  f.logger.With("tab_id", tabID),
	}
	v.wire()
	return v, nil
}

// Close shuts down the context, the browser and the driver.
func (f *Factory) Close() error {
	_ = f.context.Close()
	_ = f.browser.Close()
	if err := f.pw.Stop(); err != nil {
		return fmt.Errorf("stop playwright: %w", err)
	}
	return nil
}

// View is one playwright page.
type View struct {
	tabID   string
	page    playwright.Page
	sink    func(tabs.ViewEvent)
	quality int
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// faviconScript resolves the page's declared icon, falling back to
// /favicon.ico on the page origin.
const faviconScript = `() => {
	const link = document.querySelector("link[rel~='icon']");
	if (link && link.href) return link.href;
	try { return new URL("/favicon.ico", location.href).href; } catch (e) { return ""; }
}`

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// markClosed flips the view to closed, reporting whether it was open.
func (v *View) markClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	v.closed = true
	return true
}

// emit stamps history flags on ev and forwards it. The history lookup is a
// driver round trip, so callers on the registry goroutine use go v.emit.
func (v *View) emit(ev tabs.ViewEvent) {
	if v.isClosed() {
		return
	}
	ev.CanGoBack, ev.CanGoForward = v.history()
	v.sink(ev)
}

// history approximates back/forward availability from history.length; the
// page cannot observe its own position in the session history.
func (v *View) history() (back, forward bool) {
	n, err := v.page.Evaluate(`() => window.history.length`)
	if err != nil {
		return false, false
	}
	switch length := n.(type) {
	case int:
		return length > 1, false
	case float64:
		return length > 1, false
	}
	return false, false
}

func (v *View) wire() {
	v.page.OnFrameNavigated(func(frame playwright.Frame) {
		if frame != v.page.MainFrame() {
			return
		}
		url := frame.URL()
		go v.emit(tabs.ViewEvent{Kind: tabs.ViewURLChanged, URL: url})
	})
	v.page.OnLoad(func(playwright.Page) {
		// Page calls block on the driver connection; run them off the
		// event goroutine.
		go v.afterLoad()
	})
	v.page.OnPopup(func(popup playwright.Page) {
		url := popup.URL()
		go func() {
			// The engine opens its own tab for the request.
			_ = popup.Close()
			v.emit(tabs.ViewEvent{Kind: tabs.ViewOpenRequested, URL: url})
		}()
	})
	v.page.OnCrash(func(playwright.Page) {
		go v.emit(tabs.ViewEvent{Kind: tabs.ViewCrashed})
	})
	v.page.OnClose(func(playwright.Page) {
		// Pages closed through Close were already removed by the registry.
		if v.markClosed() {
			go v.sink(tabs.ViewEvent{Kind: tabs.ViewClosed})
		}
	})
}

func (v *View) afterLoad() {
	title, err := v.page.Title()
	if err != nil {
		v.logger.Debug("read title failed", "error", err)
	}
	url := v.page.URL()
	if title != "" {
		v.emit(tabs.ViewEvent{Kind: tabs.ViewTitleChanged, Title: title})
	}
	if icon, err := v.page.Evaluate(faviconScript); err == nil {
		if s, ok := icon.(string); ok && s != "" {
			v.emit(tabs.ViewEvent{Kind: tabs.ViewFaviconChanged, Favicon: s})
		}
	}
	v.emit(tabs.ViewEvent{Kind: tabs.ViewLoadFinished, URL: url, Title: title})
}

// Navigate starts loading url and returns without waiting for the load.
func (v *View) Navigate(_ context.Context, url string) error {
	if v.isClosed() {
		return fmt.Errorf("view %s is closed", v.tabID)
	}
	go func() {
		v.emit(tabs.ViewEvent{Kind: tabs.ViewLoadStarted, URL: url})
		if _, err := v.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateCommit,
		}); err != nil && !v.isClosed() {
			v.logger.Warn("navigation failed", "url", url, "error", err)
			v.emit(tabs.ViewEvent{Kind: tabs.ViewLoadFinished, URL: url})
		}
	}()
	return nil
}

func (v *View) GoBack(context.Context) error {
	go func() {
		if _, err := v.page.GoBack(); err != nil {
			v.logger.Debug("go back failed", "error", err)
		}
	}()
	return nil
}

func (v *View) GoForward(context.Context) error {
	go func() {
		if _, err := v.page.GoForward(); err != nil {
			v.logger.Debug("go forward failed", "error", err)
		}
	}()
	return nil
}

func (v *View) Reload(context.Context) error {
	go func() {
		v.emit(tabs.ViewEvent{Kind: tabs.ViewLoadStarted})
		if _, err := v.page.Reload(); err != nil {
			v.logger.Debug("reload failed", "error", err)
		}
	}()
	return nil
}

// Show resizes the viewport to b and raises the page.
func (v *View) Show(b tabs.Bounds) error {
	if v.isClosed() || v.page.IsClosed() {
		return tabs.ErrViewClosed
	}
	if b.Width > 0 && b.Height > 0 {
		if err := v.page.SetViewportSize(b.Width, b.Height); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}
	return v.page.BringToFront()
}

// Hide is a no-op: pages in one context are stacked and Show raises the
// foreground one.
func (v *View) Hide() error {
	return nil
}

// Capture returns a JPEG of the visible viewport.
func (v *View) Capture(context.Context) ([]byte, error) {
	img, err := v.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(v.quality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return img, nil
}

// HTML returns the serialized document.
func (v *View) HTML(context.Context) (string, error) {
	html, err := v.page.Content()
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

// Close closes the page. Later events are dropped.
func (v *View) Close() error {
	if !v.markClosed() {
		return nil
	}
	return v.page.Close()
}
