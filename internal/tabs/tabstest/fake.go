// Package tabstest provides an in-memory tabs.ViewFactory for tests.
package tabstest

import (
	"context"
	"errors"
	"sync"

	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// ErrCaptureUnsupported is returned by Capture when a view has no image.
var ErrCaptureUnsupported = errors.New("capture unsupported")

// Factory creates FakeViews and remembers them by tab id.
type Factory struct {
	mu    sync.Mutex
	views map[string]*View
	order []string

	// Image is returned by Capture on every new view; nil makes Capture fail.
	Image []byte
	// HTML is returned by every new view's HTML method.
	HTML string
	// FailNew makes NewView fail.
	FailNew error
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{views: make(map[string]*View)}
}

// NewView implements tabs.ViewFactory.
func (f *Factory) NewView(tabID string, sink func(tabs.ViewEvent)) (tabs.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNew != nil {
		return nil, f.FailNew
	}
	v := &View{TabID: tabID, sink: sink, image: f.Image, html: f.HTML}
	f.views[tabID] = v
	f.order = append(f.order, tabID)
	return v, nil
}

// View returns the view created for tabID.
func (f *Factory) View(tabID string) *View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[tabID]
}

// Views returns every view in creation order.
func (f *Factory) Views() []*View {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*View, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.views[id])
	}
	return out
}

// View records every call and lets tests emit events as the browser would.
type View struct {
	TabID string

	mu        sync.Mutex
	sink      func(tabs.ViewEvent)
	image     []byte
	html      string
	history   []string
	pos       int
	visible   bool
	bounds    tabs.Bounds
	closed    bool
	navigated []string
}

// Navigate records url and pushes it onto the history. No events are
// emitted; tests drive them through Emit.
func (v *View) Navigate(_ context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return tabs.ErrViewClosed
	}
	if len(v.history) > 0 {
		v.history = v.history[:v.pos+1]
	}
	v.history = append(v.history, url)
	v.pos = len(v.history) - 1
	v.navigated = append(v.navigated, url)
	return nil
}

func (v *View) step(delta int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.pos + delta
	if next < 0 || next >= len(v.history) {
		return errors.New("no history entry")
	}
	v.pos = next
	return nil
}

func (v *View) GoBack(context.Context) error    { return v.step(-1) }
func (v *View) GoForward(context.Context) error { return v.step(1) }

func (v *View) Reload(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.history) > 0 {
		v.navigated = append(v.navigated, v.history[v.pos])
	}
	return nil
}

func (v *View) Show(b tabs.Bounds) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return tabs.ErrViewClosed
	}
	v.visible = true
	v.bounds = b
	return nil
}

func (v *View) Hide() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = false
	return nil
}

func (v *View) Capture(context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.image == nil {
		return nil, ErrCaptureUnsupported
	}
	return append([]byte(nil), v.image...), nil
}

func (v *View) HTML(context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.html, nil
}

// Close destroys the view. Tests call it directly to stand in for a page the
// browser closed on its own.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.visible = false
	return nil
}

// Emit delivers ev as if the browser had reported it.
func (v *View) Emit(ev tabs.ViewEvent) {
	v.mu.Lock()
	sink := v.sink
	v.mu.Unlock()
	sink(ev)
}

// SetHTML replaces the markup HTML returns.
func (v *View) SetHTML(html string) {
	v.mu.Lock()
	v.html = html
	v.mu.Unlock()
}

// Current returns the url at the current history position.
func (v *View) Current() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.history) == 0 {
		return ""
	}
	return v.history[v.pos]
}

// Navigated returns every url passed to Navigate or Reload.
func (v *View) Navigated() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.navigated...)
}

// Visible reports whether the view is shown and its bounds.
func (v *View) Visible() (bool, tabs.Bounds) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible, v.bounds
}

// Closed reports whether Close was called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
