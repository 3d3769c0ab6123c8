package tabs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/synapse/internal/idgen"
	"github.com/alfredjeanlab/synapse/internal/model"
)

// BlankURL is loaded by tabs created without a url.
const BlankURL = "about:blank"

// LiveTab is an open view. Values handed out by the Registry are copies; the
// view handle stays inside the registry.
type LiveTab struct {
	ID           string    `json:"id"`
	NodeID       string    `json:"nodeId,omitempty"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Favicon      string    `json:"favicon,omitempty"`
	Screenshot   string    `json:"screenshot,omitempty"`
	IsActive     bool      `json:"isActive"`
	Loading      bool      `json:"loading"`
	CanGoBack    bool      `json:"canGoBack"`
	CanGoForward bool      `json:"canGoForward"`
	CreatedAt    time.Time `json:"createdAt"`

	view View
}

func (t *LiveTab) clone() *LiveTab {
	c := *t
	c.view = nil
	return &c
}

// Listener observes tab lifecycle changes. Callbacks run on the goroutine
// that drives the Registry and receive copies.
type Listener interface {
	TabCreated(tab *LiveTab)
	TabUpdated(tab *LiveTab, ev ViewEvent)
	TabActivated(tab *LiveTab)
	TabClosed(tab *LiveTab)
	// OpenRequested reports a popup or target=_blank navigation.
	OpenRequested(opener *LiveTab, url string)
}

// NopListener ignores every callback.
type NopListener struct{}

func (NopListener) TabCreated(*LiveTab)            {}
func (NopListener) TabUpdated(*LiveTab, ViewEvent) {}
func (NopListener) TabActivated(*LiveTab)          {}
func (NopListener) TabClosed(*LiveTab)             {}
func (NopListener) OpenRequested(*LiveTab, string) {}

// Options configures a Registry.
type Options struct {
	// Dispatch runs view callbacks on the Registry's owning goroutine. The
	// default calls the function inline.
	Dispatch func(func())
	Listener Listener
	Logger   *slog.Logger
	// ChromeInset is the height of window chrome above the view area.
	ChromeInset int
	Now         func() time.Time
}

// Registry owns every LiveTab and its view. It is not safe for concurrent
// use; view callbacks are funneled through Options.Dispatch.
type Registry struct {
	factory  ViewFactory
	dispatch func(func())
	listener Listener
	logger   *slog.Logger
	inset    int
	now      func() time.Time

	tabs     map[string]*LiveTab
	order    []string // creation order
	activeID string
	window   Bounds
}

// NewRegistry returns an empty registry creating views through factory.
func NewRegistry(factory ViewFactory, opts Options) *Registry {
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { f() }
	}
	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		factory:  factory,
		dispatch: opts.Dispatch,
		listener: opts.Listener,
		logger:   opts.Logger,
		inset:    opts.ChromeInset,
		now:      opts.Now,
		tabs:     make(map[string]*LiveTab),
	}
}

// CreateTab allocates a view, begins navigation to url and makes the new tab
// the foreground tab.
func (r *Registry) CreateTab(ctx context.Context, url, nodeID string) (*LiveTab, error) {
	if url == "" {
		url = BlankURL
	}
	id := idgen.New(idgen.Tab)
	view, err := r.factory.NewView(id, func(ev ViewEvent) {
		r.dispatch(func() { r.handleViewEvent(id, ev) })
	})
	if err != nil {
		return nil, fmt.Errorf("create view: %w", err)
	}

	tab := &LiveTab{
		ID:        id,
		NodeID:    nodeID,
		URL:       url,
		Title:     model.DefaultNodeTitle,
		Loading:   true,
		CreatedAt: r.now().UTC(),
		view:      view,
	}
	r.tabs[id] = tab
	r.order = append(r.order, id)
	r.logger.Debug("tab created", "tab_id", id, "url", url)
	r.listener.TabCreated(tab.clone())

	if err := view.Navigate(ctx, url); err != nil {
		// The tab stays open; the view shows its own error page.
		r.logger.Warn("navigation failed to start", "tab_id", id, "url", url, "error", err)
		tab.Loading = false
	}

	r.SwitchTab(id)
	return tab.clone(), nil
}

// SwitchTab makes id the foreground tab. It returns nil, changing nothing,
// for unknown ids. A tab whose view turns out to be gone is removed as if
// closed, and nil is returned.
func (r *Registry) SwitchTab(id string) *LiveTab {
	tab, ok := r.tabs[id]
	if !ok {
		return nil
	}
	changed := r.activeID != id
	if changed {
		if prev, ok := r.tabs[r.activeID]; ok {
			prev.IsActive = false
			if err := prev.view.Hide(); err != nil {
				r.logger.Warn("failed to hide view", "tab_id", prev.ID, "error", err)
			}
		}
		r.activeID = id
		tab.IsActive = true
	}
	if !r.showActive() {
		return nil
	}
	if changed {
		r.listener.TabActivated(tab.clone())
	}
	return tab.clone()
}

// CloseTab destroys the tab's view and removes it. If it was the foreground
// tab, the first remaining tab in creation order takes its place.
func (r *Registry) CloseTab(id string) bool {
	tab, ok := r.tabs[id]
	if !ok {
		return false
	}
	if err := tab.view.Close(); err != nil {
		r.logger.Warn("failed to close view", "tab_id", id, "error", err)
	}
	r.remove(tab)
	return true
}

// remove drops a tab whose view is already destroyed.
func (r *Registry) remove(tab *LiveTab) {
	id := tab.ID
	delete(r.tabs, id)
	for i, tid := range r.order {
		if tid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	wasActive := r.activeID == id
	if wasActive {
		r.activeID = ""
	}
	tab.IsActive = false
	r.logger.Debug("tab closed", "tab_id", id)
	r.listener.TabClosed(tab.clone())

	if wasActive && len(r.order) > 0 {
		r.SwitchTab(r.order[0])
	}
}

// CloseAll closes every tab.
func (r *Registry) CloseAll() int {
	ids := append([]string(nil), r.order...)
	for _, id := range ids {
		r.CloseTab(id)
	}
	return len(ids)
}

func (r *Registry) lookup(id string) (*LiveTab, error) {
	tab, ok := r.tabs[id]
	if !ok {
		return nil, model.NotFoundf("tab %s", id)
	}
	return tab, nil
}

// NavigateTab begins navigation in place. Foreground status is unchanged.
func (r *Registry) NavigateTab(ctx context.Context, id, url string) error {
	tab, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := tab.view.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate %s: %w", id, err)
	}
	tab.Loading = true
	return nil
}

// GoBack steps the tab's history back.
func (r *Registry) GoBack(ctx context.Context, id string) error {
	tab, err := r.lookup(id)
	if err != nil {
		return err
	}
	return tab.view.GoBack(ctx)
}

// GoForward steps the tab's history forward.
func (r *Registry) GoForward(ctx context.Context, id string) error {
	tab, err := r.lookup(id)
	if err != nil {
		return err
	}
	return tab.view.GoForward(ctx)
}

// Reload reloads the tab's current page.
func (r *Registry) Reload(ctx context.Context, id string) error {
	tab, err := r.lookup(id)
	if err != nil {
		return err
	}
	return tab.view.Reload(ctx)
}

// handleViewEvent applies a view report. Events for tabs that have since
// closed are dropped.
func (r *Registry) handleViewEvent(id string, ev ViewEvent) {
	tab, ok := r.tabs[id]
	if !ok {
		r.logger.Debug("event for closed tab dropped", "tab_id", id, "kind", ev.Kind)
		return
	}
	switch ev.Kind {
	case ViewOpenRequested:
		r.listener.OpenRequested(tab.clone(), ev.URL)
		return
	case ViewClosed:
		r.logger.Info("view closed by the browser", "tab_id", id, "url", tab.URL)
		r.remove(tab)
		return
	case ViewURLChanged:
		tab.URL = ev.URL
	case ViewTitleChanged:
		tab.Title = ev.Title
	case ViewFaviconChanged:
		tab.Favicon = ev.Favicon
	case ViewLoadStarted:
		tab.Loading = true
	case ViewLoadFinished:
		tab.Loading = false
		if ev.URL != "" {
			tab.URL = ev.URL
		}
		if ev.Title != "" {
			tab.Title = ev.Title
		}
	case ViewCrashed:
		tab.Loading = false
		r.logger.Warn("view crashed", "tab_id", id, "url", tab.URL)
	default:
		r.logger.Debug("unknown view event", "tab_id", id, "kind", ev.Kind)
		return
	}
	tab.CanGoBack = ev.CanGoBack
	tab.CanGoForward = ev.CanGoForward
	r.listener.TabUpdated(tab.clone(), ev)
}

// SetWindowBounds records new host window bounds and resizes the foreground
// view.
func (r *Registry) SetWindowBounds(b Bounds) {
	r.window = b
	r.ResizeActiveView()
}

// ContentBounds returns the area given to the foreground view.
func (r *Registry) ContentBounds() Bounds {
	return r.window.Inset(r.inset)
}

// ResizeActiveView fits the foreground view to the content bounds. It is a
// no-op without a foreground tab.
func (r *Registry) ResizeActiveView() {
	r.showActive()
}

// showActive shows the foreground view. It reports false when that view was
// found gone and its tab removed.
func (r *Registry) showActive() bool {
	tab, ok := r.tabs[r.activeID]
	if !ok {
		return true
	}
	err := tab.view.Show(r.ContentBounds())
	switch {
	case errors.Is(err, ErrViewClosed):
		r.logger.Warn("view gone, dropping tab", "tab_id", tab.ID)
		r.remove(tab)
		return false
	case err != nil:
		r.logger.Warn("failed to resize view", "tab_id", tab.ID, "error", err)
	}
	return true
}

// SetNodeID records the node a tab currently shows.
func (r *Registry) SetNodeID(id, nodeID string) {
	if tab, ok := r.tabs[id]; ok {
		tab.NodeID = nodeID
	}
}

// SetScreenshot stores the latest thumbnail for a tab.
func (r *Registry) SetScreenshot(id, dataURL string) {
	if tab, ok := r.tabs[id]; ok {
		tab.Screenshot = dataURL
	}
}

// Tabs returns every tab in creation order.
func (r *Registry) Tabs() []*LiveTab {
	out := make([]*LiveTab, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tabs[id].clone())
	}
	return out
}

// Tab returns the tab with id, or nil.
func (r *Registry) Tab(id string) *LiveTab {
	tab, ok := r.tabs[id]
	if !ok {
		return nil
	}
	return tab.clone()
}

// Active returns the foreground tab, or nil.
func (r *Registry) Active() *LiveTab {
	return r.Tab(r.activeID)
}

// Len returns the number of open tabs.
func (r *Registry) Len() int {
	return len(r.tabs)
}

// Reader returns the tab's page for reads that run outside the owning
// goroutine, such as screenshots and content extraction.
func (r *Registry) Reader(id string) (PageReader, error) {
	tab, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return tab.view, nil
}
