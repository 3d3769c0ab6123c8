// Package tabs manages the ephemeral set of open browser views. Nothing here
// is persisted; the graph learns about tabs through a Listener.
package tabs

import (
	"context"
	"errors"
)

// ErrViewClosed is returned by a View whose page is already gone.
var ErrViewClosed = errors.New("view closed")

// Bounds is a rectangle in window coordinates.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Inset returns b with top pixels removed from the top edge.
func (b Bounds) Inset(top int) Bounds {
	if top > b.Height {
		top = b.Height
	}
	return Bounds{X: b.X, Y: b.Y + top, Width: max(b.Width, 0), Height: max(b.Height-top, 0)}
}

// ViewEventKind identifies an asynchronous report from a view.
type ViewEventKind string

const (
	ViewURLChanged     ViewEventKind = "url"
	ViewTitleChanged   ViewEventKind = "title"
	ViewFaviconChanged ViewEventKind = "favicon"
	ViewLoadStarted    ViewEventKind = "load_start"
	ViewLoadFinished   ViewEventKind = "load_finish"
	ViewOpenRequested  ViewEventKind = "open_request"
	ViewCrashed        ViewEventKind = "crashed"
	// ViewClosed reports a page destroyed outside the registry.
	ViewClosed ViewEventKind = "closed"
)

// ViewEvent is one report from a view. Only the fields relevant to Kind are
// set, except the history flags which every event carries.
type ViewEvent struct {
	Kind         ViewEventKind
	URL          string
	Title        string
	Favicon      string
	CanGoBack    bool
	CanGoForward bool
}

// View is the underlying browser resource behind one LiveTab. Navigation
// methods only begin navigation; progress arrives later as ViewEvents.
type View interface {
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	Reload(ctx context.Context) error

	// Show places the view at b and makes it visible; Hide detaches it.
	// Show returns ErrViewClosed once the page is gone.
	Show(b Bounds) error
	Hide() error

	PageReader

	Close() error
}

// PageReader reads a view's page. Unlike the rest of View it may be used off
// the goroutine that owns the Registry.
type PageReader interface {
	// Capture returns a JPEG thumbnail of the visible page.
	Capture(ctx context.Context) ([]byte, error)
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
}

// ViewFactory allocates views. sink may be called from any goroutine.
type ViewFactory interface {
	NewView(tabID string, sink func(ViewEvent)) (View, error)
}
