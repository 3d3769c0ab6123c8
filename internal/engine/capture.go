package engine

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// Capturer turns a tab's page into a thumbnail data URL.
type Capturer interface {
	Capture(ctx context.Context, page tabs.PageReader) (string, error)
}

// JPEGCapturer encodes the view's JPEG capture as a data URL.
type JPEGCapturer struct{}

func (JPEGCapturer) Capture(ctx context.Context, page tabs.PageReader) (string, error) {
	img, err := page.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture page: %w", err)
	}
	if len(img) == 0 {
		return "", fmt.Errorf("capture page: empty image")
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img), nil
}

// captureAsync takes a screenshot of the tab off the engine goroutine and
// stores it on the node if the tab still shows that node afterwards.
func (e *Engine) captureAsync(tabID, nodeID string) {
	page, err := e.tabs.Reader(tabID)
	if err != nil {
		return
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(e.bgCtx, e.opts.CaptureTimeout)
		defer cancel()
		dataURL, err := e.opts.Capturer.Capture(ctx, page)
		if err != nil {
			e.logger.Debug("screenshot skipped", "tab_id", tabID, "node_id", nodeID, "error", err)
			return
		}
		e.post(func() {
			if e.tabNode[tabID] != nodeID {
				return
			}
			e.tabs.SetScreenshot(tabID, dataURL)
			if _, err := e.graph.UpdateNode(e.ctx, nodeID, model.NodePatch{Screenshot: &dataURL}); err != nil {
				e.logger.Warn("failed to store screenshot", "node_id", nodeID, "error", err)
			}
		})
	}()
}
