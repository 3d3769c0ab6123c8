package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *Server) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", route(s, s.health, http.StatusOK, nil))

	mux.HandleFunc("GET /v1/tabs", route(s, s.getAllTabs, http.StatusOK, nil))
	mux.HandleFunc("POST /v1/tabs", route(s, s.createTab, http.StatusCreated, nil))
	mux.HandleFunc("GET /v1/tabs/active", route(s, s.getActiveTab, http.StatusOK, nil))
	mux.HandleFunc("POST /v1/tabs/{id}/activate", route(s, s.switchTab, http.StatusOK, tabFromPath))
	mux.HandleFunc("DELETE /v1/tabs/{id}", route(s, s.closeTab, http.StatusOK, tabFromPath))
	mux.HandleFunc("POST /v1/tabs/{id}/navigate", route(s, s.navigateTab, http.StatusOK,
		func(r *http.Request, p *navigateParams) { p.TabID = r.PathValue("id") }))
	mux.HandleFunc("POST /v1/tabs/{id}/back", route(s, s.goBack, http.StatusOK, tabFromPath))
	mux.HandleFunc("POST /v1/tabs/{id}/forward", route(s, s.goForward, http.StatusOK, tabFromPath))
	mux.HandleFunc("POST /v1/tabs/{id}/reload", route(s, s.reload, http.StatusOK, tabFromPath))
	mux.HandleFunc("PUT /v1/window/bounds", route(s, s.setWindowBounds, http.StatusOK, nil))

	mux.HandleFunc("GET /v1/nodes/{id}", route(s, s.getNode, http.StatusOK, nodeFromPath))
	mux.HandleFunc("DELETE /v1/nodes/{id}", route(s, s.deleteNode, http.StatusOK, nodeFromPath))
	mux.HandleFunc("POST /v1/nodes/{id}/reopen", route(s, s.reopenNode, http.StatusCreated, nodeFromPath))
	mux.HandleFunc("POST /v1/nodes/{id}/focus", route(s, s.focusNode, http.StatusOK, nodeFromPath))
	mux.HandleFunc("PUT /v1/nodes/{id}/position", route(s, s.updateNodePosition, http.StatusAccepted,
		func(r *http.Request, p *positionParams) { p.NodeID = r.PathValue("id") }))
	mux.HandleFunc("GET /v1/nodes/{id}/content", route(s, s.extractContent, http.StatusOK, nodeFromPath))

	mux.HandleFunc("GET /v1/graph", route(s, s.getGraphData, http.StatusOK, sessionFromQuery))
	mux.HandleFunc("GET /v1/timeline", route(s, s.getTimeline, http.StatusOK, sessionFromQuery))
	mux.HandleFunc("GET /v1/snapshot", route(s, s.getSnapshot, http.StatusOK, nil))

	mux.HandleFunc("GET /v1/trees", route(s, s.getSavedTrees, http.StatusOK, sessionFromQuery))
	mux.HandleFunc("POST /v1/trees", route(s, s.saveTree, http.StatusCreated, nil))
	mux.HandleFunc("GET /v1/trees/{id}", route(s, s.loadTree, http.StatusOK, treeFromPath))
	mux.HandleFunc("DELETE /v1/trees/{id}", route(s, s.deleteTree, http.StatusOK, treeFromPath))

	mux.HandleFunc("GET /v1/sessions", route(s, s.getSessions, http.StatusOK, nil))
	mux.HandleFunc("POST /v1/sessions", route(s, s.createSession, http.StatusCreated, nil))
	mux.HandleFunc("GET /v1/sessions/current", route(s, s.getCurrentSession, http.StatusOK, nil))
	mux.HandleFunc("POST /v1/sessions/import", route(s, s.importSession, http.StatusCreated, nil))
	mux.HandleFunc("POST /v1/sessions/{id}/switch", route(s, s.switchSession, http.StatusOK, sessionFromPath))
	mux.HandleFunc("PATCH /v1/sessions/{id}", route(s, s.renameSession, http.StatusOK,
		func(r *http.Request, p *renameSessionParams) { p.SessionID = r.PathValue("id") }))
	mux.HandleFunc("DELETE /v1/sessions/{id}", route(s, s.deleteSession, http.StatusOK, sessionFromPath))
	mux.HandleFunc("GET /v1/sessions/{id}/export", route(s, s.exportSession, http.StatusOK, sessionFromPath))

	mux.HandleFunc("GET /v1/windows", route(s, s.getWindows, http.StatusOK, nil))
	mux.HandleFunc("POST /v1/windows", route(s, s.attachWindow, http.StatusOK, nil))
	mux.HandleFunc("DELETE /v1/windows/{id}", route(s, s.detachWindow, http.StatusOK,
		func(r *http.Request, p *windowParams) { p.WindowID = r.PathValue("id") }))

	mux.HandleFunc("POST /v1/clear", route(s, s.clearAllData, http.StatusOK, nil))
	mux.HandleFunc("POST /v1/cleanup", route(s, s.cleanup, http.StatusOK, nil))

	mux.HandleFunc("POST /v1/rpc/{method}", s.handleRPC)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)
	return RecoveryMiddleware(s.logger, LoggingMiddleware(s.logger, mux))
}

func tabFromPath(r *http.Request, p *tabParams)          { p.TabID = r.PathValue("id") }
func nodeFromPath(r *http.Request, p *nodeParams)        { p.NodeID = r.PathValue("id") }
func treeFromPath(r *http.Request, p *treeParams)        { p.TreeID = r.PathValue("id") }
func sessionFromPath(r *http.Request, p *sessionParams)  { p.SessionID = r.PathValue("id") }
func sessionFromQuery(r *http.Request, p *sessionParams) { p.SessionID = r.URL.Query().Get("session") }

// route adapts a command to an HTTP handler. A JSON body, if present, is
// decoded into the params first; fill then applies path and query values.
func route[P any](s *Server, fn func(context.Context, P) (any, error), okStatus int, fill func(*http.Request, *P)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p P
		if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodDelete {
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
		}
		if fill != nil {
			fill(r, &p)
		}
		out, err := fn(r.Context(), p)
		s.respond(w, okStatus, out, err)
	}
}

// handleRPC handles POST /v1/rpc/{method}: any command by name, with the raw
// body as params.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var params json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.call(r.Context(), r.PathValue("method"), params)
	s.respond(w, http.StatusOK, out, err)
}

// respond writes out, or the error mapped to its status. A failed save keeps
// the in-memory change, so its result rides along with the 503.
func (s *Server) respond(w http.ResponseWriter, okStatus int, out any, err error) {
	if err == nil {
		writeJSON(w, okStatus, out)
		return
	}
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("command failed", "error", err)
	}
	body := map[string]any{"error": err.Error()}
	if status == http.StatusServiceUnavailable && out != nil {
		body["result"] = out
	}
	writeJSON(w, status, body)
}

func httpStatus(err error) int {
	switch classify(err) {
	case classNotFound:
		return http.StatusNotFound
	case classInvalid:
		return http.StatusBadRequest
	case classUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
