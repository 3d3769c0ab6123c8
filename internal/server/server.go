// Package server exposes the engine's command surface over HTTP, gRPC and
// WebSocket, and streams change events to UI clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/alfredjeanlab/synapse/internal/engine"
	"github.com/alfredjeanlab/synapse/internal/extract"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// Engine is the command set the server dispatches to. *engine.Engine
// implements it.
type Engine interface {
	CreateTab(ctx context.Context, url, nodeID string) (*tabs.LiveTab, error)
	SwitchTab(ctx context.Context, tabID string) (*tabs.LiveTab, error)
	CloseTab(ctx context.Context, tabID string) (bool, error)
	NavigateTab(ctx context.Context, tabID, url string) error
	GoBack(ctx context.Context, tabID string) error
	GoForward(ctx context.Context, tabID string) error
	Reload(ctx context.Context, tabID string) error
	Tabs(ctx context.Context) ([]*tabs.LiveTab, error)
	ActiveTab(ctx context.Context) (*tabs.LiveTab, error)
	SetWindowBounds(ctx context.Context, b tabs.Bounds) error

	GetNode(ctx context.Context, id string) (*model.Node, error)
	DeleteNode(ctx context.Context, id string) error
	ReopenNode(ctx context.Context, nodeID string) (*tabs.LiveTab, error)
	FocusNode(ctx context.Context, nodeID string) (*tabs.LiveTab, error)
	UpdateNodePosition(ctx context.Context, nodeID string, pos model.Position, userPositioned bool) error
	ExtractContent(ctx context.Context, nodeID string) (*extract.Content, error)

	GraphData(ctx context.Context, sessionID string) (*model.GraphData, error)
	Timeline(ctx context.Context, sessionID string) (*model.Timeline, error)
	Snapshot(ctx context.Context) (*model.Snapshot, error)

	SaveTree(ctx context.Context, name string, nodeIDs []string) (*model.SavedTree, error)
	LoadTree(ctx context.Context, id string) (*model.SavedTree, error)
	DeleteTree(ctx context.Context, id string) error
	SavedTrees(ctx context.Context, sessionID string) ([]*model.TreeSummary, error)

	Sessions(ctx context.Context) ([]*model.Session, error)
	CurrentSession(ctx context.Context) (*model.Session, error)
	CreateSession(ctx context.Context, name string) (*model.Session, error)
	SwitchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	RenameSession(ctx context.Context, id, name string) (*model.Session, error)
	ExportSession(ctx context.Context, sessionID string) (*model.Export, error)
	ImportSession(ctx context.Context, data *model.Export) (*model.Session, error)

	AttachWindow(ctx context.Context, windowID, sessionID string) (string, error)
	DetachWindow(ctx context.Context, windowID string) error

	ClearAllData(ctx context.Context) error
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

var _ Engine = (*engine.Engine)(nil)

// Options configures a Server.
type Options struct {
	Logger *slog.Logger
	// Presence tracks UI windows; nil disables window tracking.
	Presence *presence.Tracker
}

// Server implements every command transport over one Engine.
type Server struct {
	engine   Engine
	hub      *Hub
	presence *presence.Tracker
	logger   *slog.Logger
	commands map[string]commandFunc
}

// New returns a server dispatching to eng. hub must be the publisher (or one
// of the publishers) the engine emits to.
func New(eng Engine, hub *Hub, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub(opts.Logger)
	}
	s := &Server{
		engine:   eng,
		hub:      hub,
		presence: opts.Presence,
		logger:   opts.Logger,
	}
	s.commands = s.commandTable()
	return s
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

func required(field, value string) error {
	if value == "" {
		return inputError(field + " is required")
	}
	return nil
}

// Error classes shared by every transport.
const (
	classInternal = iota
	classNotFound
	classInvalid
	classUnavailable
)

func classify(err error) int {
	var (
		ie inputError
		ve *model.ValidationError
		pe *model.PersistenceError
	)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return classNotFound
	case errors.Is(err, model.ErrInvalidImport), errors.As(err, &ie), errors.As(err, &ve):
		return classInvalid
	case errors.As(err, &pe), errors.Is(err, engine.ErrStopped):
		return classUnavailable
	default:
		return classInternal
	}
}

// commandFunc runs one command from JSON params.
type commandFunc func(ctx context.Context, params json.RawMessage) (any, error)

// bind adapts a typed command to a commandFunc. Empty params decode as the
// zero value.
func bind[P any](fn func(context.Context, P) (any, error)) commandFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, inputError(fmt.Sprintf("invalid params: %v", err))
			}
		}
		return fn(ctx, p)
	}
}

// call runs the named command.
func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (any, error) {
	fn, ok := s.commands[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %q: %w", method, model.ErrNotFound)
	}
	return fn(ctx, params)
}

// Methods returns every command name, sorted.
func (s *Server) Methods() []string {
	return slices.Sorted(maps.Keys(s.commands))
}
