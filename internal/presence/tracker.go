// Package presence tracks which UI windows are attached to the engine.
//
// Windows announce themselves (and re-announce as a heartbeat) through the
// attachWindow command. A background reaper forgets windows that stop
// heartbeating, so the session registry's window bookkeeping does not grow
// without bound when a UI crashes instead of detaching.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry is a single window's presence state.
type Entry struct {
	WindowID   string    `json:"windowId"`
	SessionID  string    `json:"sessionId"`
	FirstSeen  time.Time `json:"firstSeen"`
	LastSeen   time.Time `json:"lastSeen"`
	IdleSecs   float64   `json:"idleSecs"`   // seconds since last heartbeat
	Heartbeats int64     `json:"heartbeats"` // total heartbeats seen
}

// ReaperConfig configures the background reaper.
type ReaperConfig struct {
	// DeadThreshold is how long a window may go without a heartbeat.
	// Default: 2 minutes.
	DeadThreshold time.Duration

	// SweepInterval is how often the reaper scans for dead windows.
	// Default: 30 seconds.
	SweepInterval time.Duration

	// OnDead is called for each window the reaper forgets.
	// Called outside the lock; safe to make blocking calls.
	OnDead func(windowID, sessionID string)
}

// Tracker maintains an in-memory roster of attached windows.
type Tracker struct {
	mu      sync.RWMutex
	windows map[string]*windowState
	logger  *slog.Logger

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type windowState struct {
	sessionID  string
	firstSeen  time.Time
	lastSeen   time.Time
	heartbeats int64
}

// New creates an empty tracker.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		windows: make(map[string]*windowState),
		logger:  logger,
	}
}

// Touch records a heartbeat from windowID showing sessionID.
func (t *Tracker) Touch(windowID, sessionID string) {
	if windowID == "" {
		return
	}
	t.touchAt(windowID, sessionID, time.Now())
}

func (t *Tracker) touchAt(windowID, sessionID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.windows[windowID]
	if !ok {
		state = &windowState{firstSeen: now}
		t.windows[windowID] = state
		t.logger.Debug("presence: window attached", "window_id", windowID, "session_id", sessionID)
	}
	state.lastSeen = now
	state.heartbeats++
	if sessionID != "" {
		state.sessionID = sessionID
	}
}

// Remove forgets windowID.
func (t *Tracker) Remove(windowID string) {
	t.mu.Lock()
	delete(t.windows, windowID)
	t.mu.Unlock()
}

// Roster returns a snapshot of all tracked windows, most recently seen first.
// Windows idle longer than staleThreshold are excluded; pass 0 to include all.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	entries := make([]Entry, 0, len(t.windows))
	for id, state := range t.windows {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			WindowID:   id,
			SessionID:  state.sessionID,
			FirstSeen:  state.firstSeen,
			LastSeen:   state.lastSeen,
			IdleSecs:   idle.Seconds(),
			Heartbeats: state.heartbeats,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches a background goroutine that periodically forgets
// idle windows. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.DeadThreshold == 0 {
		cfg.DeadThreshold = 2 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	t.logger.Info("presence: reaper started",
		"dead_threshold", cfg.DeadThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg, time.Now())
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig, now time.Time) {
	type deadWindow struct {
		id        string
		sessionID string
	}
	var dead []deadWindow

	t.mu.Lock()
	for id, state := range t.windows {
		if now.Sub(state.lastSeen) > cfg.DeadThreshold {
			delete(t.windows, id)
			dead = append(dead, deadWindow{id: id, sessionID: state.sessionID})
		}
	}
	t.mu.Unlock()

	for _, d := range dead {
		t.logger.Info("presence: reaper forgot window",
			"window_id", d.id,
			"threshold", cfg.DeadThreshold)
		if cfg.OnDead != nil {
			cfg.OnDead(d.id, d.sessionID)
		}
	}
}
