package model

import "time"

// ExportVersion is written into every export envelope.
const ExportVersion = "1.0"

// Export wraps a single session's graph for transfer between installations.
type Export struct {
	Version    string     `json:"version"`
	ExportDate time.Time  `json:"exportDate"`
	Session    *Session   `json:"session"`
	Graph      *GraphData `json:"graph"`
}
