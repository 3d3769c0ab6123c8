// Package idgen mints the opaque ids used for nodes, edges, sessions,
// saved trees and live tabs.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Kind names the entity an id belongs to. It becomes the id prefix so ids
// read well in logs and exports; nothing parses it back.
type Kind string

const (
	Node    Kind = "node"
	Edge    Kind = "edge"
	Session Kind = "sess"
	Tree    Kind = "tree"
	Tab     Kind = "tab"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	size     = 12
)

// Generate returns "<kind>-" followed by size random characters.
func Generate(k Kind) (string, error) {
	id, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("idgen %s: %w", k, err)
	}
	return string(k) + "-" + id, nil
}

// New is Generate for callers with no way to report the error. nanoid only
// fails when the system random source does.
func New(k Kind) string {
	id, err := Generate(k)
	if err != nil {
		panic(err)
	}
	return id
}
