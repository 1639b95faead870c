// Package persistence stores documents behind the Bridge interface and
// keeps them saved in the background.
//
// A Save replaces the whole document. Bridges are safe for concurrent use;
// ordering between saves of one document is the caller's concern, and the
// Autosaver never writes an older revision after a newer one.
package persistence

import (
	"context"
	"time"

	"space-planner/internal/planner/shapes"
)

// Bridge loads and saves shape lists by document id.
type Bridge interface {
	// Load returns the saved shapes in z-order, or a NOT_FOUND error.
	Load(ctx context.Context, documentID string) ([]shapes.Shape, error)
	// Save replaces the document with list.
	Save(ctx context.Context, documentID string, list []shapes.Shape) error
	// List describes every saved document, most recently updated first.
	List(ctx context.Context) ([]DocumentInfo, error)
	// Delete removes a document, or returns NOT_FOUND.
	Delete(ctx context.Context, documentID string) error
	Close() error
}

// DocumentInfo summarizes one saved document.
type DocumentInfo struct {
	ID        string    `json:"id"`
	Shapes    int       `json:"shapes"`
	UpdatedAt time.Time `json:"updatedAt"`
}
