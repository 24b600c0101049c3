// Package repository holds the lessons collection: a document store keyed by
// opaque IDs with whole-record writes and ordered full listings.
package repository

import (
	"context"

	"github.com/okian/rinkside/internal/domain/lesson"
)

// Collection is the name of the lessons collection.
const Collection = "lessons"

// Store provides read/write access to the lessons collection.
//
// Data maps are stored as JSON, so values read back follow JSON decoding
// (numbers are float64, nested objects are map[string]any).
type Store interface {
	// Create stores data under a new ID and returns it.
	Create(ctx context.Context, data map[string]any) (string, error)

	// Update replaces the whole document. Returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, id string, data map[string]any) error

	// Delete removes a document. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every document in creation order.
	List(ctx context.Context) ([]lesson.Document, error)

	// Count returns the number of documents.
	Count(ctx context.Context) (int, error)

	// Close releases resources; later calls fail with ErrClosed.
	Close() error
}
