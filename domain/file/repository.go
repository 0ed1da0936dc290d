package file

import (
	"context"

	"recordhub/domain/shared"
)

// Repository File repository interface
// Add queues a created event; GetForUpdate queues an updated event and tracks
// the file for write-back at flush. Other reads have no side effects.
type Repository interface {
	Add(ctx context.Context, f *File) error
	Get(ctx context.Context, id string) (*File, error)
	GetForUpdate(ctx context.Context, id string) (*File, error)
	GetAll(ctx context.Context, spec shared.Specification[*File]) ([]*File, error)
	// Search returns files whose name contains query
	Search(ctx context.Context, query string) ([]*File, error)
}

// Repos is the repository set bound to one Unit of Work for file operations.
type Repos struct {
	Files Repository
}
