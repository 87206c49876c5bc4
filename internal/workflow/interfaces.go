package workflow

import (
	"context"
)

// ResourceClient is the authenticated remote resource client. Paths are
// collection or resource paths, either absolute URLs or relative to the
// gateway.
type ResourceClient interface {
	// Create posts body to a collection.
	Create(ctx context.Context, collectionPath string, body any) ([]byte, error)

	// Update puts body to a resource; used for activate and deactivate toggles.
	Update(ctx context.Context, resourcePath string, body any) ([]byte, error)

	// Delete removes a resource.
	Delete(ctx context.Context, resourcePath string) error

	// Get fetches a resource.
	Get(ctx context.Context, resourcePath string) ([]byte, error)
}
