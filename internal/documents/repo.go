package documents

import "context"

// Repo defines persistence operations for uploaded documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, ownerID, documentID string) (Document, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error)
	// DeleteByOwner removes every document of ownerID and returns what was removed.
	DeleteByOwner(ctx context.Context, ownerID string) ([]Document, error)
	// DeleteAll removes every document regardless of owner and returns what was removed.
	DeleteAll(ctx context.Context) ([]Document, error)
}
