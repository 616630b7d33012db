package catalog

import (
	"context"

	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, actorID uuid.UUID, input NewBook) (*BookView, error)
	GetBook(ctx context.Context, id uuid.UUID) (*BookView, error)
	ListBooks(ctx context.Context) ([]BookView, error)
	UpdateBook(ctx context.Context, actorID, id uuid.UUID, update BookUpdate) (*BookView, error)
	UpdateInventory(ctx context.Context, actorID, id uuid.UUID, totalCopies int) (*BookView, error)
	DeleteBook(ctx context.Context, actorID, id uuid.UUID) error

	Reserve(ctx context.Context, bookID, userID uuid.UUID) (*BookView, error)
	Unreserve(ctx context.Context, bookID, userID uuid.UUID) (*BookView, error)
	Borrow(ctx context.Context, bookID, actorID uuid.UUID) (*BookView, error)
	Return(ctx context.Context, bookID, actorID uuid.UUID) (*BookView, error)

	History(ctx context.Context, bookID uuid.UUID) ([]eventstore.Event, error)
	SeedSampleBooks(ctx context.Context) (bool, error)
	ResetSampleBooks(ctx context.Context, actorID uuid.UUID) ([]BookView, error)
}
