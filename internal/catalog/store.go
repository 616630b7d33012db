package catalog

import (
	"context"
	"time"

	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
)

// Store is the persistence collaborator of the catalog. Implementations must
// return ErrBookNotFound for unknown ids and ErrDuplicateISBN when a write
// would give two books the same non-empty isbn.
type Store interface {
	// CreateBook inserts a book together with its first journal events.
	CreateBook(ctx context.Context, book Book, events []eventstore.Event) error
	GetBook(ctx context.Context, id uuid.UUID) (Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	// ActiveReservations returns the reservations of one book that are still
	// active at now, in queue order.
	ActiveReservations(ctx context.Context, bookID uuid.UUID, now time.Time) ([]Reservation, error)
	// AllActiveReservations is ActiveReservations across every book.
	AllActiveReservations(ctx context.Context, now time.Time) ([]Reservation, error)
	History(ctx context.Context, bookID uuid.UUID) ([]eventstore.Event, error)
	// WithBookLock runs fn while holding the lock of one book. Calls for
	// different books never wait on each other. If fn returns an error none
	// of its writes are kept.
	WithBookLock(ctx context.Context, bookID uuid.UUID, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the view of one locked book inside WithBookLock.
type Tx interface {
	// Book is the record as read when the lock was taken.
	Book() Book
	ActiveReservations(ctx context.Context, now time.Time) ([]Reservation, error)
	SaveBook(ctx context.Context, book Book) error
	InsertReservation(ctx context.Context, r Reservation) error
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	// DeleteBook removes the book and every reservation it owns, returning
	// how many reservation rows went with it.
	DeleteBook(ctx context.Context) (int, error)
	// Append journals events after expectedVersion.
	Append(ctx context.Context, expectedVersion int, events []eventstore.Event) error
}
