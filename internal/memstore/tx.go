package memstore

import (
	"context"
	"time"

	"bookshelf/internal/catalog"
	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
)

// tx stages the writes of one transition on a locked book.
type tx struct {
	store *Store
	book  catalog.Book

	saved      *catalog.Book
	inserted   []catalog.Reservation
	deleted    map[uuid.UUID]bool
	deleteBook bool

	expectedVersion int
	events          []eventstore.Event
}

func (t *tx) Book() catalog.Book {
	return t.book
}

// ActiveReservations sees the committed queue with this transaction's
// staged inserts and deletes applied.
func (t *tx) ActiveReservations(ctx context.Context, now time.Time) ([]catalog.Reservation, error) {
	t.store.mu.RLock()
	rows := t.store.reservationsOf(t.book.ID)
	t.store.mu.RUnlock()

	rows = append(rows, t.inserted...)
	visible := rows[:0]
	for _, r := range rows {
		if !t.deleted[r.ID] {
			visible = append(visible, r)
		}
	}
	return catalog.ActiveReservations(visible, now), nil
}

func (t *tx) SaveBook(ctx context.Context, book catalog.Book) error {
	t.saved = &book
	return nil
}

func (t *tx) InsertReservation(ctx context.Context, r catalog.Reservation) error {
	t.inserted = append(t.inserted, r)
	return nil
}

func (t *tx) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	t.deleted[id] = true
	return nil
}

func (t *tx) DeleteBook(ctx context.Context) (int, error) {
	t.store.mu.RLock()
	n := len(t.store.reservationsOf(t.book.ID))
	t.store.mu.RUnlock()

	t.deleteBook = true
	return n, nil
}

// Append stages events. Successive calls in one transaction must continue
// the version sequence of the previous call.
func (t *tx) Append(ctx context.Context, expectedVersion int, events []eventstore.Event) error {
	if len(t.events) == 0 {
		t.expectedVersion = expectedVersion
	} else if expectedVersion != t.expectedVersion+len(t.events) {
		return eventstore.ErrConcurrencyConflict
	}
	t.events = append(t.events, events...)
	return nil
}
