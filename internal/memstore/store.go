// Package memstore keeps the catalog in process memory. It serializes
// transitions with one lock per book and stages every write of a transition
// until it succeeds, so a rejected transition leaves no trace.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"bookshelf/internal/catalog"
	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
)

type Store struct {
	mu           sync.RWMutex
	books        map[uuid.UUID]catalog.Book
	order        map[uuid.UUID]int64
	reservations map[uuid.UUID]catalog.Reservation
	seq          int64

	journal *eventstore.Memory
	locks   *keyedMutex
}

var _ catalog.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		books:        make(map[uuid.UUID]catalog.Book),
		order:        make(map[uuid.UUID]int64),
		reservations: make(map[uuid.UUID]catalog.Reservation),
		journal:      eventstore.NewMemory(),
		locks:        newKeyedMutex(),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) CreateBook(ctx context.Context, book catalog.Book, events []eventstore.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[book.ID]; exists {
		return eventstore.ErrConcurrencyConflict
	}
	if s.isbnTaken(book.ISBN, book.ID) {
		return catalog.ErrDuplicateISBN
	}
	if err := s.journal.Append(book.ID, aggregateTypeOf(events), 0, events); err != nil {
		return err
	}

	s.seq++
	s.books[book.ID] = book
	s.order[book.ID] = s.seq
	return nil
}

func (s *Store) GetBook(ctx context.Context, id uuid.UUID) (catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return catalog.Book{}, catalog.ErrBookNotFound
	}
	return book, nil
}

// ListBooks returns books in insertion order.
func (s *Store) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]catalog.Book, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, b)
	}
	slices.SortFunc(books, func(a, b catalog.Book) int {
		return int(s.order[a.ID] - s.order[b.ID])
	})
	return books, nil
}

func (s *Store) ActiveReservations(ctx context.Context, bookID uuid.UUID, now time.Time) ([]catalog.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catalog.ActiveReservations(s.reservationsOf(bookID), now), nil
}

func (s *Store) AllActiveReservations(ctx context.Context, now time.Time) ([]catalog.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]catalog.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		all = append(all, r)
	}
	return catalog.ActiveReservations(all, now), nil
}

// ReservationRows counts stored reservation rows of a book, lapsed ones included.
func (s *Store) ReservationRows(bookID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reservationsOf(bookID))
}

func (s *Store) History(ctx context.Context, bookID uuid.UUID) ([]eventstore.Event, error) {
	return s.journal.Load(bookID), nil
}

func (s *Store) WithBookLock(ctx context.Context, bookID uuid.UUID, fn func(tx catalog.Tx) error) error {
	unlock, err := s.locks.lock(ctx, bookID)
	if err != nil {
		return err
	}
	defer unlock()

	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return err
	}

	t := &tx{store: s, book: book, deleted: make(map[uuid.UUID]bool)}
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

// commit applies the staged writes of t at once.
func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.saved != nil && !t.deleteBook && s.isbnTaken(t.saved.ISBN, t.book.ID) {
		return catalog.ErrDuplicateISBN
	}
	if len(t.events) > 0 {
		if err := s.journal.Append(t.book.ID, aggregateTypeOf(t.events), t.expectedVersion, t.events); err != nil {
			return err
		}
	}

	for id := range t.deleted {
		delete(s.reservations, id)
	}
	for _, r := range t.inserted {
		s.reservations[r.ID] = r
	}

	switch {
	case t.deleteBook:
		for id, r := range s.reservations {
			if r.BookID == t.book.ID {
				delete(s.reservations, id)
			}
		}
		delete(s.books, t.book.ID)
		delete(s.order, t.book.ID)
	case t.saved != nil:
		s.books[t.book.ID] = *t.saved
	}
	return nil
}

// isbnTaken must be called with s.mu held.
func (s *Store) isbnTaken(isbn string, self uuid.UUID) bool {
	if isbn == "" {
		return false
	}
	for id, b := range s.books {
		if id != self && b.ISBN == isbn {
			return true
		}
	}
	return false
}

// reservationsOf must be called with s.mu held.
func (s *Store) reservationsOf(bookID uuid.UUID) []catalog.Reservation {
	var out []catalog.Reservation
	for _, r := range s.reservations {
		if r.BookID == bookID {
			out = append(out, r)
		}
	}
	return out
}

func aggregateTypeOf(events []eventstore.Event) string {
	if len(events) == 0 {
		return ""
	}
	return events[0].AggregateType
}
