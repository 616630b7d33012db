package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookshelf/internal/catalog"
	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	selectBook = `
		SELECT id, title, author, genre, COALESCE(isbn, '') AS isbn, total_copies, borrowed_count,
		       borrowed_until, borrowed_by, version, created_at, updated_at
		FROM books`
	selectReservation = `
		SELECT id, book_id, user_id, reserved_until, created_at
		FROM reservations`
	queueOrder = ` ORDER BY reserved_until ASC, created_at ASC, id ASC`

	isbnIndex = "idx_books_isbn"
)

// CatalogStore implements catalog.Store. Transitions lock the book row with
// SELECT ... FOR UPDATE, so only writers of the same book wait on each other.
type CatalogStore struct {
	db      *sqlx.DB
	journal *eventstore.Journal
}

var _ catalog.Store = (*CatalogStore)(nil)

func NewCatalogStore(db *sqlx.DB) *CatalogStore {
	return &CatalogStore{db: db, journal: eventstore.NewJournal()}
}

func (s *CatalogStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CatalogStore) CreateBook(ctx context.Context, book catalog.Book, events []eventstore.Event) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO books (id, title, author, genre, isbn, total_copies, borrowed_count, borrowed_until, borrowed_by, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12)
	`, book.ID, book.Title, book.Author, book.Genre, book.ISBN, book.TotalCopies, book.BorrowedCount,
		book.BorrowedUntil, book.BorrowedBy, book.Version, book.CreatedAt, book.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, isbnIndex) {
			return catalog.ErrDuplicateISBN
		}
		return fmt.Errorf("insert book: %w", err)
	}

	if err := s.journal.Append(ctx, tx, book.ID, "book", 0, events); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *CatalogStore) GetBook(ctx context.Context, id uuid.UUID) (catalog.Book, error) {
	var book catalog.Book
	err := s.db.GetContext(ctx, &book, selectBook+` WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.ErrBookNotFound
	}
	if err != nil {
		return catalog.Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func (s *CatalogStore) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	books := []catalog.Book{}
	if err := s.db.SelectContext(ctx, &books, selectBook+` ORDER BY seq ASC`); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *CatalogStore) ActiveReservations(ctx context.Context, bookID uuid.UUID, now time.Time) ([]catalog.Reservation, error) {
	return activeReservations(ctx, s.db, bookID, now)
}

func (s *CatalogStore) AllActiveReservations(ctx context.Context, now time.Time) ([]catalog.Reservation, error) {
	reservations := []catalog.Reservation{}
	err := s.db.SelectContext(ctx, &reservations, selectReservation+` WHERE reserved_until > $1`+queueOrder, now)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

func (s *CatalogStore) History(ctx context.Context, bookID uuid.UUID) ([]eventstore.Event, error) {
	return s.journal.Load(ctx, s.db, bookID)
}

func (s *CatalogStore) WithBookLock(ctx context.Context, bookID uuid.UUID, fn func(tx catalog.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var book catalog.Book
	err = tx.GetContext(ctx, &book, selectBook+` WHERE id = $1 FOR UPDATE`, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("lock book: %w", err)
	}

	if err := fn(&catalogTx{tx: tx, book: book, journal: s.journal}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func activeReservations(ctx context.Context, q sqlx.QueryerContext, bookID uuid.UUID, now time.Time) ([]catalog.Reservation, error) {
	reservations := []catalog.Reservation{}
	err := sqlx.SelectContext(ctx, q, &reservations,
		selectReservation+` WHERE book_id = $1 AND reserved_until > $2`+queueOrder, bookID, now)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

// catalogTx is a catalog.Tx over a transaction holding the book's row lock.
type catalogTx struct {
	tx      *sqlx.Tx
	book    catalog.Book
	journal *eventstore.Journal
}

func (t *catalogTx) Book() catalog.Book {
	return t.book
}

func (t *catalogTx) ActiveReservations(ctx context.Context, now time.Time) ([]catalog.Reservation, error) {
	return activeReservations(ctx, t.tx, t.book.ID, now)
}

func (t *catalogTx) SaveBook(ctx context.Context, book catalog.Book) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE books
		SET title = $2, author = $3, genre = $4, isbn = NULLIF($5, ''), total_copies = $6,
		    borrowed_count = $7, borrowed_until = $8, borrowed_by = $9, version = $10, updated_at = $11
		WHERE id = $1
	`, t.book.ID, book.Title, book.Author, book.Genre, book.ISBN, book.TotalCopies,
		book.BorrowedCount, book.BorrowedUntil, book.BorrowedBy, book.Version, book.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, isbnIndex) {
			return catalog.ErrDuplicateISBN
		}
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

func (t *catalogTx) InsertReservation(ctx context.Context, r catalog.Reservation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (id, book_id, user_id, reserved_until, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, t.book.ID, r.UserID, r.ReservedUntil, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (t *catalogTx) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1 AND book_id = $2`, id, t.book.ID)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

func (t *catalogTx) DeleteBook(ctx context.Context) (int, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM reservations WHERE book_id = $1`, t.book.ID)
	if err != nil {
		return 0, fmt.Errorf("delete reservations: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted reservations: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, t.book.ID); err != nil {
		return 0, fmt.Errorf("delete book: %w", err)
	}
	return int(removed), nil
}

func (t *catalogTx) Append(ctx context.Context, expectedVersion int, events []eventstore.Event) error {
	return t.journal.Append(ctx, t.tx, t.book.ID, "book", expectedVersion, events)
}
