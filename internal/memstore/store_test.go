package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bookshelf/internal/catalog"
	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seedBook(t *testing.T, s *Store, isbn string) catalog.Book {
	t.Helper()
	book := catalog.Book{ID: uuid.New(), Title: "T", Author: "A", ISBN: isbn, TotalCopies: 2, Version: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateBook(context.Background(), book, []eventstore.Event{{
		AggregateType: "book", EventType: "BookAdded", EventData: json.RawMessage(`{}`),
	}}))
	return book
}

func TestCreateBookRejectsDuplicateISBN(t *testing.T) {
	s := New()
	seedBook(t, s, "111")

	err := s.CreateBook(context.Background(), catalog.Book{ID: uuid.New(), ISBN: "111"}, nil)
	assert.ErrorIs(t, err, catalog.ErrDuplicateISBN)

	books, err := s.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestListBooksKeepsInsertionOrder(t *testing.T) {
	s := New()
	a := seedBook(t, s, "1")
	b := seedBook(t, s, "2")
	c := seedBook(t, s, "3")

	books, err := s.ListBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, []uuid.UUID{books[0].ID, books[1].ID, books[2].ID})
}

func TestWithBookLockStagesUntilSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	book := seedBook(t, s, "1")
	boom := errors.New("boom")

	err := s.WithBookLock(ctx, book.ID, func(tx catalog.Tx) error {
		require.NoError(t, tx.InsertReservation(ctx, catalog.Reservation{ID: uuid.New(), BookID: book.ID, ReservedUntil: now.Add(time.Hour)}))
		updated := tx.Book()
		updated.BorrowedCount = 1
		require.NoError(t, tx.SaveBook(ctx, updated))

		active, err := tx.ActiveReservations(ctx, now)
		require.NoError(t, err)
		assert.Len(t, active, 1, "staged inserts are visible inside the transaction")
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BorrowedCount)
	assert.Zero(t, s.ReservationRows(book.ID))
	h, err := s.History(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, h, 1)
}

func TestWithBookLockCommitsAndCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	book := seedBook(t, s, "1")
	r := catalog.Reservation{ID: uuid.New(), BookID: book.ID, UserID: uuid.New(), ReservedUntil: now.Add(time.Hour), CreatedAt: now}

	require.NoError(t, s.WithBookLock(ctx, book.ID, func(tx catalog.Tx) error {
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		return tx.Append(ctx, 1, []eventstore.Event{{EventType: "BookReserved", EventData: json.RawMessage(`{}`)}})
	}))
	assert.Equal(t, 1, s.ReservationRows(book.ID))

	all, err := s.AllActiveReservations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Reservation{r}, all)

	var removed int
	require.NoError(t, s.WithBookLock(ctx, book.ID, func(tx catalog.Tx) error {
		var err error
		if removed, err = tx.DeleteBook(ctx); err != nil {
			return err
		}
		return tx.Append(ctx, 2, []eventstore.Event{{EventType: "BookRemoved", EventData: json.RawMessage(`{}`)}})
	}))
	assert.Equal(t, 1, removed)
	assert.Zero(t, s.ReservationRows(book.ID))

	_, err = s.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)

	h, err := s.History(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, h, 3)
}

func TestWithBookLockRejectsStaleJournalVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	book := seedBook(t, s, "1")

	err := s.WithBookLock(ctx, book.ID, func(tx catalog.Tx) error {
		updated := tx.Book()
		updated.Title = "changed"
		if err := tx.SaveBook(ctx, updated); err != nil {
			return err
		}
		return tx.Append(ctx, 0, []eventstore.Event{{EventType: "BookUpdated", EventData: json.RawMessage(`{}`)}})
	})
	require.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
}

func TestWithBookLockUnknownBook(t *testing.T) {
	s := New()
	called := false
	err := s.WithBookLock(context.Background(), uuid.New(), func(catalog.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
	assert.False(t, called)
}
