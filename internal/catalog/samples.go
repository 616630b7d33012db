package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
)

type sampleBook struct {
	title, author, genre, isbn string
	copies, borrowed           int
	dueIn                      time.Duration
}

// sampleBooks is the demonstration catalog; two titles start with a copy out.
var sampleBooks = []sampleBook{
	{"Der kleine Prinz", "Antoine de Saint-Exupéry", "Kinderbuch", "978315000001", 1, 0, 0},
	{"Faust", "Johann Wolfgang von Goethe", "Drama", "978315000002", 2, 0, 0},
	{"Clean Code", "Robert C. Martin", "Programmierung", "9780132350884", 2, 1, 7 * 24 * time.Hour},
	{"Eloquent JavaScript", "Marijn Haverbeke", "Programmierung", "9781593279509", 1, 1, 3 * 24 * time.Hour},
	{"Die Verwandlung", "Franz Kafka", "Novelle", "978315000005", 1, 0, 0},
}

// SeedSampleBooks fills an empty catalog with the sample titles. It reports
// whether anything was inserted.
func (s *service) SeedSampleBooks(ctx context.Context) (bool, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list books: %w", err)
	}
	if len(books) > 0 {
		return false, nil
	}
	if err := s.insertSamples(ctx, uuid.Nil); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "sample books seeded", "count", len(sampleBooks))
	return true, nil
}

// ResetSampleBooks deletes every book, with its reservations, and inserts
// the sample titles again.
func (s *service) ResetSampleBooks(ctx context.Context, actorID uuid.UUID) ([]BookView, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	for _, book := range books {
		if err := s.DeleteBook(ctx, actorID, book.ID); err != nil && !errors.Is(err, ErrBookNotFound) {
			return nil, err
		}
	}
	if err := s.insertSamples(ctx, actorID); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "sample books reset", "actor_id", actorID, "removed", len(books))
	return s.ListBooks(ctx)
}

func (s *service) insertSamples(ctx context.Context, actorID uuid.UUID) error {
	now := s.clock.Now()
	for _, sample := range sampleBooks {
		book := Book{
			ID:          uuid.New(),
			Title:       sample.title,
			Author:      sample.author,
			Genre:       sample.genre,
			ISBN:        sample.isbn,
			TotalCopies: sample.copies,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		var extra []eventstore.Event
		if sample.borrowed > 0 {
			due := now.Add(sample.dueIn)
			book.BorrowedCount = sample.borrowed
			book.BorrowedUntil = &due
			if actorID != uuid.Nil {
				borrower := actorID
				book.BorrowedBy = &borrower
			}

			event, err := newEvent("BookBorrowed", BookBorrowedEvent{
				BorrowerID:    actorID,
				DueDate:       due,
				BorrowedCount: sample.borrowed,
			}, actorID, now)
			if err != nil {
				return err
			}
			extra = append(extra, event)
		}

		if err := s.create(ctx, actorID, book, extra); err != nil {
			return fmt.Errorf("failed to insert sample book %s: %w", sample.isbn, err)
		}
	}
	return nil
}
