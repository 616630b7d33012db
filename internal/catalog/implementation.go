package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookshelf/internal/apperr"
	"bookshelf/internal/clock"
	"bookshelf/internal/eventstore"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	store       Store
	clock       clock.Clock
	logger      *slog.Logger
	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// NewService creates a new catalog service instance.
func NewService(store Store, clk clock.Clock, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}

	transitions, err := otel.Meter("bookshelf/catalog").Int64Counter("catalog.transitions",
		metric.WithDescription("Catalog state transitions by operation and outcome"),
	)
	if err != nil {
		logger.Warn("catalog metrics disabled", "error", err)
		transitions = noop.Int64Counter{}
	}

	return &service{
		store:       store,
		clock:       clk,
		logger:      logger,
		tracer:      otel.Tracer("bookshelf/catalog"),
		transitions: transitions,
	}
}

// transitionFunc validates and writes one change to a locked book. It
// returns the resulting record and active queue for the projection.
type transitionFunc func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error)

func (s *service) transition(ctx context.Context, op string, bookID, actorID uuid.UUID, fn transitionFunc) (*BookView, error) {
	ctx, span := s.tracer.Start(ctx, "catalog."+op,
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("actor.id", actorID.String()),
		),
	)
	defer span.End()

	var view BookView
	err := s.store.WithBookLock(ctx, bookID, func(tx Tx) error {
		book, active, err := fn(ctx, tx, s.clock.Now())
		if err != nil {
			return err
		}
		view = project(book, active)
		return nil
	})
	s.observe(ctx, span, op, err)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "catalog transition",
		"operation", op,
		"book_id", bookID,
		"actor_id", actorID,
		"borrowed_count", view.BorrowedCount,
		"available_count", view.AvailableCount,
		"reservations", len(view.Reservations),
	)
	return &view, nil
}

// observe records the outcome of an operation on the span, the transition
// counter and, for unexpected failures, the error log.
func (s *service) observe(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e, ok := apperr.As(err); ok {
			outcome = e.Code
			s.logger.DebugContext(ctx, "catalog operation rejected", "operation", op, "code", e.Code)
		} else {
			outcome = "error"
			s.logger.ErrorContext(ctx, "catalog operation failed", "operation", op, "error", err)
		}
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func newEvent(eventType string, data any, actorID uuid.UUID, now time.Time) (eventstore.Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return eventstore.Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return eventstore.Event{
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     jsonData,
		Metadata:      eventstore.Metadata{"actor_id": actorID.String()},
		CreatedAt:     now,
	}, nil
}

// save bumps the version of book, writes it and journals the event that
// explains the change.
func save(ctx context.Context, tx Tx, book Book, now time.Time, event eventstore.Event) (Book, error) {
	expectedVersion := book.Version
	book.Version++
	book.UpdatedAt = now

	if err := tx.SaveBook(ctx, book); err != nil {
		return Book{}, err
	}
	event.AggregateID = book.ID
	if err := tx.Append(ctx, expectedVersion, []eventstore.Event{event}); err != nil {
		return Book{}, fmt.Errorf("failed to append event: %w", err)
	}
	return book, nil
}

func activeOf(ctx context.Context, tx Tx, now time.Time) ([]Reservation, error) {
	active, err := tx.ActiveReservations(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}
	return ActiveReservations(active, now), nil
}

// Reserve puts userID in the reservation queue of a book.
func (s *service) Reserve(ctx context.Context, bookID, userID uuid.UUID) (*BookView, error) {
	return s.transition(ctx, "reserve", bookID, userID, func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error) {
		book := tx.Book()
		active, err := activeOf(ctx, tx, now)
		if err != nil {
			return Book{}, nil, err
		}

		until, err := decideReserve(book, active, userID, now)
		if err != nil {
			return Book{}, nil, err
		}

		r := Reservation{
			ID:            uuid.New(),
			BookID:        book.ID,
			UserID:        userID,
			ReservedUntil: until,
			CreatedAt:     now,
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return Book{}, nil, fmt.Errorf("failed to insert reservation: %w", err)
		}

		event, err := newEvent("BookReserved", BookReservedEvent{
			ReservationID: r.ID,
			UserID:        userID,
			ReservedUntil: until,
		}, userID, now)
		if err != nil {
			return Book{}, nil, err
		}
		if book, err = save(ctx, tx, book, now, event); err != nil {
			return Book{}, nil, err
		}
		return book, ActiveReservations(append(active, r), now), nil
	})
}

// Unreserve cancels the caller's own earliest reservation on a book.
func (s *service) Unreserve(ctx context.Context, bookID, userID uuid.UUID) (*BookView, error) {
	return s.transition(ctx, "unreserve", bookID, userID, func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error) {
		book := tx.Book()
		active, err := activeOf(ctx, tx, now)
		if err != nil {
			return Book{}, nil, err
		}

		r, err := decideUnreserve(active, userID)
		if err != nil {
			return Book{}, nil, err
		}
		if err := tx.DeleteReservation(ctx, r.ID); err != nil {
			return Book{}, nil, fmt.Errorf("failed to delete reservation: %w", err)
		}

		event, err := newEvent("ReservationCancelled", ReservationCancelledEvent{
			ReservationID: r.ID,
			UserID:        userID,
		}, userID, now)
		if err != nil {
			return Book{}, nil, err
		}
		if book, err = save(ctx, tx, book, now, event); err != nil {
			return Book{}, nil, err
		}
		return book, without(active, r.ID), nil
	})
}

// Borrow lends one copy to actorID, redeeming the actor's reservation if
// they hold one.
func (s *service) Borrow(ctx context.Context, bookID, actorID uuid.UUID) (*BookView, error) {
	return s.transition(ctx, "borrow", bookID, actorID, func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error) {
		book := tx.Book()
		active, err := activeOf(ctx, tx, now)
		if err != nil {
			return Book{}, nil, err
		}

		d, err := decideBorrow(book, active, actorID, now)
		if err != nil {
			return Book{}, nil, err
		}

		data := BookBorrowedEvent{
			BorrowerID:    actorID,
			DueDate:       d.dueDate,
			BorrowedCount: book.BorrowedCount + 1,
		}
		if d.consume != nil {
			if err := tx.DeleteReservation(ctx, d.consume.ID); err != nil {
				return Book{}, nil, fmt.Errorf("failed to consume reservation: %w", err)
			}
			active = without(active, d.consume.ID)
			data.ConsumedReservationID = &d.consume.ID
		}

		event, err := newEvent("BookBorrowed", data, actorID, now)
		if err != nil {
			return Book{}, nil, err
		}
		if book, err = save(ctx, tx, applyBorrow(book, d, actorID), now, event); err != nil {
			return Book{}, nil, err
		}
		return book, active, nil
	})
}

// Return takes one copy back. It never promotes the head of the queue.
func (s *service) Return(ctx context.Context, bookID, actorID uuid.UUID) (*BookView, error) {
	return s.transition(ctx, "return", bookID, actorID, func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error) {
		active, err := activeOf(ctx, tx, now)
		if err != nil {
			return Book{}, nil, err
		}

		book := applyReturn(tx.Book())
		event, err := newEvent("BookReturned", BookReturnedEvent{
			ReceivedBy:    actorID,
			BorrowedCount: book.BorrowedCount,
		}, actorID, now)
		if err != nil {
			return Book{}, nil, err
		}
		if book, err = save(ctx, tx, book, now, event); err != nil {
			return Book{}, nil, err
		}
		return book, active, nil
	})
}

// UpdateInventory changes the number of copies a book has.
func (s *service) UpdateInventory(ctx context.Context, actorID, id uuid.UUID, totalCopies int) (*BookView, error) {
	return s.transition(ctx, "update_inventory", id, actorID, func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error) {
		book := tx.Book()
		active, err := activeOf(ctx, tx, now)
		if err != nil {
			return Book{}, nil, err
		}
		if err := decideInventory(book, len(active), totalCopies); err != nil {
			return Book{}, nil, err
		}

		event, err := newEvent("InventoryUpdated", InventoryUpdatedEvent{
			ID:       book.ID,
			OldTotal: book.TotalCopies,
			NewTotal: totalCopies,
		}, actorID, now)
		if err != nil {
			return Book{}, nil, err
		}
		book.TotalCopies = totalCopies
		if book, err = save(ctx, tx, book, now, event); err != nil {
			return Book{}, nil, err
		}
		return book, active, nil
	})
}

// UpdateBook applies a partial update. Blank title, author and isbn values
// are ignored; genre may be cleared.
func (s *service) UpdateBook(ctx context.Context, actorID, id uuid.UUID, update BookUpdate) (*BookView, error) {
	return s.transition(ctx, "update", id, actorID, func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error) {
		book := tx.Book()
		active, err := activeOf(ctx, tx, now)
		if err != nil {
			return Book{}, nil, err
		}

		changed := false
		if v, ok := nonBlank(update.Title); ok {
			book.Title, changed = v, true
		}
		if v, ok := nonBlank(update.Author); ok {
			book.Author, changed = v, true
		}
		if update.Genre != nil {
			book.Genre, changed = strings.TrimSpace(*update.Genre), true
		}
		if v, ok := nonBlank(update.ISBN); ok {
			book.ISBN, changed = v, true
		}
		if update.TotalCopies != nil {
			if err := decideInventory(book, len(active), *update.TotalCopies); err != nil {
				return Book{}, nil, err
			}
			book.TotalCopies, changed = *update.TotalCopies, true
		}
		if !changed {
			return Book{}, nil, ErrNoFieldsToUpdate
		}

		event, err := newEvent("BookUpdated", BookUpdatedEvent{
			ID:          book.ID,
			Title:       book.Title,
			Author:      book.Author,
			Genre:       book.Genre,
			ISBN:        book.ISBN,
			TotalCopies: book.TotalCopies,
		}, actorID, now)
		if err != nil {
			return Book{}, nil, err
		}
		if book, err = save(ctx, tx, book, now, event); err != nil {
			return Book{}, nil, err
		}
		return book, active, nil
	})
}

// DeleteBook removes a book and all its reservations in one step.
func (s *service) DeleteBook(ctx context.Context, actorID, id uuid.UUID) error {
	_, err := s.transition(ctx, "delete", id, actorID, func(ctx context.Context, tx Tx, now time.Time) (Book, []Reservation, error) {
		book := tx.Book()
		removed, err := tx.DeleteBook(ctx)
		if err != nil {
			return Book{}, nil, fmt.Errorf("failed to delete book: %w", err)
		}

		event, err := newEvent("BookRemoved", BookRemovedEvent{
			ID:                  book.ID,
			RemovedReservations: removed,
			OutstandingBorrowed: book.BorrowedCount,
		}, actorID, now)
		if err != nil {
			return Book{}, nil, err
		}
		event.AggregateID = book.ID
		if err := tx.Append(ctx, book.Version, []eventstore.Event{event}); err != nil {
			return Book{}, nil, fmt.Errorf("failed to append event: %w", err)
		}
		return book, nil, nil
	})
	return err
}

// AddBook creates a new title in the catalog.
func (s *service) AddBook(ctx context.Context, actorID uuid.UUID, input NewBook) (*BookView, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add", trace.WithAttributes(attribute.String("actor.id", actorID.String())))
	defer span.End()

	book, err := newBookRecord(input, s.clock.Now())
	if err == nil {
		err = s.create(ctx, actorID, book, nil)
	}
	s.observe(ctx, span, "add", err)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "book added", "book_id", book.ID, "isbn", book.ISBN, "total_copies", book.TotalCopies)
	view := project(book, nil)
	return &view, nil
}

func newBookRecord(input NewBook, now time.Time) (Book, error) {
	book := Book{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(input.Title),
		Author:      strings.TrimSpace(input.Author),
		Genre:       strings.TrimSpace(input.Genre),
		ISBN:        strings.TrimSpace(input.ISBN),
		TotalCopies: input.TotalCopies,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var details []apperr.Detail
	for _, f := range []struct{ name, value string }{
		{"title", book.Title},
		{"author", book.Author},
		{"isbn", book.ISBN},
	} {
		if f.value == "" {
			details = append(details, apperr.Detail{Field: f.name, Message: f.name + " is required"})
		}
	}
	if len(details) > 0 {
		return Book{}, ErrInvalidBook.WithDetails(details...)
	}

	if book.TotalCopies == 0 {
		book.TotalCopies = 1
	}
	if book.TotalCopies < 1 {
		return Book{}, ErrInvalidTotalCopies
	}
	return book, nil
}

// create stores a new book with its BookAdded event followed by extra
// events that were already applied to the record.
func (s *service) create(ctx context.Context, actorID uuid.UUID, book Book, extra []eventstore.Event) error {
	added, err := newEvent("BookAdded", BookAddedEvent{
		ID:          book.ID,
		ISBN:        book.ISBN,
		Title:       book.Title,
		Author:      book.Author,
		TotalCopies: book.TotalCopies,
	}, actorID, book.CreatedAt)
	if err != nil {
		return err
	}

	events := append([]eventstore.Event{added}, extra...)
	for i := range events {
		events[i].AggregateID = book.ID
	}
	book.Version = len(events)

	if err := s.store.CreateBook(ctx, book, events); err != nil {
		if errors.Is(err, ErrDuplicateISBN) {
			return err
		}
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetBook returns the current projection of one book.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*BookView, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	active, err := s.store.ActiveReservations(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}
	view := project(book, ActiveReservations(active, now))
	return &view, nil
}

// ListBooks returns every book with its active queue.
func (s *service) ListBooks(ctx context.Context) ([]BookView, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	now := s.clock.Now()
	reservations, err := s.store.AllActiveReservations(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	byBook := make(map[uuid.UUID][]Reservation)
	for _, r := range reservations {
		byBook[r.BookID] = append(byBook[r.BookID], r)
	}

	views := make([]BookView, 0, len(books))
	for _, book := range books {
		views = append(views, project(book, ActiveReservations(byBook[book.ID], now)))
	}
	return views, nil
}

// History returns the journal of a book, including books since deleted.
func (s *service) History(ctx context.Context, bookID uuid.UUID) ([]eventstore.Event, error) {
	events, err := s.store.History(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrBookNotFound
	}
	return events, nil
}

func without(active []Reservation, id uuid.UUID) []Reservation {
	out := make([]Reservation, 0, len(active))
	for _, r := range active {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func nonBlank(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(*v)
	return trimmed, trimmed != ""
}
