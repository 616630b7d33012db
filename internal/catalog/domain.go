package catalog

import (
	"time"

	"github.com/google/uuid"
)

const (
	// LoanPeriod is how long a borrowed copy stays out.
	LoanPeriod = 14 * 24 * time.Hour
	// ReservationWindow is how long a reservation stays redeemable, counted
	// from the due date of an outstanding loan or from now.
	ReservationWindow = 7 * 24 * time.Hour

	aggregateType = "book"
)

// Book is the inventory record of one title.
type Book struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Author        string     `json:"author" db:"author"`
	Genre         string     `json:"genre,omitempty" db:"genre"`
	ISBN          string     `json:"isbn,omitempty" db:"isbn"`
	TotalCopies   int        `json:"total_copies" db:"total_copies"`
	BorrowedCount int        `json:"borrowed_count" db:"borrowed_count"`
	BorrowedUntil *time.Time `json:"borrowed_until" db:"borrowed_until"`
	BorrowedBy    *uuid.UUID `json:"borrowed_by" db:"borrowed_by"`
	Version       int        `json:"version" db:"version"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Reservation is one user's claim on a future copy of a book.
type Reservation struct {
	ID            uuid.UUID `json:"id" db:"id"`
	BookID        uuid.UUID `json:"book_id" db:"book_id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	ReservedUntil time.Time `json:"reserved_until" db:"reserved_until"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// IsActive reports whether the reservation has not yet lapsed at now.
func (r Reservation) IsActive(now time.Time) bool {
	return r.ReservedUntil.After(now)
}

// BookView is the read projection returned by every catalog operation.
type BookView struct {
	Book
	AvailableCount int           `json:"available_count"`
	ReservedUntil  *time.Time    `json:"reserved_until"`
	ReservedBy     *uuid.UUID    `json:"reserved_by"`
	Reservations   []Reservation `json:"reservations"`
}

// NewBook is the input of AddBook.
type NewBook struct {
	Title       string
	Author      string
	Genre       string
	ISBN        string
	TotalCopies int
}

// BookUpdate is a partial update; nil fields are left unchanged.
type BookUpdate struct {
	Title       *string
	Author      *string
	Genre       *string
	ISBN        *string
	TotalCopies *int
}

// BookAddedEvent is journaled when a new title enters the catalog.
type BookAddedEvent struct {
	ID          uuid.UUID `json:"id"`
	ISBN        string    `json:"isbn"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	TotalCopies int       `json:"total_copies"`
}

// BookUpdatedEvent is journaled when descriptive fields or the copy count change.
type BookUpdatedEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	ISBN        string    `json:"isbn"`
	TotalCopies int       `json:"total_copies"`
}

// InventoryUpdatedEvent is journaled when only the copy count changes.
type InventoryUpdatedEvent struct {
	ID       uuid.UUID `json:"id"`
	OldTotal int       `json:"old_total"`
	NewTotal int       `json:"new_total"`
}

// BookReservedEvent is journaled when a user joins the reservation queue.
type BookReservedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	ReservedUntil time.Time `json:"reserved_until"`
}

// ReservationCancelledEvent is journaled on unreserve.
type ReservationCancelledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
}

// BookBorrowedEvent is journaled when a copy goes out.
type BookBorrowedEvent struct {
	BorrowerID            uuid.UUID  `json:"borrower_id"`
	DueDate               time.Time  `json:"due_date"`
	BorrowedCount         int        `json:"borrowed_count"`
	ConsumedReservationID *uuid.UUID `json:"consumed_reservation_id,omitempty"`
}

// BookReturnedEvent is journaled when a copy comes back.
type BookReturnedEvent struct {
	ReceivedBy    uuid.UUID `json:"received_by"`
	BorrowedCount int       `json:"borrowed_count"`
}

// BookRemovedEvent is journaled when a title is deleted together with its reservations.
type BookRemovedEvent struct {
	ID                  uuid.UUID `json:"id"`
	RemovedReservations int       `json:"removed_reservations"`
	OutstandingBorrowed int       `json:"outstanding_borrowed"`
}
