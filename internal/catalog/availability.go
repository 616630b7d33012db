package catalog

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActiveReservations drops lapsed reservations and orders the rest as a
// queue: earliest expiry first, then oldest, then by id.
func ActiveReservations(all []Reservation, now time.Time) []Reservation {
	active := make([]Reservation, 0, len(all))
	for _, r := range all {
		if r.IsActive(now) {
			active = append(active, r)
		}
	}
	slices.SortFunc(active, compareQueue)
	return active
}

func compareQueue(a, b Reservation) int {
	if c := a.ReservedUntil.Compare(b.ReservedUntil); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// AvailableCount is the number of copies neither borrowed nor claimed by an
// active reservation.
func AvailableCount(book Book, activeReservations int) int {
	return max(book.TotalCopies-book.BorrowedCount-activeReservations, 0)
}

// reservationOf returns the user's queue entry closest to the head.
func reservationOf(active []Reservation, userID uuid.UUID) (Reservation, bool) {
	for _, r := range active {
		if r.UserID == userID {
			return r, true
		}
	}
	return Reservation{}, false
}

// reservationExpiry gives a reservation one window past the current due date
// while a loan is still running, and one window from now otherwise.
func reservationExpiry(book Book, now time.Time) time.Time {
	if book.BorrowedUntil != nil && book.BorrowedUntil.After(now) {
		return book.BorrowedUntil.Add(ReservationWindow)
	}
	return now.Add(ReservationWindow)
}

func decideReserve(book Book, active []Reservation, userID uuid.UUID, now time.Time) (time.Time, error) {
	if _, ok := reservationOf(active, userID); ok {
		return time.Time{}, ErrAlreadyReserved
	}
	if len(active) >= book.TotalCopies {
		return time.Time{}, ErrQueueFull
	}
	return reservationExpiry(book, now), nil
}

func decideUnreserve(active []Reservation, userID uuid.UUID) (Reservation, error) {
	r, ok := reservationOf(active, userID)
	if !ok {
		return Reservation{}, ErrNotReservationOwner
	}
	return r, nil
}

type borrowDecision struct {
	dueDate time.Time
	consume *Reservation
}

// decideBorrow checks that a copy is free for actorID. The actor's own
// reservation is the claim being redeemed, so it does not count against them.
func decideBorrow(book Book, active []Reservation, actorID uuid.UUID, now time.Time) (borrowDecision, error) {
	var d borrowDecision

	claims := len(active)
	if own, ok := reservationOf(active, actorID); ok {
		claims--
		d.consume = &own
	}
	if AvailableCount(book, claims) <= 0 {
		return borrowDecision{}, ErrNoCopiesAvailable
	}

	// The summary due date tracks the soonest copy to come back.
	d.dueDate = now.Add(LoanPeriod)
	if book.BorrowedCount > 0 && book.BorrowedUntil != nil && book.BorrowedUntil.Before(d.dueDate) {
		d.dueDate = *book.BorrowedUntil
	}
	return d, nil
}

func applyBorrow(book Book, d borrowDecision, actorID uuid.UUID) Book {
	due := d.dueDate
	borrower := actorID
	book.BorrowedCount++
	book.BorrowedUntil = &due
	book.BorrowedBy = &borrower
	return book
}

// applyReturn frees one copy. Per-copy due dates are not tracked, so the
// summary date only changes when the last copy comes back.
func applyReturn(book Book) Book {
	book.BorrowedCount = max(book.BorrowedCount-1, 0)
	if book.BorrowedCount == 0 {
		book.BorrowedUntil = nil
		book.BorrowedBy = nil
	}
	return book
}

func decideInventory(book Book, activeReservations, newTotal int) error {
	switch {
	case newTotal < 1:
		return ErrInvalidTotalCopies
	case newTotal < book.BorrowedCount:
		return ErrTotalBelowBorrowed.WithMessage("total_copies %d cannot be less than borrowed_count %d", newTotal, book.BorrowedCount)
	case newTotal < activeReservations:
		return ErrTotalBelowReserved.WithMessage("total_copies %d cannot be less than %d active reservations", newTotal, activeReservations)
	}
	return nil
}

// project builds the read model of a book from its record and active queue.
func project(book Book, active []Reservation) BookView {
	view := BookView{
		Book:           book,
		AvailableCount: AvailableCount(book, len(active)),
		Reservations:   active,
	}
	if view.Reservations == nil {
		view.Reservations = []Reservation{}
	}
	if len(active) > 0 {
		head := active[0]
		view.ReservedUntil = &head.ReservedUntil
		view.ReservedBy = &head.UserID
	}
	return view
}
