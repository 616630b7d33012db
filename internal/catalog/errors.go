package catalog

import "bookshelf/internal/apperr"

var (
	ErrBookNotFound        = apperr.NotFound("BOOK_NOT_FOUND", "book not found")
	ErrAlreadyReserved     = apperr.Conflict("ALREADY_RESERVED", "already reserved by you")
	ErrQueueFull           = apperr.Conflict("RESERVATION_QUEUE_FULL", "reservation queue full")
	ErrNoCopiesAvailable   = apperr.Conflict("NO_COPIES_AVAILABLE", "no copies available")
	ErrDuplicateISBN       = apperr.Conflict("DUPLICATE_ISBN", "book with this ISBN already exists")
	ErrNotReservationOwner = apperr.Forbidden("NOT_RESERVATION_OWNER", "cannot unreserve reservation of another user")
	ErrInvalidTotalCopies  = apperr.Validation("INVALID_TOTAL_COPIES", "total_copies must be at least 1")
	ErrTotalBelowBorrowed  = apperr.Validation("TOTAL_BELOW_BORROWED", "total_copies cannot be less than borrowed_count")
	ErrTotalBelowReserved  = apperr.Validation("TOTAL_BELOW_RESERVED", "total_copies cannot be less than the number of active reservations")
	ErrInvalidBook         = apperr.Validation("INVALID_BOOK", "title, author and isbn required")
	ErrNoFieldsToUpdate    = apperr.Validation("NO_FIELDS", "no fields to update")
)
