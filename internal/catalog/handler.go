package catalog

import (
	"context"
	"net/http"

	"bookshelf/internal/apperr"
	"bookshelf/internal/auth"
	"bookshelf/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var ErrInvalidBookID = apperr.Validation("INVALID_BOOK_ID", "invalid book ID")

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog endpoints on r. Listing is public; everything
// else runs behind authenticate, and inventory management additionally
// requires the admin role.
func (h *Handler) Routes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Get("/books", h.handleListBooks)
	r.Get("/books/{id}", h.handleGetBook)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/books/{id}/reserve", h.handleReserve)
		r.Post("/books/{id}/unreserve", h.handleUnreserve)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/books", h.handleAddBook)
			r.Put("/books/{id}", h.handleUpdateBook)
			r.Delete("/books/{id}", h.handleDeleteBook)
			r.Patch("/books/{id}/inventory", h.handleUpdateInventory)
			r.Post("/books/{id}/borrow", h.handleBorrow)
			r.Post("/books/{id}/return", h.handleReturn)
			r.Get("/books/{id}/history", h.handleHistory)
			r.Post("/admin/reset-sample-books", h.handleResetSampleBooks)
		})
	})
}

type addBookRequest struct {
	Title       string `json:"title" validate:"max=512"`
	Author      string `json:"author" validate:"max=512"`
	Genre       string `json:"genre" validate:"max=128"`
	ISBN        string `json:"isbn" validate:"max=32"`
	TotalCopies int    `json:"total_copies"`
}

type updateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=512"`
	Author      *string `json:"author" validate:"omitempty,max=512"`
	Genre       *string `json:"genre" validate:"omitempty,max=128"`
	ISBN        *string `json:"isbn" validate:"omitempty,max=32"`
	TotalCopies *int    `json:"total_copies"`
}

type inventoryRequest struct {
	TotalCopies *int `json:"total_copies" validate:"required"`
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), callerID(r), NewBook{
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		ISBN:        req.ISBN,
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, book)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	var req updateBookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), callerID(r), id, BookUpdate{
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		ISBN:        req.ISBN,
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), callerID(r), id); err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	var req inventoryRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	book, err := h.service.UpdateInventory(r.Context(), callerID(r), id, *req.TotalCopies)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reserve)
}

func (h *Handler) handleUnreserve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Unreserve)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Borrow)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Return)
}

// transition runs one of the availability operations for the caller.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, bookID, actorID uuid.UUID) (*BookView, error)) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	book, err := op(r.Context(), id, callerID(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	events, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, events)
}

func (h *Handler) handleResetSampleBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ResetSampleBooks(r.Context(), callerID(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, books)
}

func bookID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, ErrInvalidBookID)
		return uuid.Nil, false
	}
	return id, true
}

// callerID is the authenticated user; routes that use it run behind
// Authenticate.
func callerID(r *http.Request) uuid.UUID {
	p, _ := auth.PrincipalFrom(r.Context())
	return p.UserID
}
