package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/clock"
	"bookshelf/internal/eventstore"
	"bookshelf/internal/httpx"
	"bookshelf/internal/memstore"
	"bookshelf/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	clock *clock.Manual
}

func newTestServer(t *testing.T, store server.Pinger) *testServer {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	books := memstore.New()
	tokens := auth.NewTokens("secret", 8*time.Hour, clk)
	if store == nil {
		store = books
	}

	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Logger:      logger,
		Catalog:     catalog.NewService(books, clk, logger),
		Auth:        auth.NewService(memstore.NewUsers(), tokens, clk, logger),
		Tokens:      tokens,
		Store:       store,
		CORSOrigins: []string{"*"},
		AuthLimiter: httpx.NewRateLimiter(6000, 100),
	}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func TestLibraryWorkflow(t *testing.T) {
	s := newTestServer(t, nil)

	var admin auth.Session
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/setup", "", credentials{"admin", "admin-pw"}, &admin))

	var reader auth.Session
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", "", credentials{"reader", "reader-pw"}, &reader))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/login", "", credentials{"reader", "reader-pw"}, &reader))

	var book catalog.BookView
	newBook := map[string]any{"title": "Faust", "author": "Goethe", "isbn": "978315000002", "total_copies": 1}
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/books", reader.Token, newBook, nil))
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/books", admin.Token, newBook, &book))
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/books", admin.Token, newBook, nil))

	var httpErr httpx.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/books", admin.Token, map[string]any{"title": "x"}, &httpErr))
	assert.Equal(t, "INVALID_BOOK", httpErr.Error.Code)
	assert.Len(t, httpErr.Error.Details, 2)

	bookPath := "/books/" + book.ID.String()

	var view catalog.BookView
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, bookPath+"/reserve", "", nil, nil))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, bookPath+"/reserve", reader.Token, nil, &view))
	require.NotNil(t, view.ReservedBy)
	assert.Equal(t, reader.User.ID, *view.ReservedBy)
	assert.Equal(t, s.clock.Now().Add(7*24*time.Hour), view.ReservedUntil.UTC())

	httpErr = httpx.ErrorResponse{}
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, bookPath+"/borrow", admin.Token, nil, &httpErr))
	assert.Equal(t, "NO_COPIES_AVAILABLE", httpErr.Error.Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, bookPath+"/unreserve", admin.Token, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, bookPath+"/borrow", reader.Token, nil, nil))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, bookPath+"/unreserve", reader.Token, nil, &view))
	assert.Empty(t, view.Reservations)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, bookPath+"/borrow", admin.Token, nil, &view))
	assert.Equal(t, 1, view.BorrowedCount)
	assert.Zero(t, view.AvailableCount)

	httpErr = httpx.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, bookPath+"/inventory", admin.Token, map[string]int{"total_copies": 0}, &httpErr))
	assert.Equal(t, "INVALID_TOTAL_COPIES", httpErr.Error.Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, bookPath+"/inventory", admin.Token, map[string]int{"total_copies": 3}, &view))
	assert.Equal(t, 2, view.AvailableCount)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, bookPath, admin.Token, map[string]string{"genre": "Drama"}, &view))
	assert.Equal(t, "Drama", view.Genre)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, bookPath+"/return", admin.Token, nil, &view))
	assert.Zero(t, view.BorrowedCount)

	var books []catalog.BookView
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/books", "", nil, &books))
	require.Len(t, books, 1)

	var history []eventstore.Event
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, bookPath+"/history", admin.Token, nil, &history))
	assert.Len(t, history, books[0].Version)

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, bookPath, admin.Token, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, bookPath, "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/books/not-a-uuid", "", nil, nil))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/admin/reset-sample-books", admin.Token, nil, &books))
	assert.Len(t, books, 5)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/readyz", "", nil, nil))

	down := newTestServer(t, failingPinger{})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/readyz", "", nil, nil))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }
