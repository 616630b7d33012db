package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"bookshelf/internal/auth"
	"bookshelf/internal/clock"
	"bookshelf/internal/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (auth.Service, *auth.Tokens) {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	tokens := auth.NewTokens("secret", 8*time.Hour, clk)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewService(memstore.NewUsers(), tokens, clk, logger), tokens
}

func TestSetupCreatesOnlyFirstAccount(t *testing.T) {
	svc, tokens := newAuthService(t)
	ctx := context.Background()

	session, err := svc.Setup(ctx, "admin", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, session.User.Role)

	p, err := tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, p.UserID)
	assert.True(t, p.IsAdmin())

	_, err = svc.Setup(ctx, "second", "pw", auth.RoleAdmin)
	assert.ErrorIs(t, err, auth.ErrAlreadySetUp)

	_, err = svc.Setup(ctx, "third", "pw", "librarian")
	assert.ErrorIs(t, err, auth.ErrInvalidRole)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, " alice ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", registered.User.Username)
	assert.Equal(t, auth.RoleUser, registered.User.Role)

	_, err = svc.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, auth.ErrUserExists)

	_, err = svc.Register(ctx, "  ", "secret")
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)

	session, err := svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)
	assert.NotEmpty(t, session.Token)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "bob", "secret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
