package memstore

import (
	"context"
	"testing"

	"bookshelf/internal/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func account(username string) auth.Account {
	id := uuid.New()
	return auth.Account{
		User:       auth.User{ID: id, Username: username, Role: auth.RoleUser},
		Credential: auth.Credential{UserID: id, PasswordHash: "h", Salt: "s"},
	}
}

func TestUsers(t *testing.T) {
	u := NewUsers()
	ctx := context.Background()

	created, err := u.CreateFirstAccount(ctx, account("admin"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = u.CreateFirstAccount(ctx, account("second"))
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, u.CreateAccount(ctx, account("alice")))
	assert.ErrorIs(t, u.CreateAccount(ctx, account("alice")), auth.ErrUserExists)

	got, err := u.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = u.FindByUsername(ctx, "second")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
