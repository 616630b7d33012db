package memstore

import (
	"context"
	"sync"

	"bookshelf/internal/auth"
)

// Users implements auth.Store in memory.
type Users struct {
	mu         sync.Mutex
	byUsername map[string]auth.Account
}

var _ auth.Store = (*Users)(nil)

func NewUsers() *Users {
	return &Users{byUsername: make(map[string]auth.Account)}
}

func (u *Users) CreateAccount(ctx context.Context, account auth.Account) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.byUsername[account.Username]; exists {
		return auth.ErrUserExists
	}
	u.byUsername[account.Username] = account
	return nil
}

func (u *Users) CreateFirstAccount(ctx context.Context, account auth.Account) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.byUsername) > 0 {
		return false, nil
	}
	u.byUsername[account.Username] = account
	return true, nil
}

func (u *Users) FindByUsername(ctx context.Context, username string) (auth.Account, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	account, ok := u.byUsername[username]
	if !ok {
		return auth.Account{}, auth.ErrUserNotFound
	}
	return account, nil
}
