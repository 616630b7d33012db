package auth

import "context"

// Store persists accounts. Usernames are unique; CreateAccount reports
// ErrUserExists on collision.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	// CreateFirstAccount creates account only when no account exists yet
	// and reports whether it did.
	CreateFirstAccount(ctx context.Context, account Account) (bool, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
}
