package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshelf/internal/auth"

	"github.com/jmoiron/sqlx"
)

const insertAccount = `
	INSERT INTO users (id, username, password_hash, salt, role, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// UserStore implements auth.Store.
type UserStore struct {
	db *sqlx.DB
}

var _ auth.Store = (*UserStore)(nil)

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateAccount(ctx context.Context, account auth.Account) error {
	return insertUser(ctx, s.db, account)
}

// CreateFirstAccount takes an exclusive table lock so two concurrent setups
// cannot both see an empty table.
func (s *UserStore) CreateFirstAccount(ctx context.Context, account auth.Account) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE users IN EXCLUSIVE MODE`); err != nil {
		return false, fmt.Errorf("lock users: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users)`); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if exists {
		return false, nil
	}

	if err := insertUser(ctx, tx, account); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (auth.Account, error) {
	var account auth.Account
	err := s.db.GetContext(ctx, &account, `
		SELECT id, username, role, created_at, id AS user_id, password_hash, salt
		FROM users
		WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.Account{}, fmt.Errorf("find user: %w", err)
	}
	return account, nil
}

func insertUser(ctx context.Context, exec sqlx.ExecerContext, account auth.Account) error {
	_, err := exec.ExecContext(ctx, insertAccount,
		account.ID, account.Username, account.PasswordHash, account.Salt, account.Role, account.CreatedAt)
	if uniqueViolation(err, "") {
		return auth.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
