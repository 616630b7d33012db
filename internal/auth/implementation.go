package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bookshelf/internal/clock"

	"github.com/google/uuid"
)

// service implements the Service interface.
type service struct {
	store  Store
	tokens *Tokens
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a new auth service instance.
func NewService(store Store, tokens *Tokens, clk clock.Clock, logger *slog.Logger) Service {
	return &service{store: store, tokens: tokens, clock: clk, logger: logger}
}

func (s *service) Setup(ctx context.Context, username, password string, role Role) (*Session, error) {
	if role == "" {
		role = RoleAdmin
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	account, err := s.newAccount(username, password, role)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateFirstAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to create first account: %w", err)
	}
	if !created {
		return nil, ErrAlreadySetUp
	}

	s.logger.InfoContext(ctx, "first account created", "user_id", account.ID, "role", account.Role)
	return s.session(account.User)
}

func (s *service) Register(ctx context.Context, username, password string) (*Session, error) {
	account, err := s.newAccount(username, password, RoleUser)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered", "user_id", account.ID)
	return s.session(account.User)
}

// Login verifies the credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *service) Login(ctx context.Context, username, password string) (*Session, error) {
	account, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, account.Salt, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "login rejected", "user_id", account.ID)
		return nil, ErrInvalidCredentials
	}

	return s.session(account.User)
}

func (s *service) newAccount(username, password string, role Role) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrMissingCredentials
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New()
	return Account{
		User: User{
			ID:        id,
			Username:  username,
			Role:      role,
			CreatedAt: s.clock.Now(),
		},
		Credential: Credential{UserID: id, PasswordHash: hash, Salt: salt},
	}, nil
}

func (s *service) session(u User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}
