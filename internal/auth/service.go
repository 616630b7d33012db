package auth

import "context"

// Service defines the interface for the auth service.
type Service interface {
	// Setup creates the first account of an empty installation.
	Setup(ctx context.Context, username, password string, role Role) (*Session, error)
	Register(ctx context.Context, username, password string) (*Session, error)
	Login(ctx context.Context, username, password string) (*Session, error)
}
