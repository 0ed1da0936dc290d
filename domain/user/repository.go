package user

import (
	"context"

	"recordhub/domain/file"
	"recordhub/domain/shared"
)

// Repository User repository interface
// DDD principles:
//  1. Every mutating call queues a domain event; the owning Unit of Work
//     dispatches it after commit. Implementations are bound to one session.
//  2. Reads never queue events, except GetForUpdate which declares the intent
//     to mutate the returned aggregate before commit.
//  3. Include context.Context to support timeout and cancellation
type Repository interface {
	// Add stages a new user and queues a created event
	Add(ctx context.Context, u *User) error

	// Get returns the user with the given id or a not-found error
	Get(ctx context.Context, id string) (*User, error)

	// GetByEmail returns the user with the given email or a not-found error
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetForUpdate returns the user, tracks it for write-back at flush, and
	// queues an updated event. Nothing is queued when the user is missing.
	GetForUpdate(ctx context.Context, id string) (*User, error)

	// GetByEmailForUpdate is GetForUpdate keyed by email
	GetByEmailForUpdate(ctx context.Context, email string) (*User, error)

	// GetAll returns users matching spec; nil matches everything
	GetAll(ctx context.Context, spec shared.Specification[*User]) ([]*User, error)

	// Search returns users whose email contains query
	Search(ctx context.Context, query string) ([]*User, error)
}

// AuthCodeRepository 验证码仓储
type AuthCodeRepository interface {
	Add(ctx context.Context, code *AuthCode) error
	Get(ctx context.Context, id string) (*AuthCode, error)
	// GetByEmailAndCode returns the newest matching code
	GetByEmailAndCode(ctx context.Context, email, code string) (*AuthCode, error)
	GetForUpdate(ctx context.Context, id string) (*AuthCode, error)
	GetAll(ctx context.Context, spec shared.Specification[*AuthCode]) ([]*AuthCode, error)
	Search(ctx context.Context, query string) ([]*AuthCode, error)
}

// Repos is the repository set bound to one Unit of Work for user operations.
// Users drain before Files.
type Repos struct {
	Users Repository
	Files file.Repository
}

// AuthCodeRepos is the repository set for authentication code operations.
type AuthCodeRepos struct {
	AuthCodes AuthCodeRepository
}
