/*
Domain Service

Domain services handle business logic that doesn't fit well in single entities.
Core principle: Domain service only reads, does not write
*/
package user

import (
	"context"
	"errors"

	"recordhub/domain/file"
	"recordhub/domain/shared"
)

// PasswordHasher hides the hashing algorithm from the domain.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hashed, plain string) error
}

// DomainService User domain service - handles user-related business rules
type DomainService struct {
	users Repository
	files file.Repository
}

// NewDomainService files may be nil when resume checks are not needed.
func NewDomainService(users Repository, files file.Repository) *DomainService {
	return &DomainService{users: users, files: files}
}

// EnsureEmailAvailable fails with a conflict error when email is taken.
func (s *DomainService) EnsureEmailAvailable(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return NewEmailAlreadyExistsError(email)
	case errors.Is(err, shared.ErrNotFound):
		return nil
	default:
		return err
	}
}

// EnsureResumeUsable checks that fileID points at a live resume file.
func (s *DomainService) EnsureResumeUsable(ctx context.Context, fileID string) error {
	if fileID == "" || s.files == nil {
		return nil
	}
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if f.IsDeleted() {
		return file.NewFileNotFoundError(fileID)
	}
	if f.Category() != file.CategoryResume {
		return newValidationError(EntityName, "resume_file_id", file.ErrUnsupportedCategory, "file is not a resume")
	}
	return nil
}

// Authenticate verifies the password of an active user.
func (s *DomainService) Authenticate(ctx context.Context, hasher PasswordHasher, email, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, NewInvalidCredentialsError()
		}
		return nil, err
	}
	if err := hasher.Compare(u.HashedPassword(), password); err != nil {
		return nil, NewInvalidCredentialsError()
	}
	if !u.CanSignIn() {
		return nil, NewUserNotActiveError(u.Email().Value())
	}
	return u, nil
}
