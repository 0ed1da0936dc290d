package user

import (
	"context"
	"strings"

	"recordhub/domain/shared"
)

type ByEmailSpecification struct {
	Email string
}

func (spec ByEmailSpecification) IsSatisfiedBy(ctx context.Context, entity *User) bool {
	return entity.Email().Value() == strings.ToLower(strings.TrimSpace(spec.Email))
}

type EmailContainsSpecification struct {
	Query string
}

func (spec EmailContainsSpecification) IsSatisfiedBy(ctx context.Context, entity *User) bool {
	return strings.Contains(entity.Email().Value(), strings.ToLower(spec.Query))
}

type ByStatusSpecification struct {
	Status Status
}

func (spec ByStatusSpecification) IsSatisfiedBy(ctx context.Context, entity *User) bool {
	return entity.Status() == spec.Status
}

type ByRoleSpecification struct {
	Role Role
}

func (spec ByRoleSpecification) IsSatisfiedBy(ctx context.Context, entity *User) bool {
	return entity.Role() == spec.Role
}

func NewByEmailSpecification(email string) shared.Specification[*User] {
	return ByEmailSpecification{Email: email}
}

func NewByStatusSpecification(status Status) shared.Specification[*User] {
	return ByStatusSpecification{Status: status}
}

func NewByRoleSpecification(role Role) shared.Specification[*User] {
	return ByRoleSpecification{Role: role}
}

// Filter builds the list filter used by GetAll; empty fields are ignored.
func Filter(status Status, role Role) shared.Specification[*User] {
	var specs []shared.Specification[*User]
	if status != "" {
		specs = append(specs, NewByStatusSpecification(status))
	}
	if role != "" {
		specs = append(specs, NewByRoleSpecification(role))
	}
	return shared.And(specs...)
}

// ============================================================================
// 验证码规格
// ============================================================================

type AuthCodeByEmailSpecification struct {
	Email string
}

func (spec AuthCodeByEmailSpecification) IsSatisfiedBy(ctx context.Context, entity *AuthCode) bool {
	return entity.Email().Value() == strings.ToLower(strings.TrimSpace(spec.Email))
}

type AuthCodeByStatusSpecification struct {
	Status AuthCodeStatus
}

func (spec AuthCodeByStatusSpecification) IsSatisfiedBy(ctx context.Context, entity *AuthCode) bool {
	return entity.Status() == spec.Status
}

type AuthCodeEmailContainsSpecification struct {
	Query string
}

func (spec AuthCodeEmailContainsSpecification) IsSatisfiedBy(ctx context.Context, entity *AuthCode) bool {
	return strings.Contains(entity.Email().Value(), strings.ToLower(spec.Query))
}
