package relational

import (
	"context"

	"recordhub/domain/shared"
	"recordhub/domain/user"
	"recordhub/infrastructure/persistence/relational/po"
	"recordhub/infrastructure/persistence/specification"
)

type UserRepository struct {
	*repository[*user.User, po.UserPO, *po.UserPO]
}

func NewUserRepository(session *Session, capacity int) *UserRepository {
	return &UserRepository{newRepository[*user.User, po.UserPO, *po.UserPO](
		session, user.EntityName, capacity, po.FromUserDomain, specification.Users, user.NewUserNotFoundError,
	)}
}

func (r *UserRepository) Add(ctx context.Context, u *user.User) error {
	return r.add(ctx, u)
}

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	return r.get(ctx, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, user.NewByEmailSpecification(email), email)
}

func (r *UserRepository) GetForUpdate(ctx context.Context, id string) (*user.User, error) {
	u, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.forUpdate(u)
}

func (r *UserRepository) GetByEmailForUpdate(ctx context.Context, email string) (*user.User, error) {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return r.forUpdate(u)
}

func (r *UserRepository) GetAll(ctx context.Context, spec shared.Specification[*user.User]) ([]*user.User, error) {
	return r.find(ctx, spec)
}

func (r *UserRepository) Search(ctx context.Context, query string) ([]*user.User, error) {
	return r.find(ctx, user.EmailContainsSpecification{Query: query})
}

var (
	_ user.Repository    = (*UserRepository)(nil)
	_ shared.EventSource = (*UserRepository)(nil)
)
