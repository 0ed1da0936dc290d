package relational

import (
	"context"

	"recordhub/domain/shared"
	"recordhub/domain/user"
	"recordhub/infrastructure/persistence/relational/po"
	"recordhub/infrastructure/persistence/specification"
)

type AuthCodeRepository struct {
	*repository[*user.AuthCode, po.AuthCodePO, *po.AuthCodePO]
}

func NewAuthCodeRepository(session *Session, capacity int) *AuthCodeRepository {
	return &AuthCodeRepository{newRepository[*user.AuthCode, po.AuthCodePO, *po.AuthCodePO](
		session, user.AuthCodeEntityName, capacity, po.FromAuthCodeDomain, specification.AuthCodes, user.NewAuthCodeNotFoundError,
	)}
}

func (r *AuthCodeRepository) Add(ctx context.Context, a *user.AuthCode) error {
	return r.add(ctx, a)
}

func (r *AuthCodeRepository) Get(ctx context.Context, id string) (*user.AuthCode, error) {
	return r.get(ctx, id)
}

// GetByEmailAndCode 同一邮箱可能有多条相同的码，取最新一条
func (r *AuthCodeRepository) GetByEmailAndCode(ctx context.Context, email, code string) (*user.AuthCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := email + "/" + code
	e, err := user.NewEmail(email)
	if err != nil {
		return nil, user.NewAuthCodeNotFoundError(key)
	}
	var row po.AuthCodePO
	result := r.session.DB(ctx).
		Where("email = ? AND code = ?", e.Value(), code).
		Order("created_at DESC").
		Limit(1).
		Find(&row)
	if result.Error != nil {
		return nil, shared.NewPersistenceError(user.AuthCodeEntityName, "read", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, user.NewAuthCodeNotFoundError(key)
	}
	return r.remember(row.ToDomain()), nil
}

func (r *AuthCodeRepository) GetForUpdate(ctx context.Context, id string) (*user.AuthCode, error) {
	a, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.forUpdate(a)
}

func (r *AuthCodeRepository) GetAll(ctx context.Context, spec shared.Specification[*user.AuthCode]) ([]*user.AuthCode, error) {
	return r.find(ctx, spec)
}

func (r *AuthCodeRepository) Search(ctx context.Context, query string) ([]*user.AuthCode, error) {
	return r.find(ctx, user.AuthCodeEmailContainsSpecification{Query: query})
}

var (
	_ user.AuthCodeRepository = (*AuthCodeRepository)(nil)
	_ shared.EventSource      = (*AuthCodeRepository)(nil)
)
