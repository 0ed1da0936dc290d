package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
)

var userCodec = codec[*user.User, user.ReconstructionDTO]{
	entity:  user.EntityName,
	table:   func(t *tables) map[string]user.ReconstructionDTO { return t.users },
	toDTO:   (*user.User).ToDTO,
	fromDTO: user.RebuildFromDTO,
	version: func(d user.ReconstructionDTO) int { return d.Version },
	stamp: func(d user.ReconstructionDTO, v int, at time.Time) user.ReconstructionDTO {
		d.Version, d.UpdatedAt = v, at
		return d
	},
	// email 唯一
	unique: func(t *tables, d user.ReconstructionDTO) error {
		for id, other := range t.users {
			if id != d.ID && other.Email == d.Email {
				return fmt.Errorf("%w: email %s", errDuplicate, d.Email)
			}
		}
		return nil
	},
	notFound: user.NewUserNotFoundError,
}

var authCodeCodec = codec[*user.AuthCode, user.AuthCodeDTO]{
	entity:  user.AuthCodeEntityName,
	table:   func(t *tables) map[string]user.AuthCodeDTO { return t.codes },
	toDTO:   (*user.AuthCode).ToDTO,
	fromDTO: user.RebuildAuthCode,
	version: func(d user.AuthCodeDTO) int { return d.Version },
	stamp: func(d user.AuthCodeDTO, v int, at time.Time) user.AuthCodeDTO {
		d.Version, d.UpdatedAt = v, at
		return d
	},
	notFound: user.NewAuthCodeNotFoundError,
}

var fileCodec = codec[*file.File, file.ReconstructionDTO]{
	entity:  file.EntityName,
	table:   func(t *tables) map[string]file.ReconstructionDTO { return t.files },
	toDTO:   (*file.File).ToDTO,
	fromDTO: file.RebuildFromDTO,
	version: func(d file.ReconstructionDTO) int { return d.Version },
	stamp: func(d file.ReconstructionDTO, v int, at time.Time) file.ReconstructionDTO {
		d.Version, d.UpdatedAt = v, at
		return d
	},
	notFound: file.NewFileNotFoundError,
}

type UserRepository struct {
	*repository[*user.User, user.ReconstructionDTO]
}

func NewUserRepository(session *Session, capacity int) *UserRepository {
	return &UserRepository{newRepository(session, capacity, userCodec)}
}

func (r *UserRepository) Add(ctx context.Context, u *user.User) error { return r.add(ctx, u) }

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

type AuthCodeRepository struct {
	*repository[*user.AuthCode, user.AuthCodeDTO]
}

func NewAuthCodeRepository(session *Session, capacity int) *AuthCodeRepository {
	return &AuthCodeRepository{newRepository(session, capacity, authCodeCodec)}
}

func (r *AuthCodeRepository) Add(ctx context.Context, a *user.AuthCode) error { return r.add(ctx, a) }

func (r *AuthCodeRepository) Get(ctx context.Context, id string) (*user.AuthCode, error) {
	return r.get(ctx, id)
}

// GetByEmailAndCode 取最新的一条
func (r *AuthCodeRepository) GetByEmailAndCode(ctx context.Context, email, code string) (*user.AuthCode, error) {
	key := email + "/" + code
	e, err := user.NewEmail(email)
	if err != nil {
		return nil, user.NewAuthCodeNotFoundError(key)
	}
	found, err := r.find(ctx, user.AuthCodeByEmailSpecification{Email: e.Value()})
	if err != nil {
		return nil, err
	}
	matches := found[:0]
	for _, a := range found {
		if a.Code() == code {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return nil, user.NewAuthCodeNotFoundError(key)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].CreatedAt().After(matches[j].CreatedAt()) })
	return matches[0], nil
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

type FileRepository struct {
	*repository[*file.File, file.ReconstructionDTO]
}

func NewFileRepository(session *Session, capacity int) *FileRepository {
	return &FileRepository{newRepository(session, capacity, fileCodec)}
}

func (r *FileRepository) Add(ctx context.Context, f *file.File) error { return r.add(ctx, f) }

func (r *FileRepository) Get(ctx context.Context, id string) (*file.File, error) {
	return r.get(ctx, id)
}

func (r *FileRepository) GetForUpdate(ctx context.Context, id string) (*file.File, error) {
	f, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.forUpdate(f)
}

func (r *FileRepository) GetAll(ctx context.Context, spec shared.Specification[*file.File]) ([]*file.File, error) {
	return r.find(ctx, spec)
}

func (r *FileRepository) Search(ctx context.Context, query string) ([]*file.File, error) {
	return r.find(ctx, file.NameContainsSpecification{Query: query})
}

var (
	_ user.Repository         = (*UserRepository)(nil)
	_ user.AuthCodeRepository = (*AuthCodeRepository)(nil)
	_ file.Repository         = (*FileRepository)(nil)
)
