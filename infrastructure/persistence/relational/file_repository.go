package relational

import (
	"context"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/infrastructure/persistence/relational/po"
	"recordhub/infrastructure/persistence/specification"
)

type FileRepository struct {
	*repository[*file.File, po.FilePO, *po.FilePO]
}

func NewFileRepository(session *Session, capacity int) *FileRepository {
	return &FileRepository{newRepository[*file.File, po.FilePO, *po.FilePO](
		session, file.EntityName, capacity, po.FromFileDomain, specification.Files, file.NewFileNotFoundError,
	)}
}

func (r *FileRepository) Add(ctx context.Context, f *file.File) error {
	return r.add(ctx, f)
}

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
	_ file.Repository    = (*FileRepository)(nil)
	_ shared.EventSource = (*FileRepository)(nil)
)
