/*
Package file 文件用例编排

应用服务只负责编排：校验输入、在 Unit of Work 内调用仓储、把领域错误映射为 AppError。
事件由 Unit of Work 在提交成功后发送，应用服务从不直接发送。
*/
package file

import (
	"context"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	apperrors "recordhub/pkg/errors"
	"recordhub/pkg/logger"

	"go.uber.org/zap"
)

// Retrier reruns fn on retryable failures.
type Retrier func(ctx context.Context, fn func(ctx context.Context) error) error

func noRetry(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type ApplicationService struct {
	files    *shared.Factory[file.Repos]
	prefixes URLPrefixes
	retry    Retrier
	log      *zap.Logger
}

type Option func(*ApplicationService)

func WithRetrier(r Retrier) Option {
	return func(s *ApplicationService) {
		if r != nil {
			s.retry = r
		}
	}
}

func WithURLPrefixes(p URLPrefixes) Option {
	return func(s *ApplicationService) {
		if len(p) > 0 {
			s.prefixes = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *ApplicationService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewApplicationService(files *shared.Factory[file.Repos], opts ...Option) *ApplicationService {
	s := &ApplicationService{
		files:    files,
		prefixes: DefaultURLPrefixes,
		retry:    noRetry,
		log:      logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("file")
	return s
}

// Create 保存文件元数据，URL 由类别前缀和存储名组成
func (s *ApplicationService) Create(ctx context.Context, req CreateFileRequest) (*FileResponse, error) {
	f, err := file.NewFile(req.Category, req.Name, req.Extension, "")
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	f.SetURL(s.prefixes.URLFor(f))

	_, err = shared.WithUnitOfWork(ctx, s.files, func(ctx context.Context, _ *shared.UnitOfWork, r file.Repos) (struct{}, error) {
		return struct{}{}, r.Files.Add(ctx, f)
	})
	if err != nil {
		logger.WithRequestIDFrom(s.log, ctx).Warn("Create file failed", zap.String("name", req.Name), zap.Error(err))
		return nil, apperrors.FromDomainError(err)
	}
	return toFileResponse(f), nil
}

// Retrieve 已删除的文件按不存在处理
func (s *ApplicationService) Retrieve(ctx context.Context, id string) (*FileResponse, error) {
	f, err := shared.WithUnitOfWork(ctx, s.files, func(ctx context.Context, _ *shared.UnitOfWork, r file.Repos) (*file.File, error) {
		f, err := r.Files.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if f.IsDeleted() {
			return nil, file.NewFileNotFoundError(id)
		}
		return f, nil
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toFileResponse(f), nil
}

func (s *ApplicationService) List(ctx context.Context, req ListFilesRequest) ([]*FileResponse, error) {
	var category file.Category
	if req.Category != "" {
		c, err := file.ParseCategory(req.Category)
		if err != nil {
			return nil, apperrors.FromDomainError(err)
		}
		category = c
	}
	var deleted *bool
	if !req.IncludeDeleted {
		no := false
		deleted = &no
	}

	files, err := shared.WithUnitOfWork(ctx, s.files, func(ctx context.Context, _ *shared.UnitOfWork, r file.Repos) ([]*file.File, error) {
		return r.Files.GetAll(ctx, file.Filter(category, req.Extension, deleted))
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toFileResponses(files), nil
}

// Delete 软删除，提交后发送 updated 事件
func (s *ApplicationService) Delete(ctx context.Context, id string) (*FileResponse, error) {
	var f *file.File
	err := s.retry(ctx, func(ctx context.Context) error {
		var err error
		f, err = shared.WithUnitOfWork(ctx, s.files, func(ctx context.Context, _ *shared.UnitOfWork, r file.Repos) (*file.File, error) {
			f, err := r.Files.GetForUpdate(ctx, id)
			if err != nil {
				return nil, err
			}
			if err := f.MarkDeleted(); err != nil {
				return nil, err
			}
			return f, nil
		})
		return err
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	logger.WithRequestIDFrom(s.log, ctx).Info("File deleted", zap.String("file_id", id))
	return toFileResponse(f), nil
}

// Search 按文件名模糊匹配，不含已删除文件
func (s *ApplicationService) Search(ctx context.Context, query string) ([]*FileResponse, error) {
	files, err := shared.WithUnitOfWork(ctx, s.files, func(ctx context.Context, _ *shared.UnitOfWork, r file.Repos) ([]*file.File, error) {
		found, err := r.Files.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		live := found[:0]
		for _, f := range found {
			if !f.IsDeleted() {
				live = append(live, f)
			}
		}
		return live, nil
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toFileResponses(files), nil
}
