/*
Package user 用户与验证码用例

每个用例在自己的 Unit of Work 中执行；提交成功后由 Unit of Work 发送领域事件。
领域错误在这里统一映射为 AppError，调用方只依赖错误码。
*/
package user

import (
	"context"
	"errors"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
	apperrors "recordhub/pkg/errors"
	"recordhub/pkg/logger"

	"go.uber.org/zap"
)

// ApplicationService User application service - coordinates user-related business processes
type ApplicationService struct {
	users  *shared.Factory[user.Repos]
	hasher user.PasswordHasher
	opts   options
	log    *zap.Logger
}

func NewApplicationService(users *shared.Factory[user.Repos], hasher user.PasswordHasher, opts ...Option) *ApplicationService {
	o := buildOptions(opts)
	base := o.log
	if base == nil {
		base = logger.Get()
	}
	return &ApplicationService{
		users:  users,
		hasher: hasher,
		opts:   o,
		log:    base.Named("user"),
	}
}

// ValidateCreate 创建前的只读校验：邮箱和生日格式、邮箱未被占用、简历可用
func (s *ApplicationService) ValidateCreate(ctx context.Context, req CreateUserRequest) error {
	if _, err := user.NewEmail(req.Email); err != nil {
		return apperrors.FromDomainError(err)
	}
	if _, err := user.NewDateOfBirth(req.DateOfBirth); err != nil {
		return apperrors.FromDomainError(err)
	}
	_, err := shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) (struct{}, error) {
		ds := user.NewDomainService(r.Users, r.Files)
		if err := ds.EnsureEmailAvailable(ctx, req.Email); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, ds.EnsureResumeUsable(ctx, req.ResumeFileID)
	})
	if err != nil {
		return apperrors.FromDomainError(err)
	}
	return nil
}

// Create 创建用户；引用的简历文件必须存在且未删除
func (s *ApplicationService) Create(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	u, err := s.newUser(req)
	if err != nil {
		return nil, err
	}

	u, err = shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) (*user.User, error) {
		ds := user.NewDomainService(r.Users, r.Files)
		if err := ds.EnsureEmailAvailable(ctx, req.Email); err != nil {
			return nil, err
		}
		if err := ds.EnsureResumeUsable(ctx, req.ResumeFileID); err != nil {
			return nil, err
		}
		return u, r.Users.Add(ctx, u)
	})
	if err != nil {
		s.logFailure(ctx, "Create user failed", req.Email, err)
		return nil, apperrors.FromDomainError(err)
	}

	logger.WithRequestIDFrom(s.log, ctx).Info("User created", zap.String("user_id", u.ID()))
	return toUserResponse(u), nil
}

// Register 用户和简历文件在同一个 Unit of Work 中写入，事件顺序为 user 先于 file
func (s *ApplicationService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	var resume *file.File
	if req.Resume != nil {
		f, err := file.NewFile(string(file.CategoryResume), req.Resume.Name, req.Resume.Extension, "")
		if err != nil {
			return nil, apperrors.FromDomainError(err)
		}
		f.SetURL(s.opts.prefixes.URLFor(f))
		resume = f
		req.ResumeFileID = f.ID()
	}

	u, err := s.newUser(req.CreateUserRequest)
	if err != nil {
		return nil, err
	}

	_, err = shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) (struct{}, error) {
		ds := user.NewDomainService(r.Users, r.Files)
		if err := ds.EnsureEmailAvailable(ctx, req.Email); err != nil {
			return struct{}{}, err
		}
		if resume != nil {
			if err := r.Files.Add(ctx, resume); err != nil {
				return struct{}{}, err
			}
		} else if err := ds.EnsureResumeUsable(ctx, req.ResumeFileID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, r.Users.Add(ctx, u)
	})
	if err != nil {
		s.logFailure(ctx, "Register user failed", req.Email, err)
		return nil, apperrors.FromDomainError(err)
	}

	resp := toUserResponse(u)
	if resume != nil {
		resp.ResumeURL = resume.URL()
	}
	logger.WithRequestIDFrom(s.log, ctx).Info("User registered",
		zap.String("user_id", u.ID()),
		zap.Bool("with_resume", resume != nil),
	)
	return resp, nil
}

// Retrieve 按邮箱读取
func (s *ApplicationService) Retrieve(ctx context.Context, email string) (*UserResponse, error) {
	resp, err := shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) (*UserResponse, error) {
		u, err := r.Users.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return withResume(ctx, r.Files, toUserResponse(u))
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return resp, nil
}

func (s *ApplicationService) List(ctx context.Context, req ListUsersRequest) ([]*UserResponse, error) {
	spec, err := listFilter(req)
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	users, err := shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) ([]*user.User, error) {
		return r.Users.GetAll(ctx, spec)
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toUserResponses(users), nil
}

// Search 邮箱包含 query 的用户
func (s *ApplicationService) Search(ctx context.Context, query string) ([]*UserResponse, error) {
	users, err := shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) ([]*user.User, error) {
		return r.Users.Search(ctx, query)
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toUserResponses(users), nil
}

// Update 修改密码、状态或简历；版本冲突时整体重试
func (s *ApplicationService) Update(ctx context.Context, email string, req UpdateUserRequest) (*UserResponse, error) {
	var hashed string
	if req.Password != nil {
		h, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeValidation, "invalid password")
		}
		hashed = h
	}

	var u *user.User
	err := s.opts.retry(ctx, func(ctx context.Context) error {
		var err error
		u, err = shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) (*user.User, error) {
			u, err := r.Users.GetByEmailForUpdate(ctx, email)
			if err != nil {
				return nil, err
			}
			if req.Password != nil {
				if err := u.ChangePassword(hashed); err != nil {
					return nil, err
				}
			}
			if req.Status != nil {
				if err := u.ChangeStatus(*req.Status); err != nil {
					return nil, err
				}
			}
			if req.ResumeFileID != nil {
				if err := user.NewDomainService(r.Users, r.Files).EnsureResumeUsable(ctx, *req.ResumeFileID); err != nil {
					return nil, err
				}
				u.AttachResume(*req.ResumeFileID)
			}
			return u, nil
		})
		return err
	})
	if err != nil {
		s.logFailure(ctx, "Update user failed", email, err)
		return nil, apperrors.FromDomainError(err)
	}
	return toUserResponse(u), nil
}

// Authenticate 校验密码；未知邮箱和错误密码返回同一个错误
func (s *ApplicationService) Authenticate(ctx context.Context, email, password string) (*UserResponse, error) {
	u, err := shared.WithUnitOfWork(ctx, s.users, func(ctx context.Context, _ *shared.UnitOfWork, r user.Repos) (*user.User, error) {
		return user.NewDomainService(r.Users, r.Files).Authenticate(ctx, s.hasher, email, password)
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toUserResponse(u), nil
}

func (s *ApplicationService) newUser(req CreateUserRequest) (*user.User, error) {
	if req.Password == "" {
		return nil, apperrors.FromDomainError(shared.NewValidationError(user.EntityName, "password", "password is required"))
	}
	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "hash password")
	}
	u, err := user.NewUser(req.params(hashed))
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return u, nil
}

func (s *ApplicationService) logFailure(ctx context.Context, msg, email string, err error) {
	l := logger.WithRequestIDFrom(s.log, ctx)
	if errors.Is(err, shared.ErrPersistence) {
		l.Error(msg, zap.String("email", email), zap.Error(err))
		return
	}
	l.Warn(msg, zap.String("email", email), zap.Error(err))
}

func listFilter(req ListUsersRequest) (shared.Specification[*user.User], error) {
	var status user.Status
	if req.Status != "" {
		s, err := user.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}
	var role user.Role
	if req.Role != "" {
		r, err := user.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	return user.Filter(status, role), nil
}

// withResume 简历被删除或不存在时不返回地址
func withResume(ctx context.Context, files file.Repository, resp *UserResponse) (*UserResponse, error) {
	if resp.ResumeFileID == "" || files == nil {
		return resp, nil
	}
	f, err := files.Get(ctx, resp.ResumeFileID)
	switch {
	case err == nil:
		if !f.IsDeleted() {
			resp.ResumeURL = f.URL()
		}
		return resp, nil
	case shared.IsNotFound(err):
		return resp, nil
	default:
		return nil, err
	}
}
