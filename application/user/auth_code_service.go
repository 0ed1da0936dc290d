package user

import (
	"context"
	"errors"

	"recordhub/domain/shared"
	"recordhub/domain/user"
	apperrors "recordhub/pkg/errors"
	"recordhub/pkg/logger"

	"go.uber.org/zap"
)

// AuthCodeService 邮箱验证码的签发、作废与校验
// created 事件触发验证码邮件，由事件路由决定具体发送方式。
type AuthCodeService struct {
	codes *shared.Factory[user.AuthCodeRepos]
	opts  options
	log   *zap.Logger
}

func NewAuthCodeService(codes *shared.Factory[user.AuthCodeRepos], opts ...Option) *AuthCodeService {
	o := buildOptions(opts)
	base := o.log
	if base == nil {
		base = logger.Get()
	}
	return &AuthCodeService{codes: codes, opts: o, log: base.Named("auth_code")}
}

// Issue 签发新验证码；同一邮箱之前的验证码不受影响，校验时取最新的一条
func (s *AuthCodeService) Issue(ctx context.Context, email string) (*AuthCodeResponse, error) {
	code, err := user.NewAuthCode(email, s.opts.ttl)
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	_, err = shared.WithUnitOfWork(ctx, s.codes, func(ctx context.Context, _ *shared.UnitOfWork, r user.AuthCodeRepos) (struct{}, error) {
		return struct{}{}, r.AuthCodes.Add(ctx, code)
	})
	if err != nil {
		logger.WithRequestIDFrom(s.log, ctx).Warn("Issue auth code failed", zap.String("email", email), zap.Error(err))
		return nil, apperrors.FromDomainError(err)
	}
	logger.WithRequestIDFrom(s.log, ctx).Info("Auth code issued",
		zap.String("auth_code_id", code.ID()),
		zap.Time("expired_at", code.ExpiredAt()),
	)
	return toAuthCodeResponse(code), nil
}

func (s *AuthCodeService) Retrieve(ctx context.Context, id string) (*AuthCodeResponse, error) {
	code, err := shared.WithUnitOfWork(ctx, s.codes, func(ctx context.Context, _ *shared.UnitOfWork, r user.AuthCodeRepos) (*user.AuthCode, error) {
		return r.AuthCodes.Get(ctx, id)
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toAuthCodeResponse(code), nil
}

// RetrieveByCode 按邮箱和验证码读取最新的一条
func (s *AuthCodeService) RetrieveByCode(ctx context.Context, email, code string) (*AuthCodeResponse, error) {
	found, err := shared.WithUnitOfWork(ctx, s.codes, func(ctx context.Context, _ *shared.UnitOfWork, r user.AuthCodeRepos) (*user.AuthCode, error) {
		return r.AuthCodes.GetByEmailAndCode(ctx, email, code)
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toAuthCodeResponse(found), nil
}

// ChangeStatusByCode 按邮箱和验证码更新状态，提交后发送 updated 事件
func (s *AuthCodeService) ChangeStatusByCode(ctx context.Context, email, code, status string) (*AuthCodeResponse, error) {
	var changed *user.AuthCode
	err := s.opts.retry(ctx, func(ctx context.Context) error {
		var err error
		changed, err = shared.WithUnitOfWork(ctx, s.codes, func(ctx context.Context, _ *shared.UnitOfWork, r user.AuthCodeRepos) (*user.AuthCode, error) {
			found, err := r.AuthCodes.GetByEmailAndCode(ctx, email, code)
			if err != nil {
				return nil, err
			}
			c, err := r.AuthCodes.GetForUpdate(ctx, found.ID())
			if err != nil {
				return nil, err
			}
			return c, c.ChangeStatus(status)
		})
		return err
	})
	if err != nil {
		logger.WithRequestIDFrom(s.log, ctx).Warn("Change auth code status failed",
			zap.String("email", email),
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, apperrors.FromDomainError(err)
	}
	return toAuthCodeResponse(changed), nil
}

// Expire 作废验证码，提交后发送 updated 事件
func (s *AuthCodeService) Expire(ctx context.Context, id string) (*AuthCodeResponse, error) {
	var code *user.AuthCode
	err := s.opts.retry(ctx, func(ctx context.Context) error {
		var err error
		code, err = shared.WithUnitOfWork(ctx, s.codes, func(ctx context.Context, _ *shared.UnitOfWork, r user.AuthCodeRepos) (*user.AuthCode, error) {
			c, err := r.AuthCodes.GetForUpdate(ctx, id)
			if err != nil {
				return nil, err
			}
			c.Expire()
			return c, nil
		})
		return err
	})
	if err != nil {
		return nil, apperrors.FromDomainError(err)
	}
	return toAuthCodeResponse(code), nil
}

// Verify 校验成功后验证码立即作废，同一个 code 只能使用一次
func (s *AuthCodeService) Verify(ctx context.Context, email, code string) error {
	err := s.opts.retry(ctx, func(ctx context.Context) error {
		_, err := shared.WithUnitOfWork(ctx, s.codes, func(ctx context.Context, uow *shared.UnitOfWork, r user.AuthCodeRepos) (struct{}, error) {
			found, err := r.AuthCodes.GetByEmailAndCode(ctx, email, code)
			if err != nil {
				if shared.IsNotFound(err) {
					return struct{}{}, user.NewAuthCodeRejectedError(user.ErrInvalidAuthCode, email)
				}
				return struct{}{}, err
			}
			if err := found.Verify(code, s.opts.now()); err != nil {
				return struct{}{}, err
			}
			c, err := r.AuthCodes.GetForUpdate(ctx, found.ID())
			if err != nil {
				return struct{}{}, err
			}
			c.Expire()
			return struct{}{}, nil
		})
		return err
	})
	if err != nil {
		l := logger.WithRequestIDFrom(s.log, ctx)
		if errors.Is(err, shared.ErrUnauthorized) {
			l.Info("Auth code rejected", zap.String("email", email), zap.Error(err))
		} else {
			l.Error("Verify auth code failed", zap.String("email", email), zap.Error(err))
		}
		return apperrors.FromDomainError(err)
	}
	return nil
}
