package cmd

import (
	"context"
	"errors"

	fileapp "recordhub/application/file"
	userapp "recordhub/application/user"
	"recordhub/config"
	"recordhub/domain/shared"
	"recordhub/domain/user"
	apperrors "recordhub/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 组装好的应用：三个用例服务加上它们共享的存储和事件路由
type App struct {
	Users     *userapp.ApplicationService
	AuthCodes *userapp.AuthCodeService
	Files     *fileapp.ApplicationService

	config *config.Config
	log    *zap.Logger
	db     *gorm.DB
	redis  *redis.Client
	router *shared.EventRouter
}

// DB is nil for the in-memory driver.
func (a *App) DB() *gorm.DB { return a.db }

// Router is nil when the builder was given its own dispatcher.
func (a *App) Router() *shared.EventRouter { return a.router }

// SeedSuperuser 创建第一个管理员；已存在时什么都不做
func (a *App) SeedSuperuser(ctx context.Context) error {
	su := a.config.Superuser
	if su.Password == "" {
		a.log.Warn("Superuser password not configured; skipping seed", zap.String("email", su.Email))
		return nil
	}

	_, err := a.Users.Create(ctx, userapp.CreateUserRequest{
		Email:    su.Email,
		Password: su.Password,
		Role:     string(user.RoleAdmin),
	})
	switch {
	case err == nil:
		a.log.Info("Superuser created", zap.String("email", su.Email))
		return nil
	case apperrors.Is(err, apperrors.CodeConflict):
		a.log.Info("Superuser already exists", zap.String("email", su.Email))
		return nil
	default:
		return err
	}
}

// Close releases the database pool and the redis client.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
