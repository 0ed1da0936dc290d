package cmd

import (
	"context"
	"fmt"

	fileapp "recordhub/application/file"
	userapp "recordhub/application/user"
	"recordhub/config"
	"recordhub/domain/shared"
	"recordhub/infrastructure/messaging"
	"recordhub/infrastructure/persistence/memory"
	"recordhub/infrastructure/persistence/relational"
	"recordhub/infrastructure/persistence/retry"
	"recordhub/pkg/hashing"
	"recordhub/pkg/logger"
	"recordhub/pkg/telemetry"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const instrumentationName = "recordhub"

// AppBuilder builds an App with customizable components
type AppBuilder struct {
	cfg        *config.Config
	log        *zap.Logger
	mailer     messaging.Mailer
	queue      messaging.ListPusher
	dispatcher shared.EventDispatcher
	observers  []shared.DispatchObserver
}

// NewBuilder creates a new AppBuilder
func NewBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) WithLogger(l *zap.Logger) *AppBuilder {
	b.log = l
	return b
}

// WithMailer replaces the SMTP mailer used by mail routes
func (b *AppBuilder) WithMailer(m messaging.Mailer) *AppBuilder {
	b.mailer = m
	return b
}

// WithQueue replaces the redis client used by queue routes
func (b *AppBuilder) WithQueue(q messaging.ListPusher) *AppBuilder {
	b.queue = q
	return b
}

// WithDispatcher bypasses the configured event routes
func (b *AppBuilder) WithDispatcher(d shared.EventDispatcher) *AppBuilder {
	b.dispatcher = d
	return b
}

// WithObserver adds an observer next to the dispatch monitor
func (b *AppBuilder) WithObserver(o shared.DispatchObserver) *AppBuilder {
	b.observers = append(b.observers, o)
	return b
}

// Build 连接存储、构建事件路由并组装应用服务
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	log := b.log
	if log == nil {
		log = logger.Get()
	}
	cfg := b.cfg
	app := &App{config: cfg, log: log}

	opener, db, err := b.openStore(ctx, log)
	if err != nil {
		return nil, err
	}
	app.db = db
	if cfg.Telemetry.Enabled {
		opener = telemetry.NewTracingOpener(opener, cfg.Database.Driver, otel.GetTracerProvider())
	}

	dispatcher := b.dispatcher
	if dispatcher == nil {
		router, err := b.buildRouter(ctx, app, log)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.router = router
		dispatcher = router
	}

	monitorOpts := []messaging.MonitorOption{messaging.WithMeter(otel.Meter(instrumentationName))}
	if db != nil {
		monitorOpts = append(monitorOpts, messaging.WithFailureRecorder(relational.NewDispatchFailureRepository(db)))
	}
	observer := append(shared.ObserverChain{messaging.NewDispatchMonitor(log, monitorOpts...)}, b.observers...)
	factoryOpts := []shared.FactoryOption{shared.WithDispatchObserver(observer)}

	retryCfg := retry.FromAppConfig(cfg)
	retrier := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return retry.ExecuteWithRetry(ctx, retryCfg, fn)
	}
	hasher := hashing.NewBcrypt(0)
	prefixes := fileapp.URLPrefixes(cfg.Files.URLPrefixes)

	if db == nil {
		fc := memory.FactoryConfig{Opener: opener, Dispatcher: dispatcher, QueueCapacity: cfg.Events.QueueCapacity, Options: factoryOpts}
		app.Users = userapp.NewApplicationService(memory.NewUserFactory(fc), hasher,
			userapp.WithRetrier(retrier), userapp.WithLogger(log), userapp.WithURLPrefixes(prefixes))
		app.AuthCodes = userapp.NewAuthCodeService(memory.NewAuthCodeFactory(fc),
			userapp.WithRetrier(retrier), userapp.WithLogger(log), userapp.WithAuthCodeTTL(cfg.AuthCode.TTL))
		app.Files = fileapp.NewApplicationService(memory.NewFileFactory(fc),
			fileapp.WithRetrier(retrier), fileapp.WithLogger(log), fileapp.WithURLPrefixes(prefixes))
	} else {
		fc := relational.FactoryConfig{Opener: opener, Dispatcher: dispatcher, QueueCapacity: cfg.Events.QueueCapacity, Options: factoryOpts}
		app.Users = userapp.NewApplicationService(relational.NewUserFactory(fc), hasher,
			userapp.WithRetrier(retrier), userapp.WithLogger(log), userapp.WithURLPrefixes(prefixes))
		app.AuthCodes = userapp.NewAuthCodeService(relational.NewAuthCodeFactory(fc),
			userapp.WithRetrier(retrier), userapp.WithLogger(log), userapp.WithAuthCodeTTL(cfg.AuthCode.TTL))
		app.Files = fileapp.NewApplicationService(relational.NewFileFactory(fc),
			fileapp.WithRetrier(retrier), fileapp.WithLogger(log), fileapp.WithURLPrefixes(prefixes))
	}

	log.Info("Application built",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("tracing", cfg.Telemetry.Enabled),
		zap.Bool("mail", cfg.Mail.Enabled),
		zap.Bool("queue", cfg.Redis.Enabled),
	)
	return app, nil
}

// openStore db 为 nil 表示内存存储
func (b *AppBuilder) openStore(ctx context.Context, log *zap.Logger) (shared.SessionOpener, *gorm.DB, error) {
	dbCfg := b.cfg.Database
	if dbCfg.Driver == "memory" {
		log.Info("Using in-memory persistence")
		return memory.NewStore(), nil, nil
	}

	db, err := relational.WaitForDatabase(ctx, relational.FromAppConfig(dbCfg), dbCfg.Startup.MaxAttempts, dbCfg.Startup.Interval, log)
	if err != nil {
		return nil, nil, err
	}
	if dbCfg.AutoMigrate {
		if err := relational.AutoMigrate(db); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("Database migrated")
	}
	return relational.NewStore(db), db, nil
}

func (b *AppBuilder) buildRouter(ctx context.Context, app *App, log *zap.Logger) (*shared.EventRouter, error) {
	cfg := b.cfg
	deps := messaging.SenderDeps{Log: log}

	if cfg.Mail.Enabled {
		mailer := b.mailer
		if mailer == nil {
			mailer = messaging.NewSMTPMailer(cfg.Mail)
		}
		deps.Mail = messaging.NewMailSender(mailer, cfg.Mail.Rate, cfg.Mail.Burst, shared.EventCreated, log)
	}
	if cfg.Redis.Enabled {
		deps.Queue = b.queue
		if deps.Queue == nil {
			client, err := messaging.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				return nil, err
			}
			app.redis = client
			deps.Queue = client
		}
	}

	router, err := messaging.BuildRouter(cfg.Events, deps)
	if err != nil {
		return nil, fmt.Errorf("build event routes: %w", err)
	}
	return router, nil
}
