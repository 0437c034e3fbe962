package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"rosterrecon/internal/bootstrap/config"
	"rosterrecon/internal/bootstrap/database"
	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
	lockinfra "rosterrecon/internal/infrastructure/lock"
	sqliterepo "rosterrecon/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "rosterrecon/internal/infrastructure/persistence/sqlite/uow"
	reingestinfra "rosterrecon/internal/infrastructure/reingest"
	"rosterrecon/internal/ports"
	"rosterrecon/internal/usecase/orphan"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewOrphanRepository,
			fx.As(new(ports.OrphanRepository)),
		),
	),
	fx.Provide(sqliterepo.NewRosterRepository),
	fx.Provide(
		func(r *sqliterepo.RosterRepository) ports.RosterHistoryRepository { return r },
		func(r *sqliterepo.RosterRepository) ports.RosterDirectory { return r },
	),
	fx.Provide(provideUnitOfWork),
	fx.Provide(provideReingester),
	fx.Provide(provideResolveLocker),
	fx.Provide(provideServiceOptions),
	fx.Provide(orphan.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideUnitOfWork(db *gorm.DB, cfg config.Config) (ports.UnitOfWork, error) {
	uow, err := sqliteuow.NewUnitOfWorkWithIsolation(db, cfg.Database.Isolation)
	if err != nil {
		return nil, errs.Wrap(err, "configure unit of work")
	}
	return uow, nil
}

func provideReingester(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.Reingester, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))
	rc := cfg.Reingest

	switch strings.ToLower(rc.Transport) {
	case "http":
		client, err := reingestinfra.NewHTTPClient(rc.URL, rc.Timeout)
		if err != nil {
			return nil, err
		}
		logging.Info(logCtx, "reingest transport configured", slog.String("transport", "http"), slog.String("url", rc.URL))
		return client, nil
	case "nats":
		conn, err := nats.Connect(rc.NATSURL, nats.Name(cfg.App.Name))
		if err != nil {
			return nil, errs.Wrap(err, "connect nats")
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return conn.Drain()
			},
		})
		client, err := reingestinfra.NewNATSClient(conn, rc.Subject, rc.Timeout)
		if err != nil {
			return nil, err
		}
		logging.Info(logCtx, "reingest transport configured", slog.String("transport", "nats"), slog.String("subject", rc.Subject))
		return client, nil
	default:
		logging.Warn(logCtx, "reingest transport disabled")
		return reingestinfra.Disabled{}, nil
	}
}

func provideResolveLocker(lc fx.Lifecycle, ctx context.Context, cfg config.Config) ports.ResolveLocker {
	if strings.TrimSpace(cfg.Redis.Address) == "" {
		return lockinfra.NoopLocker{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
		"redis resolve lock configured",
		slog.String("addr", cfg.Redis.Address),
		slog.Duration("ttl", cfg.Redis.LockTTL),
	)
	return lockinfra.NewRedisLocker(client, cfg.Redis.LockTTL)
}

func provideServiceOptions(cfg config.Config) orphan.Options {
	return orphan.Options{
		PhoneRegion: cfg.Intake.PhoneRegion,
		RetryAfter:  cfg.Reingest.RetryAfter,
	}
}
