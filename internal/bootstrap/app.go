package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"rosterrecon/internal/bootstrap/config"
	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "rosterrecon/internal/infrastructure/persistence/sqlite/repository"
	"rosterrecon/internal/ports"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	models := model.All()
	logging.Info(logCtx, "start schema migration", slog.Int("tables", len(models)))

	if err := a.DB.WithContext(ctx).AutoMigrate(models...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed", slog.String("database_driver", a.Config.Database.Driver))
	return nil
}

// SeedOrg registers an org under reportingGroup together with its units so
// intake can route records to it. Existing rows are left untouched.
func (a *App) SeedOrg(ctx context.Context, name, reportingGroup string, units []string) (ports.Org, map[string]uint64, error) {
	if ctx == nil {
		return ports.Org{}, nil, errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	org, unitIDs, err := sqliterepo.NewRosterRepository(a.DB).EnsureOrg(ctx, name, reportingGroup, units)
	if err != nil {
		return ports.Org{}, nil, errs.Wrap(err, "seed org")
	}

	logging.Info(
		logCtx,
		"org seeded",
		slog.Uint64("org_id", org.ID),
		slog.String("reporting_group", org.ReportingGroup),
		slog.Int("units", len(unitIDs)),
	)
	return org, unitIDs, nil
}
