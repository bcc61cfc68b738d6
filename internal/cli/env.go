// Package cli implements the facilityctl commands.
package cli

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/config"
	"github.com/facilityops/facility-service/internal/persistence"
)

var errNoDatabase = errors.New("POSTGRES_DSN is not set; this command needs the database")

// environment is what most commands need: config, a quiet logger and a pool.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func openEnvironment(ctx context.Context, needDatabase bool) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	env := &environment{cfg: cfg, logger: logger}
	if !needDatabase {
		return env, nil
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	if !pg.Enabled() {
		return nil, errNoDatabase
	}
	env.pg = pg
	return env, nil
}

func (e *environment) Close() {
	e.pg.Close()
}
