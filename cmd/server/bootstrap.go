package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ftledger/internal/platform/config"
	"ftledger/internal/platform/postgres"
	"ftledger/internal/platform/redis"
	"ftledger/internal/ratelimit"
	"ftledger/internal/token/ports"
	"ftledger/internal/token/state"
	"ftledger/internal/token/store/snapshot"
	"ftledger/pkg/platform/sentinel"
)

// infra holds the optional backing services selected by configuration.
type infra struct {
	redis *redis.Client
	db    *sql.DB
	store ports.SnapshotStore
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	out := &infra{}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	out.redis = client

	switch cfg.Snapshot.Backend {
	case config.SnapshotRedis:
		out.store = snapshot.NewRedisStore(client.Client)
	case config.SnapshotPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.db = db
		pg := snapshot.NewPostgresStore(db, snapshot.WithRetain(cfg.Snapshot.Retain))
		if err := pg.EnsureSchema(ctx); err != nil {
			out.Close()
			return nil, err
		}
		out.store = pg
	}

	log.Info("snapshot backend selected", "backend", cfg.Snapshot.Backend)
	return out, nil
}

// limitStore shares the action rate limit window through Redis when it is
// configured and keeps it in process otherwise.
func (i *infra) limitStore() ratelimit.Store {
	if i.redis != nil {
		return ratelimit.NewRedisStore(i.redis.Client, nil)
	}
	return ratelimit.NewInMemoryStore(nil)
}

// Health pings whichever backing services are open.
func (i *infra) Health(ctx context.Context) error {
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (i *infra) Close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

type bootState struct {
	state    *state.State
	version  uint64
	restored bool
}

// loadState resumes from the newest snapshot when one exists and otherwise
// initializes a fresh ledger from the init payload.
func loadState(ctx context.Context, cfg config.Config, store ports.SnapshotStore, log *slog.Logger) (bootState, error) {
	if store != nil {
		snap, err := store.Load(ctx)
		switch {
		case err == nil:
			st, err := state.Restore(snap)
			if err != nil {
				return bootState{}, fmt.Errorf("restore snapshot %d: %w", snap.Version, err)
			}
			log.Info("ledger restored from snapshot",
				"version", snap.Version,
				"taken_at", snap.TakenAt,
			)
			return bootState{state: st, version: snap.Version, restored: true}, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return bootState{}, err
		}
	}

	initCfg, err := config.LoadInitConfig(cfg.InitConfigPath)
	if err != nil {
		return bootState{}, err
	}
	st, err := state.New(initCfg)
	if err != nil {
		return bootState{}, fmt.Errorf("initialize ledger: %w", err)
	}
	log.Info("ledger initialized",
		"name", initCfg.Name,
		"symbol", initCfg.Symbol,
		"admin", initCfg.Admin.String(),
		"initial_supply", initCfg.InitialSupply.String(),
	)
	return bootState{state: st}, nil
}
