package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/maintrack/maintrack/internal/app"
	"github.com/maintrack/maintrack/internal/platform/cache"
	"github.com/maintrack/maintrack/internal/platform/db"
)

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "maintrackctl",
		Short:         "Administer the maintrack permission catalog, roles and jobs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newSyncRoleCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newJobsCmd())

	return cmd
}

// env is the runtime opened by commands that touch the stores.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func openEnv(ctx context.Context, withRedis bool) (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	e := &env{cfg: cfg, logger: app.NewLogger(cfg)}
	e.pool, err = db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if withRedis {
		e.redis, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			e.pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	return e, nil
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

func (e *env) services() (*app.Services, error) {
	client := e.redis
	if client == nil {
		// Services only touch Redis through the session store, which these commands never use.
		client = redis.NewClient(&redis.Options{Addr: e.cfg.RedisAddr})
		e.redis = client
	}
	return app.NewServices(e.cfg, e.pool, client, nil, e.logger)
}
