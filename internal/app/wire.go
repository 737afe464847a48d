package app

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/maintrack/maintrack/internal/auth"
	"github.com/maintrack/maintrack/internal/observability"
	"github.com/maintrack/maintrack/internal/rbac"
	"github.com/maintrack/maintrack/internal/shared"
	"github.com/maintrack/maintrack/internal/users"
	"github.com/maintrack/maintrack/jobs"
)

// Services bundles the domain services built on one pool and Redis client.
type Services struct {
	Catalog    *rbac.Catalog
	Roles      *rbac.Service
	Authorizer *rbac.Authorizer
	Users      *users.Service
	Auth       *auth.Service
}

// NewServices wires repositories and services. metrics may be nil.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tokens, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	audit := shared.NewAuditLogger(pool)

	rbacRepo := rbac.NewPGRepository(pool)
	var observer rbac.DecisionObserver
	if metrics != nil {
		observer = metrics
	}
	authorizer := rbac.NewAuthorizer(rbacRepo, observer)
	userService := users.NewService(users.NewPGRepository(pool), audit, logger)
	authService := auth.NewService(
		auth.NewRepository(pool),
		auth.NewSessionStore(redisClient),
		tokens,
		userService,
		authorizer,
		logger,
	)
	return &Services{
		Catalog:    rbac.NewCatalog(rbacRepo),
		Roles:      rbac.NewService(rbacRepo, audit, logger),
		Authorizer: authorizer,
		Users:      userService,
		Auth:       authService,
	}, nil
}

// Router mounts every handler on a fresh router. inspector may be nil.
func (s *Services) Router(cfg *Config, logger *slog.Logger, metrics *observability.Metrics, inspector jobs.QueueInspector) http.Handler {
	guard := rbac.Middleware{Authorizer: s.Authorizer, Logger: logger}
	return NewRouter(RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthService:  s.Auth,
		AuthHandler:  auth.NewHandler(logger, s.Auth),
		RBACHandler:  rbac.NewHandler(logger, s.Catalog, s.Roles, guard),
		UsersHandler: users.NewHandler(logger, s.Users, guard),
		JobHandler:   jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
		AccessLog:    !cfg.IsProduction(),
	})
}
