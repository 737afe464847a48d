package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/maintrack/maintrack/internal/jobs"
	"github.com/maintrack/maintrack/internal/rbac"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RoleSyncer is the subset of the role service the job needs.
type RoleSyncer interface {
	SyncRoleWithCatalog(ctx context.Context, nom string) (rbac.Role, error)
}

// RoleSyncJob replaces a role's grants with the whole permission catalog.
type RoleSyncJob struct {
	Roles   RoleSyncer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRoleSyncJob wires dependencies for the role sync handler.
func NewRoleSyncJob(roles RoleSyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleSyncJob {
	return &RoleSyncJob{Roles: roles, Logger: logger, Metrics: metrics}
}

// Handle processes role sync tasks. A missing role is not retried.
func (j *RoleSyncJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Roles == nil {
		return errors.New("role sync: handler not configured")
	}
	var payload RoleSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Role == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskRoleSync)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("role", payload.Role))
	role, err := j.Roles.SyncRoleWithCatalog(ctx, payload.Role)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			logger.Warn("role sync skipped, role missing")
			return errors.Join(err, asynq.SkipRetry)
		}
		logger.Error("role sync failed", slog.Any("error", err))
		return err
	}
	j.metrics().SetRoleGrants(role.Nom, len(role.Permissions))
	logger.Info("role sync completed", slog.Int("permissions", len(role.Permissions)))
	return nil
}

func (j *RoleSyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RoleSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
