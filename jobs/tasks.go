package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRoleSync re-grants every catalog permission to a role.
	TaskRoleSync = "rbac:role_sync"
)

// RoleSyncPayload names the role to sync.
type RoleSyncPayload struct {
	Role string `json:"role"`
}

// NewRoleSyncTask constructs an Asynq task.
func NewRoleSyncTask(role string) (*asynq.Task, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, errors.New("jobs: role sync requires a role name")
	}
	data, err := json.Marshal(RoleSyncPayload{Role: role})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleSync, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
