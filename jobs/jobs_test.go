package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/maintrack/maintrack/internal/jobs"
	"github.com/maintrack/maintrack/internal/rbac"
)

type fakeSyncer struct {
	calls []string
	err   error
}

func (f *fakeSyncer) SyncRoleWithCatalog(ctx context.Context, nom string) (rbac.Role, error) {
	f.calls = append(f.calls, nom)
	if f.err != nil {
		return rbac.Role{}, f.err
	}
	return rbac.Role{ID: 1, Nom: nom, Permissions: []rbac.Permission{{ID: 1}, {ID: 2}}}, nil
}

func TestRoleSyncJobHandle(t *testing.T) {
	syncer := &fakeSyncer{}
	job := NewRoleSyncJob(syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewRoleSyncTask(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, TaskRoleSync, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []string{"Admin"}, syncer.calls)
}

func TestRoleSyncJobMissingRoleSkipsRetry(t *testing.T) {
	syncer := &fakeSyncer{err: fmt.Errorf("rbac: sync role %q: %w", "Admin", rbac.ErrNotFound)}
	job := NewRoleSyncJob(syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewRoleSyncTask("Admin")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
}

func TestRoleSyncJobStoreErrorRetries(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("connection reset")}
	job := NewRoleSyncJob(syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewRoleSyncTask("Admin")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRoleSyncJobBadPayload(t *testing.T) {
	job := NewRoleSyncJob(&fakeSyncer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskRoleSync, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	_, err = NewRoleSyncTask("  ")
	assert.Error(t, err)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientEnqueueRoleSync(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)

	info, err := client.EnqueueRoleSync(context.Background(), "Admin")
	require.NoError(t, err)
	assert.Equal(t, TaskRoleSync, info.Type)
	require.Len(t, enq.tasks, 1)

	var payload RoleSyncPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "Admin", payload.Role)
	require.NoError(t, client.Close())
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHandlerHealth(t *testing.T) {
	cases := []struct {
		name   string
		insp   QueueInspector
		status int
		body   string
	}{
		{"no inspector", nil, http.StatusOK, `{"queue":"default","pending":0,"active":0,"failed":0}`},
		{"queue info", fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1}}, http.StatusOK, `{"queue":"default","pending":3,"active":1,"failed":0}`},
		{"queue missing", fakeInspector{err: asynq.ErrQueueNotFound}, http.StatusOK, `{"queue":"default","pending":0,"active":0,"failed":0}`},
		{"redis down", fakeInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, `{"message":"Service Unavailable"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.insp, nil).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.status, rr.Code)
			assert.JSONEq(t, tc.body, rr.Body.String())
		})
	}
}
