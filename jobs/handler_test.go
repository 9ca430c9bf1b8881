package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	infos map[string]*asynq.QueueInfo
	err   error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

type fakeEnqueuer struct {
	payloads []BalanceIntegrityPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueBalanceIntegrity(_ context.Context, payload BalanceIntegrityPayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueMaintenance, Type: TaskBalanceIntegrity}, nil
}

func jobRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestJobsHealth(t *testing.T) {
	inspector := fakeInspector{infos: map[string]*asynq.QueueInfo{
		QueueMaintenance: {Queue: QueueMaintenance, Pending: 2, Active: 1},
	}}
	rec := httptest.NewRecorder()
	jobRouter(NewHandler(inspector, nil, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out []queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, []queueHealth{
		{Queue: QueueDefault},
		{Queue: QueueMaintenance, Pending: 2, Active: 1},
	}, out)
}

func TestJobsHealthRedisDown(t *testing.T) {
	rec := httptest.NewRecorder()
	h := NewHandler(fakeInspector{err: errors.New("dial tcp: connection refused")}, nil, nil)
	jobRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnqueueIntegrity(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := jobRouter(NewHandler(nil, enqueuer, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/integrity", strings.NewReader(`{"repair":true}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp integrityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, integrityResponse{TaskID: "task-1", Queue: QueueMaintenance, Scope: ScopeAll, Repair: true}, resp)

	customer := uuid.NewString()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/integrity", strings.NewReader(`{"scope":"`+customer+`"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []BalanceIntegrityPayload{{Scope: ScopeAll, Repair: true}, {Scope: customer}}, enqueuer.payloads)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/integrity", strings.NewReader(`{"scope":"everyone"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueIntegrityDuplicate(t *testing.T) {
	router := jobRouter(NewHandler(nil, &fakeEnqueuer{err: asynq.ErrDuplicateTask}, nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/integrity", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	router = jobRouter(NewHandler(nil, nil, nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/integrity", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
