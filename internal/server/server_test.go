package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potensiadev/reconciler/internal/model"
	"github.com/potensiadev/reconciler/internal/store"
)

type fakeStore struct {
	mu   sync.Mutex
	runs map[string]*model.Run
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: make(map[string]*model.Run)}
}

func (s *fakeStore) CreateRun(ctx context.Context, documentID string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := &model.Run{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Status:     model.RunStatusQueued,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *fakeStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return eris.Errorf("run not found: %s", runID)
	}
	run.Status = status
	return nil
}

func (s *fakeStore) UpdateRunResult(ctx context.Context, runID string, result *model.ReconcileResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return eris.Errorf("run not found: %s", runID)
	}
	run.Result = result
	return nil
}

func (s *fakeStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	copied := *run
	return &copied, nil
}

func (s *fakeStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Run
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.DocumentID != "" && run.DocumentID != filter.DocumentID {
			continue
		}
		out = append(out, *run)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) Migrate(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                      { return nil }

// fakeReconciler marks the run complete and signals done.
type fakeReconciler struct {
	store *fakeStore
	done  chan struct{}
}

func (f *fakeReconciler) Execute(ctx context.Context, run *model.Run, sourceText string) (*model.ReconcileResult, error) {
	result := &model.ReconcileResult{
		Record:            map[string]any{"name": "김철수"},
		OverallConfidence: 0.9,
		Success:           true,
	}
	if err := f.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		return nil, err
	}
	if err := f.store.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete); err != nil {
		return nil, err
	}
	close(f.done)
	return result, nil
}

func newTestServer(t *testing.T) (*Server, *fakeStore, *fakeReconciler) {
	t.Helper()
	st := newFakeStore()
	rec := &fakeReconciler{store: st, done: make(chan struct{})}
	return New(st, rec), st, rec
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestServer_Reconcile_Accepted(t *testing.T) {
	srv, st, rec := newTestServer(t)

	body, err := json.Marshal(map[string]string{
		"document_id": "doc-001",
		"source_text": "이름: 김철수\n전화: 010-1234-5678",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/reconcile", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["run_id"])
	assert.Equal(t, "doc-001", resp["document_id"])
	assert.Equal(t, "queued", resp["status"])

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciliation did not finish")
	}

	run, err := st.GetRun(context.Background(), resp["run_id"])
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, "김철수", run.Result.Record["name"])
}

func TestServer_Reconcile_MissingDocumentID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/reconcile",
		bytes.NewReader([]byte(`{"source_text":"some text"}`)))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "document_id")
}

func TestServer_Reconcile_MissingSourceText(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/reconcile",
		bytes.NewReader([]byte(`{"document_id":"doc-001","source_text":"  "}`)))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "source_text")
}

func TestServer_Reconcile_BadBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/reconcile",
		bytes.NewReader([]byte(`not json`)))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_GetRun(t *testing.T) {
	srv, st, _ := newTestServer(t)

	run, err := st.CreateRun(context.Background(), "doc-002")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "doc-002", got.DocumentID)
}

func TestServer_GetRun_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/nonexistent", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_ListRuns_FilterByDocument(t *testing.T) {
	srv, st, _ := newTestServer(t)

	_, err := st.CreateRun(context.Background(), "doc-a")
	require.NoError(t, err)
	_, err = st.CreateRun(context.Background(), "doc-b")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/runs?document_id=doc-a", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "doc-a", resp.Runs[0].DocumentID)
}

func TestServer_ListRuns_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"runs":[]}`, rr.Body.String())
}

func TestServer_ListRuns_InvalidLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs?limit=abc", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_CORSHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/reconcile", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
