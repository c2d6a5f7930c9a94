package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"resumate/internal/api/middleware"
	"resumate/internal/auth"
	"resumate/internal/config"
	"resumate/internal/database"
	"resumate/internal/executor"
	"resumate/internal/tasks"
)

type fakeStorage struct {
	uploaded map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

type fakeEnqueuer struct {
	enqueued []*asynq.Task
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.enqueued = append(e.enqueued, task)
	return &asynq.TaskInfo{}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.Job{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(config.AuthConfig{JWTSecret: "test-secret", TokenTTLMinutes: 5})
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	return issuer
}

func newTestHandler(t *testing.T) (*JobHandler, *database.Store, *fakeStorage, *fakeEnqueuer) {
	t.Helper()
	store := database.NewStore(newTestDB(t))
	uploader := newFakeStorage()
	enqueuer := &fakeEnqueuer{}
	h := NewJobHandler(store, uploader, enqueuer, newTestIssuer(t), nil, "", nil)
	return h, store, uploader, enqueuer
}

func newTestRouter(h *JobHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationIDMiddleware())
	router.POST("/v1/jobs", h.SubmitJob)
	router.GET("/v1/jobs/:id", h.GetJob)
	router.GET("/v1/jobs/:id/result", h.GetJobResult)
	router.POST("/v1/jobs/:id/cancel", h.CancelJob)
	return router
}

func newMultipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestSubmitJobAcceptsUpload(t *testing.T) {
	h, store, uploader, enqueuer := newTestHandler(t)
	router := newTestRouter(h)

	body, contentType := newMultipartUpload(t, "resume.txt", []byte("plain resume text for parsing"))
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		JobID   string `json:"jobId"`
		WsToken string `json:"wsToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.WsToken == "" {
		t.Fatalf("response missing jobId or wsToken: %s", w.Body.String())
	}

	job, err := store.GetByJobID(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("job row not created: %v", err)
	}
	if job.Lifecycle != string(executor.LifecyclePending) {
		t.Errorf("lifecycle: got %s, want pending", job.Lifecycle)
	}
	if len(uploader.uploaded) != 1 {
		t.Errorf("expected one uploaded object, got %d", len(uploader.uploaded))
	}
	if len(enqueuer.enqueued) != 1 {
		t.Fatalf("expected one enqueued task, got %d", len(enqueuer.enqueued))
	}
	if enqueuer.enqueued[0].Type() != tasks.TypeDocumentParse {
		t.Errorf("task type: got %s", enqueuer.enqueued[0].Type())
	}
}

func TestSubmitJobRejectsMissingFile(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
}

func TestGetJobReportsFailureDetails(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	err := store.CreateJob(context.Background(), &database.Job{
		JobID:        "job-failed",
		Filename:     "broken.pdf",
		Lifecycle:    string(executor.LifecycleFailed),
		Attempt:      3,
		ErrorCode:    "UNSUPPORTED_FORMAT",
		ErrorMessage: "unsupported document format",
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-failed", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}

	var resp struct {
		Lifecycle string `json:"lifecycle"`
		Error     struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Lifecycle != string(executor.LifecycleFailed) {
		t.Errorf("lifecycle: got %s", resp.Lifecycle)
	}
	if resp.Error.Code != "UNSUPPORTED_FORMAT" {
		t.Errorf("error code: got %s", resp.Error.Code)
	}
}

func TestGetJobResultNotReady(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	if err := store.CreateJob(context.Background(), &database.Job{
		JobID:     "job-running",
		Lifecycle: string(executor.LifecycleProgressing),
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-running/result", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", w.Code)
	}
}

func TestGetJobResultReturnsParsedData(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	if err := store.CreateJob(context.Background(), &database.Job{
		JobID:      "job-done",
		Lifecycle:  string(executor.LifecycleSucceeded),
		Degraded:   true,
		ParsedData: []byte(`{"degraded": true}`),
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-done/result", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Degraded bool            `json:"degraded"`
		Result   json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Degraded {
		t.Error("degraded flag not surfaced")
	}
	if len(resp.Result) == 0 {
		t.Error("result payload missing")
	}
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	if err := store.CreateJob(context.Background(), &database.Job{
		JobID:     "job-done",
		Lifecycle: string(executor.LifecycleSucceeded),
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-done/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", w.Code)
	}
}

func TestPasswordGate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hash, err := auth.HashPassword("letmein")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	router := gin.New()
	router.Use(middleware.PasswordGateMiddleware(hash))
	router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing password: got %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Password", "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Password", "letmein")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("correct password: got %d, want 200", w.Code)
	}
}
