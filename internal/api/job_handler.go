package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/dutchcoders/go-clamd"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"resumate/internal/api/middleware"
	"resumate/internal/auth"
	"resumate/internal/broadcast"
	"resumate/internal/database"
	"resumate/internal/executor"
	"resumate/internal/storage"
	"resumate/internal/tasks"
)

const maxUploadSize = 20 << 20 // 20 MiB

// TaskEnqueuer 抽象队列客户端，便于测试中打桩。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ObjectUploader 抽象对象存储的上传接口。
type ObjectUploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// JobHandler 负责文档解析作业的提交、查询与取消。
type JobHandler struct {
	store       *database.Store
	storage     ObjectUploader
	enqueuer    TaskEnqueuer
	tokens      *auth.TokenIssuer
	redisClient *redis.Client
	clamdAddr   string
	logger      *slog.Logger
}

// NewJobHandler 返回 JobHandler 实例。
func NewJobHandler(
	store *database.Store,
	uploader ObjectUploader,
	enqueuer TaskEnqueuer,
	tokens *auth.TokenIssuer,
	redisClient *redis.Client,
	clamdAddr string,
	logger *slog.Logger,
) *JobHandler {
	return &JobHandler{
		store:       store,
		storage:     uploader,
		enqueuer:    enqueuer,
		tokens:      tokens,
		redisClient: redisClient,
		clamdAddr:   clamdAddr,
		logger:      logger,
	}
}

// SubmitJob 接收上传的文档，落库并入队解析任务。
func (h *JobHandler) SubmitJob(c *gin.Context) {
	log := middleware.LoggerFromContext(c)

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxUploadSize {
		BadRequest(c, "file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if len(data) == 0 {
		BadRequest(c, "empty file")
		return
	}

	if h.clamdAddr != "" {
		if ok := h.scanClean(data, log); !ok {
			BadRequest(c, "malicious file detected")
			return
		}
	}

	jobID := uuid.NewString()
	contentType := mimetype.Detect(data).String()
	objectKey := storage.ObjectKey(jobID, filepath.Base(file.Filename))

	if _, err := h.storage.UploadFile(c.Request.Context(), objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Error("upload document failed", slog.Any("error", err))
		Internal(c, "failed to store document")
		return
	}

	job := &database.Job{
		JobID:     jobID,
		Filename:  filepath.Base(file.Filename),
		MimeType:  contentType,
		SizeBytes: int64(len(data)),
		ObjectKey: objectKey,
		Lifecycle: string(executor.LifecyclePending),
	}
	if err := h.store.CreateJob(c.Request.Context(), job); err != nil {
		log.Error("create job failed", slog.Any("error", err))
		Internal(c, "failed to create job")
		return
	}

	task, err := tasks.NewDocumentParseTask(jobID, middleware.GetCorrelationID(c))
	if err != nil {
		log.Error("build parse task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue job")
		return
	}
	if _, err := h.enqueuer.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Error("enqueue parse task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue job")
		return
	}

	wsToken, err := h.tokens.IssueJobToken(jobID)
	if err != nil {
		log.Error("issue ws token failed", slog.Any("error", err))
		Internal(c, "failed to issue token")
		return
	}

	log.Info("job submitted",
		slog.String("job_id", jobID),
		slog.String("content_type", contentType),
		slog.Int64("size_bytes", int64(len(data))),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"jobId":   jobID,
		"wsToken": wsToken,
	})
}

// scanClean 调用 clamd 扫描上传内容，返回是否通过。
func (h *JobHandler) scanClean(data []byte, log *slog.Logger) bool {
	clamdClient := clamd.NewClamd(h.clamdAddr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		log.Error("scan file failed", slog.Any("error", err))
		return false
	}

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			log.Warn("malicious file detected", slog.String("status", result.Status))
			return false
		}
	}
	return true
}

// GetJob 返回作业的生命周期状态。
func (h *JobHandler) GetJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	resp := gin.H{
		"jobId":     job.JobID,
		"filename":  job.Filename,
		"lifecycle": job.Lifecycle,
		"attempt":   job.Attempt,
	}
	if job.Lifecycle == string(executor.LifecycleFailed) {
		resp["error"] = gin.H{
			"code":    job.ErrorCode,
			"message": job.ErrorMessage,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetJobResult 返回解析完成后的结构化结果。
func (h *JobHandler) GetJobResult(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Lifecycle != string(executor.LifecycleSucceeded) || len(job.ParsedData) == 0 {
		Conflict(c, "job result not available")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":    job.JobID,
		"degraded": job.Degraded,
		"result":   json.RawMessage(job.ParsedData),
	})
}

// CancelJob 广播取消请求，由持有该作业的 worker 执行取消。
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Lifecycle == string(executor.LifecycleSucceeded) || job.Lifecycle == string(executor.LifecycleFailed) {
		Conflict(c, "job already finished")
		return
	}

	if err := broadcast.PublishCancel(c.Request.Context(), h.redisClient, job.JobID); err != nil {
		middleware.LoggerFromContext(c).Error("publish cancel failed", slog.Any("error", err))
		Internal(c, "failed to request cancellation")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": job.JobID, "status": "cancelling"})
}

func (h *JobHandler) loadJob(c *gin.Context) (*database.Job, bool) {
	jobID := c.Param("id")
	if jobID == "" {
		BadRequest(c, "missing job id")
		return nil, false
	}

	job, err := h.store.GetByJobID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			NotFound(c, "job not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("query job failed", slog.Any("error", err))
		Internal(c, "failed to query job")
		return nil, false
	}
	return job, true
}
