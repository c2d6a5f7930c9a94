package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"resumate/internal/database"
	"resumate/internal/executor"
	"resumate/internal/metrics"
	"resumate/internal/parser"
	"resumate/internal/tasks"
)

// DocumentFetcher 按对象键取回文档字节流。
type DocumentFetcher interface {
	FetchBytes(ctx context.Context, objectKey string) ([]byte, error)
}

// ParseTaskHandler 负责消费文档解析任务。
type ParseTaskHandler struct {
	store        *database.Store
	fetcher      DocumentFetcher
	executor     *executor.Executor
	orchestrator *parser.Orchestrator
	logger       *slog.Logger
}

// NewParseTaskHandler 创建任务处理器。
func NewParseTaskHandler(
	store *database.Store,
	fetcher DocumentFetcher,
	exec *executor.Executor,
	orchestrator *parser.Orchestrator,
	logger *slog.Logger,
) *ParseTaskHandler {
	return &ParseTaskHandler{
		store:        store,
		fetcher:      fetcher,
		executor:     exec,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// ProcessTask 实现 asynq.Handler。
// 重试与终态都由内部执行器处理，这里永远向队列返回 nil。
func (h *ParseTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.DocumentParsePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("job_id", payload.JobID),
	)
	log.Info("starting document parse task")

	job, err := h.store.GetByJobID(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			log.Warn("job not found, skipping task")
			return nil
		}
		log.Error("query job failed", slog.Any("error", err))
		return err
	}

	data, err := h.fetcher.FetchBytes(ctx, job.ObjectKey)
	if err != nil {
		log.Error("fetch document from storage failed", slog.Any("error", err))
		return err
	}

	doc := parser.Document{
		ID:       job.JobID,
		Filename: job.Filename,
		MIMEHint: job.MimeType,
		Bytes:    data,
	}

	start := time.Now()
	state := h.executor.Execute(ctx, doc, h.orchestrator.Run)

	switch {
	case state.Lifecycle == executor.LifecycleSucceeded && state.Result != nil && state.Result.Degraded:
		metrics.ObserveJob(metrics.OutcomeDegraded, time.Since(start))
	case state.Lifecycle == executor.LifecycleSucceeded:
		metrics.ObserveJob(metrics.OutcomeSucceeded, time.Since(start))
	default:
		metrics.ObserveJob(metrics.OutcomeFailed, time.Since(start))
	}

	log.Info("document parse task finished",
		slog.String("lifecycle", string(state.Lifecycle)),
		slog.Int("attempt", state.Attempt),
	)
	return nil
}
