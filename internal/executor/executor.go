package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"resumate/internal/errcode"
	"resumate/internal/parser"
)

// Lifecycle 表示任务在状态机中的位置。
type Lifecycle string

const (
	LifecyclePending     Lifecycle = "pending"
	LifecycleRunning     Lifecycle = "running"
	LifecycleProgressing Lifecycle = "progressing"
	LifecycleSucceeded   Lifecycle = "succeeded"
	LifecycleFailed      Lifecycle = "failed"
)

// Terminal 报告该状态是否为吸收态（不再有出边）。
func (l Lifecycle) Terminal() bool {
	return l == LifecycleSucceeded || l == LifecycleFailed
}

// TaskState 描述单个作业的生命周期快照。
// 进入终态后 Result 与 Error 恰有一个被置位。
type TaskState struct {
	JobID     string               `json:"jobId"`
	Lifecycle Lifecycle            `json:"lifecycle"`
	Attempt   int                  `json:"attempt"`
	Result    *parser.MergedResult `json:"result,omitempty"`
	Error     *parser.ErrorInfo    `json:"error,omitempty"`
}

// StateStore 持久化任务状态的每次迁移。
type StateStore interface {
	SaveState(ctx context.Context, state TaskState) error
}

// RunFunc 执行一次完整的流水线（通常是 Orchestrator.Run）。
type RunFunc func(ctx context.Context, doc parser.Document) (*parser.MergedResult, error)

// 执行器默认策略。
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultCeiling     = 5 * time.Minute
)

// Executor 在异步任务生命周期契约内驱动单个作业：
// Pending → Running → Progressing(0..n) → {Succeeded | Failed}。
// 瞬态失败按指数退避重试；致命错误与取消直接进入 Failed；
// 超过硬性执行上限时无论流水线处于哪个阶段都强制失败。
type Executor struct {
	states      StateStore
	publisher   parser.Publisher
	maxAttempts int
	backoff     time.Duration
	ceiling     time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	jobs map[string]*jobEntry
}

type jobEntry struct {
	cancel context.CancelCauseFunc
	state  *TaskState
}

// New 构造执行器。maxAttempts/backoff/ceiling 传零值时采用默认策略；
// publisher 是进度事件的下游（允许为 nil）。
func New(states StateStore, publisher parser.Publisher, maxAttempts int, backoff, ceiling time.Duration, logger *slog.Logger) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		states:      states,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		ceiling:     ceiling,
		logger:      logger,
		jobs:        make(map[string]*jobEntry),
	}
}

// Execute 把一个作业跑到终态并返回最终快照。
// run 收到的上下文同时受取消与执行上限约束；
// 退避等待期间的取消同样立即生效。
func (e *Executor) Execute(ctx context.Context, doc parser.Document, run RunFunc) TaskState {
	log := e.logger.With(slog.String("job_id", doc.ID))

	state := &TaskState{JobID: doc.ID, Lifecycle: LifecyclePending}

	cancelCtx, cancelJob := context.WithCancelCause(ctx)
	defer cancelJob(nil)
	runCtx, cancelCeiling := context.WithTimeoutCause(cancelCtx, e.ceiling, parser.ErrDeadlineExceeded)
	defer cancelCeiling()

	e.track(doc.ID, cancelJob, state)
	defer e.untrack(doc.ID)

	e.persist(state, log)

	var lastErr error

attempts:
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		state.Attempt = attempt
		state.Lifecycle = LifecycleRunning
		e.persist(state, log)

		result, err := run(runCtx, doc)
		if err == nil {
			state.Lifecycle = LifecycleSucceeded
			state.Result = result
			e.persist(state, log)
			log.Info("job succeeded",
				slog.Int("attempt", attempt),
				slog.Bool("degraded", result != nil && result.Degraded),
			)
			return *state
		}
		lastErr = err

		if runCtx.Err() != nil {
			// 取消或执行上限：以上下文的 cause 作为终态原因。
			if cause := context.Cause(runCtx); cause != nil {
				lastErr = cause
			}
			break attempts
		}
		if isFatal(err) {
			break attempts
		}
		if attempt == e.maxAttempts {
			break attempts
		}

		wait := e.backoff << (attempt - 1)
		log.Warn("attempt failed, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)
		select {
		case <-runCtx.Done():
			if cause := context.Cause(runCtx); cause != nil {
				lastErr = cause
			}
			break attempts
		case <-time.After(wait):
		}
	}

	code := errcode.FromError(lastErr)
	state.Lifecycle = LifecycleFailed
	state.Error = &parser.ErrorInfo{Code: code, Message: lastErr.Error()}
	e.persist(state, log)

	if e.publisher != nil {
		e.publisher.Publish(doc.ID, parser.NewError(doc.ID, code, lastErr.Error()))
	}
	log.Error("job failed",
		slog.String("code", code),
		slog.Int("attempt", state.Attempt),
		slog.Any("error", lastErr),
	)
	return *state
}

// Publish 实现 parser.Publisher：首个进度事件把生命周期从
// Running 推进到 Progressing，然后转发给下游。
func (e *Executor) Publish(jobID string, event parser.ProgressEvent) {
	e.mu.Lock()
	entry := e.jobs[jobID]
	e.mu.Unlock()

	if entry != nil && entry.state.Lifecycle == LifecycleRunning {
		entry.state.Lifecycle = LifecycleProgressing
		e.persist(entry.state, e.logger.With(slog.String("job_id", jobID)))
	}

	if e.publisher != nil {
		e.publisher.Publish(jobID, event)
	}
}

// Cancel 请求取消正在执行的作业，返回是否找到该作业。
// 在状态机的任何位置调用都是安全的，包括重试退避期间。
func (e *Executor) Cancel(jobID string) bool {
	e.mu.Lock()
	entry := e.jobs[jobID]
	e.mu.Unlock()

	if entry == nil {
		return false
	}
	entry.cancel(parser.ErrCancelled)
	return true
}

func (e *Executor) track(jobID string, cancel context.CancelCauseFunc, state *TaskState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs[jobID] = &jobEntry{cancel: cancel, state: state}
}

func (e *Executor) untrack(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.jobs, jobID)
}

// persist 尽力写入状态快照。作业上下文可能已经终止，
// 所以这里使用独立的短超时上下文。
func (e *Executor) persist(state *TaskState, log *slog.Logger) {
	if e.states == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.states.SaveState(ctx, *state); err != nil {
		log.Error("save task state failed",
			slog.String("lifecycle", string(state.Lifecycle)),
			slog.Any("error", err),
		)
	}
}

func isFatal(err error) bool {
	return errors.Is(err, parser.ErrUnsupportedFormat) ||
		errors.Is(err, parser.ErrOCRUnavailable) ||
		errors.Is(err, parser.ErrCancelled) ||
		errors.Is(err, parser.ErrDeadlineExceeded)
}
