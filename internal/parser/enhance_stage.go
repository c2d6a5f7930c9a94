package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
)

// AI 校验阶段的默认策略。
const (
	DefaultEnhanceAttempts    = 3
	DefaultEnhanceTimeout     = 15 * time.Second
	DefaultEnhanceBackoff     = time.Second
	DefaultEnhanceConcurrency = 4
)

// AIEnhancementStage 负责流水线第三阶段：带超时与有限重试的外部校验调用。
// 所有作业共享一个信号量闸门，避免突发并发打爆外部限流；
// 拿不到配额的作业等待而不是失败。
type AIEnhancementStage struct {
	validator AiValidator
	gate      *semaphore.Weighted
	attempts  int
	timeout   time.Duration
	backoff   time.Duration
	logger    *slog.Logger
}

// NewAIEnhancementStage 构造 AI 校验阶段。attempts/timeout/backoff
// 传零值时采用默认策略。
func NewAIEnhancementStage(validator AiValidator, concurrency int64, attempts int, timeout, backoff time.Duration, logger *slog.Logger) *AIEnhancementStage {
	if concurrency <= 0 {
		concurrency = DefaultEnhanceConcurrency
	}
	if attempts <= 0 {
		attempts = DefaultEnhanceAttempts
	}
	if timeout <= 0 {
		timeout = DefaultEnhanceTimeout
	}
	if backoff <= 0 {
		backoff = DefaultEnhanceBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIEnhancementStage{
		validator: validator,
		gate:      semaphore.NewWeighted(concurrency),
		attempts:  attempts,
		timeout:   timeout,
		backoff:   backoff,
		logger:    logger,
	}
}

// Enhance 调用外部校验，最多 attempts 次，每次受单独超时约束，
// 尝试之间按指数退避等待。形状不合法的响应与传输失败共用同一预算。
// 耗尽预算返回 *EnhancementError；父上下文被取消时返回上下文错误。
func (s *AIEnhancementStage) Enhance(ctx context.Context, jobID, text string, entities EntitySet) (*EnhancedResult, error) {
	var lastErr error

	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			wait := s.backoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		result, err := s.validateOnce(ctx, text, entities)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			// 父上下文已终止（取消或作业限时），不属于 AI 阶段自身的失败。
			return nil, ctx.Err()
		}

		lastErr = err
		s.logger.Warn("ai validation attempt failed",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}

	return nil, &EnhancementError{
		Cause:    classifyEnhanceError(lastErr),
		Attempts: s.attempts,
		Err:      lastErr,
	}
}

func (s *AIEnhancementStage) validateOnce(ctx context.Context, text string, entities EntitySet) (*EnhancedResult, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire ai gate: %w", err)
	}
	defer s.gate.Release(1)

	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.validator.Validate(attemptCtx, text, entities)
}

func classifyEnhanceError(err error) EnhancementCause {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, ErrMalformedResponse):
		return CauseMalformedResponse
	default:
		return CauseTransportError
	}
}
