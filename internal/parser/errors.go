package parser

import (
	"errors"
	"fmt"
)

// 作业级致命错误，执行器不会重试这些错误。
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrOCRUnavailable    = errors.New("ocr engine is not configured")
	ErrCancelled         = errors.New("job cancelled")
	ErrDeadlineExceeded  = errors.New("job execution deadline exceeded")
)

// ErrMalformedResponse 标记 AI 校验返回了无法解析成 EntitySet 的内容。
var ErrMalformedResponse = errors.New("malformed enhancement response")

// EnhancementCause 区分 AI 校验失败的具体原因。
type EnhancementCause string

const (
	CauseTimeout           EnhancementCause = "timeout"
	CauseMalformedResponse EnhancementCause = "malformed_response"
	CauseTransportError    EnhancementCause = "transport_error"
)

// EnhancementError 表示 AI 校验在耗尽自身重试预算后的失败。
// 对编排器而言它是可恢复的：降级为纯启发式结果，不判定作业失败。
type EnhancementError struct {
	Cause    EnhancementCause
	Attempts int
	Err      error
}

func (e *EnhancementError) Error() string {
	return fmt.Sprintf("ai enhancement failed after %d attempts (%s): %v", e.Attempts, e.Cause, e.Err)
}

func (e *EnhancementError) Unwrap() error { return e.Err }

// ErrorInfo 是错误的可序列化表示，随终态事件与任务状态下发。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
