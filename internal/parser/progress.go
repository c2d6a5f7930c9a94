package parser

import "time"

// Stage 表示流水线进度事件所处的阶段。
type Stage string

const (
	StageTextExtraction   Stage = "text_extraction"
	StageEntityExtraction Stage = "entity_extraction"
	StageEnhancement      Stage = "enhancement"
	StageComplete         Stage = "complete"
	StageError            Stage = "error"
)

// ProgressEvent 是广播给订阅者的进度消息。
// 同一作业内，阶段按固定顺序出现，阶段内 percent 单调不减；
// error 阶段可能在任意时刻出现且必为最后一条。
type ProgressEvent struct {
	JobID     string        `json:"jobId"`
	Stage     Stage         `json:"stage"`
	Percent   int           `json:"percent"`
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Result    *MergedResult `json:"result,omitempty"`
	Error     *ErrorInfo    `json:"error,omitempty"`
}

// NewProgress 构造普通进度事件，percent 会被收敛到 0~100。
func NewProgress(jobID string, stage Stage, percent int, status string) ProgressEvent {
	return ProgressEvent{
		JobID:     jobID,
		Stage:     stage,
		Percent:   clampPercent(percent),
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// NewComplete 构造携带最终结果的终态事件。
func NewComplete(jobID string, result *MergedResult) ProgressEvent {
	event := NewProgress(jobID, StageComplete, 100, "parsing complete")
	event.Result = result
	return event
}

// NewError 构造终态错误事件。
func NewError(jobID, code, message string) ProgressEvent {
	event := NewProgress(jobID, StageError, 0, "parsing failed: "+message)
	event.Error = &ErrorInfo{Code: code, Message: message}
	return event
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// Publisher 把进度事件投递给当前作业的全部观察者。
// 实现必须是尽力而为且不阻塞发布方。
type Publisher interface {
	Publish(jobID string, event ProgressEvent)
}
