package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeDocumentParse = "document:parse"
)

// DocumentParsePayload 描述解析一份文档所需的最小信息。
type DocumentParsePayload struct {
	JobID         string `json:"job_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewDocumentParseTask 构造一个新的文档解析任务。
// 重试由任务内部的执行器负责，队列层不再重试。
func NewDocumentParseTask(jobID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentParsePayload{
		JobID:         jobID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDocumentParse, payload, asynq.MaxRetry(0)), nil
}
