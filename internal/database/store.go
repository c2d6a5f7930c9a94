package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resumate/internal/executor"
	"resumate/internal/parser"
)

// ErrJobNotFound 表示指定作业不存在。
var ErrJobNotFound = errors.New("job not found")

// Store 封装作业表的读写，同时充当流水线与执行器的持久化后端。
type Store struct {
	db *gorm.DB
}

// NewStore 构造作业存储。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateJob 写入新作业记录。
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByJobID 按作业号查询记录。
func (s *Store) GetByJobID(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return &job, nil
}

// SaveRawText 保存文本提取阶段的原始输出。
func (s *Store) SaveRawText(ctx context.Context, jobID, text string) error {
	err := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("job_id = ?", jobID).
		Update("raw_text", text).Error
	if err != nil {
		return fmt.Errorf("save raw text: %w", err)
	}
	return nil
}

// SaveResult 保存流水线的最终产物。
func (s *Store) SaveResult(ctx context.Context, jobID string, result *parser.MergedResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	err = s.db.WithContext(ctx).
		Model(&Job{}).
		Where("job_id = ?", jobID).
		Updates(map[string]any{
			"parsed_data": datatypes.JSON(payload),
			"degraded":    result.Degraded,
		}).Error
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// SaveState 记录任务生命周期的每次迁移。
func (s *Store) SaveState(ctx context.Context, state executor.TaskState) error {
	updates := map[string]any{
		"lifecycle": string(state.Lifecycle),
		"attempt":   state.Attempt,
	}
	if state.Error != nil {
		updates["error_code"] = state.Error.Code
		updates["error_message"] = state.Error.Message
	}

	err := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("job_id = ?", state.JobID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("save task state: %w", err)
	}
	return nil
}
