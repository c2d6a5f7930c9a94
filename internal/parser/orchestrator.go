package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// EnhanceOutcome 是编排器对增强步骤的类型化结算：
// 要么拿到 AI 结果，要么带着失败原因降级。
type EnhanceOutcome struct {
	Result   *EnhancedResult
	Degraded bool
	Cause    *EnhancementError
}

// Orchestrator 按固定顺序驱动三个阶段，应用回落策略，
// 并在每个里程碑通过 Publisher 发布进度事件。
// 编排器只在单次执行期间持有中间结果，不保存任何跨作业状态。
type Orchestrator struct {
	text      *TextExtractionStage
	entities  *EntityExtractionStage
	enhance   *AIEnhancementStage
	store     ResultStore
	publisher Publisher
	logger    *slog.Logger
}

// NewOrchestrator 构造编排器。enhance 为 nil 表示环境未配置外部校验，
// 所有作业都会走降级路径；store 与 publisher 允许为 nil（测试场景）。
func NewOrchestrator(
	text *TextExtractionStage,
	entities *EntityExtractionStage,
	enhance *AIEnhancementStage,
	store ResultStore,
	publisher Publisher,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		text:      text,
		entities:  entities,
		enhance:   enhance,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Run 对单个文档执行完整流水线，返回融合后的最终结果。
// 文本提取失败直接上抛；AI 校验失败降级为启发式结果并照常成功。
// 终态 error 事件不在这里发布——重试归执行器管，error 必须是最后一条。
func (o *Orchestrator) Run(ctx context.Context, doc Document) (*MergedResult, error) {
	log := o.logger.With(slog.String("job_id", doc.ID))

	o.publish(doc.ID, NewProgress(doc.ID, StageTextExtraction, 10, "starting text extraction"))
	o.publish(doc.ID, NewProgress(doc.ID, StageTextExtraction, 30, "extracting text from document"))

	extraction, err := o.text.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	o.publish(doc.ID, NewProgress(doc.ID, StageTextExtraction, 100, "text extraction complete"))

	if o.store != nil {
		if err := o.store.SaveRawText(ctx, doc.ID, extraction.Text); err != nil {
			// 原始文本只是辅助产物，保存失败不值得中断流水线。
			log.Warn("save raw text failed", slog.Any("error", err))
		}
	}

	o.publish(doc.ID, NewProgress(doc.ID, StageEntityExtraction, 40, "extracting entities"))
	o.publish(doc.ID, NewProgress(doc.ID, StageEntityExtraction, 60, "analyzing document structure"))

	entities := o.entities.Extract(extraction.Text)
	o.publish(doc.ID, NewProgress(doc.ID, StageEntityExtraction, 100, "entity extraction complete"))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome, err := o.enhanceStep(ctx, doc.ID, extraction.Text, entities)
	if err != nil {
		return nil, err
	}

	merged := buildMergedResult(entities, outcome)

	if o.store != nil {
		if err := o.store.SaveResult(ctx, doc.ID, merged); err != nil {
			return nil, fmt.Errorf("save result: %w", err)
		}
	}

	o.publish(doc.ID, NewComplete(doc.ID, merged))
	log.Info("pipeline completed", slog.Bool("degraded", merged.Degraded))
	return merged, nil
}

// enhanceStep 执行增强步骤并把失败折叠成类型化的降级分支。
// 只有取消/限时这类来自上层的错误才会作为 error 返回。
func (o *Orchestrator) enhanceStep(ctx context.Context, jobID, text string, entities EntitySet) (EnhanceOutcome, error) {
	if o.enhance == nil {
		o.publish(jobID, NewProgress(jobID, StageEnhancement, 70, "ai enhancement not configured"))
		o.publish(jobID, NewProgress(jobID, StageEnhancement, 100, "ai enhancement skipped"))
		return EnhanceOutcome{Degraded: true}, nil
	}

	o.publish(jobID, NewProgress(jobID, StageEnhancement, 70, "enhancing with ai"))

	result, err := o.enhance.Enhance(ctx, jobID, text, entities)
	if err != nil {
		var enhErr *EnhancementError
		if errors.As(err, &enhErr) {
			o.logger.Warn("ai enhancement degraded",
				slog.String("job_id", jobID),
				slog.String("cause", string(enhErr.Cause)),
				slog.Int("attempts", enhErr.Attempts),
			)
			o.publish(jobID, NewProgress(jobID, StageEnhancement, 100, "ai enhancement skipped: "+string(enhErr.Cause)))
			return EnhanceOutcome{Degraded: true, Cause: enhErr}, nil
		}
		return EnhanceOutcome{}, err
	}

	o.publish(jobID, NewProgress(jobID, StageEnhancement, 100, "ai enhancement complete"))
	return EnhanceOutcome{Result: result}, nil
}

// buildMergedResult 组装最终结果：降级时实体与置信度原样透传；
// AI 成功时采用增强后的实体并融合两份置信度。
func buildMergedResult(entities EntitySet, outcome EnhanceOutcome) *MergedResult {
	if outcome.Degraded || outcome.Result == nil {
		return &MergedResult{EntitySet: entities, Degraded: true}
	}

	enhanced := outcome.Result.EntitySet
	enhanced.ConfidenceScores = MergeConfidence(entities.ConfidenceScores, outcome.Result.AIConfidence)
	return &MergedResult{EntitySet: enhanced}
}

func (o *Orchestrator) publish(jobID string, event ProgressEvent) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(jobID, event)
}
