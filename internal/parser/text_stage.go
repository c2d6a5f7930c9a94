package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultMinTextLength 是判定提取文本是否充分的默认阈值（去首尾空白后的字符数）。
const DefaultMinTextLength = 100

// TextExtractionStage 负责流水线第一阶段：主提取器出文本，
// 不充分时回落到 OCR。本阶段没有重试，失败直接上抛。
type TextExtractionStage struct {
	primary   PrimaryExtractor
	ocr       OCREngine
	minLength int
	logger    *slog.Logger
}

// NewTextExtractionStage 构造文本提取阶段。ocr 允许为 nil，
// 表示运行环境没有配置识别引擎。
func NewTextExtractionStage(primary PrimaryExtractor, ocr OCREngine, minLength int, logger *slog.Logger) *TextExtractionStage {
	if minLength <= 0 {
		minLength = DefaultMinTextLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractionStage{
		primary:   primary,
		ocr:       ocr,
		minLength: minLength,
		logger:    logger,
	}
}

// Extract 提取文档文本。主提取结果不足阈值时无条件采用 OCR 的输出，
// 即使 OCR 文本更短——空洞的主提取结果不值得信任。
func (s *TextExtractionStage) Extract(ctx context.Context, doc Document) (ExtractionResult, error) {
	text, err := s.primary.Extract(ctx, doc)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("primary extraction: %w", err)
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= s.minLength {
		return ExtractionResult{Text: trimmed, Sufficient: true}, nil
	}

	if s.ocr == nil {
		return ExtractionResult{}, fmt.Errorf(
			"extracted %d chars, below minimum %d: %w", len(trimmed), s.minLength, ErrOCRUnavailable)
	}

	s.logger.Info("primary extraction insufficient, falling back to ocr",
		slog.String("job_id", doc.ID),
		slog.Int("chars", len(trimmed)),
	)

	recognized, err := s.ocr.Recognize(ctx, doc)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("ocr recognition: %w", err)
	}

	trimmed = strings.TrimSpace(recognized)
	return ExtractionResult{Text: trimmed, Sufficient: len(trimmed) >= s.minLength}, nil
}
