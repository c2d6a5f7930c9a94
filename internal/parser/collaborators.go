package parser

import "context"

// PrimaryExtractor 按文档格式提取原始文本。
// 无法识别的格式返回包装了 ErrUnsupportedFormat 的错误。
type PrimaryExtractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// OCREngine 对图片型文档做文字识别。
type OCREngine interface {
	Recognize(ctx context.Context, doc Document) (string, error)
}

// EntityHeuristics 从纯文本中抽取结构化实体。
// 实现必须是确定性的：相同输入必须产生相同输出。
type EntityHeuristics interface {
	Extract(text string) EntitySet
}

// AiValidator 调用外部模型校验并增强实体集。
// 形状不合法的响应返回包装了 ErrMalformedResponse 的错误。
type AiValidator interface {
	Validate(ctx context.Context, text string, entities EntitySet) (*EnhancedResult, error)
}

// ResultStore 持久化解析产物，由编排器在关键节点写入。
type ResultStore interface {
	SaveRawText(ctx context.Context, jobID, text string) error
	SaveResult(ctx context.Context, jobID string, result *MergedResult) error
}
