package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"resumate/internal/parser"
)

// Extractor 按内容嗅探出的格式分派到对应的文本提取实现。
// 实现 parser.PrimaryExtractor。
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor 构造主文本提取器。
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract 嗅探文档字节流的真实格式并提取文本。
// 客户端声明的 MIME 只作日志参考，不参与分派。
func (e *Extractor) Extract(ctx context.Context, doc parser.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mtype := mimetype.Detect(doc.Bytes)
	e.logger.Debug("detected document type",
		slog.String("job_id", doc.ID),
		slog.String("detected", mtype.String()),
		slog.String("declared", doc.MIMEHint),
	)

	switch {
	case mtype.Is("application/pdf"):
		return extractPDF(doc.Bytes)
	case mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return extractDocx(doc.Bytes)
	case mtype.Is("text/plain") || strings.HasPrefix(mtype.String(), "text/"):
		return string(doc.Bytes), nil
	case strings.HasPrefix(mtype.String(), "image/"):
		// 图片没有文字层，交给 OCR 阶段兜底。
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, mtype.String())
	}
}

// extractPDF 逐页读取 PDF 的文字层，单页失败跳过不中断。
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
