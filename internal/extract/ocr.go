package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"resumate/internal/parser"
)

// OCRConfig 控制外部 OCR 工具链的调用方式。
type OCRConfig struct {
	Tesseract string // 二进制名或绝对路径，空值回落 "tesseract"
	Pdftoppm  string // 空值回落 "pdftoppm"
	Languages string // tesseract 语言包，空值回落 "eng"
	DPI       int    // PDF 栅格化 DPI，默认 300
	MaxPages  int    // 0 表示不限页数
}

// Runner 抽象外部命令执行，便于测试中打桩。
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		r.logger.Error("exec failed",
			slog.String("cmd", name),
			slog.String("args", strings.Join(args, " ")),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Any("error", err),
			slog.String("stderr", truncate(errb.String(), 8<<10)),
		)
	} else {
		r.logger.Debug("exec ok",
			slog.String("cmd", name),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Int("stdout_bytes", out.Len()),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// TesseractEngine 用 tesseract 做图片识别，PDF 先经 pdftoppm 栅格化。
// 实现 parser.OCREngine。
type TesseractEngine struct {
	cfg    OCRConfig
	runner Runner
	logger *slog.Logger
}

// NewTesseractEngine 构造 OCR 引擎。
func NewTesseractEngine(cfg OCRConfig, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Languages == "" {
		cfg.Languages = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &TesseractEngine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// Recognize 把文档落盘为临时文件后调用外部工具识别文字。
func (e *TesseractEngine) Recognize(ctx context.Context, doc parser.Document) (string, error) {
	tmpDir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("remove ocr temp dir failed", slog.Any("error", err))
		}
	}()

	input := filepath.Join(tmpDir, "input")
	if err := os.WriteFile(input, doc.Bytes, 0o600); err != nil {
		return "", fmt.Errorf("write ocr input: %w", err)
	}

	if mimetype.Detect(doc.Bytes).Is("application/pdf") {
		return e.recognizePDF(ctx, tmpDir, input)
	}
	return e.recognizeImage(ctx, input)
}

func (e *TesseractEngine) recognizeImage(ctx context.Context, path string) (string, error) {
	// tesseract <input> stdout -l <lang>
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.Languages)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}

func (e *TesseractEngine) recognizePDF(ctx context.Context, tmpDir, path string) (string, error) {
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, _, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w", err)
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("pdftoppm produced no pages")
	}

	var sb strings.Builder
	for _, img := range pages {
		text, err := e.recognizeImage(ctx, img)
		if err != nil {
			e.logger.Warn("ocr page failed",
				slog.String("page", filepath.Base(img)),
				slog.Any("error", err),
			)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\f\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
