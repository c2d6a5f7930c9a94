package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"resumate/internal/parser"
)

// AI 调用的默认参数。
const (
	DefaultModel         = "gpt-4o-mini"
	DefaultMaxInputChars = 15000
	defaultTemperature   = 0.1
	defaultMaxTokens     = 2000
)

const systemPrompt = `You are an expert resume parser. Your task is to validate and enhance structured information extracted from resume text.

You are given the raw resume text and a first-pass extraction. Correct mistakes, fill gaps, and return the full structure:
- personalInfo: fullName, email, phone, location, linkedinUrl, githubUrl, portfolioUrl, summary
- workExperience: array of objects with company, title, location, startDate, endDate, description
- education: array of objects with institution, degree, fieldOfStudy, location, startDate, endDate, gpa
- skills: object with technical (array), softSkills (array), languages (array), certifications (array)
- confidenceScores: object with personalInfo (0-100), workExperience (0-100), education (0-100), skills (0-100)

Return ONLY valid JSON. If a field cannot be found, use empty string or empty array.
Be thorough and extract ALL information present in the resume.`

// Config 描述 OpenAI 兼容接口的连接参数。
type Config struct {
	BaseURL       string // 例如 https://api.openai.com/v1
	APIKey        string
	Model         string
	MaxInputChars int
}

// Configured 报告该配置是否足以发起调用。
func (c Config) Configured() bool {
	return c.APIKey != "" && c.BaseURL != ""
}

// Validator 通过 OpenAI 兼容的 chat completions 接口校验实体集。
// 实现 parser.AiValidator。单次调用的超时由调用方的上下文控制。
type Validator struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewValidator 构造 AI 校验器。client 为 nil 时使用无内置超时的
// 默认客户端，超时完全交给上下文。
func NewValidator(cfg Config, client *http.Client, logger *slog.Logger) *Validator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{cfg: cfg, client: client, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Validate 把原文与首轮提取结果交给模型复核。
// 响应不是合法 JSON 或缺少置信度时返回 parser.ErrMalformedResponse。
func (v *Validator) Validate(ctx context.Context, text string, entities parser.EntitySet) (*parser.EnhancedResult, error) {
	if len(text) > v.cfg.MaxInputChars {
		text = text[:v.cfg.MaxInputChars]
	}

	initial, err := json.Marshal(entities)
	if err != nil {
		return nil, fmt.Errorf("encode initial entities: %w", err)
	}

	reqBody := chatRequest{
		Model: v.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Resume text:\n%s\n\nFirst-pass extraction:\n%s", text, initial)},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	raw, err := v.send(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode completion envelope: %v", parser.ErrMalformedResponse, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion has no choices", parser.ErrMalformedResponse)
	}

	content := extractJSON(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: no JSON object in completion", parser.ErrMalformedResponse)
	}

	var enhanced parser.EntitySet
	if err := json.Unmarshal([]byte(content), &enhanced); err != nil {
		return nil, fmt.Errorf("%w: decode entities: %v", parser.ErrMalformedResponse, err)
	}
	if len(enhanced.ConfidenceScores) == 0 {
		return nil, fmt.Errorf("%w: missing confidenceScores", parser.ErrMalformedResponse)
	}

	result := &parser.EnhancedResult{
		EntitySet:    enhanced,
		AIConfidence: enhanced.ConfidenceScores,
	}
	result.EntitySet.ConfidenceScores = nil
	return result, nil
}

func (v *Validator) send(ctx context.Context, body chatRequest) ([]byte, error) {
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(v.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	v.logger.Debug("ai validation response",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ai endpoint returned status %d", resp.StatusCode)
	}
	return raw, nil
}

// extractJSON 容忍模型把 JSON 包在 markdown 代码块或闲聊文字里。
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if i := strings.LastIndex(content, "```"); i >= 0 {
			content = content[:i]
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}
