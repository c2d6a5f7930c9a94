package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Auth     AuthConfig     `mapstructure:"auth"`
	AI       AIConfig       `mapstructure:"ai"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Parser   ParserConfig   `mapstructure:"parser"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// ClamdConfig 指向可选的 clamd 病毒扫描服务，地址为空时跳过扫描。
type ClamdConfig struct {
	Address string `mapstructure:"address"`
}

// AuthConfig 包含接口访问控制配置。
type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	APIPasswordHash string `mapstructure:"api_password_hash"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
}

// AIConfig 指向 OpenAI 兼容接口，APIKey 为空时跳过 AI 校验阶段。
type AIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Attempts    int           `mapstructure:"attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Concurrency int           `mapstructure:"concurrency"`
}

// OCRConfig 描述外部 OCR 工具链，Enabled 为 false 时不注册 OCR 兜底。
type OCRConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Tesseract string `mapstructure:"tesseract"`
	Pdftoppm  string `mapstructure:"pdftoppm"`
	Languages string `mapstructure:"languages"`
	DPI       int    `mapstructure:"dpi"`
	MaxPages  int    `mapstructure:"max_pages"`
}

// ParserConfig 控制流水线与任务执行器的策略。
type ParserConfig struct {
	MinTextLength     int           `mapstructure:"min_text_length"`
	WorkBaseline      float64       `mapstructure:"work_baseline"`
	EducationBaseline float64       `mapstructure:"education_baseline"`
	SkillsBaseline    float64       `mapstructure:"skills_baseline"`
	JobAttempts       int           `mapstructure:"job_attempts"`
	JobBackoff        time.Duration `mapstructure:"job_backoff"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr 返回 host:port 形式的 Redis 地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "resumate")
	v.SetDefault("database.user", "resumate")
	v.SetDefault("database.password", "resumate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "documents")
	v.SetDefault("auth.token_ttl_minutes", 60)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.attempts", 3)
	v.SetDefault("ai.timeout", 15*time.Second)
	v.SetDefault("ai.backoff", time.Second)
	v.SetDefault("ai.concurrency", 4)
	v.SetDefault("ocr.enabled", false)
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.languages", "eng")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 20)
	v.SetDefault("parser.min_text_length", 100)
	v.SetDefault("parser.work_baseline", 70.0)
	v.SetDefault("parser.education_baseline", 70.0)
	v.SetDefault("parser.skills_baseline", 75.0)
	v.SetDefault("parser.job_attempts", 3)
	v.SetDefault("parser.job_backoff", time.Second)
	v.SetDefault("parser.job_timeout", 5*time.Minute)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                  "API_PORT",
		"database.host":             "DATABASE_HOST",
		"database.port":             "DATABASE_PORT",
		"database.name":             "POSTGRES_DB",
		"database.user":             "POSTGRES_USER",
		"database.password":         "POSTGRES_PASSWORD",
		"database.sslmode":          "DATABASE_SSLMODE",
		"redis.host":                "REDIS_HOST",
		"redis.port":                "REDIS_PORT",
		"minio.endpoint":            "MINIO_ENDPOINT",
		"minio.access_key_id":       "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":   "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":             "MINIO_USE_SSL",
		"minio.bucket":              "MINIO_BUCKET",
		"clamd.address":             "CLAMD_ADDRESS",
		"auth.jwt_secret":           "JWT_SECRET",
		"auth.api_password_hash":    "API_PASSWORD_HASH",
		"auth.token_ttl_minutes":    "TOKEN_TTL_MINUTES",
		"ai.base_url":               "AI_BASE_URL",
		"ai.api_key":                "AI_API_KEY",
		"ai.model":                  "AI_MODEL",
		"ai.attempts":               "AI_ATTEMPTS",
		"ai.timeout":                "AI_TIMEOUT",
		"ai.backoff":                "AI_BACKOFF",
		"ai.concurrency":            "AI_CONCURRENCY",
		"ocr.enabled":               "OCR_ENABLED",
		"ocr.tesseract":             "OCR_TESSERACT",
		"ocr.pdftoppm":              "OCR_PDFTOPPM",
		"ocr.languages":             "OCR_LANGUAGES",
		"ocr.dpi":                   "OCR_DPI",
		"ocr.max_pages":             "OCR_MAX_PAGES",
		"parser.min_text_length":    "PARSER_MIN_TEXT_LENGTH",
		"parser.work_baseline":      "PARSER_WORK_BASELINE",
		"parser.education_baseline": "PARSER_EDUCATION_BASELINE",
		"parser.skills_baseline":    "PARSER_SKILLS_BASELINE",
		"parser.job_attempts":       "PARSER_JOB_ATTEMPTS",
		"parser.job_backoff":        "PARSER_JOB_BACKOFF",
		"parser.job_timeout":        "PARSER_JOB_TIMEOUT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if cfg.Parser.MinTextLength <= 0 {
		return errors.New("parser min text length must be positive")
	}
	if cfg.Parser.JobAttempts <= 0 {
		return errors.New("parser job attempts must be positive")
	}
	if cfg.AI.Attempts <= 0 {
		return errors.New("ai attempts must be positive")
	}
	return nil
}
