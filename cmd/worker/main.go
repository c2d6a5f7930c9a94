package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumate/internal/ai"
	"resumate/internal/broadcast"
	"resumate/internal/config"
	"resumate/internal/database"
	"resumate/internal/executor"
	"resumate/internal/extract"
	"resumate/internal/heuristics"
	"resumate/internal/metrics"
	"resumate/internal/parser"
	"resumate/internal/storage"
	"resumate/internal/tasks"
	"resumate/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	store := database.NewStore(db)

	// 进度同时推给本进程观察者与 Redis 频道。
	broadcaster := broadcast.NewBroadcaster(broadcast.DefaultBuffer, logger)
	downstream := broadcast.MultiPublisher{
		broadcaster,
		broadcast.NewRedisPublisher(redisClient, logger),
	}

	var ocrEngine parser.OCREngine
	if cfg.OCR.Enabled {
		ocrEngine = extract.NewTesseractEngine(extract.OCRConfig{
			Tesseract: cfg.OCR.Tesseract,
			Pdftoppm:  cfg.OCR.Pdftoppm,
			Languages: cfg.OCR.Languages,
			DPI:       cfg.OCR.DPI,
			MaxPages:  cfg.OCR.MaxPages,
		}, logger)
	}
	textStage := parser.NewTextExtractionStage(
		extract.NewExtractor(logger),
		ocrEngine,
		cfg.Parser.MinTextLength,
		logger,
	)

	entityStage := parser.NewEntityExtractionStage(heuristics.New(heuristics.Config{
		WorkBaseline:      cfg.Parser.WorkBaseline,
		EducationBaseline: cfg.Parser.EducationBaseline,
		SkillsBaseline:    cfg.Parser.SkillsBaseline,
	}))

	// AI 未配置时整条流水线走降级路径。
	var enhanceStage *parser.AIEnhancementStage
	aiCfg := ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
	}
	if aiCfg.Configured() {
		enhanceStage = parser.NewAIEnhancementStage(
			ai.NewValidator(aiCfg, nil, logger),
			int64(cfg.AI.Concurrency),
			cfg.AI.Attempts,
			cfg.AI.Timeout,
			cfg.AI.Backoff,
			logger,
		)
	} else {
		logger.Warn("ai validation not configured, jobs will run degraded")
	}

	exec := executor.New(store, downstream, cfg.Parser.JobAttempts, cfg.Parser.JobBackoff, cfg.Parser.JobTimeout, logger)
	orchestrator := parser.NewOrchestrator(textStage, entityStage, enhanceStage, store, exec, logger)

	// 跨进程取消：API 侧广播作业号，持有该作业的 worker 响应。
	cancelCtx, stopCancel := context.WithCancel(context.Background())
	defer stopCancel()
	go broadcast.SubscribeCancel(cancelCtx, redisClient, logger, func(jobID string) {
		if exec.Cancel(jobID) {
			logger.Info("job cancellation requested", slog.String("job_id", jobID))
		}
	})

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		Concurrency: 10,
	})

	parseHandler := worker.NewParseTaskHandler(store, storageClient, exec, orchestrator, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeDocumentParse, parseHandler)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
