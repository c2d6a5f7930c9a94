package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumate/internal/api/middleware"
	"resumate/internal/auth"
	"resumate/internal/config"
	"resumate/internal/database"
	"resumate/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	store *database.Store,
	storageClient *storage.Client,
	asynqClient *asynq.Client,
	tokens *auth.TokenIssuer,
	redisClient *redis.Client,
	logger *slog.Logger,
) {
	jobHandler := NewJobHandler(store, storageClient, asynqClient, tokens, redisClient, cfg.Clamd.Address, logger)
	wsHandler := NewWsHandler(redisClient, tokens, logger, nil)
	passwordGate := middleware.PasswordGateMiddleware(cfg.Auth.APIPasswordHash)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		jobGroup := v1.Group("/jobs")
		jobGroup.Use(passwordGate)
		{
			jobGroup.POST("", jobHandler.SubmitJob)
			jobGroup.GET("/:id", jobHandler.GetJob)
			jobGroup.GET("/:id/result", jobHandler.GetJobResult)
			jobGroup.POST("/:id/cancel", jobHandler.CancelJob)
		}
	}
}
