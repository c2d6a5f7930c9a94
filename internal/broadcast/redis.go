package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"resumate/internal/parser"
)

// Redis 频道约定：进度事件按作业分发，取消信号走单独频道。
const cancelChannel = "job_cancel"

// ProgressChannel 返回某作业的进度事件频道名。
func ProgressChannel(jobID string) string {
	return "job_progress:" + jobID
}

// RedisPublisher 把进度事件转发到 Redis Pub/Sub，
// 让 API 进程能够跨进程订阅并推送给 WebSocket 客户端。
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisPublisher 构造 Redis 事件转发器。
func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// Publish 实现 parser.Publisher。投递是尽力而为的：
// 序列化或发布失败只记录日志，不影响流水线推进。
func (p *RedisPublisher) Publish(jobID string, event parser.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal progress event failed",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.client.Publish(ctx, ProgressChannel(jobID), data).Err(); err != nil {
		p.logger.Error("publish progress event failed",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

// PublishCancel 在取消频道广播作业取消请求。
func PublishCancel(ctx context.Context, client *redis.Client, jobID string) error {
	return client.Publish(ctx, cancelChannel, jobID).Err()
}

// SubscribeCancel 订阅取消频道，每收到一个作业 ID 调用一次 onCancel。
// 阻塞运行直到 ctx 结束，通常放在独立 goroutine 中。
func SubscribeCancel(ctx context.Context, client *redis.Client, logger *slog.Logger, onCancel func(jobID string)) {
	if logger == nil {
		logger = slog.Default()
	}

	pubsub := client.Subscribe(ctx, cancelChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				logger.Warn("cancel channel closed")
				return
			}
			onCancel(msg.Payload)
		}
	}
}

// MultiPublisher 把同一事件扇出到多个下游发布器。
type MultiPublisher []parser.Publisher

// Publish 实现 parser.Publisher。
func (m MultiPublisher) Publish(jobID string, event parser.ProgressEvent) {
	for _, p := range m {
		p.Publish(jobID, event)
	}
}
