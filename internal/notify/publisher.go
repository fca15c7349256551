package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// VitalsSnapshot 事件中携带的最终读数快照
type VitalsSnapshot struct {
	HeartRate       float64 `json:"heart_rate"`
	BodyTemperature float64 `json:"body_temperature"`
	DeviceID        string  `json:"device_id"`
	IsFinal         bool    `json:"is_final"`
}

// HealthUpdateEvent 测量完成事件
// Socket 携带触发请求自己的连接标识（X-Socket-ID）：
// WebSocket 网关据此跳过发起方连接，避免自回声。
type HealthUpdateEvent struct {
	UserID   string          `json:"user_id"`
	Analysis json.RawMessage `json:"analysis"`
	Vitals   VitalsSnapshot  `json:"vitals"`
	Socket   string          `json:"socket,omitempty"`
}

// Publisher 测量完成事件发布器
type Publisher interface {
	PublishHealthUpdate(ctx context.Context, event *HealthUpdateEvent) error
}

// RedisPublisher 基于 Redis Pub/Sub 的发布器
// 频道按用户隔离（"user.{userID}"），只有该用户的订阅网关能收到。
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: logger,
	}
}

var _ Publisher = (*RedisPublisher)(nil)

// ChannelForUser 用户私有频道名
func ChannelForUser(userID string) string {
	return "user." + userID
}

// PublishHealthUpdate 发布测量完成事件
// 无订阅者不是错误（fire-and-forget）；序列化或连接失败返回 error，由调用方决定是否忽略。
func (p *RedisPublisher) PublishHealthUpdate(ctx context.Context, event *HealthUpdateEvent) error {
	if event == nil || event.UserID == "" {
		return fmt.Errorf("event user_id is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal health update event: %w", err)
	}

	channel := ChannelForUser(event.UserID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish health update: %w", err)
	}

	p.logger.Debug("Published health update",
		zap.String("channel", channel),
		zap.String("device_id", event.Vitals.DeviceID),
	)

	return nil
}
