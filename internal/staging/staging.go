package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"healthmon/internal/domain"
	"healthmon/internal/store"

	"go.uber.org/zap"
)

// Key 暂存条目的复合键（结构化，避免调用方手工拼接字符串）
type Key struct {
	UserID   string
	DeviceID string
}

func (k Key) cacheKey() string {
	return fmt.Sprintf("vitals:latest:%s:%s", k.UserID, k.DeviceID)
}

// VitalsStaging 实时读数暂存
// 每个 (user, device) 至多保留最新一条，写入即覆盖（last-write-wins），
// TTL 内无最终包到达则自动过期。
type VitalsStaging struct {
	kv     store.KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewVitalsStaging(kv store.KV, ttl time.Duration, logger *zap.Logger) *VitalsStaging {
	return &VitalsStaging{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

// Put 无条件覆盖暂存条目并重置 TTL
func (s *VitalsStaging) Put(ctx context.Context, key Key, vitals *domain.StagedVitals) error {
	jsonData, err := json.Marshal(vitals)
	if err != nil {
		return fmt.Errorf("failed to marshal staged vitals: %w", err)
	}

	if err := s.kv.Set(ctx, key.cacheKey(), string(jsonData), s.ttl); err != nil {
		return fmt.Errorf("failed to stage vitals: %w", err)
	}

	s.logger.Debug("Staged latest vitals",
		zap.String("user_id", key.UserID),
		zap.String("device_id", key.DeviceID),
		zap.Float64("heart_rate", vitals.HeartRate),
		zap.Float64("body_temperature", vitals.BodyTemperature),
	)

	return nil
}

// Get 读取暂存条目；条目不存在或已过期时返回 (nil, nil)
func (s *VitalsStaging) Get(ctx context.Context, key Key) (*domain.StagedVitals, error) {
	raw, err := s.kv.Get(ctx, key.cacheKey())
	if err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read staged vitals: %w", err)
	}

	var vitals domain.StagedVitals
	if err := json.Unmarshal([]byte(raw), &vitals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal staged vitals: %w", err)
	}
	return &vitals, nil
}

// Evict 删除暂存条目（最终包处理成功后调用）
func (s *VitalsStaging) Evict(ctx context.Context, key Key) error {
	return s.kv.Del(ctx, key.cacheKey())
}
