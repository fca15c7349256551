package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"healthmon/internal/domain"
	"healthmon/internal/notify"
	"healthmon/internal/predictor"
	"healthmon/internal/repository"
	"healthmon/internal/staging"

	"go.uber.org/zap"
)

var (
	// ErrNoRecentMeasurement 最终包到达时没有可用的暂存读数（从未上报或已过期）
	ErrNoRecentMeasurement = errors.New("no recent measurement data")
	// ErrProfileIncomplete 用户档案缺失或生理参数不完整（身高/体重无效），无法进入预测
	ErrProfileIncomplete = errors.New("user profile incomplete")
	// ErrStorageUnavailable 持久化层不可达，本次最终包处理失败
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// PredictorClient 预测服务客户端抽象（便于单元测试替换）
type PredictorClient interface {
	Predict(ctx context.Context, req *predictor.Request) (*predictor.Result, error)
}

// SubmitRequest 一次设备上报
// UserID 由上游认证层解析，payload 结构校验也在上游完成；管道信任入参。
type SubmitRequest struct {
	UserID          string
	DeviceID        string
	HeartRate       float64
	BodyTemperature float64
	Final           bool
	// SocketID 触发请求自己的 WebSocket 连接标识（用于通知去自回声，可为空）
	SocketID string
}

// SubmitResult 上报处理结果
// 非最终包只做暂存，Final=false；最终包成功时携带最终读数、预测分析和新记录 ID。
type SubmitResult struct {
	Final       bool
	FinalVitals *domain.StagedVitals
	Analysis    json.RawMessage
	RecordID    string
}

// IngestionService 采集管道编排器
// 每个 (user, device) 键上的状态机：Idle -> Staged -> Finalizing -> (Completed | Rejected | FailedUpstream)。
// 不持有跨请求锁：同键并发 finalize 可能各自读到同一暂存值并各产生一条记录（at-least-once）。
type IngestionService struct {
	staging   *staging.VitalsStaging
	predictor PredictorClient
	records   repository.HealthRecordsRepository
	users     repository.UsersRepository
	publisher notify.Publisher
	policy    AlertPolicy
	logger    *zap.Logger
}

// NewIngestionService 创建采集管道
func NewIngestionService(
	vitalsStaging *staging.VitalsStaging,
	predictorClient PredictorClient,
	records repository.HealthRecordsRepository,
	users repository.UsersRepository,
	publisher notify.Publisher,
	policy AlertPolicy,
	logger *zap.Logger,
) *IngestionService {
	return &IngestionService{
		staging:   vitalsStaging,
		predictor: predictorClient,
		records:   records,
		users:     users,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

// Submit 处理一次上报
func (s *IngestionService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	key := staging.Key{UserID: req.UserID, DeviceID: req.DeviceID}

	s.logger.Info("Vitals received",
		zap.String("user_id", req.UserID),
		zap.String("device_id", req.DeviceID),
		zap.Float64("heart_rate", req.HeartRate),
		zap.Float64("body_temperature", req.BodyTemperature),
		zap.Bool("is_final", req.Final),
	)

	vitals := &domain.StagedVitals{
		HeartRate:       req.HeartRate,
		BodyTemperature: req.BodyTemperature,
		CapturedAt:      time.Now(),
	}

	// 非最终包：覆盖暂存后仅确认收到（实时预览模式）
	if !req.Final {
		if err := s.staging.Put(ctx, key, vitals); err != nil {
			return nil, err
		}
		return &SubmitResult{Final: false}, nil
	}

	// 最终包：后续步骤不随调用方断开而中止（持久化优先于响应性）
	return s.finalize(context.WithoutCancel(ctx), key, req, vitals)
}

func (s *IngestionService) finalize(ctx context.Context, key staging.Key, req SubmitRequest, vitals *domain.StagedVitals) (*SubmitResult, error) {
	// 最终包之前必须有未过期的实时数据；被拒绝时不写暂存，
	// 单独重发最终包仍会被拒绝，必须先重新上报实时数据。
	prior, err := s.staging.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		s.logger.Warn("No recent vitals found for final processing",
			zap.String("user_id", key.UserID),
			zap.String("device_id", key.DeviceID),
		)
		return nil, ErrNoRecentMeasurement
	}

	// 覆盖后再读：最终读数本身也算最新一条
	if err := s.staging.Put(ctx, key, vitals); err != nil {
		return nil, err
	}
	finalVitals, err := s.staging.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if finalVitals == nil {
		// put 与 get 之间 TTL 过期（极端竞态）
		return nil, ErrNoRecentMeasurement
	}

	user, err := s.users.GetUser(ctx, key.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if user == nil || !user.HasBiometrics() {
		return nil, ErrProfileIncomplete
	}

	// 调用预测服务；失败时保留暂存条目，重发最终包可恢复
	age := user.Age()
	prediction, err := s.predictor.Predict(ctx, &predictor.Request{
		HeartRate:       finalVitals.HeartRate,
		BodyTemperature: finalVitals.BodyTemperature,
		Age:             age,
		WeightKg:        user.WeightKg,
		HeightM:         user.HeightM,
		Gender:          user.Gender,
		PatientID:       user.UserID,
	})
	if err != nil {
		s.logger.Error("Prediction failed during final processing",
			zap.String("user_id", key.UserID),
			zap.String("device_id", key.DeviceID),
			zap.Error(err),
		)
		return nil, err
	}

	record := &domain.HealthRecord{
		UserID:          key.UserID,
		DeviceID:        key.DeviceID,
		HeartRate:       finalVitals.HeartRate,
		BodyTemperature: finalVitals.BodyTemperature,
		Age:             age,
		WeightKg:        user.WeightKg,
		HeightM:         user.HeightM,
		Gender:          user.Gender,
		BMICalculated:   CalculateBMI(user.WeightKg, user.HeightM),
		PredictedRisk:   prediction.PredictedRisk,
		Probabilities:   prediction.Probabilities,
		Alert:           s.policy.Evaluate(prediction),
		MeasuredAt:      time.Now(),
	}

	recordID, err := s.records.Save(ctx, record)
	if err != nil {
		s.logger.Error("Failed to persist health record",
			zap.String("user_id", key.UserID),
			zap.String("device_id", key.DeviceID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// 通知失败不影响本次结果（fire-and-forget）
	event := &notify.HealthUpdateEvent{
		UserID:   key.UserID,
		Analysis: prediction.Raw,
		Vitals: notify.VitalsSnapshot{
			HeartRate:       finalVitals.HeartRate,
			BodyTemperature: finalVitals.BodyTemperature,
			DeviceID:        key.DeviceID,
			IsFinal:         true,
		},
		Socket: req.SocketID,
	}
	if err := s.publisher.PublishHealthUpdate(ctx, event); err != nil {
		s.logger.Warn("Failed to publish health update",
			zap.String("user_id", key.UserID),
			zap.Error(err),
		)
	}

	// 记录已落库，暂存清理失败只记日志（条目会随 TTL 过期）
	if err := s.staging.Evict(ctx, key); err != nil {
		s.logger.Warn("Failed to evict staged vitals",
			zap.String("user_id", key.UserID),
			zap.String("device_id", key.DeviceID),
			zap.Error(err),
		)
	}

	s.logger.Info("Measurement completed and analyzed",
		zap.String("user_id", key.UserID),
		zap.String("device_id", key.DeviceID),
		zap.String("record_id", recordID),
		zap.String("predicted_risk", prediction.PredictedRisk),
		zap.Bool("alert", record.Alert),
	)

	return &SubmitResult{
		Final:       true,
		FinalVitals: finalVitals,
		Analysis:    prediction.Raw,
		RecordID:    recordID,
	}, nil
}
