package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"healthmon/internal/config"
	"healthmon/internal/service"

	"go.uber.org/zap"
)

// Ingestor 采集管道抽象（与 HTTP 通道共用同一条管道）
type Ingestor interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
}

// vitalsMessage 设备上报的 MQTT 消息体
type vitalsMessage struct {
	HeartRate       *float64 `json:"heart_rate"`
	BodyTemperature *float64 `json:"body_temperature"`
	Final           bool     `json:"final"`
}

// VitalsConsumer 设备直连采集通道
// 订阅 vitals/{userID}/{deviceID}，把读数送入与 HTTP 相同的采集管道。
// 设备在配网时绑定到用户，身份来自主题而非会话。
type VitalsConsumer struct {
	config     *config.MQTTConfig
	mqttClient *Client
	ingestion  Ingestor
	logger     *zap.Logger
}

// NewVitalsConsumer 创建 MQTT 采集消费者
func NewVitalsConsumer(cfg *config.MQTTConfig, mqttClient *Client, ingestion Ingestor, logger *zap.Logger) *VitalsConsumer {
	return &VitalsConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		ingestion:  ingestion,
		logger:     logger,
	}
}

// Start 启动消费者（阻塞直到 ctx 取消）
func (c *VitalsConsumer) Start(ctx context.Context) error {
	topic := c.config.Topic
	if topic == "" {
		return fmt.Errorf("vitals MQTT topic not configured")
	}

	if err := c.mqttClient.Subscribe(topic, c.config.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to vitals topic: %w", err)
	}

	c.logger.Info("MQTT vitals consumer started",
		zap.String("topic", topic),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *VitalsConsumer) Stop() {
	if c.config.Topic != "" {
		if err := c.mqttClient.Unsubscribe(c.config.Topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}
	c.logger.Info("MQTT vitals consumer stopped")
}

// HandleMessage 处理一条设备消息
// 主题格式：vitals/{userID}/{deviceID}
func (c *VitalsConsumer) HandleMessage(topic string, payload []byte) error {
	userID, deviceID, err := parseVitalsTopic(topic)
	if err != nil {
		c.logger.Warn("Ignoring MQTT message with invalid topic",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	var msg vitalsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("Failed to unmarshal vitals MQTT message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if msg.HeartRate == nil || msg.BodyTemperature == nil {
		err := fmt.Errorf("vitals message missing heart_rate or body_temperature")
		c.logger.Warn("Ignoring incomplete vitals MQTT message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	// MQTT 通道没有触发连接，无需去自回声（SocketID 留空）
	_, err = c.ingestion.Submit(context.Background(), service.SubmitRequest{
		UserID:          userID,
		DeviceID:        deviceID,
		HeartRate:       *msg.HeartRate,
		BodyTemperature: *msg.BodyTemperature,
		Final:           msg.Final,
	})
	if err != nil {
		c.logger.Error("Failed to process vitals message",
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
			zap.Bool("is_final", msg.Final),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func parseVitalsTopic(topic string) (userID, deviceID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "vitals" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("unexpected topic format: %s", topic)
	}
	return parts[1], parts[2], nil
}
