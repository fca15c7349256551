package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrUnavailable 预测服务不可用（超时 / 传输错误 / 非 2xx / 响应无法解析）
var ErrUnavailable = errors.New("prediction service unavailable")

// Request 预测请求（字段与 ML 服务 /predict 的入参一一对应）
type Request struct {
	HeartRate       float64 `json:"heart_rate"`
	BodyTemperature float64 `json:"body_temperature"`
	Age             int     `json:"age"`
	WeightKg        float64 `json:"weight_kg"`
	HeightM         float64 `json:"height_m"`
	Gender          string  `json:"gender"`
	PatientID       string  `json:"patient_id"`
}

// Result 预测结果
// predicted_risk 必须存在；alert 可能是 bool 也可能是字符串，保留原始形式交给告警策略判定；
// Raw 保留完整响应体，原样透传给通知事件。
type Result struct {
	PredictedRisk string             `json:"predicted_risk"`
	Alert         json.RawMessage    `json:"alert,omitempty"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Raw           json.RawMessage    `json:"-"`
}

// Client 风险预测服务 HTTP 客户端
// 每次调用只尝试一次：失败直接返回 ErrUnavailable，重试与否由调用方决定（本设计不重试）。
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建预测服务客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Predict 调用 POST /predict
func (c *Client) Predict(ctx context.Context, req *Request) (*Result, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		Post("/predict")

	if err != nil {
		c.logger.Error("Predictor call failed",
			zap.String("patient_id", req.PatientID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.IsError() {
		c.logger.Error("Predictor returned error status",
			zap.String("patient_id", req.PatientID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	body := resp.Body()
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrUnavailable, err)
	}
	if result.PredictedRisk == "" {
		return nil, fmt.Errorf("%w: response missing predicted_risk", ErrUnavailable)
	}
	result.Raw = append(json.RawMessage(nil), body...)

	c.logger.Info("Prediction successful",
		zap.String("patient_id", req.PatientID),
		zap.String("predicted_risk", result.PredictedRisk),
	)

	return &result, nil
}
