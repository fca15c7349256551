package httpapi

import (
	"context"
	"errors"
	"net/http"

	"healthmon/internal/predictor"
	"healthmon/internal/service"

	"go.uber.org/zap"
)

const maxIngestBodyBytes = 64 * 1024

// Ingestor 采集管道抽象（便于单元测试替换）
type Ingestor interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
}

// SensorHandler 设备上报 Handler
type SensorHandler struct {
	ingestion Ingestor
	logger    *zap.Logger
}

// NewSensorHandler 创建 SensorHandler
func NewSensorHandler(ingestion Ingestor, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{
		ingestion: ingestion,
		logger:    logger,
	}
}

// ingestRequest POST /api/v1/health-data 请求体
// heart_rate / body_temperature 用指针区分"缺失"与 0
type ingestRequest struct {
	HeartRate       *float64 `json:"heart_rate"`
	BodyTemperature *float64 `json:"body_temperature"`
	DeviceID        string   `json:"device_id"`
	Final           bool     `json:"final"`
}

// Ingest 处理设备上报
// POST /api/v1/health-data
func (h *SensorHandler) Ingest(w http.ResponseWriter, r *http.Request, userID string) {
	var req ingestRequest
	if err := readBodyJSON(r, maxIngestBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DeviceID == "" || req.HeartRate == nil || req.BodyTemperature == nil {
		writeError(w, http.StatusBadRequest, "heart_rate, body_temperature and device_id are required")
		return
	}

	result, err := h.ingestion.Submit(r.Context(), service.SubmitRequest{
		UserID:          userID,
		DeviceID:        req.DeviceID,
		HeartRate:       *req.HeartRate,
		BodyTemperature: *req.BodyTemperature,
		Final:           req.Final,
		SocketID:        r.Header.Get("X-Socket-ID"),
	})
	if err != nil {
		h.writeSubmitError(w, userID, req.DeviceID, err)
		return
	}

	if !result.Final {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "received",
			"message": "Live data received - waiting for measurement completion",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Measurement completed and analyzed",
		"data": map[string]any{
			"final_vitals": map[string]any{
				"heart_rate":       result.FinalVitals.HeartRate,
				"body_temperature": result.FinalVitals.BodyTemperature,
			},
			"analysis":  result.Analysis,
			"record_id": result.RecordID,
		},
	})
}

func (h *SensorHandler) writeSubmitError(w http.ResponseWriter, userID, deviceID string, err error) {
	switch {
	case errors.Is(err, service.ErrNoRecentMeasurement):
		writeError(w, http.StatusBadRequest, "No recent measurement data")
	case errors.Is(err, service.ErrProfileIncomplete):
		writeError(w, http.StatusBadRequest, "User profile incomplete")
	case errors.Is(err, predictor.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Machine Learning Service Unavailable")
	default:
		h.logger.Error("Ingest failed",
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
