package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"healthmon/internal/repository"

	"go.uber.org/zap"
)

// HealthDataHandler 测量记录查询 Handler
type HealthDataHandler struct {
	records repository.HealthRecordsRepository
	logger  *zap.Logger
}

// NewHealthDataHandler 创建 HealthDataHandler
func NewHealthDataHandler(records repository.HealthRecordsRepository, logger *zap.Logger) *HealthDataHandler {
	return &HealthDataHandler{
		records: records,
		logger:  logger,
	}
}

// Recent 当前用户最近的测量记录
// GET /api/v1/health-data/recent?limit=50
func (h *HealthDataHandler) Recent(w http.ResponseWriter, r *http.Request, userID string) {
	limit := parseIntQuery(r, "limit", repository.DefaultRecentLimit)

	records, err := h.records.RecentByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Recent records query failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"count": len(records),
	})
}

// HighRisk 告警记录列表（监护视图）
// GET /api/v1/health-data/high-risk?limit=50
func (h *HealthDataHandler) HighRisk(w http.ResponseWriter, r *http.Request, userID string) {
	limit := parseIntQuery(r, "limit", repository.DefaultRecentLimit)

	records, err := h.records.HighRisk(r.Context(), limit)
	if err != nil {
		h.logger.Error("High risk records query failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"count": len(records),
	})
}

// Export 导出当前用户测量历史为 Excel
// GET /api/v1/health-data/export?limit=50
func (h *HealthDataHandler) Export(w http.ResponseWriter, r *http.Request, userID string) {
	limit := parseIntQuery(r, "limit", repository.DefaultRecentLimit)

	records, err := h.records.RecentByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Export records query failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	data, err := GenerateHealthDataExport(records)
	if err != nil {
		h.logger.Error("Export generation failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	filename := fmt.Sprintf("health-data-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
