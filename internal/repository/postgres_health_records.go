package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"healthmon/internal/domain"

	"github.com/google/uuid"
)

// PostgresHealthRecordsRepository 测量记录 Repository 实现
type PostgresHealthRecordsRepository struct {
	db *sql.DB
}

// NewPostgresHealthRecordsRepository 创建测量记录 Repository
func NewPostgresHealthRecordsRepository(db *sql.DB) *PostgresHealthRecordsRepository {
	return &PostgresHealthRecordsRepository{db: db}
}

// 确保实现了接口
var _ HealthRecordsRepository = (*PostgresHealthRecordsRepository)(nil)

const healthRecordColumns = `
	record_id::text,
	user_id::text,
	device_id,
	heart_rate,
	body_temperature,
	age,
	weight_kg,
	height_m,
	gender,
	bmi_calculated,
	predicted_risk,
	COALESCE(probabilities::text, '') as probabilities,
	alert,
	measured_at,
	created_at,
	updated_at`

// Save 插入一条最终测量记录
func (r *PostgresHealthRecordsRepository) Save(ctx context.Context, record *domain.HealthRecord) (string, error) {
	if record.UserID == "" || record.DeviceID == "" {
		return "", fmt.Errorf("user_id and device_id are required")
	}

	recordID := record.RecordID
	if recordID == "" {
		recordID = uuid.NewString()
	}

	probabilities, err := marshalProbabilities(record.Probabilities)
	if err != nil {
		return "", fmt.Errorf("failed to marshal probabilities: %w", err)
	}

	query := `
		INSERT INTO health_data (
			record_id, user_id, device_id,
			heart_rate, body_temperature,
			age, weight_kg, height_m, gender,
			bmi_calculated, predicted_risk, probabilities, alert,
			measured_at, created_at, updated_at
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14, NOW(), NOW())
	`

	_, err = r.db.ExecContext(ctx, query,
		recordID,
		record.UserID,
		record.DeviceID,
		record.HeartRate,
		record.BodyTemperature,
		record.Age,
		record.WeightKg,
		record.HeightM,
		record.Gender,
		record.BMICalculated,
		record.PredictedRisk,
		probabilities,
		record.Alert,
		record.MeasuredAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert health record: %w", err)
	}

	record.RecordID = recordID
	return recordID, nil
}

// RecentByUser 查询某用户最近的测量记录（measured_at 倒序）
func (r *PostgresHealthRecordsRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.HealthRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
		SELECT ` + healthRecordColumns + `
		FROM health_data
		WHERE user_id = $1::uuid
		ORDER BY measured_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent health records: %w", err)
	}
	defer rows.Close()

	return scanHealthRecords(rows)
}

// HighRisk 查询告警记录（measured_at 倒序）
func (r *PostgresHealthRecordsRepository) HighRisk(ctx context.Context, limit int) ([]*domain.HealthRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
		SELECT ` + healthRecordColumns + `
		FROM health_data
		WHERE alert = TRUE
		ORDER BY measured_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query high risk health records: %w", err)
	}
	defer rows.Close()

	return scanHealthRecords(rows)
}

func scanHealthRecords(rows *sql.Rows) ([]*domain.HealthRecord, error) {
	var records []*domain.HealthRecord
	for rows.Next() {
		var record domain.HealthRecord
		var probabilities string
		err := rows.Scan(
			&record.RecordID,
			&record.UserID,
			&record.DeviceID,
			&record.HeartRate,
			&record.BodyTemperature,
			&record.Age,
			&record.WeightKg,
			&record.HeightM,
			&record.Gender,
			&record.BMICalculated,
			&record.PredictedRisk,
			&probabilities,
			&record.Alert,
			&record.MeasuredAt,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan health record: %w", err)
		}
		if probabilities != "" {
			if err := json.Unmarshal([]byte(probabilities), &record.Probabilities); err != nil {
				return nil, fmt.Errorf("failed to unmarshal probabilities: %w", err)
			}
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate health records: %w", err)
	}
	return records, nil
}

// marshalProbabilities 将概率映射序列化为 JSONB 文本；空映射写入 NULL
func marshalProbabilities(probabilities map[string]float64) (any, error) {
	if len(probabilities) == 0 {
		return nil, nil
	}
	jsonData, err := json.Marshal(probabilities)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}
