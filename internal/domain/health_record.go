package domain

import "time"

// HealthRecord 最终测量记录（插入后不可变）
// 参考原表结构：health_data（user_id + measured_at 索引、predicted_risk 索引）
type HealthRecord struct {
	RecordID string `json:"record_id"` // UUID
	UserID   string `json:"user_id"`   // UUID
	DeviceID string `json:"device_id"`

	// 设备最终稳定读数
	HeartRate       float64 `json:"heart_rate"`
	BodyTemperature float64 `json:"body_temperature"`

	// 测量时刻的用户生理参数快照
	Age      int     `json:"age"`
	WeightKg float64 `json:"weight_kg"`
	HeightM  float64 `json:"height_m"`
	Gender   string  `json:"gender"`

	// 派生与预测结果
	BMICalculated float64            `json:"bmi_calculated"`           // weight_kg / height_m^2
	PredictedRisk string             `json:"predicted_risk"`           // 如 'Low Risk' / 'Medium Risk' / 'High Risk'
	Probabilities map[string]float64 `json:"probabilities,omitempty"`  // 标签 -> 概率（可空）
	Alert         bool               `json:"alert"`

	MeasuredAt time.Time `json:"measured_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
