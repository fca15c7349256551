package domain

import "time"

// StagedVitals 暂存的最新实时读数（每个 (user, device) 至多一条，TTL 过期）
type StagedVitals struct {
	HeartRate       float64   `json:"heart_rate"`
	BodyTemperature float64   `json:"body_temperature"`
	CapturedAt      time.Time `json:"captured_at"`
}
