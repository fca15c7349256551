package service

import (
	"encoding/json"
	"strings"

	"healthmon/internal/predictor"
)

// CalculateBMI 计算 BMI = weight_kg / height_m^2
// 前置条件：heightM > 0（由调用方保证，档案不完整的请求在进入管道前被拒绝）
func CalculateBMI(weightKg, heightM float64) float64 {
	return weightKg / (heightM * heightM)
}

// AlertPolicy 告警判定策略
// 预测服务词汇表到 bool 的映射是部署策略而非硬编码阈值：
// - alert 字段存在时按其取值判定（bool 直接用；字符串不在"正常"集合内即告警）
// - predicted_risk 命中高风险标签集合时告警
// 两个信号任一命中即告警；都缺失时默认不告警。
type AlertPolicy struct {
	highRiskLabels map[string]bool
	normalValues   map[string]bool
}

// NewAlertPolicy 创建告警策略（标签匹配不区分大小写）
func NewAlertPolicy(highRiskLabels, normalValues []string) AlertPolicy {
	p := AlertPolicy{
		highRiskLabels: make(map[string]bool, len(highRiskLabels)),
		normalValues:   make(map[string]bool, len(normalValues)+1),
	}
	for _, l := range highRiskLabels {
		p.highRiskLabels[strings.ToLower(strings.TrimSpace(l))] = true
	}
	for _, v := range normalValues {
		p.normalValues[strings.ToLower(strings.TrimSpace(v))] = true
	}
	// 空字符串视为无告警信号
	p.normalValues[""] = true
	return p
}

// DefaultAlertPolicy 与原系统行为一致的默认策略
func DefaultAlertPolicy() AlertPolicy {
	return NewAlertPolicy(
		[]string{"High Risk"},
		[]string{"normal", "none", "no", "false", "0"},
	)
}

// Evaluate 根据预测结果判定是否告警
func (p AlertPolicy) Evaluate(result *predictor.Result) bool {
	if result == nil {
		return false
	}
	return p.alertSignal(result.Alert) || p.riskSignal(result.PredictedRisk)
}

func (p AlertPolicy) alertSignal(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return !p.normalValues[strings.ToLower(strings.TrimSpace(s))]
	}
	// 无法识别的 alert 形式不产生告警信号
	return false
}

func (p AlertPolicy) riskSignal(label string) bool {
	if label == "" {
		return false
	}
	return p.highRiskLabels[strings.ToLower(strings.TrimSpace(label))]
}
