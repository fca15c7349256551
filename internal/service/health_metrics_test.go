package service_test

import (
	"encoding/json"
	"testing"

	"healthmon/internal/predictor"
	"healthmon/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBMI(t *testing.T) {
	assert.InDelta(t, 30.45, service.CalculateBMI(88, 1.70), 0.01)
	assert.InDelta(t, 22.86, service.CalculateBMI(70, 1.75), 0.01)
}

func TestAlertPolicy_Evaluate(t *testing.T) {
	policy := service.DefaultAlertPolicy()

	tests := []struct {
		name   string
		result *predictor.Result
		want   bool
	}{
		{
			name:   "nil result",
			result: nil,
			want:   false,
		},
		{
			name:   "no signals present",
			result: &predictor.Result{},
			want:   false,
		},
		{
			name:   "bool alert true",
			result: &predictor.Result{PredictedRisk: "Low Risk", Alert: json.RawMessage(`true`)},
			want:   true,
		},
		{
			name:   "bool alert false low risk",
			result: &predictor.Result{PredictedRisk: "Low Risk", Alert: json.RawMessage(`false`)},
			want:   false,
		},
		{
			name:   "string alert normal",
			result: &predictor.Result{PredictedRisk: "Low Risk", Alert: json.RawMessage(`"normal"`)},
			want:   false,
		},
		{
			name:   "string alert non-normal",
			result: &predictor.Result{PredictedRisk: "Low Risk", Alert: json.RawMessage(`"tachycardia"`)},
			want:   true,
		},
		{
			name:   "high risk label without alert field",
			result: &predictor.Result{PredictedRisk: "High Risk"},
			want:   true,
		},
		{
			name:   "high risk label case insensitive",
			result: &predictor.Result{PredictedRisk: "high risk"},
			want:   true,
		},
		{
			name:   "medium risk without alert field",
			result: &predictor.Result{PredictedRisk: "Medium Risk"},
			want:   false,
		},
		{
			name:   "alert false but label high risk",
			result: &predictor.Result{PredictedRisk: "High Risk", Alert: json.RawMessage(`false`)},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Evaluate(tt.result))
		})
	}
}

func TestAlertPolicy_CustomVocabulary(t *testing.T) {
	policy := service.NewAlertPolicy([]string{"Critical"}, []string{"ok"})

	assert.True(t, policy.Evaluate(&predictor.Result{PredictedRisk: "Critical"}))
	assert.False(t, policy.Evaluate(&predictor.Result{PredictedRisk: "High Risk"}))
	assert.False(t, policy.Evaluate(&predictor.Result{PredictedRisk: "Stable", Alert: json.RawMessage(`"ok"`)}))
	assert.True(t, policy.Evaluate(&predictor.Result{PredictedRisk: "Stable", Alert: json.RawMessage(`"warn"`)}))
}

func TestAlertPolicy_Deterministic(t *testing.T) {
	policy := service.DefaultAlertPolicy()
	result := &predictor.Result{PredictedRisk: "High Risk"}

	first := policy.Evaluate(result)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, policy.Evaluate(result))
	}
}
