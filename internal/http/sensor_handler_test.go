package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthmon/internal/domain"
	httpapi "healthmon/internal/http"
	"healthmon/internal/predictor"
	"healthmon/internal/service"
)

// ---------- 测试替身 ----------

type fakeIngestor struct {
	result  *service.SubmitResult
	err     error
	lastReq *service.SubmitRequest
}

func (f *fakeIngestor) Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
	f.lastReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeSessions token -> user_id 静态映射
type fakeSessions struct {
	tokens map[string]string
	err    error
}

func (f *fakeSessions) Resolve(ctx context.Context, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.tokens[token], nil
}

func newTestServer(ingestor *fakeIngestor) *httptest.Server {
	logger := zap.NewNop()
	auth := httpapi.NewAuthMiddleware(&fakeSessions{tokens: map[string]string{"valid-token": "user-1"}}, logger)
	sensor := httpapi.NewSensorHandler(ingestor, logger)
	records := httpapi.NewHealthDataHandler(&fakeRecordsRepo{}, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterHealthDataRoutes(auth, sensor, records)
	return httptest.NewServer(router)
}

func postVitals(t *testing.T, server *httptest.Server, token, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/health-data", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// ---------- 认证 ----------

func TestIngest_NoTokenIsUnauthenticated(t *testing.T) {
	server := newTestServer(&fakeIngestor{})
	defer server.Close()

	resp := postVitals(t, server, "", `{"heart_rate":72,"body_temperature":36.8,"device_id":"d1"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Unauthenticated", body["error"])
}

func TestIngest_UnknownTokenIsUnauthenticated(t *testing.T) {
	server := newTestServer(&fakeIngestor{})
	defer server.Close()

	resp := postVitals(t, server, "expired-token", `{"heart_rate":72,"body_temperature":36.8,"device_id":"d1"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Unauthenticated", body["error"])
}

func TestIngest_MalformedAuthorizationHeader(t *testing.T) {
	server := newTestServer(&fakeIngestor{})
	defer server.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/health-data",
		strings.NewReader(`{"heart_rate":72,"body_temperature":36.8,"device_id":"d1"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ---------- 请求体校验 ----------

func TestIngest_InvalidBody(t *testing.T) {
	server := newTestServer(&fakeIngestor{})
	defer server.Close()

	resp := postVitals(t, server, "valid-token", `not json`, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invalid request body", body["error"])
}

func TestIngest_MissingFields(t *testing.T) {
	server := newTestServer(&fakeIngestor{})
	defer server.Close()

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing heart_rate", `{"body_temperature":36.8,"device_id":"d1"}`},
		{"missing body_temperature", `{"heart_rate":72,"device_id":"d1"}`},
		{"missing device_id", `{"heart_rate":72,"body_temperature":36.8}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postVitals(t, server, "valid-token", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestIngest_ZeroValuesAreNotMissing(t *testing.T) {
	ingestor := &fakeIngestor{result: &service.SubmitResult{Final: false}}
	server := newTestServer(ingestor)
	defer server.Close()

	resp := postVitals(t, server, "valid-token", `{"heart_rate":0,"body_temperature":0,"device_id":"d1"}`, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, ingestor.lastReq)
	assert.Equal(t, 0.0, ingestor.lastReq.HeartRate)
}

// ---------- 成功路径 ----------

func TestIngest_LivePreviewAck(t *testing.T) {
	ingestor := &fakeIngestor{result: &service.SubmitResult{Final: false}}
	server := newTestServer(ingestor)
	defer server.Close()

	resp := postVitals(t, server, "valid-token", `{"heart_rate":72,"body_temperature":36.8,"device_id":"d1"}`, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "received", body["status"])
	assert.Equal(t, "Live data received - waiting for measurement completion", body["message"])

	require.NotNil(t, ingestor.lastReq)
	assert.Equal(t, "user-1", ingestor.lastReq.UserID)
	assert.Equal(t, "d1", ingestor.lastReq.DeviceID)
	assert.False(t, ingestor.lastReq.Final)
}

func TestIngest_FinalSuccessResponseShape(t *testing.T) {
	ingestor := &fakeIngestor{result: &service.SubmitResult{
		Final:       true,
		FinalVitals: &domain.StagedVitals{HeartRate: 75, BodyTemperature: 37.0},
		Analysis:    json.RawMessage(`{"predicted_risk":"Low Risk","alert":false}`),
		RecordID:    "record-1",
	}}
	server := newTestServer(ingestor)
	defer server.Close()

	resp := postVitals(t, server, "valid-token",
		`{"heart_rate":75,"body_temperature":37.0,"device_id":"d1","final":true}`, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Measurement completed and analyzed", body["message"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "record-1", data["record_id"])

	finalVitals, ok := data["final_vitals"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 75.0, finalVitals["heart_rate"])
	assert.Equal(t, 37.0, finalVitals["body_temperature"])

	analysis, ok := data["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Low Risk", analysis["predicted_risk"])

	require.NotNil(t, ingestor.lastReq)
	assert.True(t, ingestor.lastReq.Final)
}

func TestIngest_SocketIDHeaderIsForwarded(t *testing.T) {
	ingestor := &fakeIngestor{result: &service.SubmitResult{Final: false}}
	server := newTestServer(ingestor)
	defer server.Close()

	resp := postVitals(t, server, "valid-token",
		`{"heart_rate":72,"body_temperature":36.8,"device_id":"d1"}`,
		map[string]string{"X-Socket-ID": "socket-abc"})
	defer resp.Body.Close()

	require.NotNil(t, ingestor.lastReq)
	assert.Equal(t, "socket-abc", ingestor.lastReq.SocketID)
}

// ---------- 错误映射 ----------

func TestIngest_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "no recent measurement",
			err:        service.ErrNoRecentMeasurement,
			wantStatus: http.StatusBadRequest,
			wantError:  "No recent measurement data",
		},
		{
			name:       "profile incomplete",
			err:        service.ErrProfileIncomplete,
			wantStatus: http.StatusBadRequest,
			wantError:  "User profile incomplete",
		},
		{
			name:       "predictor unavailable",
			err:        fmt.Errorf("%w: connection refused", predictor.ErrUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Machine Learning Service Unavailable",
		},
		{
			name:       "storage unavailable",
			err:        fmt.Errorf("%w: connection reset", service.ErrStorageUnavailable),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(&fakeIngestor{err: tt.err})
			defer server.Close()

			resp := postVitals(t, server, "valid-token",
				`{"heart_rate":75,"body_temperature":37.0,"device_id":"d1","final":true}`, nil)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

// ---------- 路由 ----------

func TestIngest_MethodNotAllowed(t *testing.T) {
	server := newTestServer(&fakeIngestor{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/health-data")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(&fakeIngestor{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}
