package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"geowarden/internal/api/handlers"
	"geowarden/internal/database/repositories"
	"geowarden/internal/detection"
	"geowarden/internal/intelligence"
	"geowarden/internal/moderation"
	"geowarden/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// locatedIPs resolves a handful of documentation addresses to fixed cities.
var locatedIPs = map[string]*intelligence.Result{
	"198.51.100.10": {HasLocation: true, Latitude: 51.5074, Longitude: -0.1278, Country: "GB", City: "London"},
	"198.51.100.20": {HasLocation: true, Latitude: 34.0522, Longitude: -118.2437, Country: "US", City: "Los Angeles"},
	"198.51.100.30": {HasLocation: true, Latitude: 40.7128, Longitude: -74.0060, Country: "US", City: "New York"},
}

type testServer struct {
	router *gin.Engine
	clock  *time.Time
}

func newTestServer(t *testing.T, origins []string, trustedProxies ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDatabase(t)
	logger := testutil.Logger()
	now := startTime
	clock := func() time.Time { return now }

	intel := intelligence.ProviderFunc(func(_ context.Context, ip string) (*intelligence.Result, error) {
		return locatedIPs[ip], nil
	})
	service := detection.NewService(repositories.NewDetectionRepository(db), intel, logger,
		detection.WithClock(clock))
	workflow := moderation.NewWorkflow(db, logger, moderation.WithClock(clock))

	router, err := NewRouter(RouterConfig{
		Locations:      handlers.NewLocationHandler(service, logger),
		Moderation:     handlers.NewModerationHandler(workflow, logger),
		System:         handlers.NewSystemHandler(workflow, nil, nil, nil, logger, ""),
		AllowedOrigins: origins,
		TrustedProxies: trustedProxies,
		MetricsEnabled: true,
		Logger:         logger,
	})
	require.NoError(t, err)
	return &testServer{router: router, clock: &now}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func claim(userID int64, lat, lon float64, ip string) map[string]interface{} {
	return map[string]interface{}{
		"user_id":    userID,
		"latitude":   lat,
		"longitude":  lon,
		"ip_address": ip,
	}
}

func moderator(id int) map[string]string {
	return map[string]string{handlers.ModeratorHeader: strconv.Itoa(id)}
}

func TestLocations_CleanClaim(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/api/v1/locations", claim(1, 40.7128, -74.0060, "198.51.100.30"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["detected"])
}

func TestLocations_ForwardedForNeedsTrustedProxy(t *testing.T) {
	forwarded := map[string]string{"X-Forwarded-For": "198.51.100.10"}
	body := map[string]interface{}{"user_id": 1, "latitude": 40.7128, "longitude": -74.0060}

	// httptest requests arrive from 192.0.2.1, which resolves nowhere
	untrusted := newTestServer(t, nil)
	w := untrusted.do(t, http.MethodPost, "/api/v1/locations", body, forwarded)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["detected"])

	trusted := newTestServer(t, nil, "192.0.2.1")
	w = trusted.do(t, http.MethodPost, "/api/v1/locations", body, forwarded)
	require.Equal(t, http.StatusCreated, w.Code)
	stored := decode(t, w)["detection"].(map[string]interface{})
	assert.Equal(t, "198.51.100.10", stored["ip_address"])
}

func TestNewRouter_RejectsBadTrustedProxy(t *testing.T) {
	_, err := NewRouter(RouterConfig{TrustedProxies: []string{"lb.internal"}})
	assert.Error(t, err)
}

func TestLocations_Validation(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"latitude out of range", claim(1, 95, 0, "198.51.100.30"), http.StatusUnprocessableEntity},
		{"missing user", map[string]interface{}{"latitude": 1.0, "longitude": 1.0}, http.StatusUnprocessableEntity},
		{"missing longitude", map[string]interface{}{"user_id": 1, "latitude": 1.0}, http.StatusUnprocessableEntity},
		{"bad ip", claim(1, 1, 1, "not-an-ip"), http.StatusUnprocessableEntity},
		{"malformed json", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/api/v1/locations", tt.body, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLocations_EquatorAndMeridianAreValid(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/api/v1/locations", claim(1, 0, 0, ""), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModerationFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	// Claims New York from a London address
	w := srv.do(t, http.MethodPost, "/api/v1/locations", claim(42, 40.7128, -74.0060, "198.51.100.10"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode(t, w)["detection"].(map[string]interface{})
	assert.EqualValues(t, 40, first["suspicion_score"])

	// An hour later claims Los Angeles from a Los Angeles address
	*srv.clock = startTime.Add(time.Hour)
	w = srv.do(t, http.MethodPost, "/api/v1/locations", claim(42, 34.0522, -118.2437, "198.51.100.20"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	second := decode(t, w)["detection"].(map[string]interface{})
	assert.EqualValues(t, 50, second["suspicion_score"])
	assert.Contains(t, second["detection_flags"], "impossible_velocity")

	w = srv.do(t, http.MethodGet, "/api/v1/moderation/detections?min_score=45", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode(t, w)
	assert.EqualValues(t, 1, queue["total"])

	secondID := strconv.Itoa(int(second["id"].(float64)))
	review := map[string]interface{}{"action": "confirm", "reason": "impossible travel", "apply_throttle": true}

	w = srv.do(t, http.MethodPost, "/api/v1/moderation/detections/"+secondID+"/review", review, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/moderation/detections/"+secondID+"/review", review, moderator(7))
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)
	assert.Equal(t, "confirmed", result["state"])
	assert.Equal(t, true, result["changed"])
	throttle := result["throttle"].(map[string]interface{})
	assert.EqualValues(t, 3, throttle["severity"])

	w = srv.do(t, http.MethodPost, "/api/v1/moderation/detections/"+secondID+"/review",
		map[string]interface{}{"action": "dismiss", "reason": "travelling"}, moderator(8))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/moderation/users/42/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	detections := stats["detections"].(map[string]interface{})
	assert.EqualValues(t, 2, detections["total_detections"])
	assert.EqualValues(t, 1, detections["confirmed_spoofs"])
	throttles := stats["throttles"].(map[string]interface{})
	assert.Equal(t, true, throttles["is_throttled"])
	assert.InDelta(t, 0.30, throttles["current_visibility"], 1e-9)

	w = srv.do(t, http.MethodGet, "/api/v1/moderation/throttles", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	throttleID := strconv.Itoa(int(throttle["id"].(float64)))
	w = srv.do(t, http.MethodDelete, "/api/v1/moderation/throttles/"+throttleID+"?reason=appeal", nil, moderator(9))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodDelete, "/api/v1/moderation/throttles/"+throttleID, nil, moderator(9))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/moderation/actions?user_id=42", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = srv.do(t, http.MethodGet, "/api/v1/moderation/detections/"+secondID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Equal(t, "confirmed", detail["state"])
	assert.Len(t, detail["history"], 2)
}

func TestModeration_NotFoundAndBadIDs(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/api/v1/moderation/detections/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/moderation/detections/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/moderation/detections/999/review",
		map[string]interface{}{"action": "confirm", "reason": "spoofing"}, moderator(7))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/moderation/detections/1/review",
		map[string]interface{}{"action": "confirm"}, moderator(7))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := decode(t, w)["fields"].(map[string]interface{})
	assert.Equal(t, "required", fields["Reason"])

	w = srv.do(t, http.MethodPost, "/api/v1/moderation/detections/1/review",
		map[string]interface{}{"action": "ban", "reason": "spoofing"}, moderator(7))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSystemStats(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/api/v1/system/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, "disabled", stats["intel_breaker_state"])
	assert.Equal(t, "Disabled", stats["next_cleanup_time"])
	assert.EqualValues(t, 0, stats["pending_detections"])

	w = srv.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_RequestID(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = srv.do(t, http.MethodGet, "/health", nil, nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestMiddleware_CORS(t *testing.T) {
	srv := newTestServer(t, []string{"https://mod.example"})

	w := srv.do(t, http.MethodOptions, "/api/v1/locations", nil, map[string]string{"Origin": "https://mod.example"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://mod.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = srv.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := newTestServer(t, nil)
	w = open.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://any.example"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, http.MethodGet, "/health", nil, nil)

	w := srv.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "geowarden_api_request_duration_seconds")
}
