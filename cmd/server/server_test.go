package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/auth"
	"github.com/ZanzyTHEbar/leadpulse/internal/config"
	"github.com/ZanzyTHEbar/leadpulse/internal/mockdata"
	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	app     *app
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{
		Env:                  "test",
		Port:                 "0",
		DataDir:              dir,
		ProfileDir:           filepath.Join(dir, "profiles"),
		ScoringProfile:       "default",
		LogLevel:             "error",
		AdminJWTSecret:       testSecret,
		AdminTokenTTL:        time.Hour,
		CORSOrigins:          []string{"http://localhost:5173"},
		RateLimitPerMin:      1000,
		BatchRateLimitPerMin: 1000,
		CacheTTL:             time.Minute,
	}

	a, err := newApp(cfg, monitoring.NewLoggerWithWriter(io.Discard, slog.LevelError))
	require.NoError(t, err)
	t.Cleanup(a.close)

	return &testServer{app: a, handler: a.router()}
}

func (s *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, _ := json.Marshal(b)
		reader = bytes.NewBuffer(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func adminHeaders(t *testing.T) map[string]string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), "ops@example.com", time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Components["database"])
	assert.Equal(t, "disabled", health.Components["redis"])
	assert.Equal(t, s.app.configVersion(), health.ConfigVersion)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/health", nil, nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/health", nil, nil)

	w := s.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	for _, key := range []string{"requests", "scoring", "queues", "response_cache", "compression", "rate_limiter", "database"} {
		assert.Contains(t, body, key)
	}
}

func TestScoreEndpoint(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name           string
		body           interface{}
		headers        map[string]string
		expectedStatus int
		category       string
	}{
		{
			name: "scores a hot lead",
			body: types.ScoreRequest{Record: types.Record{
				ID:          "lead-1",
				Kind:        types.KindLead,
				Actions:     []string{"requested_demo", "visited_pricing"},
				Intents:     []string{"pricing"},
				Engagements: types.Ptr(12),
			}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "record without identity",
			body:           `{"record":{"kind":"lead"}}`,
			expectedStatus: http.StatusUnprocessableEntity,
			category:       "invalid_record",
		},
		{
			name:           "malformed body",
			body:           `{"record":`,
			expectedStatus: http.StatusBadRequest,
			category:       "validation",
		},
		{
			name:           "non-JSON content type",
			body:           "id=lead-1",
			headers:        map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/v1/score", tt.body, tt.headers)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			body := decode(t, w)
			if tt.category != "" {
				assert.Equal(t, tt.category, body["category"])
				return
			}
			if tt.expectedStatus == http.StatusOK {
				var scored scoring.ScoredRecord
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scored))
				assert.Equal(t, "lead-1", scored.Record.ID)
				assert.Equal(t, s.app.configVersion(), scored.Result.ConfigVersion)
				assert.NotEmpty(t, scored.Result.NextBestAction.ID)
				assert.GreaterOrEqual(t, scored.Result.Composite, 0)
				assert.LessOrEqual(t, scored.Result.Composite, 100)
			}
		})
	}
}

func TestPrioritizeEndpoint(t *testing.T) {
	s := newTestServer(t)

	records := mockdata.New(7).Mixed(12)
	records = append(records, types.Record{Kind: types.KindLead})
	req := types.PrioritizeRequest{Records: records, Limit: 5}

	w := s.do(http.MethodPost, "/v1/prioritize", req, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var body struct {
		Records       []scoring.ScoredRecord `json:"records"`
		Rejected      []scoring.Rejected     `json:"rejected"`
		Total         int                    `json:"total"`
		ConfigVersion string                 `json:"config_version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Records, 5)
	assert.Equal(t, 12, body.Total)
	require.Len(t, body.Rejected, 1)
	assert.Equal(t, 12, body.Rejected[0].Index)
	assert.Equal(t, s.app.configVersion(), body.ConfigVersion)

	for i := 1; i < len(body.Records); i++ {
		assert.GreaterOrEqual(t, body.Records[i-1].Result.Composite, body.Records[i].Result.Composite)
	}

	again := s.do(http.MethodPost, "/v1/prioritize", req, nil)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, w.Body.String(), again.Body.String())

	bad := s.do(http.MethodPost, "/v1/prioritize", `{"records":[],"limit":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestPrioritizeCompressesLargeResponses(t *testing.T) {
	s := newTestServer(t)

	req := types.PrioritizeRequest{Records: mockdata.New(3).Mixed(40)}
	w := s.do(http.MethodPost, "/v1/prioritize", req, map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(plain, &body))
	assert.Equal(t, float64(40), body["total"])
}

func TestRecordLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := types.Record{
		ID:          "lead-42",
		Kind:        types.KindLead,
		Status:      types.StatusQualified,
		Actions:     []string{"visited_pricing"},
		LastMessage: "<b>Can we talk pricing?</b>",
	}

	created := s.do(http.MethodPost, "/v1/records", rec, nil)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	assert.Equal(t, "Can we talk pricing?", decode(t, created)["last_message"])

	got := s.do(http.MethodGet, "/v1/records/lead-42", nil, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, false, decode(t, got)["archived"])

	view := s.do(http.MethodGet, "/v1/queues/lead", nil, nil)
	require.Equal(t, http.StatusOK, view.Code)
	assert.Equal(t, float64(1), decode(t, view)["total"])

	scored := s.do(http.MethodGet, "/v1/records/lead-42/score", nil, nil)
	require.Equal(t, http.StatusOK, scored.Code)
	var sr scoring.ScoredRecord
	require.NoError(t, json.Unmarshal(scored.Body.Bytes(), &sr))
	assert.Equal(t, "lead-42", sr.Record.ID)

	snapshot := s.do(http.MethodGet, "/v1/records/lead-42/snapshot", nil, nil)
	require.Equal(t, http.StatusOK, snapshot.Code)
	assert.Equal(t, "lead-42", decode(t, snapshot)["record_id"])

	rankings := s.do(http.MethodGet, "/v1/queues/lead/rankings", nil, nil)
	require.Equal(t, http.StatusOK, rankings.Code)
	assert.Equal(t, float64(1), decode(t, rankings)["count"])

	rec.Actions = append(rec.Actions, "requested_demo")
	updated := s.do(http.MethodPut, "/v1/records/lead-42", rec, nil)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())

	mismatch := s.do(http.MethodPut, "/v1/records/lead-42", types.Record{ID: "other"}, nil)
	assert.Equal(t, http.StatusBadRequest, mismatch.Code)

	archived := s.do(http.MethodDelete, "/v1/records/lead-42", nil, nil)
	require.Equal(t, http.StatusNoContent, archived.Code)

	view = s.do(http.MethodGet, "/v1/queues/lead", nil, nil)
	require.Equal(t, http.StatusOK, view.Code)
	assert.Equal(t, float64(0), decode(t, view)["total"])

	got = s.do(http.MethodGet, "/v1/records/lead-42", nil, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, true, decode(t, got)["archived"])
}

func TestRecordErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		expectedStatus int
		category       string
	}{
		{"missing record", http.MethodGet, "/v1/records/nope", nil, http.StatusNotFound, "not_found"},
		{"missing record score", http.MethodGet, "/v1/records/nope/score", nil, http.StatusNotFound, "not_found"},
		{"missing snapshot", http.MethodGet, "/v1/records/nope/snapshot", nil, http.StatusNotFound, "not_found"},
		{"archive missing record", http.MethodDelete, "/v1/records/nope", nil, http.StatusNotFound, "not_found"},
		{"invalid id characters", http.MethodGet, "/v1/records/bad%20id", nil, http.StatusBadRequest, "validation"},
		{"create without id", http.MethodPost, "/v1/records", types.Record{Kind: types.KindLead}, http.StatusBadRequest, "validation"},
		{"create with unknown kind", http.MethodPost, "/v1/records", types.Record{ID: "x-1", Kind: "ticket"}, http.StatusBadRequest, "validation"},
		{"update missing record", http.MethodPut, "/v1/records/nope", types.Record{Kind: types.KindLead}, http.StatusNotFound, "not_found"},
		{"unknown queue kind", http.MethodGet, "/v1/queues/ticket", nil, http.StatusBadRequest, "validation"},
		{"invalid limit", http.MethodGet, "/v1/queues/lead?limit=abc", nil, http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.body, nil)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.category, decode(t, w)["category"])
		})
	}
}

func TestConfigEndpoints(t *testing.T) {
	s := newTestServer(t)
	initial := s.app.configVersion()

	w := s.do(http.MethodGet, "/v1/config", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, initial, body["version"])
	assert.Contains(t, body, "config")

	t.Run("requires admin token", func(t *testing.T) {
		w := s.do(http.MethodPost, "/v1/admin/config", scoring.DefaultConfig(), nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decode(t, w)["category"])
	})

	t.Run("rejects invalid configuration", func(t *testing.T) {
		w := s.do(http.MethodPost, "/v1/admin/config", `{}`, adminHeaders(t))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "configuration", decode(t, w)["category"])
		assert.Equal(t, initial, s.app.configVersion())
	})

	t.Run("applies and saves valid configuration", func(t *testing.T) {
		cfg := scoring.DefaultConfig()
		cfg.Risk.EscalatedPoints = 45

		w := s.do(http.MethodPost, "/v1/admin/config?profile=tuned", cfg, adminHeaders(t))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		body := decode(t, w)
		assert.Equal(t, initial, body["previous_version"])
		assert.NotEqual(t, initial, body["version"])
		assert.Equal(t, body["version"], s.app.configVersion())

		_, err := os.Stat(filepath.Join(s.app.cfg.ProfileDir, "tuned.yaml"))
		assert.NoError(t, err)

		saved, err := s.app.profiles.LoadProfile("tuned")
		require.NoError(t, err)
		assert.Equal(t, 45.0, saved.Risk.EscalatedPoints)
	})
}

func TestPrivacyEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := types.Record{ID: "conv-7", Kind: types.KindConversation, Status: types.StatusWaiting}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/records", rec, nil).Code)

	retention := s.do(http.MethodGet, "/v1/privacy/retention", nil, nil)
	require.Equal(t, http.StatusOK, retention.Code)
	assert.Contains(t, decode(t, retention), "erasure")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodDelete, "/v1/admin/records/conv-7", nil, nil).Code)

	forgot := s.do(http.MethodDelete, "/v1/admin/records/conv-7", nil, adminHeaders(t))
	require.Equal(t, http.StatusNoContent, forgot.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/records/conv-7", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/v1/admin/records/conv-7", nil, adminHeaders(t)).Code)

	cleanup := s.do(http.MethodPost, "/v1/admin/cleanup", nil, adminHeaders(t))
	require.Equal(t, http.StatusOK, cleanup.Code)
	assert.Equal(t, float64(0), decode(t, cleanup)["records_purged"])
}

func TestRateLimitEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/v1/ratelimit/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["redis_enabled"])
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/admin/ratelimits", nil, nil).Code)
}
