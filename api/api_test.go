package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sauqing9/api-sitras/api/resources"
	"github.com/sauqing9/api-sitras/internal/config"
	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/hubservice"
	"github.com/sauqing9/api-sitras/internal/mlproxy"
	"github.com/sauqing9/api-sitras/internal/repository/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	RequestID   string          `json:"request_id"`
	Details     map[string]any  `json:"details"`
	Calibration struct {
		Triggered bool `json:"triggered"`
		Succeeded bool `json:"succeeded"`
	} `json:"calibration"`
}

type testAPI struct {
	handler http.Handler
	store   *sqlstore.Store
}

func newTestAPI(t *testing.T, calibration, recommendation http.HandlerFunc) *testAPI {
	t.Helper()
	db, err := database.NewSQLiteDB(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	store, err := sqlstore.New(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var calibrator hubservice.Calibrator
	if calibration != nil {
		srv := httptest.NewServer(calibration)
		t.Cleanup(srv.Close)
		calibrator = mlproxy.NewCalibrationClient(srv.URL, time.Second)
	}
	recURL := ""
	if recommendation != nil {
		srv := httptest.NewServer(recommendation)
		t.Cleanup(srv.Close)
		recURL = srv.URL
	}

	svc := hubservice.New(store, nil, calibrator, mlproxy.NewRecommendationClient(recURL, time.Second), hubservice.Options{})
	router := NewRouter(svc, RouterOptions{History: resources.HistoryLimits{Default: 50, Max: 1000}})
	return &testAPI{handler: router, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

const rawBody = `{"pH": 5.2, "suhu": 28, "kelembaban": 60, "N": 55, "P": 12, "K": 41, "EC": 500}`

func calibrationOK(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"pH_calibrated": 6.5, "N_calibrated": 40, "P_calibrated": 20, "K_calibrated": 30}`))
}

func TestIngestAndReadBack(t *testing.T) {
	a := newTestAPI(t, calibrationOK, nil)

	rec, env := a.do(t, http.MethodPost, "/api/data/raw", rawBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.True(t, env.Calibration.Succeeded)
	assert.Equal(t, "Raw data saved successfully (calibration succeeded)", env.Message)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, env = a.do(t, http.MethodGet, "/api/latest/calibrated", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct{ P, N, K float64 }
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, struct{ P, N, K float64 }{20, 40, 30}, snap)

	rec, env = a.do(t, http.MethodGet, "/api/data/raw", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var raw struct {
		ID        string             `json:"_id"`
		Variables map[string]float64 `json:"variables"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.Equal(t, 5.2, raw.Variables["pH"])

	rec, _ = a.do(t, http.MethodGet, "/api/data/raw/"+raw.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestSurvivesCalibrationOutage(t *testing.T) {
	a := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}, nil)

	rec, env := a.do(t, http.MethodPost, "/api/data/raw", `{"variables": `+rawBody+`}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Calibration.Triggered)
	assert.False(t, env.Calibration.Succeeded)
	assert.Equal(t, "Raw data saved successfully (calibration failed)", env.Message)

	rec, env = a.do(t, http.MethodGet, "/api/data/calibrated", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "No calibrated data found", env.Message)
}

func TestIngestValidation(t *testing.T) {
	a := newTestAPI(t, nil, nil)

	rec, env := a.do(t, http.MethodPost, "/api/data/raw", `{"pH": 15, "suhu": 28, "kelembaban": 60, "N": 55, "P": 12, "K": 41, "EC": 500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Error saving raw data", env.Message)
	assert.Contains(t, env.Error, "pH")

	rec, _ = a.do(t, http.MethodPost, "/api/data/raw", `{"pH": 6}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/data/raw", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryLimitAndOrder(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	for i := 0; i < 3; i++ {
		rec, _ := a.do(t, http.MethodPost, "/api/data/raw", rawBody)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := a.do(t, http.MethodGet, "/api/data/raw/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []struct {
		ID        string    `json:"_id"`
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 2)
	assert.False(t, items[0].Timestamp.Before(items[1].Timestamp))

	rec, env = a.do(t, http.MethodGet, "/api/data/raw/history?limit=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 3)
}

func TestDeleteSemantics(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	rec, _ := a.do(t, http.MethodPost, "/api/data/raw", rawBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := a.do(t, http.MethodDelete, "/api/data/raw/raw_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Raw data not found", env.Message)
	assert.Equal(t, "raw data not found", env.Error)

	rec, env = a.do(t, http.MethodGet, "/api/data/raw/raw_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, env.Error, "sql")
	n, err := a.store.Raw().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	for i := 0; i < 2; i++ {
		rec, env = a.do(t, http.MethodDelete, "/api/data/raw", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "All raw data deleted successfully", env.Message)
	}
	n, err = a.store.Raw().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRecommendationFlow(t *testing.T) {
	var got map[string]any
	a := newTestAPI(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "data": {
			"recommendations": {"urea": 250, "sp36": 100, "kcl": 75},
			"reasons": {"info": "low phosphorus"},
			"tips": "split urea",
			"conversion_results": {"status_p": "Rendah", "status_k": "Sedang", "p2o5": 27.5, "k2o": 49.2}
		}}`))
	})

	rec, env := a.do(t, http.MethodPost, "/api/recommendation", `{"P": "12", "N": 55, "K": 41, "target_padi": "6-8"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "6-8", got["target_padi"])
	assert.Equal(t, "Padi", got["jenis_tanaman"])

	var result struct {
		Recommendation    map[string]float64 `json:"recommendation"`
		ConversionResults map[string]any     `json:"conversion_results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 250.0, result.Recommendation["urea"])
	assert.Equal(t, "Rendah", result.ConversionResults["status_p"])

	rec, env = a.do(t, http.MethodPost, "/api/recommendation/input", `{"P": 12, "N": 55, "K": 41}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	n, err := a.store.Recommendations().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "preview must not persist")
}

func TestRecommendationFailurePersistsNothing(t *testing.T) {
	a := newTestAPI(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error": "model offline"}`))
	})

	rec, env := a.do(t, http.MethodPost, "/api/recommendation", `{"P": 12, "N": 55, "K": 41, "target_padi": 2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Error generating ML recommendation", env.Message)
	assert.Equal(t, "Error generating ML recommendation", env.Error)
	assert.NotContains(t, rec.Body.String(), "model offline")
	assert.Equal(t, "unsuccessful", env.Details["kind"])

	rec, _ = a.do(t, http.MethodPost, "/api/recommendation", `{"N": 55, "K": 41}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	n, err := a.store.Recommendations().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestSavePrecomputedRecommendation(t *testing.T) {
	a := newTestAPI(t, nil, nil)

	rec, env := a.do(t, http.MethodPost, "/api/recommendation/ml", `{"recommendations": {"urea": 1, "sp36": 2, "kcl": 3}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Input data is missing or incomplete.", env.Message)

	rec, env = a.do(t, http.MethodPost, "/api/recommendation/ml", `{
		"input": {"P": 12, "N": 55, "K": 41, "jenis_tanaman": "Jagung", "target_padi": "<6"},
		"recommendation": {"urea": 1, "sp36": 2, "kcl": 3},
		"reasons": "ok"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "ML recommendation saved successfully", env.Message)

	rec, env = a.do(t, http.MethodGet, "/api/recommendation/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []struct {
		ID    string `json:"_id"`
		Input struct {
			JenisTanaman string `json:"jenis_tanaman"`
			TargetPadi   int    `json:"target_padi"`
		} `json:"input"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Jagung", items[0].Input.JenisTanaman)
	assert.Equal(t, 1, items[0].Input.TargetPadi)

	rec, _ = a.do(t, http.MethodDelete, "/api/recommendation/"+items[0].ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestManualEndpoints(t *testing.T) {
	a := newTestAPI(t, nil, nil)

	rec, env := a.do(t, http.MethodGet, "/api/data/manual", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No manual data found with extracted values", env.Message)

	rec, _ = a.do(t, http.MethodPost, "/api/data/manual", `{"type": "audio", "content": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = a.do(t, http.MethodPost, "/api/data/manual", `{"type": "text", "content": "lab", "extractedData": {"P": 14, "N": 20, "K": 30}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Manual data saved successfully", env.Message)

	rec, env = a.do(t, http.MethodGet, "/api/data/manual", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct{ P, N, K float64 }
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 14.0, snap.P)

	rec, _ = a.do(t, http.MethodGet, "/api/data/manual/man_missing/file", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndDocs(t *testing.T) {
	a := newTestAPI(t, nil, nil)

	rec, env := a.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "API is running", env.Message)
	assert.JSONEq(t, `{"store": "ok"}`, string(env.Data))

	rec, _ = a.do(t, http.MethodGet, "/api/docs/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/data/raw")
}
