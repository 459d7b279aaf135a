package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pandemetrix/pandemetrix/internal/domain/etl"
	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
	"github.com/pandemetrix/pandemetrix/internal/infra/config"
	"github.com/pandemetrix/pandemetrix/internal/infra/ingest"
	"github.com/pandemetrix/pandemetrix/internal/infra/tablestore"
)

const testModelJSON = `{
	"type": "linear_regression",
	"intercept": 10,
	"coefficients": [0, 0, 0, 0, 0, 0]
}`

const testMetadataJSON = `{
	"model_info": {"name": "covid_mortality", "type": "linear_regression", "version": "2.1.0", "training_date": "2023-06-01"},
	"features": {
		"all_features": ["date", "new_cases", "people_vaccinated", "new_tests", "daily_occupancy_hosp", "country1_France"],
		"base_features": ["date", "new_cases", "people_vaccinated", "new_tests", "daily_occupancy_hosp"],
		"country_features": ["country1_France"]
	},
	"performance": {"test_r2": 0.9, "test_mae": 10},
	"countries_supported": ["France"]
}`

type staticSource struct {
	model []byte
	meta  []byte
}

func (s staticSource) FetchModel(context.Context) ([]byte, error)    { return s.model, nil }
func (s staticSource) FetchMetadata(context.Context) ([]byte, error) { return s.meta, nil }

type noDownloader struct{}

func (noDownloader) Download(context.Context, string) ([]byte, error) {
	return nil, context.Canceled
}

func newTestServer(t *testing.T, loadModel bool) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	etlSvc := etl.NewService(etl.Config{
		Catalog:               map[string]string{"cases_deaths": "https://catalog.example/cases.csv"},
		CasesCollection:       "ml_cases_deaths",
		VaccinationCollection: "ml_vaccinations",
		HospitalCollection:    "ml_hospital",
		TestingCollection:     "ml_testing",
		MergedCollection:      "ml_dataset",
	}, tablestore.NewMemoryStore(), noDownloader{}, ingest.NewCSVDecoder(), logger)

	predSvc := predictor.NewService(predictor.Config{}, staticSource{
		model: []byte(testModelJSON),
		meta:  []byte(testMetadataJSON),
	}, nil, logger)
	if loadModel {
		require.NoError(t, predSvc.Load(context.Background()))
	}

	cfg := &config.Config{HTTP: config.HTTPConfig{Address: ":0"}}
	return NewRouter(cfg, NewHandler(etlSvc, predSvc, logger)).Handler
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected an error envelope, got %v", body)
	code, _ := errObj["code"].(string)
	return code
}

func TestMLHealthEndpoint(t *testing.T) {
	h := newTestServer(t, false)
	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/ml/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["model_loaded"])

	h = newTestServer(t, true)
	rec, body = doJSON(t, h, http.MethodGet, "/api/v1/ml/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["model_loaded"])
	require.Equal(t, "2.1.0", body["model_version"])
}

func TestMLPredictWithoutModelReturns503(t *testing.T) {
	h := newTestServer(t, false)

	rec, body := doJSON(t, h, http.MethodPost, "/api/v1/ml/predict",
		`{"country":"France","date":"2023-01-15","new_cases":1000}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "model_not_loaded", errorCode(t, body))
}

func TestMLPredictHappyPath(t *testing.T) {
	h := newTestServer(t, true)

	rec, body := doJSON(t, h, http.MethodPost, "/api/v1/ml/predict",
		`{"country":"France","date":"2023-01-15","new_cases":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	prediction, ok := body["prediction"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 10.0, prediction["new_deaths_predicted"])
	require.Equal(t, "France", prediction["country"])

	inputs, ok := body["input_data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1000.0, inputs["new_cases"])
}

func TestMLPredictValidation(t *testing.T) {
	h := newTestServer(t, true)

	rec, body := doJSON(t, h, http.MethodPost, "/api/v1/ml/predict",
		`{"country":"France","date":"2023-01-15"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", errorCode(t, body))

	rec, body = doJSON(t, h, http.MethodPost, "/api/v1/ml/predict",
		`{"country":"Wakanda","date":"2023-01-15","new_cases":5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", errorCode(t, body))
}

func TestMLPredictBatchEnvelope(t *testing.T) {
	h := newTestServer(t, true)

	rec, body := doJSON(t, h, http.MethodPost, "/api/v1/ml/predict-batch",
		`{"predictions":[{"country":"France","date":"2023-01-15","new_cases":10},{"country":"Wakanda","date":"2023-01-15","new_cases":10}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 2.0, body["total"])
	require.Len(t, body["successful_predictions"], 1)
	require.Len(t, body["failed_predictions"], 1)

	rec, body = doJSON(t, h, http.MethodPost, "/api/v1/ml/predict-batch", `[{"country":"France"}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", errorCode(t, body))
}

func TestMLCountriesAndModelInfo(t *testing.T) {
	h := newTestServer(t, true)

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/ml/countries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1.0, body["count"])
	require.Equal(t, []any{"France"}, body["countries"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/v1/ml/model-info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "covid_mortality", body["name"])
	require.Equal(t, "linear_regression", body["algorithm"])
}

func TestETLUploadExtract(t *testing.T) {
	h := newTestServer(t, false)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "cases.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("country,date,new_cases\nFrance,2021-01-01,100\nFrance,2021-01-02,120\n"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("title", "ml_cases_deaths"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/etl/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ml_cases_deaths", body["collection"])
	require.Equal(t, 2.0, body["rows"])
	require.NotEmpty(t, body["run_id"])
}

func TestETLUploadWithoutFile(t *testing.T) {
	h := newTestServer(t, false)

	rec, body := doJSON(t, h, http.MethodPost, "/api/v1/etl/upload", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", errorCode(t, body))
}

func TestETLDownloadUnknownCode(t *testing.T) {
	h := newTestServer(t, false)

	rec, body := doJSON(t, h, http.MethodPost, "/api/v1/etl/download", `{"code":"weather"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", errorCode(t, body))
}

func TestETLPrepareWithoutData(t *testing.T) {
	h := newTestServer(t, false)

	rec, body := doJSON(t, h, http.MethodPost, "/api/v1/etl/dataset/prepare", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "insufficient_data", errorCode(t, body))
}

func TestETLCollectionsAndAvailability(t *testing.T) {
	h := newTestServer(t, false)

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/etl/collections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, body["collections"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/v1/etl/availability", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["ready_for_training"])
	require.Equal(t, "Load cases/deaths data first", body["recommendation"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ml/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
