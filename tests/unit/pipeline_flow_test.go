package unit

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pandemetrix/pandemetrix/internal/domain/etl"
	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
	"github.com/pandemetrix/pandemetrix/internal/infra/ingest"
	"github.com/pandemetrix/pandemetrix/internal/infra/predcache"
	"github.com/pandemetrix/pandemetrix/internal/infra/tablestore"
)

type fixedSource struct {
	model []byte
	meta  []byte
}

func (s fixedSource) FetchModel(context.Context) ([]byte, error)    { return s.model, nil }
func (s fixedSource) FetchMetadata(context.Context) ([]byte, error) { return s.meta, nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Walks the full path a deployment takes: raw extracts in, repaired
// collections, merged dataset, then predictions against the frozen
// feature schema.
func TestIngestPrepareAndPredictFlow(t *testing.T) {
	ctx := context.Background()
	store := tablestore.NewMemoryStore()

	etlSvc := etl.NewService(etl.Config{
		CasesCollection:       "ml_cases_deaths",
		VaccinationCollection: "ml_vaccinations",
		HospitalCollection:    "ml_hospital",
		TestingCollection:     "ml_testing",
		MergedCollection:      "ml_dataset",
		AggregateDenylist:     []string{"World"},
	}, store, nil, ingest.NewCSVDecoder(), quietLogger())

	casesCSV := strings.Join([]string{
		"Entity,Date,New Cases,New Deaths",
		"France,2021-01-01,100,2",
		"France,2021-01-02,,4",
		"France,2021-01-03,300,6",
		"World,2021-01-01,50000,900",
		"",
	}, "\n")
	summary, err := etlSvc.UploadCSV(ctx, strings.NewReader(casesCSV), "ml_cases_deaths")
	require.NoError(t, err)
	require.Equal(t, 3, summary.Rows)
	require.Equal(t, 1, summary.Repair.Interpolated["new_cases"])

	vaxCSV := "location,date,people_vaccinated\nFrance,2021-01-01,5000\nFrance,2021-01-03,7000\n"
	_, err = etlSvc.UploadCSV(ctx, strings.NewReader(vaxCSV), "ml_vaccinations")
	require.NoError(t, err)

	prepared, err := etlSvc.PrepareDataset(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, prepared.Rows)
	require.Equal(t, 1, prepared.Countries)

	records, err := store.Fetch(ctx, "ml_dataset")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		require.Contains(t, rec, "new_tests")
		require.Contains(t, rec, "daily_occupancy_hosp")
	}

	predSvc := predictor.NewService(predictor.Config{}, fixedSource{
		model: []byte(`{"type":"linear_regression","intercept":4,"coefficients":[0,0.001,0,0,0,1]}`),
		meta: []byte(`{
			"model_info": {"name": "covid_mortality", "type": "linear_regression", "version": "2.1.0"},
			"features": {
				"all_features": ["date","new_cases","people_vaccinated","new_tests","daily_occupancy_hosp","country1_France"],
				"base_features": ["date","new_cases","people_vaccinated","new_tests","daily_occupancy_hosp"]
			},
			"performance": {"test_r2": 0.9, "test_mae": 10},
			"countries_supported": ["France"]
		}`),
	}, predcache.NewMemoryCache(), quietLogger())
	require.NoError(t, predSvc.Load(ctx))

	res, err := predSvc.Predict(ctx, predictor.Request{
		Country:  "France",
		Date:     "2021-01-04",
		NewCases: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, 6.0, res.Prediction.NewDeathsPredicted)
	require.Equal(t, "2.1.0", res.ModelInfo.Version)

	batch, err := predSvc.PredictBatch(ctx, []predictor.Request{
		{Country: "France", Date: "2021-01-04", NewCases: 1000},
		{Country: "Atlantis", Date: "2021-01-04", NewCases: 10},
	})
	require.NoError(t, err)
	require.Len(t, batch.Successful, 1)
	require.Len(t, batch.Failed, 1)
}
