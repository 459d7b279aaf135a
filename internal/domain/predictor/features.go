package predictor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/pandemetrix/pandemetrix/pkg/errors"
)

// Base feature names of the training schema.
const (
	featureDate               = "date"
	featureNewCases           = "new_cases"
	featurePeopleVaccinated   = "people_vaccinated"
	featureNewTests           = "new_tests"
	featureDailyOccupancyHosp = "daily_occupancy_hosp"
)

// prepareFeatures builds the vector for one request in the exact column
// order the model was trained with. Optional numeric fields default to
// zero; any schema column not produced here is zero filled by the
// reindex step, so the vector length and order always match the frozen
// schema no matter which fields the caller supplied.
func (s *service) prepareFeatures(snap *snapshot, req Request) ([]float64, map[string]float64, error) {
	if strings.TrimSpace(req.Country) == "" {
		return nil, nil, validationError("missing required field: country")
	}
	if strings.TrimSpace(req.Date) == "" {
		return nil, nil, validationError("missing required field: date")
	}
	if req.NewCases == nil {
		return nil, nil, validationError("missing required field: new_cases")
	}

	if !snap.meta.SupportsCountry(req.Country) {
		return nil, nil, validationError(fmt.Sprintf(
			"country %q not supported, available countries: %v",
			req.Country, snap.meta.CountriesSupported))
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		return nil, nil, validationError(fmt.Sprintf(
			"invalid date %q, expected format YYYY-MM-DD", req.Date))
	}

	inputs := map[string]float64{
		featureNewCases:           s.coerceField(featureNewCases, req.NewCases),
		featurePeopleVaccinated:   s.coerceField(featurePeopleVaccinated, req.PeopleVaccinated),
		featureNewTests:           s.coerceField(featureNewTests, req.NewTests),
		featureDailyOccupancyHosp: s.coerceField(featureDailyOccupancyHosp, req.DailyOccupancyHosp),
	}

	values := map[string]float64{featureDate: float64(date.UTC().Unix())}
	for name, v := range inputs {
		values[name] = v
	}
	for _, country := range snap.meta.CountriesSupported {
		hot := 0.0
		if country == req.Country {
			hot = 1.0
		}
		values[CountryColumn(country)] = hot
	}

	// Reindex against the frozen schema: same length, same order, zero
	// fill for anything not produced above.
	schema := snap.meta.Features.AllFeatures
	vector := make([]float64, len(schema))
	for i, column := range schema {
		vector[i] = values[column]
	}
	return vector, inputs, nil
}

// coerceField converts a loose numeric input. Non-numeric values
// degrade to zero with a warning rather than failing the request, and
// negative inputs are clamped to zero.
func (s *service) coerceField(name string, v any) float64 {
	if v == nil {
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		s.logger.Warn("non-numeric prediction input treated as zero", "field", name, "value", v)
		return 0
	}
	if f < 0 {
		s.logger.Warn("negative prediction input clamped to zero", "field", name, "value", f)
		return 0
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func validationError(msg string) error {
	return apperrors.Wrap(apperrors.CodeValidationError, msg, nil)
}
