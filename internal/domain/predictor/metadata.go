package predictor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CountryFeaturePrefix names the one-hot country columns of the
// training schema.
const CountryFeaturePrefix = "country1_"

// ModelInfo describes the trained artifact.
type ModelInfo struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Version        string `json:"version"`
	TrainingDate   string `json:"training_date"`
	FeaturesCount  int    `json:"features_count"`
	CountriesCount int    `json:"countries_count"`
}

// Features carries the frozen feature schema persisted at training
// time. AllFeatures is the single source of truth for vector layout:
// base features first, then one one-hot column per supported country.
type Features struct {
	AllFeatures     []string `json:"all_features"`
	BaseFeatures    []string `json:"base_features"`
	CountryFeatures []string `json:"country_features"`
}

// ModelMetadata is the JSON sidecar emitted by the offline trainer. It
// is read-only once loaded and replaced wholesale on retrain.
type ModelMetadata struct {
	ModelInfo          ModelInfo          `json:"model_info"`
	Features           Features           `json:"features"`
	Hyperparameters    map[string]any     `json:"hyperparameters,omitempty"`
	Performance        map[string]float64 `json:"performance"`
	CountriesSupported []string           `json:"countries_supported"`
}

// ParseMetadata decodes and validates a metadata sidecar.
func ParseMetadata(data []byte) (*ModelMetadata, error) {
	var meta ModelMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode model metadata: %w", err)
	}
	if len(meta.Features.AllFeatures) == 0 {
		return nil, fmt.Errorf("model metadata has no feature schema")
	}
	if len(meta.CountriesSupported) == 0 {
		return nil, fmt.Errorf("model metadata lists no supported countries")
	}
	return &meta, nil
}

// SupportsCountry reports whether the model was trained with a one-hot
// column for the given country.
func (m *ModelMetadata) SupportsCountry(country string) bool {
	for _, c := range m.CountriesSupported {
		if c == country {
			return true
		}
	}
	return false
}

// CountryColumn returns the one-hot column name for a country.
func CountryColumn(country string) string {
	return CountryFeaturePrefix + country
}

// CountryFromColumn extracts the country from a one-hot column name.
func CountryFromColumn(column string) (string, bool) {
	if strings.HasPrefix(column, CountryFeaturePrefix) {
		return strings.TrimPrefix(column, CountryFeaturePrefix), true
	}
	return "", false
}
