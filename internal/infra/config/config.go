package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	ETL       ETLConfig       `yaml:"etl"`
	ML        MLConfig        `yaml:"ml"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Cache     CacheConfig     `yaml:"cache"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// ETLConfig drives source ingestion and dataset preparation.
type ETLConfig struct {
	Catalog               map[string]string `yaml:"catalog"`
	CasesCollection       string            `yaml:"casesCollection"`
	VaccinationCollection string            `yaml:"vaccinationCollection"`
	HospitalCollection    string            `yaml:"hospitalCollection"`
	TestingCollection     string            `yaml:"testingCollection"`
	MergedCollection      string            `yaml:"mergedCollection"`
	AggregateDenylist     []string          `yaml:"aggregateDenylist"`
	DownloadTimeout       time.Duration     `yaml:"downloadTimeout"`
}

// MLConfig controls the predictor domain.
type MLConfig struct {
	ModelPath    string        `yaml:"modelPath"`
	MetadataPath string        `yaml:"metadataPath"`
	BatchLimit   int           `yaml:"batchLimit"`
	FallbackRate float64       `yaml:"fallbackRate"`
	CacheTTL     time.Duration `yaml:"cacheTtl"`
}

// PostgresConfig contains DSN and pooling settings for the collection
// store. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// CacheConfig contains connection information for the prediction cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// ArtifactsConfig selects where the trained model pair is loaded from.
// An empty endpoint selects the local filesystem paths from MLConfig.
type ArtifactsConfig struct {
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"accessKey"`
	SecretKey   string `yaml:"secretKey"`
	Bucket      string `yaml:"bucket"`
	ModelKey    string `yaml:"modelKey"`
	MetadataKey string `yaml:"metadataKey"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("ETL_CASES_COLLECTION"); v != "" {
		cfg.ETL.CasesCollection = v
	}
	if v := os.Getenv("ETL_MERGED_COLLECTION"); v != "" {
		cfg.ETL.MergedCollection = v
	}
	if v := os.Getenv("ETL_AGGREGATE_DENYLIST"); v != "" {
		cfg.ETL.AggregateDenylist = splitList(v)
	}
	if v := os.Getenv("ETL_DOWNLOAD_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.ETL.DownloadTimeout = parsed
		}
	}
	if v := os.Getenv("ML_MODEL_PATH"); v != "" {
		cfg.ML.ModelPath = v
	}
	if v := os.Getenv("ML_METADATA_PATH"); v != "" {
		cfg.ML.MetadataPath = v
	}
	if v := os.Getenv("ML_BATCH_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.ML.BatchLimit = parsed
		}
	}
	if v := os.Getenv("ML_FALLBACK_RATE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ML.FallbackRate = parsed
		}
	}
	if v := os.Getenv("ML_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.ML.CacheTTL = parsed
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("ARTIFACTS_ENDPOINT"); v != "" {
		cfg.Artifacts.Endpoint = v
	}
	if v := os.Getenv("ARTIFACTS_ACCESS_KEY"); v != "" {
		cfg.Artifacts.AccessKey = v
	}
	if v := os.Getenv("ARTIFACTS_SECRET_KEY"); v != "" {
		cfg.Artifacts.SecretKey = v
	}
	if v := os.Getenv("ARTIFACTS_BUCKET"); v != "" {
		cfg.Artifacts.Bucket = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		ETL: ETLConfig{
			Catalog: map[string]string{
				"cases_deaths":        "https://catalog.ourworldindata.org/garden/covid/latest/cases_deaths/cases_deaths.csv",
				"vaccinations_global": "https://catalog.ourworldindata.org/garden/covid/latest/vaccinations_global/vaccinations_global.csv",
				"hospital":            "https://catalog.ourworldindata.org/garden/covid/latest/hospital/hospital.csv",
				"testing":             "https://catalog.ourworldindata.org/garden/covid/latest/testing/testing.csv",
			},
			CasesCollection:       "ml_cases_deaths",
			VaccinationCollection: "ml_vaccinations",
			HospitalCollection:    "ml_hospital",
			TestingCollection:     "ml_testing",
			MergedCollection:      "ml_merged_dataset",
			AggregateDenylist: []string{
				"World", "Europe", "European Union", "Asia", "Africa",
				"North America", "South America", "Oceania",
				"High-income countries", "Upper-middle-income countries",
				"Lower-middle-income countries", "Low-income countries",
			},
			DownloadTimeout: 30 * time.Second,
		},
		ML: MLConfig{
			ModelPath:    "models/covid_linear_model.json",
			MetadataPath: "models/model_metadata.json",
			BatchLimit:   100,
			FallbackRate: 0.02,
			CacheTTL:     time.Hour,
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
		Cache: CacheConfig{
			Prefix: "prediction",
		},
		Artifacts: ArtifactsConfig{
			ModelKey:    "covid_linear_model.json",
			MetadataKey: "model_metadata.json",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.ETL.CasesCollection == "" {
		return errors.New("etl.casesCollection cannot be empty")
	}
	if c.ETL.MergedCollection == "" {
		return errors.New("etl.mergedCollection cannot be empty")
	}
	if c.ML.ModelPath == "" || c.ML.MetadataPath == "" {
		return errors.New("ml.modelPath and ml.metadataPath cannot be empty")
	}
	if c.ML.BatchLimit <= 0 {
		return errors.New("ml.batchLimit must be positive")
	}
	if c.ML.FallbackRate <= 0 || c.ML.FallbackRate >= 1 {
		return errors.New("ml.fallbackRate must be in (0, 1)")
	}
	if c.ML.CacheTTL < 0 {
		return errors.New("ml.cacheTtl cannot be negative")
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Addr) == "" {
		return errors.New("cache.addr cannot be empty when the prediction cache is enabled")
	}
	if c.Artifacts.Endpoint != "" && c.Artifacts.Bucket == "" {
		return errors.New("artifacts.bucket cannot be empty when an endpoint is configured")
	}
	return nil
}
