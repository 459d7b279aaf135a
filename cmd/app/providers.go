package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/pandemetrix/pandemetrix/internal/domain/etl"
	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
	"github.com/pandemetrix/pandemetrix/internal/infra/artifactstore"
	"github.com/pandemetrix/pandemetrix/internal/infra/config"
	"github.com/pandemetrix/pandemetrix/internal/infra/ingest"
	"github.com/pandemetrix/pandemetrix/internal/infra/predcache"
	"github.com/pandemetrix/pandemetrix/internal/infra/tablestore"
)

func provideETLConfig(cfg *config.Config) etl.Config {
	return etl.Config{
		Catalog:               cfg.ETL.Catalog,
		CasesCollection:       cfg.ETL.CasesCollection,
		VaccinationCollection: cfg.ETL.VaccinationCollection,
		HospitalCollection:    cfg.ETL.HospitalCollection,
		TestingCollection:     cfg.ETL.TestingCollection,
		MergedCollection:      cfg.ETL.MergedCollection,
		AggregateDenylist:     cfg.ETL.AggregateDenylist,
	}
}

func providePredictorConfig(cfg *config.Config) predictor.Config {
	return predictor.Config{
		BatchLimit:   cfg.ML.BatchLimit,
		FallbackRate: cfg.ML.FallbackRate,
		CacheTTL:     cfg.ML.CacheTTL,
	}
}

func provideCollectionStore(cfg *config.Config, logger *slog.Logger) etl.CollectionStore {
	fallback := tablestore.NewMemoryStore()
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory collection store")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory collection store", "error", err)
		return fallback
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory collection store", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory collection store", "error", err)
		pool.Close()
		return fallback
	}
	store := tablestore.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("postgres schema setup failed, using memory collection store", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("postgres collection store enabled")
	return store
}

func provideDownloader(cfg *config.Config) etl.Downloader {
	return ingest.NewClient(cfg.ETL.DownloadTimeout)
}

func provideDecoder() etl.Decoder {
	return ingest.NewCSVDecoder()
}

func provideArtifactSource(cfg *config.Config, logger *slog.Logger) predictor.ArtifactSource {
	local := artifactstore.NewLocalStore(cfg.ML.ModelPath, cfg.ML.MetadataPath)
	endpoint := strings.TrimSpace(cfg.Artifacts.Endpoint)
	if endpoint == "" {
		return local
	}
	store, err := artifactstore.NewObjectStore(
		endpoint,
		cfg.Artifacts.AccessKey,
		cfg.Artifacts.SecretKey,
		cfg.Artifacts.Bucket,
		cfg.Artifacts.ModelKey,
		cfg.Artifacts.MetadataKey,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize artifact object store, using local files", "error", err)
		return local
	}
	logger.Info("artifact object store enabled", "bucket", cfg.Artifacts.Bucket)
	return store
}

func provideResultCache(cfg *config.Config, logger *slog.Logger) predictor.ResultCache {
	if cfg.Cache.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
			return predcache.NewMemoryCache()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
			return predcache.NewMemoryCache()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		} else {
			logger.Info("valkey prediction cache enabled", "addr", cfg.Cache.Addr)
			return predcache.NewValkeyCache(client, cfg.Cache.Prefix)
		}
	}
	return predcache.NewMemoryCache()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Cache.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Cache.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Cache.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
