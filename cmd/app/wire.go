//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/pandemetrix/pandemetrix/internal/bootstrap"
	"github.com/pandemetrix/pandemetrix/internal/domain/etl"
	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
	"github.com/pandemetrix/pandemetrix/internal/infra/config"
	httpiface "github.com/pandemetrix/pandemetrix/internal/interface/http"
	"github.com/pandemetrix/pandemetrix/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideETLConfig,
		providePredictorConfig,
		provideCollectionStore,
		provideDownloader,
		provideDecoder,
		provideArtifactSource,
		provideResultCache,
		etl.NewService,
		predictor.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
