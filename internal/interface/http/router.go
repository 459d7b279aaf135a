package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandemetrix/pandemetrix/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		errorHandlingMiddleware(handler.logger),
		corsMiddleware(),
	)

	api := router.Group("/api/v1")
	{
		etlGroup := api.Group("/etl")
		{
			etlGroup.POST("/upload", handler.UploadExtract)
			etlGroup.POST("/download", handler.DownloadExtract)
			etlGroup.GET("/collections", handler.Collections)
			etlGroup.GET("/availability", handler.Availability)
			etlGroup.POST("/dataset/prepare", handler.PrepareDataset)
		}
		mlGroup := api.Group("/ml")
		{
			mlGroup.GET("/health", handler.MLHealth)
			mlGroup.GET("/countries", handler.MLCountries)
			mlGroup.GET("/model-info", handler.MLModelInfo)
			mlGroup.POST("/reload", handler.MLReload)
			mlGroup.POST("/predict", handler.MLPredict)
			mlGroup.POST("/predict-batch", handler.MLPredictBatch)
		}
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
