package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandemetrix/pandemetrix/internal/domain/etl"
	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
	apperrors "github.com/pandemetrix/pandemetrix/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	etlSvc       etl.Service
	predictorSvc predictor.Service
	logger       *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(etlSvc etl.Service, predictorSvc predictor.Service, logger *slog.Logger) *Handler {
	return &Handler{
		etlSvc:       etlSvc,
		predictorSvc: predictorSvc,
		logger:       logger.With("component", "http.handler"),
	}
}

// UploadExtract ingests an uploaded CSV extract into a collection.
func (h *Handler) UploadExtract(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "no file part in the request", err))
		return
	}
	defer file.Close()

	title := c.PostForm("title")
	summary, err := h.etlSvc.UploadCSV(c.Request.Context(), file, title)
	if err != nil {
		abortWithError(c, mapDomainError(err, "upload_failed"))
		return
	}
	c.JSON(http.StatusOK, summary)
}

type downloadRequest struct {
	Code string `json:"code" binding:"required"`
}

// DownloadExtract fetches a cataloged source and ingests it.
func (h *Handler) DownloadExtract(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "code is required", err))
		return
	}
	summary, err := h.etlSvc.DownloadSource(c.Request.Context(), req.Code)
	if err != nil {
		abortWithError(c, mapDomainError(err, "download_failed"))
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Collections lists the stored collections.
func (h *Handler) Collections(c *gin.Context) {
	infos, err := h.etlSvc.Collections(c.Request.Context())
	if err != nil {
		abortWithError(c, mapDomainError(err, "collections_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": infos})
}

// PrepareDataset merges the source collections into the wide dataset.
func (h *Handler) PrepareDataset(c *gin.Context) {
	summary, err := h.etlSvc.PrepareDataset(c.Request.Context())
	if err != nil {
		abortWithError(c, mapDomainError(err, "prepare_failed"))
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Availability reports per-source data readiness.
func (h *Handler) Availability(c *gin.Context) {
	report, err := h.etlSvc.Availability(c.Request.Context())
	if err != nil {
		abortWithError(c, mapDomainError(err, "availability_failed"))
		return
	}
	c.JSON(http.StatusOK, report)
}

// MLHealth reports predictor readiness.
func (h *Handler) MLHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.predictorSvc.Health())
}

// MLCountries lists the countries the loaded model supports.
func (h *Handler) MLCountries(c *gin.Context) {
	countries, err := h.predictorSvc.Countries()
	if err != nil {
		abortWithError(c, mapDomainError(err, "countries_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"countries": countries, "count": len(countries)})
}

// MLModelInfo returns metadata about the loaded model.
func (h *Handler) MLModelInfo(c *gin.Context) {
	info, err := h.predictorSvc.ModelInfo()
	if err != nil {
		abortWithError(c, mapDomainError(err, "model_info_failed"))
		return
	}
	c.JSON(http.StatusOK, info)
}

// MLReload swaps in a freshly trained model pair.
func (h *Handler) MLReload(c *gin.Context) {
	if err := h.predictorSvc.Reload(c.Request.Context()); err != nil {
		abortWithError(c, mapDomainError(err, "reload_failed"))
		return
	}
	c.JSON(http.StatusOK, h.predictorSvc.Health())
}

// MLPredict makes a single prediction.
func (h *Handler) MLPredict(c *gin.Context) {
	var req predictor.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	result, err := h.predictorSvc.Predict(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, mapDomainError(err, "predict_failed"))
		return
	}
	c.JSON(http.StatusOK, result)
}

type batchRequest struct {
	Predictions []predictor.Request `json:"predictions" binding:"required"`
}

// MLPredictBatch makes up to the configured limit of predictions,
// isolating per-item failures.
func (h *Handler) MLPredictBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "expected format: {\"predictions\": [...]}", err))
		return
	}
	result, err := h.predictorSvc.PredictBatch(c.Request.Context(), req.Predictions)
	if err != nil {
		abortWithError(c, mapDomainError(err, "predict_batch_failed"))
		return
	}
	c.JSON(http.StatusOK, result)
}

func mapDomainError(err error, fallbackCode string) *HTTPError {
	switch {
	case apperrors.IsCode(err, apperrors.CodeValidationError):
		return NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationError, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeSchemaError):
		return NewHTTPError(http.StatusBadRequest, apperrors.CodeSchemaError, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeInsufficientData):
		return NewHTTPError(http.StatusUnprocessableEntity, apperrors.CodeInsufficientData, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeModelNotLoaded):
		return NewHTTPError(http.StatusServiceUnavailable, apperrors.CodeModelNotLoaded, errMessage(err), err)
	default:
		return NewHTTPError(http.StatusInternalServerError, fallbackCode, errMessage(err), err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
