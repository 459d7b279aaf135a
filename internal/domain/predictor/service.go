package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/pandemetrix/pandemetrix/pkg/errors"
)

// Service exposes the prediction capabilities consumed by the route
// layer. Every method returns plain structured data.
type Service interface {
	Load(ctx context.Context) error
	Reload(ctx context.Context) error
	Health() Health
	Countries() ([]string, error)
	ModelInfo() (Info, error)
	Predict(ctx context.Context, req Request) (Result, error)
	PredictBatch(ctx context.Context, reqs []Request) (BatchResult, error)
}

// ArtifactSource supplies the serialized model and its metadata sidecar.
type ArtifactSource interface {
	FetchModel(ctx context.Context) ([]byte, error)
	FetchMetadata(ctx context.Context) ([]byte, error)
}

// ResultCache memoizes prediction results keyed by request.
type ResultCache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, res Result, ttl time.Duration) error
}

// Config tunes the predictor domain.
type Config struct {
	BatchLimit   int
	FallbackRate float64
	CacheTTL     time.Duration
}

// snapshot pairs a model with the metadata it was trained with. The
// pair is immutable and swapped as a unit so concurrent readers never
// observe a model matched with a foreign schema.
type snapshot struct {
	model Model
	meta  *ModelMetadata
}

type service struct {
	cfg     Config
	source  ArtifactSource
	cache   ResultCache
	logger  *slog.Logger
	current atomic.Pointer[snapshot]
	now     func() time.Time
}

// NewService wires up the predictor domain. cache may be nil.
func NewService(cfg Config, source ArtifactSource, cache ResultCache, logger *slog.Logger) Service {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.FallbackRate <= 0 {
		cfg.FallbackRate = 0.02
	}
	return &service{
		cfg:    cfg,
		source: source,
		cache:  cache,
		logger: logger.With("component", "predictor.service"),
		now:    time.Now,
	}
}

// Load fetches and parses the model artifact pair, then publishes it in
// a single swap. Either both load or the predictor stays unready.
func (s *service) Load(ctx context.Context) error {
	modelBytes, err := s.source.FetchModel(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeModelNotLoaded, "fetch model artifact", err)
	}
	metaBytes, err := s.source.FetchMetadata(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeModelNotLoaded, "fetch model metadata", err)
	}
	model, err := ParseModel(modelBytes)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeModelNotLoaded, "parse model artifact", err)
	}
	meta, err := ParseMetadata(metaBytes)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeModelNotLoaded, "parse model metadata", err)
	}
	s.current.Store(&snapshot{model: model, meta: meta})
	s.logger.Info("model loaded",
		"name", meta.ModelInfo.Name,
		"version", meta.ModelInfo.Version,
		"features", len(meta.Features.AllFeatures),
		"countries", len(meta.CountriesSupported))
	return nil
}

// Reload replaces the loaded pair. A failed reload unloads the
// predictor rather than leaving a stale half-visible state.
func (s *service) Reload(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		s.current.Store(nil)
		return err
	}
	return nil
}

func (s *service) Health() Health {
	snap := s.current.Load()
	if snap == nil {
		return Health{}
	}
	return Health{
		ModelLoaded:         true,
		ReadyForPredictions: true,
		CountriesSupported:  len(snap.meta.CountriesSupported),
		ModelVersion:        snap.meta.ModelInfo.Version,
	}
}

func (s *service) Countries() ([]string, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, errNotLoaded()
	}
	out := make([]string, len(snap.meta.CountriesSupported))
	copy(out, snap.meta.CountriesSupported)
	return out, nil
}

func (s *service) ModelInfo() (Info, error) {
	snap := s.current.Load()
	if snap == nil {
		return Info{}, errNotLoaded()
	}
	meta := snap.meta
	return Info{
		Name:           meta.ModelInfo.Name,
		Version:        meta.ModelInfo.Version,
		Algorithm:      meta.ModelInfo.Type,
		TrainingDate:   meta.ModelInfo.TrainingDate,
		CountriesCount: len(meta.CountriesSupported),
		FeaturesUsed:   meta.Features.BaseFeatures,
		Performance:    meta.Performance,
	}, nil
}

func (s *service) Predict(ctx context.Context, req Request) (Result, error) {
	snap := s.current.Load()
	if snap == nil {
		return Result{}, errNotLoaded()
	}

	key := cacheKey(req)
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return cached, nil
		}
	}

	vector, inputs, err := s.prepareFeatures(snap, req)
	if err != nil {
		return Result{}, err
	}

	raw, err := snap.model.Predict(vector)
	if err != nil {
		return Result{}, apperrors.Wrap("prediction_failed", "model evaluation failed", err)
	}

	confidence := "Based on historical data patterns"
	if raw <= 0 {
		// A degenerate model can emit non-positive deaths; substitute the
		// case-fatality heuristic instead of rejecting the request.
		estimate := math.Max(1, inputs[featureNewCases]*s.cfg.FallbackRate)
		s.logger.Warn("non-positive model output, using fallback estimate",
			"country", req.Country, "raw", raw, "estimate", estimate)
		raw = estimate
		confidence += " (estimated)"
	}
	if raw < 0 {
		raw = 0
	}

	predicted := math.Round(raw*100) / 100
	result := Result{
		Prediction: Prediction{
			NewDeathsPredicted: predicted,
			NewDeathsRounded:   int(math.Round(raw)),
			Country:            req.Country,
			Date:               req.Date,
			Confidence:         confidence,
		},
		InputData: inputs,
		ModelInfo: ResultModelInfo{
			Version: snap.meta.ModelInfo.Version,
			R2Score: round4(snap.meta.Performance["test_r2"]),
			MAE:     math.Round(snap.meta.Performance["test_mae"]*100) / 100,
		},
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("prediction cache write failed", "error", err)
		}
	}
	return result, nil
}

// PredictBatch applies Predict per item, isolating failures. The batch
// size cap is enforced before any item is processed.
func (s *service) PredictBatch(ctx context.Context, reqs []Request) (BatchResult, error) {
	if len(reqs) > s.cfg.BatchLimit {
		return BatchResult{}, apperrors.Wrap(apperrors.CodeValidationError,
			fmt.Sprintf("maximum %d predictions per batch, got %d", s.cfg.BatchLimit, len(reqs)), nil)
	}
	snap := s.current.Load()
	if snap == nil {
		return BatchResult{}, errNotLoaded()
	}

	out := BatchResult{
		Successful:   make([]Result, 0, len(reqs)),
		Failed:       make([]BatchError, 0),
		Total:        len(reqs),
		ModelVersion: snap.meta.ModelInfo.Version,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
	}
	for i, req := range reqs {
		res, err := s.Predict(ctx, req)
		if err != nil {
			out.Failed = append(out.Failed, BatchError{Index: i, Error: err.Error(), Input: req})
			continue
		}
		out.Successful = append(out.Successful, res)
	}
	return out, nil
}

func errNotLoaded() error {
	return apperrors.Wrap(apperrors.CodeModelNotLoaded,
		"model not loaded, call load before predicting", nil)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func cacheKey(req Request) string {
	return strings.Join([]string{
		req.Country,
		req.Date,
		fmt.Sprint(req.NewCases),
		fmt.Sprint(req.PeopleVaccinated),
		fmt.Sprint(req.NewTests),
		fmt.Sprint(req.DailyOccupancyHosp),
	}, "|")
}
