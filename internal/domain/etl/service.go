package etl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pandemetrix/pandemetrix/internal/domain/dataset"
	apperrors "github.com/pandemetrix/pandemetrix/pkg/errors"
)

// Service exposes the ETL operations called by the route layer.
type Service interface {
	UploadCSV(ctx context.Context, r io.Reader, title string) (IngestSummary, error)
	DownloadSource(ctx context.Context, code string) (IngestSummary, error)
	Collections(ctx context.Context) ([]CollectionInfo, error)
	PrepareDataset(ctx context.Context) (DatasetSummary, error)
	Availability(ctx context.Context) (AvailabilityReport, error)
}

// CollectionStore is the persistence boundary for source collections:
// bulk read and wholesale replace only.
type CollectionStore interface {
	Replace(ctx context.Context, name string, records []map[string]any) error
	Fetch(ctx context.Context, name string) ([]map[string]any, error)
	Infos(ctx context.Context) ([]CollectionInfo, error)
}

// Downloader fetches a raw extract from a catalog URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Decoder turns raw CSV bytes into a table.
type Decoder interface {
	Decode(r io.Reader) (*dataset.Table, error)
}

type service struct {
	cfg        Config
	store      CollectionStore
	downloader Downloader
	decoder    Decoder
	logger     *slog.Logger
}

// NewService wires up the ETL domain.
func NewService(cfg Config, store CollectionStore, downloader Downloader, decoder Decoder, logger *slog.Logger) Service {
	return &service{
		cfg:        cfg,
		store:      store,
		downloader: downloader,
		decoder:    decoder,
		logger:     logger.With("component", "etl.service"),
	}
}

// UploadCSV runs the normalize/repair pipeline on an uploaded extract
// and replaces the named collection with the result.
func (s *service) UploadCSV(ctx context.Context, r io.Reader, title string) (IngestSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return IngestSummary{}, apperrors.Wrap(apperrors.CodeValidationError, "collection title is required", nil)
	}
	table, err := s.decoder.Decode(r)
	if err != nil {
		return IngestSummary{}, apperrors.Wrap(apperrors.CodeSchemaError, "decode uploaded csv", err)
	}
	return s.ingest(ctx, table, title)
}

// DownloadSource resolves a catalog code, fetches the extract and runs
// the same pipeline as an upload.
func (s *service) DownloadSource(ctx context.Context, code string) (IngestSummary, error) {
	url, ok := s.cfg.Catalog[code]
	if !ok {
		return IngestSummary{}, apperrors.Wrap(apperrors.CodeValidationError,
			fmt.Sprintf("unknown source code %q, available: %v", code, s.catalogCodes()), nil)
	}
	payload, err := s.downloader.Download(ctx, url)
	if err != nil {
		return IngestSummary{}, apperrors.Wrap(apperrors.CodeSchemaError, "download source extract", err)
	}
	table, err := s.decoder.Decode(bytes.NewReader(payload))
	if err != nil {
		return IngestSummary{}, apperrors.Wrap(apperrors.CodeSchemaError, "decode downloaded csv", err)
	}
	return s.ingest(ctx, table, s.collectionFor(code))
}

func (s *service) ingest(ctx context.Context, raw *dataset.Table, collection string) (IngestSummary, error) {
	runID := uuid.NewString()

	normalized, err := dataset.Normalize(raw, nil)
	if err != nil {
		return IngestSummary{}, err
	}
	filtered := dataset.ExcludeCountries(normalized, s.cfg.AggregateDenylist)
	numeric := dataset.DetectNumericColumns(filtered, "date")
	repaired, report := dataset.Repair(filtered, numeric)
	dataset.EnforceTestTotals(repaired)

	if repaired.NumRows() == 0 {
		return IngestSummary{}, apperrors.Wrap(apperrors.CodeInsufficientData,
			"no rows left after normalization and repair", nil)
	}
	if err := s.store.Replace(ctx, collection, repaired.Records()); err != nil {
		return IngestSummary{}, fmt.Errorf("store collection %s: %w", collection, err)
	}

	s.logger.Info("extract ingested",
		"run_id", runID,
		"collection", collection,
		"rows", repaired.NumRows(),
		"columns", len(repaired.Columns()),
		"duplicates_dropped", report.DuplicatesDrop)

	return IngestSummary{
		RunID:      runID,
		Collection: collection,
		Rows:       repaired.NumRows(),
		Columns:    repaired.Columns(),
		Repair:     report,
	}, nil
}

func (s *service) Collections(ctx context.Context) ([]CollectionInfo, error) {
	return s.store.Infos(ctx)
}

// PrepareDataset merges the four source collections into the wide
// per-country/per-date table and stores it wholesale.
func (s *service) PrepareDataset(ctx context.Context) (DatasetSummary, error) {
	runID := uuid.NewString()

	cases, err := s.fetchTable(ctx, s.cfg.CasesCollection)
	if err != nil {
		return DatasetSummary{}, err
	}
	if cases == nil || cases.NumRows() == 0 {
		return DatasetSummary{}, apperrors.Wrap(apperrors.CodeInsufficientData,
			fmt.Sprintf("collection %q is empty, load cases/deaths data first", s.cfg.CasesCollection), nil)
	}
	vaccination, _ := s.fetchTable(ctx, s.cfg.VaccinationCollection)
	hospital, _ := s.fetchTable(ctx, s.cfg.HospitalCollection)
	testing, _ := s.fetchTable(ctx, s.cfg.TestingCollection)

	merged, err := dataset.Merge(cases, vaccination, hospital, testing)
	if err != nil {
		return DatasetSummary{}, err
	}

	numeric := dataset.DetectNumericColumns(merged, "date")
	repaired, report := dataset.Repair(merged, numeric)

	if err := s.store.Replace(ctx, s.cfg.MergedCollection, repaired.Records()); err != nil {
		return DatasetSummary{}, fmt.Errorf("store merged dataset: %w", err)
	}

	countries := countDistinctCountries(repaired)
	s.logger.Info("merged dataset prepared",
		"run_id", runID,
		"rows", repaired.NumRows(),
		"columns", len(repaired.Columns()),
		"countries", countries)

	return DatasetSummary{
		RunID:     runID,
		Rows:      repaired.NumRows(),
		Columns:   repaired.Columns(),
		Countries: countries,
		Repair:    report,
	}, nil
}

// Availability reports per-collection readiness for training.
func (s *service) Availability(ctx context.Context) (AvailabilityReport, error) {
	names := []string{
		s.cfg.CasesCollection,
		s.cfg.VaccinationCollection,
		s.cfg.HospitalCollection,
		s.cfg.TestingCollection,
	}
	report := AvailabilityReport{Collections: make(map[string]SourceAvailability, len(names))}
	unique := make(map[string]bool)

	for _, name := range names {
		table, err := s.fetchTable(ctx, name)
		if err != nil || table == nil || table.NumRows() == 0 {
			report.Collections[name] = SourceAvailability{}
			continue
		}
		countries := make(map[string]bool)
		for _, v := range table.Column(dataset.CountryKey) {
			if c, ok := v.(string); ok && c != "" {
				countries[c] = true
				unique[c] = true
			}
		}
		report.Collections[name] = SourceAvailability{
			Exists:    true,
			Rows:      table.NumRows(),
			Columns:   table.Columns(),
			Countries: len(countries),
		}
	}

	report.UniqueCountries = len(unique)
	report.ReadyForTraining = report.Collections[s.cfg.CasesCollection].Exists
	if report.ReadyForTraining {
		report.Recommendation = "Ready for dataset preparation"
	} else {
		report.Recommendation = "Load cases/deaths data first"
	}
	return report, nil
}

func (s *service) fetchTable(ctx context.Context, name string) (*dataset.Table, error) {
	records, err := s.store.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch collection %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	table := dataset.FromRecords(records)
	if table.HasColumn("date") {
		dataset.ParseDateColumn(table, "date")
	}
	return table, nil
}

func (s *service) collectionFor(code string) string {
	switch code {
	case "cases_deaths":
		return s.cfg.CasesCollection
	case "vaccinations_global", "vaccinations":
		return s.cfg.VaccinationCollection
	case "hospital":
		return s.cfg.HospitalCollection
	case "testing":
		return s.cfg.TestingCollection
	default:
		return code
	}
}

func (s *service) catalogCodes() []string {
	codes := make([]string, 0, len(s.cfg.Catalog))
	for code := range s.cfg.Catalog {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func countDistinctCountries(t *dataset.Table) int {
	seen := make(map[string]bool)
	for _, v := range t.Column(dataset.CountryKey) {
		if c, ok := v.(string); ok && c != "" {
			seen[c] = true
		}
	}
	return len(seen)
}
