package etl

import "github.com/pandemetrix/pandemetrix/internal/domain/dataset"

// CollectionInfo describes one stored collection.
type CollectionInfo struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// IngestSummary reports one completed ingestion run.
type IngestSummary struct {
	RunID      string                `json:"run_id"`
	Collection string                `json:"collection"`
	Rows       int                   `json:"rows"`
	Columns    []string              `json:"columns"`
	Repair     *dataset.RepairReport `json:"repair"`
}

// DatasetSummary reports the merged wide table preparation.
type DatasetSummary struct {
	RunID     string                `json:"run_id"`
	Rows      int                   `json:"rows"`
	Columns   []string              `json:"columns"`
	Countries int                   `json:"countries"`
	Repair    *dataset.RepairReport `json:"repair"`
}

// SourceAvailability describes readiness of one source collection.
type SourceAvailability struct {
	Exists    bool     `json:"exists"`
	Rows      int      `json:"rows"`
	Columns   []string `json:"columns"`
	Countries int      `json:"countries"`
}

// AvailabilityReport aggregates source readiness for training.
type AvailabilityReport struct {
	ReadyForTraining bool                          `json:"ready_for_training"`
	Collections      map[string]SourceAvailability `json:"collections"`
	UniqueCountries  int                           `json:"total_unique_countries"`
	Recommendation   string                        `json:"recommendation"`
}

// Config tunes the ETL domain.
type Config struct {
	// Catalog maps a source code to its download URL.
	Catalog map[string]string
	// Collections maps the four source families to collection names.
	CasesCollection       string
	VaccinationCollection string
	HospitalCollection    string
	TestingCollection     string
	MergedCollection      string
	// AggregateDenylist lists pseudo-countries excluded from repair
	// grouping, e.g. "World" or "Europe".
	AggregateDenylist []string
}
