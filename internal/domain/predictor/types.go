package predictor

// Request is one prediction request as received from the route layer.
// The numeric fields are deliberately loose typed: a malformed value
// degrades to zero instead of failing the request.
type Request struct {
	Country            string `json:"country"`
	Date               string `json:"date"`
	NewCases           any    `json:"new_cases"`
	PeopleVaccinated   any    `json:"people_vaccinated,omitempty"`
	NewTests           any    `json:"new_tests,omitempty"`
	DailyOccupancyHosp any    `json:"daily_occupancy_hosp,omitempty"`
}

// Prediction is the core payload of a successful prediction.
type Prediction struct {
	NewDeathsPredicted float64 `json:"new_deaths_predicted"`
	NewDeathsRounded   int     `json:"new_deaths_rounded"`
	Country            string  `json:"country"`
	Date               string  `json:"date"`
	Confidence         string  `json:"confidence"`
}

// ResultModelInfo echoes the model identity on each result.
type ResultModelInfo struct {
	Version string  `json:"version"`
	R2Score float64 `json:"r2_score"`
	MAE     float64 `json:"mae"`
}

// Result is returned for a single prediction. It is ephemeral and
// serialized directly by the route layer.
type Result struct {
	Prediction Prediction         `json:"prediction"`
	InputData  map[string]float64 `json:"input_data"`
	ModelInfo  ResultModelInfo    `json:"model_info"`
	Timestamp  string             `json:"timestamp"`
}

// BatchError reports one failed item of a batch.
type BatchError struct {
	Index int     `json:"index"`
	Error string  `json:"error"`
	Input Request `json:"input"`
}

// BatchResult separates per-item successes and failures; one bad item
// never aborts the batch.
type BatchResult struct {
	Successful   []Result     `json:"successful_predictions"`
	Failed       []BatchError `json:"failed_predictions"`
	Total        int          `json:"total"`
	ModelVersion string       `json:"model_version"`
	Timestamp    string       `json:"timestamp"`
}

// Health reports predictor readiness.
type Health struct {
	ModelLoaded         bool   `json:"model_loaded"`
	ReadyForPredictions bool   `json:"ready_for_predictions"`
	CountriesSupported  int    `json:"countries_supported"`
	ModelVersion        string `json:"model_version"`
}

// Info summarizes the loaded model for API consumers.
type Info struct {
	Name           string             `json:"name"`
	Version        string             `json:"version"`
	Algorithm      string             `json:"algorithm"`
	TrainingDate   string             `json:"training_date"`
	CountriesCount int                `json:"countries_count"`
	FeaturesUsed   []string           `json:"features_used"`
	Performance    map[string]float64 `json:"performance"`
}
