package core

import "time"

// RunStore records pipeline runs and source fingerprints.
type RunStore interface {
	Close() error

	// Run operations
	CreateRun(env string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string, kpi *KPI) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// File hash tracking
	GetContentHash(filePath string) (string, error)
	SetContentHash(filePath, hash, source string) error
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a reconciliation run.
type Run struct {
	ID          string     `json:"id"`
	Environment string     `json:"environment"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	KPI         *KPI       `json:"kpi,omitempty"`
}

// KPI is the run-level summary. All values are plain numbers and strings
// so the struct can be emitted to any log or alerting sink as JSON.
type KPI struct {
	TotalRecords int     `json:"total_records"`
	UniqueSKUs   int     `json:"unique_skus"`
	PassCount    int     `json:"pass_count"`
	FailCount    int     `json:"fail_count"`
	NoStatus     int     `json:"no_status_count"`
	PassRate     float64 `json:"pass_rate"`

	SourceCounts     map[string]int `json:"source_counts"`
	SourceDuplicates map[string]int `json:"source_duplicates"`
	InputDefects     int            `json:"input_defects"`

	FlowInvalid    int `json:"flow_invalid"`
	WeightOutliers int `json:"weight_outliers"`
	VolumeOutliers int `json:"volume_outliers"`
	Exceptions     int `json:"exceptions"`

	FlowCoverage        float64 `json:"flow_coverage"`
	LocationCoverage    float64 `json:"location_coverage"`
	PackageCompleteness float64 `json:"package_completeness"`
	AllFlowCodesPresent bool    `json:"all_flow_codes_present"`

	RowsInserted  int `json:"rows_inserted"`
	RowsUnchanged int `json:"rows_unchanged"`
	OccupancyRows int `json:"occupancy_rows"`

	ExecutionSeconds float64  `json:"execution_seconds"`
	Warnings         []string `json:"warnings"`
}

// Warn appends a non-fatal warning.
func (k *KPI) Warn(msg string) {
	k.Warnings = append(k.Warnings, msg)
}
