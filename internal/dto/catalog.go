package dto

// RefreshCatalogRequest triggers a snapshot re-ingest. Snapshot names
// are optional; when empty every *.csv under the snapshot dir is loaded.
type RefreshCatalogRequest struct {
	Snapshots []string `json:"snapshots" validate:"omitempty,dive,required"`
}

// RefreshCatalogResponse reports the outcome of a refresh run.
type RefreshCatalogResponse struct {
	Reports []IngestReport `json:"reports"`
}

// IngestReport summarises one snapshot ingest run.
type IngestReport struct {
	Snapshot    string `json:"snapshot"`
	Courses     int    `json:"courses"`
	Sections    int    `json:"sections"`
	SkippedRows int    `json:"skippedRows"`
}
