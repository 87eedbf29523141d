package models

import "time"

// ExportJobStatus tracks the lifecycle of an asynchronous export.
type ExportJobStatus string

const (
	ExportJobStatusPending ExportJobStatus = "PENDING"
	ExportJobStatusDone    ExportJobStatus = "DONE"
	ExportJobStatusFailed  ExportJobStatus = "FAILED"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportJob describes one timetable export request and its result.
type ExportJob struct {
	ID          string          `json:"id"`
	Format      ExportFormat    `json:"format"`
	Status      ExportJobStatus `json:"status"`
	FileName    string          `json:"file_name,omitempty"`
	DownloadURL string          `json:"download_url,omitempty"`
	ExpiresAt   time.Time       `json:"expires_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}
