package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/models"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
	"github.com/ccsit-tools/schedule-api/pkg/export"
	"github.com/ccsit-tools/schedule-api/pkg/jobs"
	"github.com/ccsit-tools/schedule-api/pkg/storage"
)

const exportJobType = "timetable_export"

// ExportConfig governs the export worker pool.
type ExportConfig struct {
	Enabled bool
	Workers int
	Retries int
	FileTTL time.Duration
}

// ExportService renders chosen timetables to CSV or PDF files served
// behind signed download URLs. Rendering runs on a background queue
// whose jobs carry the full export request as their payload.
type ExportService struct {
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	queue     *jobs.Queue
	enabled   bool
	fileTTL   time.Duration

	mu      sync.RWMutex
	records map[string]*models.ExportJob
}

// NewExportService wires export dependencies.
func NewExportService(store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FileTTL <= 0 {
		cfg.FileTTL = 24 * time.Hour
	}
	s := &ExportService{
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		store:     store,
		signer:    signer,
		validator: validate,
		logger:    logger,
		enabled:   cfg.Enabled,
		fileTTL:   cfg.FileTTL,
		records:   make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches export workers.
func (s *ExportService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains export workers.
func (s *ExportService) Stop() {
	if s.enabled {
		s.queue.Stop()
	}
}

// Submit validates and queues one export request.
func (s *ExportService) Submit(ctx context.Context, req dto.ExportTimetableRequest) (*dto.ExportTimetableResponse, error) {
	if !s.enabled {
		return nil, appErrors.ErrExportDisabled
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	record := &models.ExportJob{
		ID:          uuid.NewString(),
		Format:      req.Format,
		Status:      models.ExportJobStatusPending,
		RequestedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: exportJobType, Payload: req}); err != nil {
		s.mu.Lock()
		delete(s.records, record.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	return &dto.ExportTimetableResponse{JobID: record.ID, Status: record.Status}, nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(jobID string) (*models.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, found := s.records[jobID]
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	snapshot := *record
	return &snapshot, nil
}

// OpenDownload validates a signed token and opens the referenced file.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return file, relPath, nil
}

// CleanupExpired removes rendered files past their TTL.
func (s *ExportService) CleanupExpired() {
	deleted, err := s.store.CleanupOlderThan(s.fileTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("files", len(deleted)))
	}
}

func (s *ExportService) process(_ context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(dto.ExportTimetableRequest)
	if !ok {
		s.logger.Warn("export job carried no request payload", zap.String("job_id", job.ID))
		return nil
	}

	title := payload.Title
	if title == "" && payload.Format == models.ExportFormatPDF {
		title = "Weekly Timetable"
	}
	data := export.TimetableDataset(title, buildExportRows(payload))

	filename := fmt.Sprintf("timetables/%s.%s", job.ID, payload.Format)
	file, err := s.store.Create(filename)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	switch payload.Format {
	case models.ExportFormatPDF:
		err = s.pdf.Render(file, data)
	default:
		err = s.csv.Render(file, data)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.store.Delete(filename)
		s.fail(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, filename)
	if err != nil {
		s.store.Delete(filename)
		s.fail(job.ID, err)
		return err
	}

	s.mu.Lock()
	if record, found := s.records[job.ID]; found {
		record.Status = models.ExportJobStatusDone
		record.FileName = filename
		record.DownloadURL = "/downloads/" + token
		record.ExpiresAt = expiresAt
		record.CompletedAt = time.Now().UTC()
	}
	s.mu.Unlock()
	return nil
}

func (s *ExportService) fail(jobID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[jobID]; ok {
		record.Status = models.ExportJobStatusFailed
		record.Error = cause.Error()
		record.CompletedAt = time.Now().UTC()
	}
}

// buildExportRows flattens a timetable into one row per meeting slot;
// a section without slots still gets a row so it is not lost from the
// rendered file.
func buildExportRows(req dto.ExportTimetableRequest) []export.TimetableRow {
	rows := make([]export.TimetableRow, 0, len(req.Sections))
	for _, section := range req.Sections {
		base := export.TimetableRow{
			Course:     strings.TrimSpace(section.CourseCode + " " + section.CourseName),
			CRN:        section.CRN,
			Section:    section.SectionID,
			Type:       string(section.SectionType),
			Instructor: section.Instructor,
		}
		if len(section.Slots) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, slot := range section.Slots {
			row := base
			row.Day = displayDay(slot)
			row.Time = displayTime(slot)
			rows = append(rows, row)
		}
	}
	return rows
}

func displayDay(slot dto.TimetableSlotView) string {
	if slot.DayName != "" {
		return slot.DayName
	}
	return dayTokenName(slot.Day)
}

func displayTime(slot dto.TimetableSlotView) string {
	if slot.StartTime != "" && slot.EndTime != "" {
		return slot.StartTime + " - " + slot.EndTime
	}
	return slot.Time
}
