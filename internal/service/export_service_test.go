package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/models"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
	"github.com/ccsit-tools/schedule-api/pkg/storage"
)

func newExportFixture(t *testing.T, enabled bool) *ExportService {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-test-secret", time.Hour)

	svc := NewExportService(store, signer, nil, zap.NewNop(), ExportConfig{
		Enabled: enabled,
		Workers: 1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		svc.Stop()
	})
	return svc
}

func exportRequest(format models.ExportFormat) dto.ExportTimetableRequest {
	return dto.ExportTimetableRequest{
		Format: format,
		Title:  "Term 452",
		Sections: []dto.TimetableSectionView{
			{
				CRN:         "21001",
				CourseCode:  "CS301",
				CourseName:  "Data Structures",
				SectionID:   "101",
				SectionType: models.SectionTypeTheoretical,
				Instructor:  "F. Alahmad",
				Slots: []dto.TimetableSlotView{
					{Day: "ح", DayName: "Sunday", Time: "0800 - 0850", StartTime: "8:00 AM", EndTime: "8:50 AM"},
				},
			},
		},
	}
}

func TestExportSubmitRendersCSV(t *testing.T) {
	svc := newExportFixture(t, true)

	resp, err := svc.Submit(context.Background(), exportRequest(models.ExportFormatCSV))
	require.NoError(t, err)
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, models.ExportJobStatusPending, resp.Status)

	require.Eventually(t, func() bool {
		record, err := svc.Status(resp.JobID)
		return err == nil && record.Status == models.ExportJobStatusDone
	}, 2*time.Second, 10*time.Millisecond)

	record, err := svc.Status(resp.JobID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(record.DownloadURL, "/downloads/"))

	token := strings.TrimPrefix(record.DownloadURL, "/downloads/")
	file, name, err := svc.OpenDownload(token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	assert.Equal(t, "timetables/"+resp.JobID+".csv", name)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Course,CRN,Section,Type,Day,Time,Instructor")
	assert.Contains(t, string(content), "CS301 Data Structures,21001,101,THEORETICAL,Sunday,8:00 AM - 8:50 AM,F. Alahmad")
}

func TestExportSubmitRendersPDF(t *testing.T) {
	svc := newExportFixture(t, true)

	resp, err := svc.Submit(context.Background(), exportRequest(models.ExportFormatPDF))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		record, err := svc.Status(resp.JobID)
		return err == nil && record.Status == models.ExportJobStatusDone
	}, 2*time.Second, 10*time.Millisecond)

	record, err := svc.Status(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "timetables/"+resp.JobID+".pdf", record.FileName)
	assert.False(t, record.ExpiresAt.IsZero())
}

func TestExportSubmitDisabled(t *testing.T) {
	svc := newExportFixture(t, false)

	_, err := svc.Submit(context.Background(), exportRequest(models.ExportFormatCSV))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExportDisabled.Code, appErrors.FromError(err).Code)
}

func TestExportSubmitRejectsInvalidPayload(t *testing.T) {
	svc := newExportFixture(t, true)

	_, err := svc.Submit(context.Background(), dto.ExportTimetableRequest{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportStatusUnknownJob(t *testing.T) {
	svc := newExportFixture(t, true)

	_, err := svc.Status("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportOpenDownloadRejectsTamperedToken(t *testing.T) {
	svc := newExportFixture(t, true)

	_, _, err := svc.OpenDownload("not.a.valid.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestBuildExportRowsSectionWithoutSlots(t *testing.T) {
	req := dto.ExportTimetableRequest{
		Format: models.ExportFormatCSV,
		Sections: []dto.TimetableSectionView{
			{CRN: "33010", CourseCode: "CS490", CourseName: "Seminar", SectionID: "1", SectionType: models.SectionTypeOther},
		},
	}

	rows := buildExportRows(req)
	require.Len(t, rows, 1)
	assert.Equal(t, "33010", rows[0].CRN)
	assert.Empty(t, rows[0].Day)
	assert.Empty(t, rows[0].Time)
}

func TestBuildExportRowsOneRowPerSlot(t *testing.T) {
	req := exportRequest(models.ExportFormatCSV)
	req.Sections[0].Slots = append(req.Sections[0].Slots, dto.TimetableSlotView{
		Day: "ث", Time: "1000 - 1050",
	})

	rows := buildExportRows(req)
	require.Len(t, rows, 2)
	assert.Equal(t, "Sunday", rows[0].Day)
	assert.Equal(t, "8:00 AM - 8:50 AM", rows[0].Time)
	assert.Equal(t, "Tuesday", rows[1].Day)
	assert.Equal(t, "1000 - 1050", rows[1].Time)
}
