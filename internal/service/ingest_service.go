package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/models"
)

// sectionRow is the typed view of one snapshot CSV record. Column names
// follow the university feed: Division is the section id, Activity the
// meeting kind, Teacher the instructor.
type sectionRow struct {
	CourseCode string
	CRN        string
	SectionID  string
	Status     string
	CourseName string
	Activity   string
	Hours      string
	Days       string
	Time       string
	Instructor string
}

var snapshotColumns = []string{"Course", "CRN", "Division", "Availability", "CourseTitle", "Activity", "Hours", "Days", "Time", "Teacher"}

// IngestService parses course snapshot CSV files into catalog records.
type IngestService struct {
	logger *zap.Logger
}

// NewIngestService constructs the snapshot parser.
func NewIngestService(logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{logger: logger}
}

// ParseSnapshot reads one CSV snapshot into courses. Rows missing a
// course code or CRN are skipped and counted; a snapshot missing a
// required column is rejected outright. Rows repeating a CRN within the
// same course extend that section's meeting slots.
func (s *IngestService) ParseSnapshot(r io.Reader, snapshot string) ([]models.Course, dto.IngestReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, dto.IngestReport{}, fmt.Errorf("read snapshot header %s: %w", snapshot, err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, dto.IngestReport{}, fmt.Errorf("snapshot %s: %w", snapshot, err)
	}

	acc := newCourseAccumulator()
	report := dto.IngestReport{Snapshot: snapshot}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.SkippedRows++
			s.logger.Warn("skipping malformed snapshot row", zap.String("snapshot", snapshot), zap.Error(err))
			continue
		}

		row := rowFromRecord(record, columns)
		if row.CourseCode == "" || row.CRN == "" {
			report.SkippedRows++
			continue
		}
		acc.add(row)
	}

	courses := acc.courses()
	report.Courses = len(courses)
	for _, course := range courses {
		report.Sections += len(course.Sections)
	}
	return courses, report, nil
}

func mapColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range snapshotColumns {
		if _, found := index[required]; !found {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return index, nil
}

func rowFromRecord(record []string, columns map[string]int) sectionRow {
	field := func(name string) string {
		idx, found := columns[name]
		if !found || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	return sectionRow{
		CourseCode: strings.ToUpper(field("Course")),
		CRN:        field("CRN"),
		SectionID:  field("Division"),
		Status:     field("Availability"),
		CourseName: field("CourseTitle"),
		Activity:   field("Activity"),
		Hours:      field("Hours"),
		Days:       field("Days"),
		Instructor: field("Teacher"),
		Time:       field("Time"),
	}
}

// normalizeActivity maps the feed's activity labels onto section types.
func normalizeActivity(raw string) models.SectionType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "نظري", "theoretical", "lecture":
		return models.SectionTypeTheoretical
	case "عملي", "practical", "lab":
		return models.SectionTypePractical
	default:
		return models.SectionTypeOther
	}
}

// courseAccumulator groups rows into courses while preserving both the
// order courses first appear and each course's section order. It is
// local to a single parse call.
type courseAccumulator struct {
	order    []string
	byCode   map[string]*models.Course
	sections map[string]map[string]int
}

func newCourseAccumulator() *courseAccumulator {
	return &courseAccumulator{
		byCode:   make(map[string]*models.Course),
		sections: make(map[string]map[string]int),
	}
}

func (a *courseAccumulator) add(row sectionRow) {
	course, exists := a.byCode[row.CourseCode]
	if !exists {
		course = &models.Course{
			CourseCode:  row.CourseCode,
			CourseName:  row.CourseName,
			CreditHours: row.Hours,
		}
		a.byCode[row.CourseCode] = course
		a.sections[row.CourseCode] = make(map[string]int)
		a.order = append(a.order, row.CourseCode)
	}

	slots := buildMeetingSlots(row.Days, row.Time)

	if idx, seen := a.sections[row.CourseCode][row.CRN]; seen {
		course.Sections[idx].Slots = append(course.Sections[idx].Slots, slots...)
		return
	}

	course.Sections = append(course.Sections, models.Section{
		CRN:         row.CRN,
		CourseCode:  row.CourseCode,
		SectionID:   row.SectionID,
		SectionType: normalizeActivity(row.Activity),
		Status:      row.Status,
		Instructor:  row.Instructor,
		Slots:       slots,
	})
	a.sections[row.CourseCode][row.CRN] = len(course.Sections) - 1
}

func (a *courseAccumulator) courses() []models.Course {
	courses := make([]models.Course, 0, len(a.order))
	for _, code := range a.order {
		courses = append(courses, *a.byCode[code])
	}
	return courses
}

// buildMeetingSlots pairs every day token in the Days column with the
// row's single time range. A section without days or a time occupies no
// time and never conflicts.
func buildMeetingSlots(days, timeRange string) []models.MeetingSlot {
	if timeRange == "" {
		return nil
	}
	tokens := strings.Fields(days)
	slots := make([]models.MeetingSlot, 0, len(tokens))
	for _, token := range tokens {
		slots = append(slots, models.MeetingSlot{Day: token, Time: timeRange})
	}
	return slots
}
