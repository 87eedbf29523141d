package dto

import "github.com/ccsit-tools/schedule-api/internal/models"

// GenerateTimetableRequest asks for every conflict-free timetable over
// the selected courses. Courses is a comma-delimited, case-insensitive
// list of course codes; DaysOff lists day tokens the student wants free.
type GenerateTimetableRequest struct {
	Courses string   `json:"courses" validate:"required"`
	DaysOff []string `json:"daysOff" validate:"omitempty,max=7,dive,required"`
}

// TimetableSlotView is a meeting slot augmented with display fields.
type TimetableSlotView struct {
	Day       string `json:"day"`
	DayName   string `json:"dayName"`
	Time      string `json:"time"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// TimetableSectionView is a section with presentation-ready slots.
type TimetableSectionView struct {
	CRN         string              `json:"crn"`
	CourseCode  string              `json:"courseCode"`
	CourseName  string              `json:"courseName"`
	SectionID   string              `json:"sectionId"`
	SectionType models.SectionType  `json:"sectionType"`
	Status      string              `json:"status"`
	Instructor  string              `json:"instructor"`
	Slots       []TimetableSlotView `json:"slots"`
}

// TimetableView is one generated schedule prepared for rendering.
type TimetableView struct {
	Sections []TimetableSectionView `json:"sections"`
	Days     []string               `json:"days"`
}

// GenerateTimetableResponse carries the full generation result.
type GenerateTimetableResponse struct {
	Timetables    []TimetableView       `json:"timetables"`
	Total         int                   `json:"total"`
	Examined      int                   `json:"examined"`
	Facets        models.ScheduleFacets `json:"facets"`
	Unmatched     []string              `json:"unmatchedCourses,omitempty"`
	Unschedulable []string              `json:"unschedulableCourses,omitempty"`
}

// ExportTimetableRequest submits one timetable for file rendering.
type ExportTimetableRequest struct {
	Format   models.ExportFormat    `json:"format" validate:"required,oneof=csv pdf"`
	Title    string                 `json:"title" validate:"omitempty,max=120"`
	Sections []TimetableSectionView `json:"sections" validate:"required,min=1,dive"`
}

// ExportTimetableResponse acknowledges a queued export.
type ExportTimetableResponse struct {
	JobID  string                 `json:"jobId"`
	Status models.ExportJobStatus `json:"status"`
}
