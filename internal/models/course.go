package models

import "time"

// SectionType categorises how a section meets.
type SectionType string

const (
	SectionTypeTheoretical SectionType = "THEORETICAL"
	SectionTypePractical   SectionType = "PRACTICAL"
	SectionTypeOther       SectionType = "OTHER"
)

// MeetingSlot is one contiguous meeting interval on a single weekday.
// Day keeps the source feed's native token (e.g. the Arabic single-letter
// day codes); Time is the raw "HHMM - HHMM" range string.
type MeetingSlot struct {
	Day  string `db:"day_token" json:"day"`
	Time string `db:"time_range" json:"time"`
}

// Section is one schedulable unit of a course. It references its owning
// course by code only; parent lookup goes through the catalog.
type Section struct {
	CRN         string        `db:"crn" json:"crn"`
	CourseCode  string        `db:"course_code" json:"course_code"`
	SectionID   string        `db:"section_id" json:"section_id"`
	SectionType SectionType   `db:"section_type" json:"section_type"`
	Status      string        `db:"status" json:"status"`
	Instructor  string        `db:"instructor" json:"instructor"`
	Slots       []MeetingSlot `json:"slots"`
}

// Course groups the sections offered under one course code.
type Course struct {
	CourseCode  string    `db:"course_code" json:"course_code"`
	CourseName  string    `db:"course_name" json:"course_name"`
	CreditHours string    `db:"credit_hours" json:"credit_hours"`
	Sections    []Section `json:"sections"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures supported filters for listing the catalog.
type CourseFilter struct {
	Search     string
	Instructor string
	Day        string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
