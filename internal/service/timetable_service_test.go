package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/models"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
)

type catalogStub struct {
	courses map[string]models.Course
}

func (c catalogStub) ResolveCodes(_ context.Context, raw string) ([]models.Course, []string, error) {
	var matched []models.Course
	var unmatched []string
	for _, part := range strings.Split(raw, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if course, found := c.courses[code]; found {
			matched = append(matched, course)
		} else {
			unmatched = append(unmatched, code)
		}
	}
	return matched, unmatched, nil
}

func newTimetableFixture(courses ...models.Course) *TimetableService {
	byCode := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		byCode[course.CourseCode] = course
	}
	return NewTimetableService(catalogStub{courses: byCode}, nil, nil, zap.NewNop(), 0)
}

func section(course, crn, sectionID string, sectionType models.SectionType, instructor string, slots ...models.MeetingSlot) models.Section {
	return models.Section{
		CRN:         crn,
		CourseCode:  course,
		SectionID:   sectionID,
		SectionType: sectionType,
		Status:      "Open",
		Instructor:  instructor,
		Slots:       slots,
	}
}

func slot(day, timeRange string) models.MeetingSlot {
	return models.MeetingSlot{Day: day, Time: timeRange}
}

func TestExpandOfferingsSingleSections(t *testing.T) {
	course := models.Course{
		CourseCode:  "CS101",
		CreditHours: "3",
		Sections: []models.Section{
			section("CS101", "10001", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			section("CS101", "10002", "2", models.SectionTypeTheoretical, "B", slot("ن", "0800 - 0900")),
		},
	}

	offerings := expandOfferings(course)
	require.Len(t, offerings, 2)
	assert.Equal(t, []string{"10001"}, models.Schedule{Sections: offerings[0].Sections}.CRNs())
	assert.Equal(t, []string{"10002"}, models.Schedule{Sections: offerings[1].Sections}.CRNs())
}

func TestExpandOfferingsPairsTheoryWithLab(t *testing.T) {
	course := models.Course{
		CourseCode:  "CS240",
		CreditHours: "4",
		Sections: []models.Section{
			section("CS240", "20001", "101", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			section("CS240", "20002", "141", models.SectionTypePractical, "A", slot("ث", "1000 - 1200")),
		},
	}

	offerings := expandOfferings(course)
	require.Len(t, offerings, 1)
	require.Len(t, offerings[0].Sections, 2)
	assert.Equal(t, "101", offerings[0].Sections[0].SectionID)
	assert.Equal(t, "141", offerings[0].Sections[1].SectionID)
}

func TestExpandOfferingsDropsUnpairedTheory(t *testing.T) {
	course := models.Course{
		CourseCode:  "CS240",
		CreditHours: "4",
		Sections: []models.Section{
			section("CS240", "20001", "101", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
		},
	}

	assert.Empty(t, expandOfferings(course))
}

func TestExpandOfferingsIgnoresNonNumericTheoryIDs(t *testing.T) {
	course := models.Course{
		CourseCode:  "CS240",
		CreditHours: "4",
		Sections: []models.Section{
			section("CS240", "20001", "A1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			section("CS240", "20002", "141", models.SectionTypePractical, "A", slot("ث", "1000 - 1200")),
		},
	}

	assert.Empty(t, expandOfferings(course))
}

func TestBuildSchedulesRightmostVariesFastest(t *testing.T) {
	courseA := models.Course{
		CourseCode:  "CS101",
		CreditHours: "3",
		Sections: []models.Section{
			section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			section("CS101", "A2", "2", models.SectionTypeTheoretical, "A", slot("ح", "0900 - 1000")),
		},
	}
	courseB := models.Course{
		CourseCode:  "MATH101",
		CreditHours: "3",
		Sections: []models.Section{
			section("MATH101", "B1", "1", models.SectionTypeTheoretical, "B", slot("ن", "0800 - 0900")),
			section("MATH101", "B2", "2", models.SectionTypeTheoretical, "B", slot("ن", "0900 - 1000")),
		},
	}

	result := buildSchedules([]models.Course{courseA, courseB})
	require.Equal(t, 4, result.examined)
	require.Len(t, result.schedules, 4)

	var order [][]string
	for _, schedule := range result.schedules {
		order = append(order, schedule.CRNs())
	}
	assert.Equal(t, [][]string{
		{"A1", "B1"},
		{"A1", "B2"},
		{"A2", "B1"},
		{"A2", "B2"},
	}, order)
}

func TestBuildSchedulesTouchingBoundariesDoNotConflict(t *testing.T) {
	courseA := models.Course{
		CourseCode:  "CS101",
		CreditHours: "3",
		Sections: []models.Section{
			section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
		},
	}
	courseB := models.Course{
		CourseCode:  "MATH101",
		CreditHours: "3",
		Sections: []models.Section{
			section("MATH101", "B1", "1", models.SectionTypeTheoretical, "B", slot("ح", "0900 - 1000")),
		},
	}

	result := buildSchedules([]models.Course{courseA, courseB})
	assert.Len(t, result.schedules, 1)
}

func TestBuildSchedulesDetectsOverlap(t *testing.T) {
	courseA := models.Course{
		CourseCode:  "CS101",
		CreditHours: "3",
		Sections: []models.Section{
			section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0930")),
		},
	}
	courseB := models.Course{
		CourseCode:  "MATH101",
		CreditHours: "3",
		Sections: []models.Section{
			section("MATH101", "B1", "1", models.SectionTypeTheoretical, "B", slot("ح", "0900 - 1000")),
		},
	}

	result := buildSchedules([]models.Course{courseA, courseB})
	assert.Empty(t, result.schedules)
}

func TestBuildSchedulesScenarioPicksNonOverlappingSection(t *testing.T) {
	courseA := models.Course{
		CourseCode:  "CS101",
		CreditHours: "3",
		Sections: []models.Section{
			section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			section("CS101", "A2", "2", models.SectionTypeTheoretical, "A", slot("ح", "1100 - 1200")),
		},
	}
	courseB := models.Course{
		CourseCode:  "MATH101",
		CreditHours: "3",
		Sections: []models.Section{
			section("MATH101", "B1", "1", models.SectionTypeTheoretical, "B", slot("ح", "0830 - 0930")),
		},
	}

	result := buildSchedules([]models.Course{courseA, courseB})
	require.Len(t, result.schedules, 1)
	assert.Equal(t, []string{"A2", "B1"}, result.schedules[0].CRNs())
}

func TestBuildSchedulesFailFastOnUnschedulableCourse(t *testing.T) {
	feasible := models.Course{
		CourseCode:  "CS101",
		CreditHours: "3",
		Sections: []models.Section{
			section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
		},
	}
	infeasible := models.Course{
		CourseCode:  "CS240",
		CreditHours: "4",
		Sections: []models.Section{
			section("CS240", "B1", "101", models.SectionTypeTheoretical, "B", slot("ن", "0800 - 0900")),
		},
	}

	result := buildSchedules([]models.Course{feasible, infeasible})
	assert.Empty(t, result.schedules)

	assert.Empty(t, buildSchedules(nil).schedules)
}

func TestBuildSchedulesMalformedTimeOccupiesNoTime(t *testing.T) {
	courseA := models.Course{
		CourseCode:  "CS101",
		CreditHours: "3",
		Sections: []models.Section{
			section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "garbage")),
		},
	}
	courseB := models.Course{
		CourseCode:  "MATH101",
		CreditHours: "3",
		Sections: []models.Section{
			section("MATH101", "B1", "1", models.SectionTypeTheoretical, "B", slot("ح", "0800 - 0900")),
		},
	}

	result := buildSchedules([]models.Course{courseA, courseB})
	assert.Len(t, result.schedules, 1)
}

func TestBuildSchedulesDeterministic(t *testing.T) {
	courses := []models.Course{
		{
			CourseCode:  "CS101",
			CreditHours: "3",
			Sections: []models.Section{
				section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900"), slot("ث", "0800 - 0900")),
				section("CS101", "A2", "2", models.SectionTypeTheoretical, "A", slot("ن", "1000 - 1100")),
			},
		},
		{
			CourseCode:  "CS240",
			CreditHours: "4",
			Sections: []models.Section{
				section("CS240", "B1", "101", models.SectionTypeTheoretical, "B", slot("ر", "0900 - 1000")),
				section("CS240", "B2", "141", models.SectionTypePractical, "B", slot("خ", "1300 - 1500")),
			},
		},
	}

	first := buildSchedules(courses)
	second := buildSchedules(courses)
	assert.Equal(t, first, second)
}

func TestGenerateCoverageInvariant(t *testing.T) {
	svc := newTimetableFixture(
		models.Course{
			CourseCode:  "CS101",
			CreditHours: "3",
			Sections: []models.Section{
				section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
				section("CS101", "A2", "2", models.SectionTypeTheoretical, "A", slot("ح", "1000 - 1100")),
			},
		},
		models.Course{
			CourseCode:  "MATH101",
			CreditHours: "3",
			Sections: []models.Section{
				section("MATH101", "B1", "1", models.SectionTypeTheoretical, "B", slot("ن", "0800 - 0900")),
			},
		},
	)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Courses: "cs101, math101"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	for _, timetable := range resp.Timetables {
		codes := make(map[string]int)
		for _, sectionView := range timetable.Sections {
			codes[sectionView.CourseCode]++
		}
		assert.Equal(t, map[string]int{"CS101": 1, "MATH101": 1}, codes)
	}
}

func TestGenerateReportsUnschedulableCourse(t *testing.T) {
	svc := newTimetableFixture(
		models.Course{
			CourseCode:  "CS101",
			CreditHours: "3",
			Sections: []models.Section{
				section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			},
		},
		models.Course{
			CourseCode:  "CS240",
			CreditHours: "4",
			Sections: []models.Section{
				section("CS240", "B1", "101", models.SectionTypeTheoretical, "B", slot("ن", "0800 - 0900")),
			},
		},
	)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Courses: "CS101,CS240"})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Equal(t, []string{"CS240"}, resp.Unschedulable)
}

func TestGenerateDaysOffFilter(t *testing.T) {
	svc := newTimetableFixture(
		models.Course{
			CourseCode:  "CS101",
			CreditHours: "3",
			Sections: []models.Section{
				section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
				section("CS101", "A2", "2", models.SectionTypeTheoretical, "A", slot("ن", "0800 - 0900")),
			},
		},
	)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		Courses: "CS101",
		DaysOff: []string{" ح "},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "A2", resp.Timetables[0].Sections[0].CRN)

	resp, err = svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		Courses: "CS101",
		DaysOff: []string{"sunday"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "A2", resp.Timetables[0].Sections[0].CRN)
}

func TestGenerateUnknownCourses(t *testing.T) {
	svc := newTimetableFixture(
		models.Course{
			CourseCode:  "CS101",
			CreditHours: "3",
			Sections: []models.Section{
				section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			},
		},
	)

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Courses: "NOPE1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownCourse.Code, appErrors.FromError(err).Code)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Courses: "CS101, NOPE1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"NOPE1"}, resp.Unmatched)
	assert.Equal(t, 1, resp.Total)
}

func TestGenerateRejectsBlankCourseList(t *testing.T) {
	svc := newTimetableFixture(
		models.Course{
			CourseCode:  "CS101",
			CreditHours: "3",
			Sections: []models.Section{
				section("CS101", "A1", "1", models.SectionTypeTheoretical, "A", slot("ح", "0800 - 0900")),
			},
		},
	)

	for _, courses := range []string{"   ", " , ;, "} {
		_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Courses: courses})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestGenerateFacets(t *testing.T) {
	svc := newTimetableFixture(
		models.Course{
			CourseCode:  "CS101",
			CreditHours: "3",
			Sections: []models.Section{
				section("CS101", "A1", "1", models.SectionTypeTheoretical, "Dr. Noor", slot("ح", "0800 - 0900")),
				section("CS101", "A2", "2", models.SectionTypeTheoretical, "Dr. Faisal", slot("ن", "0800 - 0900")),
			},
		},
	)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Courses: "CS101"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Dr. Noor", "Dr. Faisal"}, resp.Facets.Instructors)
	assert.ElementsMatch(t, []string{"A1", "A2"}, resp.Facets.CRNs)
	assert.ElementsMatch(t, []string{"ح", "ن"}, resp.Facets.Days)
}

func TestParseTimeRange(t *testing.T) {
	cases := []struct {
		raw   string
		start int
		end   int
		ok    bool
	}{
		{"0800 - 0900", 480, 540, true},
		{"0800-0900", 480, 540, true},
		{"2330 - 2359", 1410, 1439, true},
		{"080 - 0900", 0, 0, false},
		{"0800 - 09x0", 0, 0, false},
		{"2500 - 2600", 0, 0, false},
		{"", 0, 0, false},
		{"0800", 0, 0, false},
	}
	for _, tc := range cases {
		start, end, ok := parseTimeRange(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.Equal(t, tc.start, start, tc.raw)
			assert.Equal(t, tc.end, end, tc.raw)
		}
	}
}

func TestFormatClock12h(t *testing.T) {
	assert.Equal(t, "8:30 AM", formatClock12h("0830"))
	assert.Equal(t, "12:00 PM", formatClock12h("1200"))
	assert.Equal(t, "12:05 AM", formatClock12h("0005"))
	assert.Equal(t, "3:45 PM", formatClock12h("1545"))
	assert.Equal(t, "bad", formatClock12h("bad"))
}

func TestDayTokenName(t *testing.T) {
	assert.Equal(t, "Sunday", dayTokenName("ح"))
	assert.Equal(t, "Thursday", dayTokenName(" خ "))
	assert.Equal(t, "Monday", dayTokenName("m"))
	assert.Equal(t, "؟", dayTokenName("؟"))
}
