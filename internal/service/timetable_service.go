package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/models"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
)

// Courses with this credit-hour value require a theory section paired
// with its lab; the lab's section id is the theory id plus the offset.
const (
	pairedCreditHours  = "4"
	labSectionIDOffset = 40
)

type courseResolver interface {
	ResolveCodes(ctx context.Context, raw string) ([]models.Course, []string, error)
}

// TimetableService enumerates every conflict-free weekly timetable over
// a set of selected courses.
type TimetableService struct {
	catalog    courseResolver
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	maxCourses int
}

// NewTimetableService wires generator dependencies.
func NewTimetableService(catalog courseResolver, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, maxCourses int) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCourses <= 0 {
		maxCourses = 10
	}
	return &TimetableService{
		catalog:    catalog,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		maxCourses: maxCourses,
	}
}

// Generate resolves the requested course codes and returns every valid
// timetable. The combinatorial search itself is pure and synchronous;
// Generate runs it off the request goroutine so the context deadline can
// cut a runaway request short.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	if len(splitCodes(req.Courses)) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no course codes supplied")
	}

	courses, unmatched, err := s.catalog.ResolveCodes(ctx, req.Courses)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnknownCourse, fmt.Sprintf("no catalog match for %q", req.Courses))
	}
	if len(courses) > s.maxCourses {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d courses may be combined per request", s.maxCourses))
	}

	start := time.Now()
	resultCh := make(chan searchResult, 1)
	go func() {
		resultCh <- buildSchedules(courses)
	}()

	var result searchResult
	select {
	case <-ctx.Done():
		s.metrics.RecordGeneration(0, 0, time.Since(start), "timeout")
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	case result = <-resultCh:
	}

	schedules := filterDaysOff(result.schedules, req.DaysOff)

	var unschedulable []string
	outcome := "ok"
	if len(result.schedules) == 0 {
		outcome = "empty"
		for _, course := range courses {
			if len(expandOfferings(course)) == 0 {
				unschedulable = append(unschedulable, course.CourseCode)
			}
		}
		if len(unschedulable) > 0 {
			outcome = "unschedulable"
		}
	}
	s.metrics.RecordGeneration(result.examined, len(schedules), time.Since(start), outcome)

	s.logger.Info("timetables generated",
		zap.Int("courses", len(courses)),
		zap.Int("examined", result.examined),
		zap.Int("valid", len(result.schedules)),
		zap.Int("after_days_off", len(schedules)),
		zap.Duration("took", time.Since(start)),
	)

	names := make(map[string]string, len(courses))
	for _, course := range courses {
		names[course.CourseCode] = course.CourseName
	}

	resp := &dto.GenerateTimetableResponse{
		Timetables:    buildTimetableViews(schedules, names),
		Total:         len(schedules),
		Examined:      result.examined,
		Facets:        buildFacets(schedules),
		Unmatched:     unmatched,
		Unschedulable: unschedulable,
	}
	return resp, nil
}

// --- Offering expansion ---

// expandOfferings converts a course's section list into its selectable
// offerings. A 4-credit course admits only theory+lab pairs: a theory
// section with an all-digit id N pairs with the practical section whose
// id equals N+40; unpaired theory sections are dropped. Any other credit
// value makes every section its own offering, in course order.
func expandOfferings(course models.Course) []models.Offering {
	if course.CreditHours != pairedCreditHours {
		offerings := make([]models.Offering, 0, len(course.Sections))
		for _, section := range course.Sections {
			offerings = append(offerings, models.Offering{
				CourseCode: course.CourseCode,
				Sections:   []models.Section{section},
			})
		}
		return offerings
	}

	labs := make(map[string]models.Section)
	for _, section := range course.Sections {
		if section.SectionType != models.SectionTypePractical {
			continue
		}
		if _, exists := labs[section.SectionID]; !exists {
			labs[section.SectionID] = section
		}
	}

	offerings := make([]models.Offering, 0, len(course.Sections))
	for _, section := range course.Sections {
		if section.SectionType != models.SectionTypeTheoretical || !allDigits(section.SectionID) {
			continue
		}
		id, err := strconv.Atoi(section.SectionID)
		if err != nil {
			continue
		}
		lab, found := labs[strconv.Itoa(id+labSectionIDOffset)]
		if !found {
			continue
		}
		offerings = append(offerings, models.Offering{
			CourseCode: course.CourseCode,
			Sections:   []models.Section{section, lab},
		})
	}
	return offerings
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// --- Combination search ---

type searchResult struct {
	schedules []models.Schedule
	examined  int
}

// buildSchedules walks the Cartesian product of per-course offerings,
// rightmost course varying fastest, and keeps every candidate whose
// meeting slots are pairwise conflict-free. If any course expands to
// zero offerings the whole request is infeasible and the result is
// empty, as is the result for an empty course list.
func buildSchedules(courses []models.Course) searchResult {
	if len(courses) == 0 {
		return searchResult{schedules: []models.Schedule{}}
	}

	groups := make([][]models.Offering, 0, len(courses))
	for _, course := range courses {
		offerings := expandOfferings(course)
		if len(offerings) == 0 {
			return searchResult{schedules: []models.Schedule{}}
		}
		groups = append(groups, offerings)
	}

	schedules := make([]models.Schedule, 0)
	indices := make([]int, len(groups))
	examined := 0
	for {
		examined++
		sections := flattenCombination(groups, indices)
		if !hasConflict(sections) {
			schedules = append(schedules, models.Schedule{Sections: sections})
		}

		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(groups[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return searchResult{schedules: schedules, examined: examined}
}

func flattenCombination(groups [][]models.Offering, indices []int) []models.Section {
	var sections []models.Section
	for i, idx := range indices {
		sections = append(sections, groups[i][idx].Sections...)
	}
	return sections
}

type slotInterval struct {
	day   string
	start int
	end   int
}

// hasConflict reports whether any two meeting slots on the same day
// overlap. Intervals are half-open: a slot ending exactly when another
// starts does not conflict. Slots whose time range cannot be parsed
// occupy no time and never conflict.
func hasConflict(sections []models.Section) bool {
	var intervals []slotInterval
	for _, section := range sections {
		for _, slot := range section.Slots {
			start, end, ok := parseTimeRange(slot.Time)
			if !ok {
				continue
			}
			intervals = append(intervals, slotInterval{day: slot.Day, start: start, end: end})
		}
	}
	for i := 0; i < len(intervals); i++ {
		for j := i + 1; j < len(intervals); j++ {
			if intervals[i].day != intervals[j].day {
				continue
			}
			if intervals[i].start < intervals[j].end && intervals[j].start < intervals[i].end {
				return true
			}
		}
	}
	return false
}

// parseTimeRange converts a "HHMM - HHMM" range into start/end minutes
// since midnight. The separator tolerates missing surrounding spaces.
func parseTimeRange(raw string) (start, end int, ok bool) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok = parseClock(strings.TrimSpace(parts[0]))
	if !ok {
		return 0, 0, false
	}
	end, ok = parseClock(strings.TrimSpace(parts[1]))
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

func parseClock(raw string) (int, bool) {
	if len(raw) != 4 || !allDigits(raw) {
		return 0, false
	}
	hours, _ := strconv.Atoi(raw[:2])
	minutes, _ := strconv.Atoi(raw[2:])
	if hours > 23 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

// --- Days-off filter ---

// filterDaysOff drops every schedule that occupies any of the requested
// off days. Requests may use the feed's native day tokens or English day
// names; both are trimmed and compared case-insensitively.
func filterDaysOff(schedules []models.Schedule, daysOff []string) []models.Schedule {
	if len(daysOff) == 0 {
		return schedules
	}
	off := make(map[string]struct{}, len(daysOff))
	for _, day := range daysOff {
		token := strings.ToUpper(strings.TrimSpace(day))
		if token != "" {
			off[token] = struct{}{}
		}
	}
	if len(off) == 0 {
		return schedules
	}

	kept := make([]models.Schedule, 0, len(schedules))
	for _, schedule := range schedules {
		occupied := false
		for _, day := range schedule.Days() {
			token := strings.ToUpper(strings.TrimSpace(day))
			name := strings.ToUpper(dayTokenName(day))
			if _, found := off[token]; found {
				occupied = true
				break
			}
			if _, found := off[name]; found {
				occupied = true
				break
			}
		}
		if !occupied {
			kept = append(kept, schedule)
		}
	}
	return kept
}

// --- Presentation helpers ---

// dayTokenNames maps the feed's native day tokens to English day names.
// The Arabic single letters are what the university feed emits; the
// Latin letters cover manually-authored snapshots.
var dayTokenNames = map[string]string{
	"ح": "Sunday",
	"ن": "Monday",
	"ث": "Tuesday",
	"ر": "Wednesday",
	"خ": "Thursday",
	"ج": "Friday",
	"س": "Saturday",
	"U": "Sunday",
	"M": "Monday",
	"T": "Tuesday",
	"W": "Wednesday",
	"R": "Thursday",
	"F": "Friday",
	"S": "Saturday",
}

func dayTokenName(token string) string {
	token = strings.TrimSpace(token)
	if name, found := dayTokenNames[token]; found {
		return name
	}
	if name, found := dayTokenNames[strings.ToUpper(token)]; found {
		return name
	}
	return token
}

// formatClock12h renders an "HHMM" clock value as 12-hour time.
func formatClock12h(raw string) string {
	minutes, ok := parseClock(raw)
	if !ok {
		return raw
	}
	hours := minutes / 60
	meridiem := "AM"
	display := hours
	switch {
	case hours == 0:
		display = 12
	case hours == 12:
		meridiem = "PM"
	case hours > 12:
		display = hours - 12
		meridiem = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", display, minutes%60, meridiem)
}

func buildTimetableViews(schedules []models.Schedule, courseNames map[string]string) []dto.TimetableView {
	views := make([]dto.TimetableView, 0, len(schedules))
	for _, schedule := range schedules {
		view := dto.TimetableView{
			Sections: make([]dto.TimetableSectionView, 0, len(schedule.Sections)),
			Days:     schedule.Days(),
		}
		for _, section := range schedule.Sections {
			sectionView := dto.TimetableSectionView{
				CRN:         section.CRN,
				CourseCode:  section.CourseCode,
				CourseName:  courseNames[section.CourseCode],
				SectionID:   section.SectionID,
				SectionType: section.SectionType,
				Status:      section.Status,
				Instructor:  section.Instructor,
				Slots:       make([]dto.TimetableSlotView, 0, len(section.Slots)),
			}
			for _, slot := range section.Slots {
				slotView := dto.TimetableSlotView{
					Day:     slot.Day,
					DayName: dayTokenName(slot.Day),
					Time:    slot.Time,
				}
				if parts := strings.SplitN(slot.Time, "-", 2); len(parts) == 2 {
					slotView.StartTime = formatClock12h(strings.TrimSpace(parts[0]))
					slotView.EndTime = formatClock12h(strings.TrimSpace(parts[1]))
				}
				sectionView.Slots = append(sectionView.Slots, slotView)
			}
			view.Sections = append(view.Sections, sectionView)
		}
		views = append(views, view)
	}
	return views
}

// buildFacets derives the distinct filter values across a batch of
// schedules. Lists are sorted so identical inputs produce identical
// payloads.
func buildFacets(schedules []models.Schedule) models.ScheduleFacets {
	instructors := make(map[string]struct{})
	crns := make(map[string]struct{})
	days := make(map[string]struct{})
	for _, schedule := range schedules {
		for _, name := range schedule.Instructors() {
			instructors[name] = struct{}{}
		}
		for _, crn := range schedule.CRNs() {
			crns[crn] = struct{}{}
		}
		for _, day := range schedule.Days() {
			days[day] = struct{}{}
		}
	}
	return models.ScheduleFacets{
		Instructors: sortedKeys(instructors),
		CRNs:        sortedKeys(crns),
		Days:        sortedKeys(days),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
