package models

// Offering is one atomically-selectable bundle of sections satisfying a
// single course: usually one section, or a theory section together with
// its paired lab. Offerings of the same course are mutually exclusive.
type Offering struct {
	CourseCode string    `json:"course_code"`
	Sections   []Section `json:"sections"`
}

// Schedule is one conflict-free weekly timetable: a flat section list
// covering exactly one offering per requested course.
type Schedule struct {
	Sections []Section `json:"sections"`
}

// Days returns the distinct day tokens occupied by the schedule, in
// first-seen order.
func (s Schedule) Days() []string {
	seen := make(map[string]struct{})
	var days []string
	for _, section := range s.Sections {
		for _, slot := range section.Slots {
			if _, ok := seen[slot.Day]; ok {
				continue
			}
			seen[slot.Day] = struct{}{}
			days = append(days, slot.Day)
		}
	}
	return days
}

// CRNs returns the CRN of every section in the schedule, in order.
func (s Schedule) CRNs() []string {
	crns := make([]string, 0, len(s.Sections))
	for _, section := range s.Sections {
		crns = append(crns, section.CRN)
	}
	return crns
}

// Instructors returns the distinct instructor names in the schedule, in
// first-seen order.
func (s Schedule) Instructors() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, section := range s.Sections {
		if section.Instructor == "" {
			continue
		}
		if _, ok := seen[section.Instructor]; ok {
			continue
		}
		seen[section.Instructor] = struct{}{}
		names = append(names, section.Instructor)
	}
	return names
}

// ScheduleFacets summarises distinct values across a batch of generated
// schedules so clients can build filter widgets without rescanning.
type ScheduleFacets struct {
	Instructors []string `json:"instructors"`
	CRNs        []string `json:"crns"`
	Days        []string `json:"days"`
}
