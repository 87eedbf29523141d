package export

// TimetableRow is one meeting line of an exported timetable: a section
// occurrence on a single day. A section without meetings still yields a
// row with empty Day and Time so it is not lost from the rendered file.
type TimetableRow struct {
	Course     string
	CRN        string
	Section    string
	Type       string
	Day        string
	Time       string
	Instructor string
}

var timetableHeaders = []string{"Course", "CRN", "Section", "Type", "Day", "Time", "Instructor"}

// Dataset is the tabular form of one timetable, ready for rendering.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// TimetableDataset lays timetable rows out under the fixed column set.
func TimetableDataset(title string, rows []TimetableRow) Dataset {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Course, row.CRN, row.Section, row.Type, row.Day, row.Time, row.Instructor,
		})
	}
	return Dataset{Title: title, Headers: timetableHeaders, Rows: records}
}
