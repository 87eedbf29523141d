package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ccsit-tools/schedule-api/internal/models"
)

// CourseRepository provides persistence for the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

type courseRow struct {
	CourseCode  string    `db:"course_code"`
	CourseName  string    `db:"course_name"`
	CreditHours string    `db:"credit_hours"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type sectionRow struct {
	CRN         string `db:"crn"`
	CourseCode  string `db:"course_code"`
	SectionID   string `db:"section_id"`
	SectionType string `db:"section_type"`
	Status      string `db:"status"`
	Instructor  string `db:"instructor"`
}

type slotRow struct {
	CRN      string `db:"crn"`
	DayToken string `db:"day_token"`
	TimeRng  string `db:"time_range"`
}

// List returns catalog courses with optional filtering and pagination.
// Sections and meeting slots are attached to every returned course.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(course_code ILIKE $%d OR course_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Instructor != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM sections s WHERE s.course_code = courses.course_code AND s.instructor ILIKE $%d)", len(args)+1))
		args = append(args, "%"+filter.Instructor+"%")
	}
	if filter.Day != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM sections s JOIN section_slots sl ON sl.crn = s.crn WHERE s.course_code = courses.course_code AND sl.day_token = $%d)", len(args)+1))
		args = append(args, filter.Day)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	sortBy := "course_code"
	if filter.SortBy == "name" {
		sortBy = "course_name"
	}
	order := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT course_code, course_name, credit_hours, updated_at %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		base, sortBy, order, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var rows []courseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	courses := make([]models.Course, 0, len(rows))
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, models.Course{
			CourseCode:  row.CourseCode,
			CourseName:  row.CourseName,
			CreditHours: row.CreditHours,
			UpdatedAt:   row.UpdatedAt,
		})
		codes = append(codes, row.CourseCode)
	}

	if err := r.attachSections(ctx, courses, codes); err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// FindByCodes fetches fully-populated courses for the given codes.
// Unknown codes are simply absent from the result.
func (r *CourseRepository) FindByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT course_code, course_name, credit_hours, updated_at FROM courses WHERE course_code IN (?) ORDER BY course_code", codes)
	if err != nil {
		return nil, fmt.Errorf("build course query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []courseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find courses: %w", err)
	}

	courses := make([]models.Course, 0, len(rows))
	found := make([]string, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, models.Course{
			CourseCode:  row.CourseCode,
			CourseName:  row.CourseName,
			CreditHours: row.CreditHours,
			UpdatedAt:   row.UpdatedAt,
		})
		found = append(found, row.CourseCode)
	}

	if err := r.attachSections(ctx, courses, found); err != nil {
		return nil, err
	}
	return courses, nil
}

// Count returns the number of catalog courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// ReplaceAll swaps the whole catalog for the provided courses inside one
// transaction. Sections keep their course order via the position column.
func (r *CourseRepository) ReplaceAll(ctx context.Context, courses []models.Course) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{"DELETE FROM section_slots", "DELETE FROM sections", "DELETE FROM courses"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
	}

	now := time.Now().UTC()
	for _, course := range courses {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO courses (course_code, course_name, credit_hours, updated_at) VALUES ($1, $2, $3, $4)",
			course.CourseCode, course.CourseName, course.CreditHours, now,
		); err != nil {
			return fmt.Errorf("insert course %s: %w", course.CourseCode, err)
		}
		for position, section := range course.Sections {
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO sections (crn, course_code, section_id, section_type, status, instructor, position) VALUES ($1, $2, $3, $4, $5, $6, $7)",
				section.CRN, section.CourseCode, section.SectionID, string(section.SectionType), section.Status, section.Instructor, position,
			); err != nil {
				return fmt.Errorf("insert section %s: %w", section.CRN, err)
			}
			for slotPosition, slot := range section.Slots {
				if _, err = tx.ExecContext(ctx,
					"INSERT INTO section_slots (crn, day_token, time_range, position) VALUES ($1, $2, $3, $4)",
					section.CRN, slot.Day, slot.Time, slotPosition,
				); err != nil {
					return fmt.Errorf("insert slot for %s: %w", section.CRN, err)
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog replace: %w", err)
	}
	return nil
}

func (r *CourseRepository) attachSections(ctx context.Context, courses []models.Course, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	query, args, err := sqlx.In("SELECT crn, course_code, section_id, section_type, status, instructor FROM sections WHERE course_code IN (?) ORDER BY course_code, position", codes)
	if err != nil {
		return fmt.Errorf("build section query: %w", err)
	}
	query = r.db.Rebind(query)

	var sectionRows []sectionRow
	if err := r.db.SelectContext(ctx, &sectionRows, query, args...); err != nil {
		return fmt.Errorf("load sections: %w", err)
	}

	crns := make([]string, 0, len(sectionRows))
	for _, row := range sectionRows {
		crns = append(crns, row.CRN)
	}

	slotsByCRN := make(map[string][]models.MeetingSlot)
	if len(crns) > 0 {
		slotQuery, slotArgs, err := sqlx.In("SELECT crn, day_token, time_range FROM section_slots WHERE crn IN (?) ORDER BY crn, position", crns)
		if err != nil {
			return fmt.Errorf("build slot query: %w", err)
		}
		slotQuery = r.db.Rebind(slotQuery)

		var slotRows []slotRow
		if err := r.db.SelectContext(ctx, &slotRows, slotQuery, slotArgs...); err != nil {
			return fmt.Errorf("load section slots: %w", err)
		}
		for _, row := range slotRows {
			slotsByCRN[row.CRN] = append(slotsByCRN[row.CRN], models.MeetingSlot{Day: row.DayToken, Time: row.TimeRng})
		}
	}

	byCode := make(map[string]*models.Course, len(courses))
	for i := range courses {
		byCode[courses[i].CourseCode] = &courses[i]
	}
	for _, row := range sectionRows {
		course, found := byCode[row.CourseCode]
		if !found {
			continue
		}
		course.Sections = append(course.Sections, models.Section{
			CRN:         row.CRN,
			CourseCode:  row.CourseCode,
			SectionID:   row.SectionID,
			SectionType: models.SectionType(row.SectionType),
			Status:      row.Status,
			Instructor:  row.Instructor,
			Slots:       slotsByCRN[row.CRN],
		})
	}
	return nil
}
