package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/models"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
)

const catalogCachePrefix = "catalog:"

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByCodes(ctx context.Context, codes []string) ([]models.Course, error)
	ReplaceAll(ctx context.Context, courses []models.Course) error
	Count(ctx context.Context) (int, error)
}

// CatalogService serves the course catalog and manages snapshot refreshes.
type CatalogService struct {
	store       courseStore
	ingest      *IngestService
	cache       *CacheService
	logger      *zap.Logger
	snapshotDir string
}

// NewCatalogService wires catalog dependencies.
func NewCatalogService(store courseStore, ingest *IngestService, cache *CacheService, logger *zap.Logger, snapshotDir string) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		store:       store,
		ingest:      ingest,
		cache:       cache,
		logger:      logger,
		snapshotDir: snapshotDir,
	}
}

type cachedCourseList struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// List returns catalog courses with pagination, read through the cache.
func (s *CatalogService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := listCacheKey(filter)

	var cached cachedCourseList
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Courses, paginationFor(filter, cached.Total), nil
	}

	courses, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	_ = s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Total: total}, 0)
	return courses, paginationFor(filter, total), nil
}

// Get returns one fully-populated course.
func (s *CatalogService) Get(ctx context.Context, code string) (*models.Course, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course code is required")
	}
	courses, err := s.store.FindByCodes(ctx, []string{code})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if len(courses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", code))
	}
	return &courses[0], nil
}

// ResolveCodes turns a delimited, case-insensitive course-code list into
// catalog records. Matched courses keep the requested order; codes with
// no catalog record are reported separately. Duplicates collapse to the
// first occurrence.
func (s *CatalogService) ResolveCodes(ctx context.Context, raw string) ([]models.Course, []string, error) {
	codes := splitCodes(raw)
	if len(codes) == 0 {
		return nil, nil, nil
	}

	found, err := s.store.FindByCodes(ctx, codes)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve course codes")
	}

	byCode := make(map[string]models.Course, len(found))
	for _, course := range found {
		byCode[course.CourseCode] = course
	}

	matched := make([]models.Course, 0, len(codes))
	var unmatched []string
	for _, code := range codes {
		if course, exists := byCode[code]; exists {
			matched = append(matched, course)
		} else {
			unmatched = append(unmatched, code)
		}
	}
	return matched, unmatched, nil
}

// Refresh re-ingests snapshot files and atomically replaces the catalog.
// When no snapshot names are given every *.csv under the snapshot dir is
// loaded. A course code appearing in more than one snapshot keeps its
// first definition.
func (s *CatalogService) Refresh(ctx context.Context, snapshots []string) ([]dto.IngestReport, error) {
	names := snapshots
	if len(names) == 0 {
		var err error
		names, err = s.listSnapshots()
		if err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no snapshot files under %s", s.snapshotDir))
	}

	var merged []models.Course
	seen := make(map[string]struct{})
	reports := make([]dto.IngestReport, 0, len(names))

	for _, name := range names {
		file, err := os.Open(filepath.Join(s.snapshotDir, filepath.Base(name)))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to open snapshot %s", name))
		}
		courses, report, err := s.ingest.ParseSnapshot(file, filepath.Base(name))
		_ = file.Close()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "snapshot rejected")
		}
		reports = append(reports, report)

		for _, course := range courses {
			if _, dup := seen[course.CourseCode]; dup {
				s.logger.Warn("duplicate course across snapshots, keeping first",
					zap.String("course", course.CourseCode), zap.String("snapshot", report.Snapshot))
				continue
			}
			seen[course.CourseCode] = struct{}{}
			merged = append(merged, course)
		}
	}

	if err := s.store.ReplaceAll(ctx, merged); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store catalog")
	}
	if err := s.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}

	s.logger.Info("catalog refreshed", zap.Int("snapshots", len(reports)), zap.Int("courses", len(merged)))
	return reports, nil
}

// Ready reports whether the catalog holds any courses.
func (s *CatalogService) Ready(ctx context.Context) bool {
	total, err := s.store.Count(ctx)
	return err == nil && total > 0
}

func (s *CatalogService) listSnapshots() ([]string, error) {
	entries, err := os.ReadDir(s.snapshotDir)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read snapshot directory")
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitCodes tokenises a comma- or semicolon-delimited code list,
// trimming whitespace, upper-casing, and dropping duplicates.
func splitCodes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	seen := make(map[string]struct{}, len(fields))
	codes := make([]string, 0, len(fields))
	for _, field := range fields {
		code := strings.ToUpper(strings.TrimSpace(field))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

func listCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("%slist:%s:%s:%s:%d:%d:%s:%s",
		catalogCachePrefix, filter.Search, filter.Instructor, filter.Day,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func paginationFor(filter models.CourseFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
