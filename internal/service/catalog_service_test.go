package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ccsit-tools/schedule-api/internal/models"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
)

type courseStoreStub struct {
	courses   []models.Course
	replaced  []models.Course
	listCalls int
}

func (s *courseStoreStub) List(_ context.Context, _ models.CourseFilter) ([]models.Course, int, error) {
	s.listCalls++
	return s.courses, len(s.courses), nil
}

func (s *courseStoreStub) FindByCodes(_ context.Context, codes []string) ([]models.Course, error) {
	requested := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		requested[code] = struct{}{}
	}
	var found []models.Course
	for _, course := range s.courses {
		if _, ok := requested[course.CourseCode]; ok {
			found = append(found, course)
		}
	}
	return found, nil
}

func (s *courseStoreStub) ReplaceAll(_ context.Context, courses []models.Course) error {
	s.replaced = courses
	s.courses = courses
	return nil
}

func (s *courseStoreStub) Count(_ context.Context) (int, error) {
	return len(s.courses), nil
}

type memoryCacheRepo struct {
	values map[string][]byte
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	_, found := m.values[key]
	if !found {
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, _ interface{}, _ time.Duration) error {
	m.values[key] = []byte("x")
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	m.values = map[string][]byte{}
	return nil
}

func newCatalogFixture(dir string, courses ...models.Course) (*CatalogService, *courseStoreStub, *memoryCacheRepo) {
	store := &courseStoreStub{courses: courses}
	cacheRepo := &memoryCacheRepo{values: map[string][]byte{}}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewCatalogService(store, NewIngestService(zap.NewNop()), cache, zap.NewNop(), dir)
	return svc, store, cacheRepo
}

func sampleCourse(code string) models.Course {
	return models.Course{
		CourseCode:  code,
		CourseName:  code + " name",
		CreditHours: "3",
		Sections: []models.Section{
			{CRN: code + "-1", CourseCode: code, SectionID: "1", SectionType: models.SectionTypeTheoretical},
		},
	}
}

func TestCatalogResolveCodesOrderAndUnmatched(t *testing.T) {
	svc, _, _ := newCatalogFixture(t.TempDir(), sampleCourse("CS101"), sampleCourse("MATH101"))

	matched, unmatched, err := svc.ResolveCodes(context.Background(), " math101 , cs101 ,cs101, NOPE ")
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "MATH101", matched[0].CourseCode)
	assert.Equal(t, "CS101", matched[1].CourseCode)
	assert.Equal(t, []string{"NOPE"}, unmatched)
}

func TestCatalogResolveCodesEmptyInput(t *testing.T) {
	svc, _, _ := newCatalogFixture(t.TempDir())

	matched, unmatched, err := svc.ResolveCodes(context.Background(), " , ; ")
	require.NoError(t, err)
	assert.Empty(t, matched)
	assert.Empty(t, unmatched)
}

func TestCatalogGetNotFound(t *testing.T) {
	svc, _, _ := newCatalogFixture(t.TempDir(), sampleCourse("CS101"))

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	course, err := svc.Get(context.Background(), " cs101 ")
	require.NoError(t, err)
	assert.Equal(t, "CS101", course.CourseCode)
}

func TestCatalogRefreshFromSnapshotDir(t *testing.T) {
	dir := t.TempDir()
	csvBody := snapshotHeader +
		"CS101,10001,1,Open,Intro to CS,نظري,3,ح,0800 - 0900,Dr. Noor\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "male.csv"), []byte(csvBody), 0o644))

	duplicate := snapshotHeader +
		"CS101,99999,9,Open,Intro to CS,نظري,3,ن,1000 - 1100,Dr. Faisal\n" +
		"CS102,10002,1,Open,Programming,نظري,3,ث,0800 - 0900,Dr. Amal\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zz_female.csv"), []byte(duplicate), 0o644))

	svc, store, _ := newCatalogFixture(dir)

	reports, err := svc.Refresh(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "male.csv", reports[0].Snapshot)

	require.Len(t, store.replaced, 2)
	assert.Equal(t, "CS101", store.replaced[0].CourseCode)
	// first snapshot wins the duplicate code
	assert.Equal(t, "10001", store.replaced[0].Sections[0].CRN)
	assert.Equal(t, "CS102", store.replaced[1].CourseCode)
}

func TestCatalogRefreshNoSnapshots(t *testing.T) {
	svc, _, _ := newCatalogFixture(t.TempDir())

	_, err := svc.Refresh(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCatalogRefreshInvalidatesListCache(t *testing.T) {
	dir := t.TempDir()
	csvBody := snapshotHeader +
		"CS101,10001,1,Open,Intro to CS,نظري,3,ح,0800 - 0900,Dr. Noor\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "male.csv"), []byte(csvBody), 0o644))

	svc, _, cacheRepo := newCatalogFixture(dir, sampleCourse("CS101"))

	_, _, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, cacheRepo.values)

	_, err = svc.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, cacheRepo.values)
}

func TestSplitCodes(t *testing.T) {
	assert.Equal(t, []string{"CS101", "MATH101"}, splitCodes("cs101; math101"))
	assert.Empty(t, splitCodes(""))
	assert.Equal(t, []string{"CS101"}, splitCodes("CS101, cs101"))
}
