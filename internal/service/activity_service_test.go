package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type mockActivityCRUD struct {
	activities map[string]*models.Activity
	archived   map[string]bool
}

func (m *mockActivityCRUD) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	if a, ok := m.activities[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockActivityCRUD) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	var result []models.Activity
	for _, a := range m.activities {
		if filter.ClassID != "" && a.ClassID != filter.ClassID {
			continue
		}
		if a.Archived && !filter.IncludeArchived {
			continue
		}
		result = append(result, *a)
	}
	return result, len(result), nil
}

func (m *mockActivityCRUD) Create(ctx context.Context, activity *models.Activity) error {
	if m.activities == nil {
		m.activities = make(map[string]*models.Activity)
	}
	if activity.ID == "" {
		activity.ID = "generated"
	}
	m.activities[activity.ID] = activity
	return nil
}

func (m *mockActivityCRUD) Update(ctx context.Context, activity *models.Activity) error {
	m.activities[activity.ID] = activity
	return nil
}

func (m *mockActivityCRUD) SetArchived(ctx context.Context, id string, archived bool) error {
	if m.archived == nil {
		m.archived = make(map[string]bool)
	}
	m.archived[id] = archived
	if a, ok := m.activities[id]; ok {
		a.Archived = archived
	}
	return nil
}

func activityFixture() (*mockActivityCRUD, *mockClassReader, *mockInvalidator) {
	repo := &mockActivityCRUD{activities: map[string]*models.Activity{
		"a1": {ID: "a1", ClassID: "class1", TeacherID: "teach1", Title: "Quiz 1", Category: models.CategoryWrittenWork, MaxScore: 10},
	}}
	classes := &mockClassReader{classes: map[string]*models.Class{"class1": {ID: "class1", TeacherID: "teach1"}}}
	return repo, classes, &mockInvalidator{}
}

func TestActivityServiceCreate(t *testing.T) {
	repo, classes, invalidator := activityFixture()
	svc := NewActivityService(repo, classes, invalidator, validator.New(), zap.NewNop())

	activity, err := svc.Create(context.Background(), "teach1", CreateActivityRequest{
		ClassID:  "class1",
		Title:    "Project",
		Category: "PERFORMANCE_TASK",
		MaxScore: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPerformanceTask, activity.Category)
	assert.Equal(t, "teach1", activity.TeacherID)
	assert.Contains(t, invalidator.invalidated, "class1")
}

func TestActivityServiceCreateWrongTeacher(t *testing.T) {
	repo, classes, invalidator := activityFixture()
	svc := NewActivityService(repo, classes, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "intruder", CreateActivityRequest{
		ClassID:  "class1",
		Title:    "Project",
		Category: "WRITTEN_WORK",
		MaxScore: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestActivityServiceCreateInvalidCategory(t *testing.T) {
	repo, classes, invalidator := activityFixture()
	svc := NewActivityService(repo, classes, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "teach1", CreateActivityRequest{
		ClassID:  "class1",
		Title:    "Project",
		Category: "HOMEWORK",
		MaxScore: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestActivityServiceUpdatePartial(t *testing.T) {
	repo, classes, invalidator := activityFixture()
	svc := NewActivityService(repo, classes, invalidator, validator.New(), zap.NewNop())

	title := "Quiz 1 revised"
	maxScore := 25.0
	activity, err := svc.Update(context.Background(), "teach1", "a1", UpdateActivityRequest{Title: &title, MaxScore: &maxScore})
	require.NoError(t, err)
	assert.Equal(t, "Quiz 1 revised", activity.Title)
	assert.Equal(t, 25.0, activity.MaxScore)
	// untouched fields survive
	assert.Equal(t, models.CategoryWrittenWork, activity.Category)
}

func TestActivityServiceUpdateArchivedBlocked(t *testing.T) {
	repo, classes, invalidator := activityFixture()
	repo.activities["a1"].Archived = true
	svc := NewActivityService(repo, classes, invalidator, validator.New(), zap.NewNop())

	title := "nope"
	_, err := svc.Update(context.Background(), "teach1", "a1", UpdateActivityRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrArchived.Code, appErrors.FromError(err).Code)
}

func TestActivityServiceArchiveRestore(t *testing.T) {
	repo, classes, invalidator := activityFixture()
	svc := NewActivityService(repo, classes, invalidator, validator.New(), zap.NewNop())

	require.NoError(t, svc.Archive(context.Background(), "teach1", "a1"))
	assert.True(t, repo.archived["a1"])

	require.NoError(t, svc.Restore(context.Background(), "teach1", "a1"))
	assert.False(t, repo.archived["a1"])
	assert.Len(t, invalidator.invalidated, 2)
}

func TestActivityServiceArchiveIdempotent(t *testing.T) {
	repo, classes, invalidator := activityFixture()
	repo.activities["a1"].Archived = true
	svc := NewActivityService(repo, classes, invalidator, validator.New(), zap.NewNop())

	require.NoError(t, svc.Archive(context.Background(), "teach1", "a1"))
	// already archived, no repo write and no invalidation
	assert.Empty(t, repo.archived)
	assert.Empty(t, invalidator.invalidated)
}
