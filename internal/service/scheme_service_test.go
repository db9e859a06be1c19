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

type mockSchemeStore struct {
	stored *models.GradingScheme
}

func (m *mockSchemeStore) FindByClass(ctx context.Context, classID string) (*models.GradingScheme, error) {
	if m.stored == nil || m.stored.ClassID != classID {
		return nil, sql.ErrNoRows
	}
	return m.stored, nil
}

func (m *mockSchemeStore) Upsert(ctx context.Context, scheme *models.GradingScheme) error {
	m.stored = scheme
	return nil
}

func schemeFixture() (*mockSchemeStore, *mockClassReader, *mockInvalidator) {
	classes := &mockClassReader{
		classes: map[string]*models.Class{"class1": {ID: "class1", TeacherID: "teach1"}},
	}
	return &mockSchemeStore{}, classes, &mockInvalidator{}
}

func TestSchemeServiceGetFallsBackToDefault(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	scheme, err := svc.Get(context.Background(), "class1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, scheme.WrittenWorksPercent)
	assert.Equal(t, 50.0, scheme.PerformanceTasksPercent)
	assert.Equal(t, 20.0, scheme.QuarterlyAssessmentPercent)
	assert.NotEmpty(t, scheme.TransmutationRules)
}

func TestSchemeServiceUpsert(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	scheme, err := svc.Upsert(context.Background(), "teach1", "class1", UpsertSchemeRequest{
		WrittenWorksPercent:        40,
		PerformanceTasksPercent:    40,
		QuarterlyAssessmentPercent: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, scheme.WrittenWorksPercent)
	// omitted table seeds the default one
	assert.NotEmpty(t, scheme.TransmutationRules)
	assert.NotNil(t, store.stored)
	assert.Contains(t, invalidator.invalidated, "class1")
}

func TestSchemeServiceUpsertWeightsMustSumTo100(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), "teach1", "class1", UpsertSchemeRequest{
		WrittenWorksPercent:        40,
		PerformanceTasksPercent:    40,
		QuarterlyAssessmentPercent: 30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)
	assert.Nil(t, store.stored)
}

func TestSchemeServiceUpsertToleratesFloatDrift(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), "teach1", "class1", UpsertSchemeRequest{
		WrittenWorksPercent:        33.33,
		PerformanceTasksPercent:    33.33,
		QuarterlyAssessmentPercent: 33.34,
	})
	require.NoError(t, err)
}

func TestSchemeServiceUpsertRejectsOverlappingRules(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), "teach1", "class1", UpsertSchemeRequest{
		WrittenWorksPercent:        30,
		PerformanceTasksPercent:    50,
		QuarterlyAssessmentPercent: 20,
		TransmutationRules: []TransmutationRuleInput{
			{MinPercent: 0, MaxPercent: 50, TransmutedGrade: 75},
			{MinPercent: 50, MaxPercent: 100, TransmutedGrade: 90},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSchemeServiceUpsertRejectsDecreasingGrades(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), "teach1", "class1", UpsertSchemeRequest{
		WrittenWorksPercent:        30,
		PerformanceTasksPercent:    50,
		QuarterlyAssessmentPercent: 20,
		TransmutationRules: []TransmutationRuleInput{
			{MinPercent: 0, MaxPercent: 49.99, TransmutedGrade: 90},
			{MinPercent: 50, MaxPercent: 100, TransmutedGrade: 80},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSchemeServiceUpsertSortsRulesBeforeValidation(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	scheme, err := svc.Upsert(context.Background(), "teach1", "class1", UpsertSchemeRequest{
		WrittenWorksPercent:        30,
		PerformanceTasksPercent:    50,
		QuarterlyAssessmentPercent: 20,
		TransmutationRules: []TransmutationRuleInput{
			{MinPercent: 50, MaxPercent: 100, TransmutedGrade: 90},
			{MinPercent: 0, MaxPercent: 49.99, TransmutedGrade: 75},
		},
	})
	require.NoError(t, err)
	require.Len(t, scheme.TransmutationRules, 2)
	assert.Equal(t, 0.0, scheme.TransmutationRules[0].MinPercent)
}

func TestSchemeServiceUpsertWrongTeacher(t *testing.T) {
	store, classes, invalidator := schemeFixture()
	svc := NewSchemeService(store, classes, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), "intruder", "class1", UpsertSchemeRequest{
		WrittenWorksPercent:        30,
		PerformanceTasksPercent:    50,
		QuarterlyAssessmentPercent: 20,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
