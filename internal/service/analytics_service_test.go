package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
)

type mockStandingsProvider struct {
	standings *models.ClassStandings
	calls     int
}

func (m *mockStandingsProvider) ClassStandings(ctx context.Context, classID string) (*models.ClassStandings, error) {
	m.calls++
	return m.standings, nil
}

type mockPendingCounter struct {
	count int
}

func (m *mockPendingCounter) CountPendingByClass(ctx context.Context, classID string) (int, error) {
	return m.count, nil
}

func intPtr(v int) *int {
	return &v
}

func standingWithGrade(studentID, name string, tentative *int, eligible bool, pending int) models.StudentStanding {
	return models.StudentStanding{
		StudentID:   studentID,
		StudentName: name,
		ClassID:     "class1",
		Grades: models.ComputedGrades{
			TentativeGrade:         tentative,
			IsEligibleForTentative: eligible,
			PendingCount:           pending,
		},
	}
}

func TestAnalyticsServiceAtRiskStudents(t *testing.T) {
	provider := &mockStandingsProvider{standings: &models.ClassStandings{
		ClassID: "class1",
		Standings: []models.StudentStanding{
			standingWithGrade("stu1", "Alice", intPtr(92), true, 0),
			standingWithGrade("stu2", "Bob", intPtr(71), true, 0),
			standingWithGrade("stu3", "Cara", nil, false, 0),
			standingWithGrade("stu4", "Dan", intPtr(88), true, 6),
		},
	}}
	svc := NewAnalyticsService(provider, &mockPendingCounter{}, nil, disabledCache(), time.Minute, 75, 5, zap.NewNop())

	flagged, err := svc.AtRiskStudents(context.Background(), "class1")
	require.NoError(t, err)
	require.Len(t, flagged, 3)

	byStudent := make(map[string][]models.AtRiskReason)
	for _, f := range flagged {
		byStudent[f.StudentID] = f.Reasons
	}
	assert.NotContains(t, byStudent, "stu1")
	assert.Contains(t, byStudent["stu2"], models.AtRiskLowGrade)
	assert.Contains(t, byStudent["stu3"], models.AtRiskMissingCategory)
	assert.Contains(t, byStudent["stu4"], models.AtRiskOutstandingReviews)
}

func TestAnalyticsServiceGradeDistribution(t *testing.T) {
	provider := &mockStandingsProvider{standings: &models.ClassStandings{
		ClassID: "class1",
		Standings: []models.StudentStanding{
			standingWithGrade("stu1", "Alice", intPtr(92), true, 0),
			standingWithGrade("stu2", "Bob", intPtr(93), true, 0),
			standingWithGrade("stu3", "Cara", intPtr(78), true, 0),
			standingWithGrade("stu4", "Dan", nil, false, 0),
		},
	}}
	svc := NewAnalyticsService(provider, &mockPendingCounter{}, nil, disabledCache(), time.Minute, 75, 5, zap.NewNop())

	distribution, err := svc.GradeDistribution(context.Background(), "class1")
	require.NoError(t, err)
	assert.Equal(t, 3, distribution.Graded)
	assert.Equal(t, 1, distribution.Ungraded)
	assert.Equal(t, 2, distribution.Buckets["90-94"])
	assert.Equal(t, 1, distribution.Buckets["75-79"])
	require.NotNil(t, distribution.Min)
	assert.Equal(t, 78, *distribution.Min)
	require.NotNil(t, distribution.Max)
	assert.Equal(t, 93, *distribution.Max)
	require.NotNil(t, distribution.Average)
	assert.InDelta(t, 87.67, *distribution.Average, 0.01)
}

func TestAnalyticsServiceAtRiskCached(t *testing.T) {
	provider := &mockStandingsProvider{standings: &models.ClassStandings{ClassID: "class1"}}
	cacheSvc := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(provider, &mockPendingCounter{}, nil, cacheSvc, time.Minute, 75, 5, zap.NewNop())

	_, err := svc.AtRiskStudents(context.Background(), "class1")
	require.NoError(t, err)
	_, err = svc.AtRiskStudents(context.Background(), "class1")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestAnalyticsServiceReviewQueueDepth(t *testing.T) {
	svc := NewAnalyticsService(&mockStandingsProvider{}, &mockPendingCounter{count: 4}, nil, disabledCache(), time.Minute, 75, 5, zap.NewNop())

	depth, err := svc.ReviewQueueDepth(context.Background(), "class1")
	require.NoError(t, err)
	assert.Equal(t, 4, depth)
}

func TestAnalyticsServiceSystemMetricsWithoutCollector(t *testing.T) {
	svc := NewAnalyticsService(&mockStandingsProvider{}, &mockPendingCounter{}, nil, disabledCache(), time.Minute, 75, 5, zap.NewNop())

	snapshot := svc.SystemMetrics(context.Background())
	assert.False(t, snapshot.GeneratedAt.IsZero())
}
