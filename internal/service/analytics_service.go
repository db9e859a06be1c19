package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type standingsProvider interface {
	ClassStandings(ctx context.Context, classID string) (*models.ClassStandings, error)
}

type pendingCounter interface {
	CountPendingByClass(ctx context.Context, classID string) (int, error)
}

// AnalyticsService derives class-level insights from computed standings.
type AnalyticsService struct {
	standings       standingsProvider
	submissions     pendingCounter
	metrics         *MetricsService
	cache           *CacheService
	cacheTTL        time.Duration
	atRiskThreshold int
	atRiskPending   int
	logger          *zap.Logger
}

// NewAnalyticsService constructs AnalyticsService. atRiskThreshold is the
// tentative grade below which a student is flagged; atRiskPending is the
// per-student outstanding review count that triggers a flag.
func NewAnalyticsService(standings standingsProvider, submissions pendingCounter, metrics *MetricsService, cache *CacheService, cacheTTL time.Duration, atRiskThreshold, atRiskPending int, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if atRiskThreshold <= 0 {
		atRiskThreshold = 75
	}
	if atRiskPending <= 0 {
		atRiskPending = 5
	}
	return &AnalyticsService{
		standings:       standings,
		submissions:     submissions,
		metrics:         metrics,
		cache:           cache,
		cacheTTL:        cacheTTL,
		atRiskThreshold: atRiskThreshold,
		atRiskPending:   atRiskPending,
		logger:          logger,
	}
}

// AtRiskStudents flags students whose tentative grade sits below the
// threshold, whose categories are missing data, or who have reviews piling
// up. Students with no grade signal at all are flagged for missing data.
func (s *AnalyticsService) AtRiskStudents(ctx context.Context, classID string) ([]models.AtRiskStudent, error) {
	cacheKey := fmt.Sprintf("analytics:class:%s:at-risk", classID)
	var cached []models.AtRiskStudent
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	standings, err := s.standings.ClassStandings(ctx, classID)
	if err != nil {
		return nil, err
	}

	flagged := make([]models.AtRiskStudent, 0)
	for _, standing := range standings.Standings {
		var reasons []models.AtRiskReason
		grades := standing.Grades
		if grades.TentativeGrade != nil && *grades.TentativeGrade < s.atRiskThreshold {
			reasons = append(reasons, models.AtRiskLowGrade)
		}
		if !grades.IsEligibleForTentative {
			reasons = append(reasons, models.AtRiskMissingCategory)
		}
		if grades.PendingCount+grades.NeedsRevisionCount >= s.atRiskPending {
			reasons = append(reasons, models.AtRiskOutstandingReviews)
		}
		if len(reasons) == 0 {
			continue
		}
		flagged = append(flagged, models.AtRiskStudent{
			StudentID:      standing.StudentID,
			StudentName:    standing.StudentName,
			ClassID:        classID,
			TentativeGrade: grades.TentativeGrade,
			Reasons:        reasons,
		})
	}

	if err := s.cache.Set(ctx, cacheKey, flagged, s.cacheTTL); err != nil {
		s.logger.Warn("cache at-risk students", zap.Error(err))
	}
	return flagged, nil
}

// GradeDistribution buckets the class's tentative grades in bands of five.
func (s *AnalyticsService) GradeDistribution(ctx context.Context, classID string) (*models.GradeDistribution, error) {
	cacheKey := fmt.Sprintf("analytics:class:%s:distribution", classID)
	var cached models.GradeDistribution
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	standings, err := s.standings.ClassStandings(ctx, classID)
	if err != nil {
		return nil, err
	}

	distribution := &models.GradeDistribution{
		ClassID: classID,
		Buckets: map[string]int{},
	}
	var sum int
	for _, standing := range standings.Standings {
		grade := standing.Grades.TentativeGrade
		if grade == nil {
			distribution.Ungraded++
			continue
		}
		distribution.Graded++
		sum += *grade
		if distribution.Min == nil || *grade < *distribution.Min {
			value := *grade
			distribution.Min = &value
		}
		if distribution.Max == nil || *grade > *distribution.Max {
			value := *grade
			distribution.Max = &value
		}
		low := *grade / 5 * 5
		bucket := fmt.Sprintf("%d-%d", low, low+4)
		distribution.Buckets[bucket]++
	}
	if distribution.Graded > 0 {
		average := float64(sum) / float64(distribution.Graded)
		distribution.Average = &average
	}

	if err := s.cache.Set(ctx, cacheKey, distribution, s.cacheTTL); err != nil {
		s.logger.Warn("cache grade distribution", zap.Error(err))
	}
	return distribution, nil
}

// ReviewQueueDepth returns the pending submission count for a class.
func (s *AnalyticsService) ReviewQueueDepth(ctx context.Context, classID string) (int, error) {
	total, err := s.submissions.CountPendingByClass(ctx, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending submissions")
	}
	return total, nil
}

// SystemMetrics reports the instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics(ctx context.Context) models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{GeneratedAt: time.Now().UTC()}
	}
	return s.metrics.Snapshot()
}
