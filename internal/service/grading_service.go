package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/grading"
	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type gradingActivityRepo interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.Activity, error)
}

type gradingSubmissionRepo interface {
	ListByStudentAndClass(ctx context.Context, studentID, classID string) ([]models.Submission, error)
	ListByClass(ctx context.Context, classID string) ([]models.Submission, error)
}

type gradingSchemeRepo interface {
	FindByClass(ctx context.Context, classID string) (*models.GradingScheme, error)
}

type gradingClassRepo interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListMembers(ctx context.Context, classID string) ([]models.ClassMember, error)
	IsMember(ctx context.Context, classID, studentID string) (bool, error)
}

// GradingService computes approval-aware standings for students and classes.
// Results are cached per class and invalidated whenever a submission,
// activity, or scheme write touches the class.
type GradingService struct {
	activities  gradingActivityRepo
	submissions gradingSubmissionRepo
	schemes     gradingSchemeRepo
	classes     gradingClassRepo
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewGradingService constructs GradingService.
func NewGradingService(activities gradingActivityRepo, submissions gradingSubmissionRepo, schemes gradingSchemeRepo, classes gradingClassRepo, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &GradingService{
		activities:  activities,
		submissions: submissions,
		schemes:     schemes,
		classes:     classes,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func studentStandingCacheKey(classID, studentID string) string {
	return fmt.Sprintf("grading:class:%s:student:%s", classID, studentID)
}

func classStandingsCacheKey(classID string) string {
	return fmt.Sprintf("grading:class:%s:standings", classID)
}

// StudentStanding returns one student's computed grades for a class.
func (s *GradingService) StudentStanding(ctx context.Context, classID, studentID string) (*models.StudentStanding, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	member, err := s.classes.IsMember(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in class")
	}

	cacheKey := studentStandingCacheKey(classID, studentID)
	var cached models.StudentStanding
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	scheme, err := s.loadScheme(ctx, classID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activities.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class activities")
	}
	submissions, err := s.submissions.ListByStudentAndClass(ctx, studentID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student submissions")
	}

	standing := &models.StudentStanding{
		StudentID: studentID,
		ClassID:   classID,
		Grades:    grading.Compute(submissions, activities, scheme),
	}

	if err := s.cache.Set(ctx, cacheKey, standing, s.cacheTTL); err != nil {
		s.logger.Warn("cache student standing", zap.Error(err))
	}
	return standing, nil
}

// ClassStandings returns computed grades for every enrolled student,
// ordered by roster name.
func (s *GradingService) ClassStandings(ctx context.Context, classID string) (*models.ClassStandings, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	cacheKey := classStandingsCacheKey(classID)
	var cached models.ClassStandings
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	scheme, err := s.loadScheme(ctx, classID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activities.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class activities")
	}
	members, err := s.classes.ListMembers(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	submissions, err := s.submissions.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class submissions")
	}

	byStudent := make(map[string][]models.Submission, len(members))
	for _, submission := range submissions {
		byStudent[submission.StudentID] = append(byStudent[submission.StudentID], submission)
	}

	standings := &models.ClassStandings{
		ClassID:   classID,
		Standings: make([]models.StudentStanding, 0, len(members)),
	}
	for _, member := range members {
		standings.Standings = append(standings.Standings, models.StudentStanding{
			StudentID:   member.StudentID,
			StudentName: member.StudentName,
			ClassID:     classID,
			Grades:      grading.Compute(byStudent[member.StudentID], activities, scheme),
		})
	}

	if err := s.cache.Set(ctx, cacheKey, standings, s.cacheTTL); err != nil {
		s.logger.Warn("cache class standings", zap.Error(err))
	}
	return standings, nil
}

// InvalidateClass drops every cached standing for a class. Submission,
// activity, and scheme writes call this after committing.
func (s *GradingService) InvalidateClass(ctx context.Context, classID string) {
	pattern := fmt.Sprintf("grading:class:%s:*", classID)
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("invalidate grading cache", zap.String("class_id", classID), zap.Error(err))
	}
}

// loadScheme fetches the class scheme, falling back to the default weights
// and transmutation table when none has been configured yet.
func (s *GradingService) loadScheme(ctx context.Context, classID string) (*models.GradingScheme, error) {
	scheme, err := s.schemes.FindByClass(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.DefaultScheme(classID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading scheme")
	}
	return scheme, nil
}
