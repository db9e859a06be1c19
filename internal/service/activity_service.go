package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type activityRepo interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	SetArchived(ctx context.Context, id string, archived bool) error
}

type activityClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type gradingInvalidator interface {
	InvalidateClass(ctx context.Context, classID string)
}

// CreateActivityRequest represents an activity creation payload.
type CreateActivityRequest struct {
	ClassID     string     `json:"class_id" validate:"required"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Category    string     `json:"category" validate:"required,oneof=WRITTEN_WORK PERFORMANCE_TASK QUARTERLY_ASSESSMENT"`
	MaxScore    float64    `json:"max_score" validate:"required,gt=0"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateActivityRequest represents an activity update payload.
type UpdateActivityRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Category    *string    `json:"category" validate:"omitempty,oneof=WRITTEN_WORK PERFORMANCE_TASK QUARTERLY_ASSESSMENT"`
	MaxScore    *float64   `json:"max_score" validate:"omitempty,gt=0"`
	DueDate     *time.Time `json:"due_date"`
}

// ActivityService manages the activity lifecycle.
type ActivityService struct {
	activities activityRepo
	classes    activityClassReader
	grading    gradingInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewActivityService constructs ActivityService.
func NewActivityService(activities activityRepo, classes activityClassReader, grading gradingInvalidator, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		activities: activities,
		classes:    classes,
		grading:    grading,
		validator:  validate,
		logger:     logger,
	}
}

// List returns activities matching the filter.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	activities, total, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	return activities, total, nil
}

// Get returns one activity.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.activities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// Create validates and stores a new activity owned by the acting teacher.
func (s *ActivityService) Create(ctx context.Context, teacherID string, req CreateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}

	activity := &models.Activity{
		ClassID:     req.ClassID,
		TeacherID:   teacherID,
		Title:       req.Title,
		Description: req.Description,
		Category:    models.ActivityCategory(req.Category),
		MaxScore:    req.MaxScore,
		DueDate:     req.DueDate,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}

	s.grading.InvalidateClass(ctx, activity.ClassID)
	s.logger.Info("activity created",
		zap.String("activity_id", activity.ID),
		zap.String("class_id", activity.ClassID),
		zap.String("category", string(activity.Category)))
	return activity, nil
}

// Update applies partial changes to an activity. Archived activities are
// immutable until restored.
func (s *ActivityService) Update(ctx context.Context, teacherID, id string, req UpdateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another teacher")
	}
	if activity.Archived {
		return nil, appErrors.Clone(appErrors.ErrArchived, "activity is archived")
	}

	if req.Title != nil {
		activity.Title = *req.Title
	}
	if req.Description != nil {
		activity.Description = req.Description
	}
	if req.Category != nil {
		activity.Category = models.ActivityCategory(*req.Category)
	}
	if req.MaxScore != nil {
		activity.MaxScore = *req.MaxScore
	}
	if req.DueDate != nil {
		activity.DueDate = req.DueDate
	}

	if err := s.activities.Update(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}

	s.grading.InvalidateClass(ctx, activity.ClassID)
	return activity, nil
}

// Archive soft-deletes an activity. Its submissions stay on record but drop
// out of every grade computation.
func (s *ActivityService) Archive(ctx context.Context, teacherID, id string) error {
	return s.setArchived(ctx, teacherID, id, true)
}

// Restore brings an archived activity back into grading scope.
func (s *ActivityService) Restore(ctx context.Context, teacherID, id string) error {
	return s.setArchived(ctx, teacherID, id, false)
}

func (s *ActivityService) setArchived(ctx context.Context, teacherID, id string, archived bool) error {
	activity, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if activity.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another teacher")
	}
	if activity.Archived == archived {
		return nil
	}
	if err := s.activities.SetArchived(ctx, id, archived); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive activity")
	}
	s.grading.InvalidateClass(ctx, activity.ClassID)
	s.logger.Info("activity archive state changed",
		zap.String("activity_id", id),
		zap.Bool("archived", archived))
	return nil
}
