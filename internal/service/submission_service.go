package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type submissionRepo interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByActivityAndStudent(ctx context.Context, activityID, studentID string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error)
	Upsert(ctx context.Context, submission *models.Submission) error
	Review(ctx context.Context, id string, status models.SubmissionStatus, reviewNote *string, reviewerID string) error
	CountPendingByClass(ctx context.Context, classID string) (int, error)
}

type submissionActivityReader interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

type submissionClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsMember(ctx context.Context, classID, studentID string) (bool, error)
}

// SubmitScoreRequest represents a student submission payload. Resubmitting
// against the same activity overwrites the previous attempt.
type SubmitScoreRequest struct {
	ActivityID string  `json:"activity_id" validate:"required"`
	RawScore   float64 `json:"raw_score" validate:"gte=0"`
	Note       *string `json:"note" validate:"omitempty,max=1000"`
}

// ReviewSubmissionRequest represents a teacher review decision.
type ReviewSubmissionRequest struct {
	Status     string  `json:"status" validate:"required,oneof=APPROVED DECLINED NEEDS_REVISION"`
	ReviewNote *string `json:"review_note" validate:"omitempty,max=1000"`
}

// SubmissionService manages the submission lifecycle: student entry,
// resubmission, and teacher review.
type SubmissionService struct {
	submissions submissionRepo
	activities  submissionActivityReader
	classes     submissionClassReader
	grading     gradingInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(submissions submissionRepo, activities submissionActivityReader, classes submissionClassReader, grading gradingInvalidator, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		submissions: submissions,
		activities:  activities,
		classes:     classes,
		grading:     grading,
		validator:   validate,
		logger:      logger,
	}
}

// List returns submissions matching the filter with activity metadata.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	submissions, total, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, total, nil
}

// Submit records a student's score claim for an activity. The entry lands in
// Pending; a previous attempt in any state is overwritten in place and its
// review fields reset.
func (s *SubmissionService) Submit(ctx context.Context, studentID string, req SubmitScoreRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	activity, err := s.activities.FindByID(ctx, req.ActivityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if activity.Archived {
		return nil, appErrors.Clone(appErrors.ErrArchived, "activity is archived")
	}
	if req.RawScore < 0 || req.RawScore > activity.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrInvalidScore,
			fmt.Sprintf("raw score must be between 0 and %g", activity.MaxScore))
	}

	member, err := s.classes.IsMember(ctx, activity.ClassID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not enrolled in class")
	}

	submission := &models.Submission{
		ActivityID:  req.ActivityID,
		StudentID:   studentID,
		RawScore:    req.RawScore,
		Status:      models.SubmissionPending,
		Note:        req.Note,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.submissions.Upsert(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	s.grading.InvalidateClass(ctx, activity.ClassID)
	s.logger.Info("submission recorded",
		zap.String("activity_id", req.ActivityID),
		zap.String("student_id", studentID),
		zap.Float64("raw_score", req.RawScore))
	return submission, nil
}

// Review applies a teacher decision to a pending or previously reviewed
// submission. Approving moves the score into the student's official grade;
// Declined and NeedsRevision both park it in the needs-revision bucket until
// the student resubmits.
func (s *SubmissionService) Review(ctx context.Context, reviewerID, submissionID string, req ReviewSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	submission, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	activity, err := s.activities.FindByID(ctx, submission.ActivityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if activity.Archived {
		return nil, appErrors.Clone(appErrors.ErrArchived, "activity is archived")
	}
	class, err := s.classes.FindByID(ctx, activity.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.TeacherID != reviewerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}

	status := models.SubmissionStatus(req.Status)
	if err := s.submissions.Review(ctx, submissionID, status, req.ReviewNote, reviewerID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review submission")
	}

	now := time.Now().UTC()
	submission.Status = status
	submission.ReviewNote = req.ReviewNote
	submission.ReviewedBy = &reviewerID
	submission.ReviewedAt = &now

	s.grading.InvalidateClass(ctx, activity.ClassID)
	s.logger.Info("submission reviewed",
		zap.String("submission_id", submissionID),
		zap.String("status", string(status)),
		zap.String("reviewer_id", reviewerID))
	return submission, nil
}

// PendingCount returns the review-queue depth for a class.
func (s *SubmissionService) PendingCount(ctx context.Context, classID string) (int, error) {
	total, err := s.submissions.CountPendingByClass(ctx, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending submissions")
	}
	return total, nil
}
