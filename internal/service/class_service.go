package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type classRepo interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	ListMembers(ctx context.Context, classID string) ([]models.ClassMember, error)
	AddMember(ctx context.Context, classID, studentID string) error
	RemoveMember(ctx context.Context, classID, studentID string) error
}

type classUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateClassRequest represents a class creation payload.
type CreateClassRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Subject    string `json:"subject" validate:"required,max=120"`
	GradeLevel string `json:"grade_level" validate:"required,max=40"`
	SchoolYear string `json:"school_year" validate:"required,max=20"`
	Quarter    int    `json:"quarter" validate:"required,gte=1,lte=4"`
}

// UpdateClassRequest represents a class update payload.
type UpdateClassRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=120"`
	Subject    *string `json:"subject" validate:"omitempty,max=120"`
	GradeLevel *string `json:"grade_level" validate:"omitempty,max=40"`
	SchoolYear *string `json:"school_year" validate:"omitempty,max=20"`
	Quarter    *int    `json:"quarter" validate:"omitempty,gte=1,lte=4"`
	Active     *bool   `json:"active"`
}

// ClassService manages classes and rosters.
type ClassService struct {
	classes   classRepo
	users     classUserReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(classes classRepo, users classUserReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{classes: classes, users: users, validator: validate, logger: logger}
}

// List returns classes matching the filter.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, total, nil
}

// Get returns one class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create stores a new class owned by the acting teacher.
func (s *ClassService) Create(ctx context.Context, teacherID string, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.Class{
		Name:       req.Name,
		Subject:    req.Subject,
		GradeLevel: req.GradeLevel,
		TeacherID:  teacherID,
		SchoolYear: req.SchoolYear,
		Quarter:    req.Quarter,
		Active:     true,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("teacher_id", teacherID))
	return class, nil
}

// Update applies partial changes to a class.
func (s *ClassService) Update(ctx context.Context, teacherID, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if class.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}

	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Subject != nil {
		class.Subject = *req.Subject
	}
	if req.GradeLevel != nil {
		class.GradeLevel = *req.GradeLevel
	}
	if req.SchoolYear != nil {
		class.SchoolYear = *req.SchoolYear
	}
	if req.Quarter != nil {
		class.Quarter = *req.Quarter
	}
	if req.Active != nil {
		class.Active = *req.Active
	}

	if err := s.classes.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Members returns the class roster.
func (s *ClassService) Members(ctx context.Context, classID string) ([]models.ClassMember, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	members, err := s.classes.ListMembers(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class members")
	}
	return members, nil
}

// Enroll adds a student to a class roster. Only users with the student role
// can be enrolled.
func (s *ClassService) Enroll(ctx context.Context, teacherID, classID, studentID string) error {
	class, err := s.Get(ctx, classID)
	if err != nil {
		return err
	}
	if class.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}
	if err := s.classes.AddMember(ctx, classID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	s.logger.Info("student enrolled", zap.String("class_id", classID), zap.String("student_id", studentID))
	return nil
}

// Unenroll removes a student from a class roster.
func (s *ClassService) Unenroll(ctx context.Context, teacherID, classID, studentID string) error {
	class, err := s.Get(ctx, classID)
	if err != nil {
		return err
	}
	if class.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}
	if err := s.classes.RemoveMember(ctx, classID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll student")
	}
	return nil
}
