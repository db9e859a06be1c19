package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/grading"
	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type schemeRepo interface {
	FindByClass(ctx context.Context, classID string) (*models.GradingScheme, error)
	Upsert(ctx context.Context, scheme *models.GradingScheme) error
}

type schemeClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// TransmutationRuleInput is one band in a scheme payload.
type TransmutationRuleInput struct {
	MinPercent      float64 `json:"min_percent" validate:"gte=0,lte=100"`
	MaxPercent      float64 `json:"max_percent" validate:"gte=0,lte=100"`
	TransmutedGrade int     `json:"transmuted_grade" validate:"gte=0,lte=100"`
}

// UpsertSchemeRequest sets a class's category weights and optional
// transmutation table. Omitting the table seeds the default one.
type UpsertSchemeRequest struct {
	WrittenWorksPercent        float64                  `json:"written_works_percent" validate:"gte=0,lte=100"`
	PerformanceTasksPercent    float64                  `json:"performance_tasks_percent" validate:"gte=0,lte=100"`
	QuarterlyAssessmentPercent float64                  `json:"quarterly_assessment_percent" validate:"gte=0,lte=100"`
	TransmutationRules         []TransmutationRuleInput `json:"transmutation_rules" validate:"omitempty,dive"`
}

// weightTolerance absorbs float drift when checking the 100% sum.
const weightTolerance = 0.001

// SchemeService manages per-class grading schemes.
type SchemeService struct {
	schemes   schemeRepo
	classes   schemeClassReader
	grading   gradingInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchemeService constructs SchemeService.
func NewSchemeService(schemes schemeRepo, classes schemeClassReader, grading gradingInvalidator, validate *validator.Validate, logger *zap.Logger) *SchemeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemeService{
		schemes:   schemes,
		classes:   classes,
		grading:   grading,
		validator: validate,
		logger:    logger,
	}
}

// Get returns the scheme for a class, falling back to the default scheme
// when none has been configured.
func (s *SchemeService) Get(ctx context.Context, classID string) (*models.GradingScheme, error) {
	scheme, err := s.schemes.FindByClass(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.DefaultScheme(classID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading scheme")
	}
	return scheme, nil
}

// Upsert validates and stores a class scheme. Weights must sum to 100 and
// the transmutation table, when supplied, must be ordered, contiguous, and
// non-overlapping.
func (s *SchemeService) Upsert(ctx context.Context, teacherID, classID string, req UpsertSchemeRequest) (*models.GradingScheme, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheme payload")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}

	sum := req.WrittenWorksPercent + req.PerformanceTasksPercent + req.QuarterlyAssessmentPercent
	if math.Abs(sum-100) > weightTolerance {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights,
			fmt.Sprintf("category weights must sum to 100, got %g", sum))
	}

	rules := make([]models.TransmutationRule, 0, len(req.TransmutationRules))
	for _, rule := range req.TransmutationRules {
		rules = append(rules, models.TransmutationRule{
			MinPercent:      rule.MinPercent,
			MaxPercent:      rule.MaxPercent,
			TransmutedGrade: rule.TransmutedGrade,
		})
	}
	if len(rules) == 0 {
		rules = grading.DefaultTransmutationRules()
	} else {
		sort.Slice(rules, func(i, j int) bool { return rules[i].MinPercent < rules[j].MinPercent })
		if err := validateRules(rules); err != nil {
			return nil, err
		}
	}

	scheme := &models.GradingScheme{
		ClassID:                    classID,
		WrittenWorksPercent:        req.WrittenWorksPercent,
		PerformanceTasksPercent:    req.PerformanceTasksPercent,
		QuarterlyAssessmentPercent: req.QuarterlyAssessmentPercent,
		TransmutationRules:         rules,
	}
	if err := s.schemes.Upsert(ctx, scheme); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grading scheme")
	}

	s.grading.InvalidateClass(ctx, classID)
	s.logger.Info("grading scheme updated",
		zap.String("class_id", classID),
		zap.Float64("ww", scheme.WrittenWorksPercent),
		zap.Float64("pt", scheme.PerformanceTasksPercent),
		zap.Float64("qa", scheme.QuarterlyAssessmentPercent))
	return scheme, nil
}

func validateRules(rules []models.TransmutationRule) error {
	for i, rule := range rules {
		if rule.MinPercent > rule.MaxPercent {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("rule %d: min percent exceeds max percent", i))
		}
		if i == 0 {
			continue
		}
		prev := rules[i-1]
		if rule.MinPercent <= prev.MaxPercent {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("rule %d overlaps the previous band", i))
		}
		if rule.TransmutedGrade < prev.TransmutedGrade {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("rule %d: transmuted grades must not decrease", i))
		}
	}
	return nil
}
