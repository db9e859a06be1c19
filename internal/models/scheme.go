package models

import "time"

// TransmutationRule maps a band of initial-grade percentages onto a final
// integer grade. Rules are ordered by MinPercent and bands are closed on both
// edges; contiguity is validated when a scheme is accepted.
type TransmutationRule struct {
	ID              string  `db:"id" json:"id"`
	SchemeID        string  `db:"scheme_id" json:"-"`
	MinPercent      float64 `db:"min_percent" json:"min_percent"`
	MaxPercent      float64 `db:"max_percent" json:"max_percent"`
	TransmutedGrade int     `db:"transmuted_grade" json:"transmuted_grade"`
}

// GradingScheme defines the three category weights for a class plus an
// optional ordered transmutation table. Weights must sum to 100; that is
// enforced where the scheme is accepted, not inside the grading engine.
type GradingScheme struct {
	ID                         string              `db:"id" json:"id"`
	ClassID                    string              `db:"class_id" json:"class_id"`
	WrittenWorksPercent        float64             `db:"written_works_percent" json:"written_works_percent"`
	PerformanceTasksPercent    float64             `db:"performance_tasks_percent" json:"performance_tasks_percent"`
	QuarterlyAssessmentPercent float64             `db:"quarterly_assessment_percent" json:"quarterly_assessment_percent"`
	CreatedAt                  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time           `db:"updated_at" json:"updated_at"`
	TransmutationRules         []TransmutationRule `json:"transmutation_rules,omitempty"`
}

// WeightFor returns the weight for the given category.
func (s *GradingScheme) WeightFor(category ActivityCategory) float64 {
	switch category {
	case CategoryWrittenWork:
		return s.WrittenWorksPercent
	case CategoryPerformanceTask:
		return s.PerformanceTasksPercent
	case CategoryQuarterlyAssessment:
		return s.QuarterlyAssessmentPercent
	default:
		return 0
	}
}
