package models

import "time"

// ActivityCategory represents one of the three weighted grading buckets.
type ActivityCategory string

const (
	CategoryWrittenWork         ActivityCategory = "WRITTEN_WORK"
	CategoryPerformanceTask     ActivityCategory = "PERFORMANCE_TASK"
	CategoryQuarterlyAssessment ActivityCategory = "QUARTERLY_ASSESSMENT"
)

// Valid returns true when the category is a supported value.
func (c ActivityCategory) Valid() bool {
	switch c {
	case CategoryWrittenWork, CategoryPerformanceTask, CategoryQuarterlyAssessment:
		return true
	default:
		return false
	}
}

// Activity represents a gradable unit of work (quiz, project, exam) owned by a class.
type Activity struct {
	ID          string           `db:"id" json:"id"`
	ClassID     string           `db:"class_id" json:"class_id"`
	TeacherID   string           `db:"teacher_id" json:"teacher_id"`
	Title       string           `db:"title" json:"title"`
	Description *string          `db:"description" json:"description,omitempty"`
	Category    ActivityCategory `db:"category" json:"category"`
	MaxScore    float64          `db:"max_score" json:"max_score"`
	DueDate     *time.Time       `db:"due_date" json:"due_date,omitempty"`
	Archived    bool             `db:"archived" json:"archived"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// ActivityFilter defines filter criteria for listing activities.
type ActivityFilter struct {
	ClassID         string
	Category        *ActivityCategory
	IncludeArchived bool
	Search          string
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}
