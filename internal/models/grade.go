package models

// CategoryAggregate summarises contributing submissions for one category.
// Percent is 0, not NaN, when Max is 0.
type CategoryAggregate struct {
	Earned  float64 `json:"earned"`
	Max     float64 `json:"max"`
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
}

// CategoryBreakdown holds the per-category aggregates for the three buckets.
type CategoryBreakdown struct {
	WrittenWorks        CategoryAggregate `json:"written_works"`
	PerformanceTasks    CategoryAggregate `json:"performance_tasks"`
	QuarterlyAssessment CategoryAggregate `json:"quarterly_assessment"`
}

// Aggregate returns the aggregate for the given category.
func (b *CategoryBreakdown) Aggregate(category ActivityCategory) CategoryAggregate {
	switch category {
	case CategoryWrittenWork:
		return b.WrittenWorks
	case CategoryPerformanceTask:
		return b.PerformanceTasks
	case CategoryQuarterlyAssessment:
		return b.QuarterlyAssessment
	default:
		return CategoryAggregate{}
	}
}

// ComputedGrades is the ephemeral output of the grading engine. It is
// recomputed on every request and never persisted. Nil grade pointers mean
// "not enough data to grade yet", which is distinct from a grade of zero.
type ComputedGrades struct {
	// Approved aggregates back the current grade (approved submissions only).
	Approved CategoryBreakdown `json:"approved"`
	// Pooled aggregates back the tentative grade (approved + pending).
	Pooled CategoryBreakdown `json:"pooled"`

	// InitialGrade is the pre-transmutation weighted percentage over the
	// approved-only aggregates, rounded to two decimals for display.
	InitialGrade   *float64 `json:"initial_grade,omitempty"`
	CurrentGrade   *int     `json:"current_grade,omitempty"`
	TentativeGrade *int     `json:"tentative_grade,omitempty"`

	ApprovedCount      int `json:"approved_count"`
	PendingCount       int `json:"pending_count"`
	NeedsRevisionCount int `json:"needs_revision_count"`

	IsEligibleForTentative bool `json:"is_eligible_for_tentative"`
	// IsSynced indicates nothing is outstanding: the tentative grade is
	// guaranteed equal to the current grade.
	IsSynced bool `json:"is_synced"`
}

// StudentStanding pairs a student with their computed grades for a class.
type StudentStanding struct {
	StudentID   string         `json:"student_id"`
	StudentName string         `json:"student_name,omitempty"`
	ClassID     string         `json:"class_id"`
	Grades      ComputedGrades `json:"grades"`
}

// ClassStandings aggregates standings for every enrolled student.
type ClassStandings struct {
	ClassID   string            `json:"class_id"`
	Standings []StudentStanding `json:"standings"`
}
