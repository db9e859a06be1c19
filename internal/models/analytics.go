package models

import "time"

// AtRiskReason explains why a student was flagged.
type AtRiskReason string

const (
	AtRiskLowGrade           AtRiskReason = "LOW_TENTATIVE_GRADE"
	AtRiskMissingCategory    AtRiskReason = "MISSING_CATEGORY_DATA"
	AtRiskOutstandingReviews AtRiskReason = "OUTSTANDING_REVIEWS"
)

// AtRiskStudent flags a student whose standing needs teacher attention.
type AtRiskStudent struct {
	StudentID      string         `json:"student_id"`
	StudentName    string         `json:"student_name,omitempty"`
	ClassID        string         `json:"class_id"`
	TentativeGrade *int           `json:"tentative_grade,omitempty"`
	Reasons        []AtRiskReason `json:"reasons"`
}

// SystemMetrics is a lightweight instrumentation snapshot for API consumption.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// GradeDistribution summarises transmuted grades across a class.
type GradeDistribution struct {
	ClassID  string         `json:"class_id"`
	Graded   int            `json:"graded"`
	Ungraded int            `json:"ungraded"`
	Min      *int           `json:"min,omitempty"`
	Max      *int           `json:"max,omitempty"`
	Average  *float64       `json:"average,omitempty"`
	Buckets  map[string]int `json:"buckets"`
}
