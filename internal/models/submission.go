package models

import "time"

// SubmissionStatus represents the review state of a submission.
type SubmissionStatus string

const (
	SubmissionPending       SubmissionStatus = "PENDING"
	SubmissionApproved      SubmissionStatus = "APPROVED"
	SubmissionDeclined      SubmissionStatus = "DECLINED"
	SubmissionNeedsRevision SubmissionStatus = "NEEDS_REVISION"
)

// Valid returns true when the status is a supported value.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionDeclined, SubmissionNeedsRevision:
		return true
	default:
		return false
	}
}

// IsRejected reports whether the status blocks grading and needs teacher or
// student attention. Declined and NeedsRevision land in the same bucket.
func (s SubmissionStatus) IsRejected() bool {
	return s == SubmissionDeclined || s == SubmissionNeedsRevision
}

// Submission represents one student's active attempt at one activity.
// A student has at most one active submission per activity; resubmission
// overwrites in place and transitions the status back to Pending.
type Submission struct {
	ID          string           `db:"id" json:"id"`
	ActivityID  string           `db:"activity_id" json:"activity_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	RawScore    float64          `db:"raw_score" json:"raw_score"`
	Status      SubmissionStatus `db:"status" json:"status"`
	Note        *string          `db:"note" json:"note,omitempty"`
	ReviewNote  *string          `db:"review_note" json:"review_note,omitempty"`
	ReviewedBy  *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionDetail extends a submission with activity metadata for listings.
type SubmissionDetail struct {
	Submission
	ActivityTitle    string           `db:"activity_title" json:"activity_title"`
	ActivityCategory ActivityCategory `db:"activity_category" json:"activity_category"`
	MaxScore         float64          `db:"max_score" json:"max_score"`
	StudentName      string           `db:"student_name" json:"student_name"`
}

// SubmissionFilter scopes submission listings.
type SubmissionFilter struct {
	ClassID    string
	ActivityID string
	StudentID  string
	Status     *SubmissionStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
