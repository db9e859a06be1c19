package models

import "time"

// Class represents one teacher's class for a grading period.
type Class struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Subject     string    `db:"subject" json:"subject"`
	GradeLevel  string    `db:"grade_level" json:"grade_level"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	SchoolYear  string    `db:"school_year" json:"school_year"`
	Quarter     int       `db:"quarter" json:"quarter"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassStudent represents a student's membership in a class.
type ClassStudent struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}

// ClassMember extends the membership row with student metadata.
type ClassMember struct {
	ClassStudent
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TeacherID  string
	StudentID  string
	SchoolYear string
	Quarter    *int
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
