package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceExcused, AttendanceAbsent:
		return true
	default:
		return false
	}
}

// AttendanceSession represents a dated attendance roll call for a class.
type AttendanceSession struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Title     string    `db:"title" json:"title"`
	Date      time.Time `db:"date" json:"date"`
	Closed    bool      `db:"closed" json:"closed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord represents one student's entry in a session.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecordDetail extends a record with student metadata.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceSummary summarises attendance counts for a student.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Late    int     `json:"late"`
	Excused int     `json:"excused"`
	Absent  int     `json:"absent"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// AttendanceFilter scopes session listings.
type AttendanceFilter struct {
	ClassID  string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}
