package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// AttendanceRepository handles attendance session and record persistence.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindSessionByID returns an attendance session by identifier.
func (r *AttendanceRepository) FindSessionByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	const query = `SELECT id, class_id, teacher_id, title, date, closed, created_at, updated_at
        FROM attendance_sessions WHERE id = $1 LIMIT 1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns attendance sessions matching the filter with a total count.
func (r *AttendanceRepository) ListSessions(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, int, error) {
	baseQuery := `FROM attendance_sessions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT id, class_id, teacher_id, title, date, closed, created_at, updated_at
        %s ORDER BY date DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)
	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance sessions: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance sessions: %w", err)
	}

	return sessions, total, nil
}

// CreateSession inserts a new attendance session.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO attendance_sessions (id, class_id, teacher_id, title, date, closed, created_at, updated_at)
        VALUES (:id, :class_id, :teacher_id, :title, :date, :closed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create attendance session: %w", err)
	}
	return nil
}

// SetSessionClosed flips the closed flag on a session.
func (r *AttendanceRepository) SetSessionClosed(ctx context.Context, id string, closed bool) error {
	const query = `UPDATE attendance_sessions SET closed = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, closed, time.Now().UTC()); err != nil {
		return fmt.Errorf("close attendance session: %w", err)
	}
	return nil
}

// UpsertRecord writes one student's entry in a session, overwriting any
// previous mark for the same student.
func (r *AttendanceRepository) UpsertRecord(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendance_records (id, session_id, student_id, status, notes, created_at, updated_at)
        VALUES (:id, :session_id, :student_id, :status, :notes, :created_at, :updated_at)
        ON CONFLICT (session_id, student_id) DO UPDATE SET
            status = EXCLUDED.status,
            notes = EXCLUDED.notes,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// ListRecords returns a session's records with student names, ordered by name.
func (r *AttendanceRepository) ListRecords(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	const query = `SELECT ar.id, ar.session_id, ar.student_id, ar.status, ar.notes, ar.created_at, ar.updated_at,
        u.full_name AS student_name
        FROM attendance_records ar
        JOIN users u ON u.id = ar.student_id
        WHERE ar.session_id = $1
        ORDER BY u.full_name ASC`
	var records []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// ListRecordsByStudent returns a student's records across all sessions of a class.
func (r *AttendanceRepository) ListRecordsByStudent(ctx context.Context, classID, studentID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT ar.id, ar.session_id, ar.student_id, ar.status, ar.notes, ar.created_at, ar.updated_at
        FROM attendance_records ar
        JOIN attendance_sessions s ON s.id = ar.session_id
        WHERE s.class_id = $1 AND ar.student_id = $2
        ORDER BY s.date ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, studentID); err != nil {
		return nil, fmt.Errorf("list attendance records by student: %w", err)
	}
	return records, nil
}
