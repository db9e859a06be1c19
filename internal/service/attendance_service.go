package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type attendanceRepo interface {
	FindSessionByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	ListSessions(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, int, error)
	CreateSession(ctx context.Context, session *models.AttendanceSession) error
	SetSessionClosed(ctx context.Context, id string, closed bool) error
	UpsertRecord(ctx context.Context, record *models.AttendanceRecord) error
	ListRecords(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error)
	ListRecordsByStudent(ctx context.Context, classID, studentID string) ([]models.AttendanceRecord, error)
}

type attendanceClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsMember(ctx context.Context, classID, studentID string) (bool, error)
}

// CreateSessionRequest opens a dated roll call for a class.
type CreateSessionRequest struct {
	ClassID string    `json:"class_id" validate:"required"`
	Title   string    `json:"title" validate:"required,max=120"`
	Date    time.Time `json:"date" validate:"required"`
}

// MarkAttendanceRequest records one student's mark in a session.
type MarkAttendanceRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,oneof=PRESENT LATE EXCUSED ABSENT"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// AttendanceService manages attendance sessions and records.
type AttendanceService struct {
	attendance attendanceRepo
	classes    attendanceClassReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(attendance attendanceRepo, classes attendanceClassReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{attendance: attendance, classes: classes, validator: validate, logger: logger}
}

// ListSessions returns attendance sessions matching the filter.
func (s *AttendanceService) ListSessions(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, int, error) {
	sessions, total, err := s.attendance.ListSessions(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance sessions")
	}
	return sessions, total, nil
}

// CreateSession opens a roll call owned by the acting teacher.
func (s *AttendanceService) CreateSession(ctx context.Context, teacherID string, req CreateSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}

	session := &models.AttendanceSession{
		ClassID:   req.ClassID,
		TeacherID: teacherID,
		Title:     req.Title,
		Date:      req.Date,
	}
	if err := s.attendance.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attendance session")
	}
	s.logger.Info("attendance session created",
		zap.String("session_id", session.ID),
		zap.String("class_id", session.ClassID))
	return session, nil
}

// Mark records or overwrites one student's mark. Closed sessions reject
// further marks.
func (s *AttendanceService) Mark(ctx context.Context, teacherID, sessionID string, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	session, err := s.loadOwnedSession(ctx, teacherID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Closed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance session is closed")
	}
	member, err := s.classes.IsMember(ctx, session.ClassID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in class")
	}

	record := &models.AttendanceRecord{
		SessionID: sessionID,
		StudentID: req.StudentID,
		Status:    models.AttendanceStatus(req.Status),
		Notes:     req.Notes,
	}
	if err := s.attendance.UpsertRecord(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance record")
	}
	return record, nil
}

// CloseSession seals a session against further marks.
func (s *AttendanceService) CloseSession(ctx context.Context, teacherID, sessionID string) error {
	session, err := s.loadOwnedSession(ctx, teacherID, sessionID)
	if err != nil {
		return err
	}
	if session.Closed {
		return nil
	}
	if err := s.attendance.SetSessionClosed(ctx, sessionID, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close attendance session")
	}
	return nil
}

// Records returns a session's marks with student names.
func (s *AttendanceService) Records(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	if _, err := s.attendance.FindSessionByID(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	records, err := s.attendance.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance records")
	}
	return records, nil
}

// StudentSummary tallies a student's marks across a class. Present and Late
// both count toward the attendance percentage.
func (s *AttendanceService) StudentSummary(ctx context.Context, classID, studentID string) (*models.AttendanceSummary, error) {
	records, err := s.attendance.ListRecordsByStudent(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	summary := &models.AttendanceSummary{}
	for _, record := range records {
		switch record.Status {
		case models.AttendancePresent:
			summary.Present++
		case models.AttendanceLate:
			summary.Late++
		case models.AttendanceExcused:
			summary.Excused++
		case models.AttendanceAbsent:
			summary.Absent++
		}
	}
	summary.Total = len(records)
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present+summary.Late) / float64(summary.Total) * 100
	}
	return summary, nil
}

func (s *AttendanceService) loadOwnedSession(ctx context.Context, teacherID, sessionID string) (*models.AttendanceSession, error) {
	session, err := s.attendance.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	if session.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another teacher")
	}
	return session, nil
}
