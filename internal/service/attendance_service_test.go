package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type mockAttendanceStore struct {
	sessions map[string]*models.AttendanceSession
	records  []models.AttendanceRecord
	closed   []string
}

func newMockAttendanceStore() *mockAttendanceStore {
	return &mockAttendanceStore{sessions: make(map[string]*models.AttendanceSession)}
}

func (m *mockAttendanceStore) FindSessionByID(_ context.Context, id string) (*models.AttendanceSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *session
	return &clone, nil
}

func (m *mockAttendanceStore) ListSessions(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, int, error) {
	out := make([]models.AttendanceSession, 0)
	for _, session := range m.sessions {
		if filter.ClassID == "" || session.ClassID == filter.ClassID {
			out = append(out, *session)
		}
	}
	return out, len(out), nil
}

func (m *mockAttendanceStore) CreateSession(_ context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = "sess-generated"
	}
	clone := *session
	m.sessions[session.ID] = &clone
	return nil
}

func (m *mockAttendanceStore) SetSessionClosed(_ context.Context, id string, closed bool) error {
	session, ok := m.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	session.Closed = closed
	m.closed = append(m.closed, id)
	return nil
}

func (m *mockAttendanceStore) UpsertRecord(_ context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = "rec-generated"
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *mockAttendanceStore) ListRecords(_ context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	out := make([]models.AttendanceRecordDetail, 0)
	for _, record := range m.records {
		if record.SessionID == sessionID {
			out = append(out, models.AttendanceRecordDetail{AttendanceRecord: record, StudentName: "Student " + record.StudentID})
		}
	}
	return out, nil
}

func (m *mockAttendanceStore) ListRecordsByStudent(_ context.Context, _, studentID string) ([]models.AttendanceRecord, error) {
	out := make([]models.AttendanceRecord, 0)
	for _, record := range m.records {
		if record.StudentID == studentID {
			out = append(out, record)
		}
	}
	return out, nil
}

func attendanceFixture() (*AttendanceService, *mockAttendanceStore) {
	store := newMockAttendanceStore()
	classes := &mockClassReader{
		classes: map[string]*models.Class{
			"class1": {ID: "class1", Name: "Biology 9", TeacherID: "teach1", Active: true},
		},
		members: map[string][]models.ClassMember{
			"class1": {
				{ClassStudent: models.ClassStudent{ClassID: "class1", StudentID: "stu1"}, StudentName: "Alice"},
			},
		},
	}
	svc := NewAttendanceService(store, classes, validator.New(), zap.NewNop())
	return svc, store
}

func TestAttendanceServiceCreateSession(t *testing.T) {
	svc, store := attendanceFixture()

	session, err := svc.CreateSession(context.Background(), "teach1", CreateSessionRequest{
		ClassID: "class1",
		Title:   "Week 3 Monday",
		Date:    time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "teach1", session.TeacherID)
	assert.Len(t, store.sessions, 1)
}

func TestAttendanceServiceCreateSessionWrongTeacher(t *testing.T) {
	svc, store := attendanceFixture()

	_, err := svc.CreateSession(context.Background(), "teach2", CreateSessionRequest{
		ClassID: "class1",
		Title:   "Week 3 Monday",
		Date:    time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.sessions)
}

func TestAttendanceServiceMark(t *testing.T) {
	svc, store := attendanceFixture()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "teach1", CreateSessionRequest{
		ClassID: "class1",
		Title:   "Week 3 Monday",
		Date:    time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	record, err := svc.Mark(ctx, "teach1", session.ID, MarkAttendanceRequest{
		StudentID: "stu1",
		Status:    "LATE",
	})

	require.NoError(t, err)
	assert.Equal(t, models.AttendanceLate, record.Status)
	assert.Len(t, store.records, 1)
}

func TestAttendanceServiceMarkClosedSession(t *testing.T) {
	svc, store := attendanceFixture()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "teach1", CreateSessionRequest{
		ClassID: "class1",
		Title:   "Week 3 Monday",
		Date:    time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, svc.CloseSession(ctx, "teach1", session.ID))

	_, err = svc.Mark(ctx, "teach1", session.ID, MarkAttendanceRequest{
		StudentID: "stu1",
		Status:    "PRESENT",
	})

	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.records)
}

func TestAttendanceServiceMarkUnknownStatus(t *testing.T) {
	svc, _ := attendanceFixture()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "teach1", CreateSessionRequest{
		ClassID: "class1",
		Title:   "Week 3 Monday",
		Date:    time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = svc.Mark(ctx, "teach1", session.ID, MarkAttendanceRequest{
		StudentID: "stu1",
		Status:    "SICK",
	})

	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkNotEnrolled(t *testing.T) {
	svc, _ := attendanceFixture()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "teach1", CreateSessionRequest{
		ClassID: "class1",
		Title:   "Week 3 Monday",
		Date:    time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = svc.Mark(ctx, "teach1", session.ID, MarkAttendanceRequest{
		StudentID: "stu9",
		Status:    "PRESENT",
	})

	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceCloseSessionIdempotent(t *testing.T) {
	svc, store := attendanceFixture()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "teach1", CreateSessionRequest{
		ClassID: "class1",
		Title:   "Week 3 Monday",
		Date:    time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, svc.CloseSession(ctx, "teach1", session.ID))
	require.NoError(t, svc.CloseSession(ctx, "teach1", session.ID))

	// The second call is a no-op against an already closed session.
	assert.Len(t, store.closed, 1)
}

func TestAttendanceServiceStudentSummary(t *testing.T) {
	svc, store := attendanceFixture()

	for _, status := range []models.AttendanceStatus{
		models.AttendancePresent, models.AttendancePresent, models.AttendanceLate,
		models.AttendanceExcused, models.AttendanceAbsent,
	} {
		store.records = append(store.records, models.AttendanceRecord{
			SessionID: "sess1",
			StudentID: "stu1",
			Status:    status,
		})
	}

	summary, err := svc.StudentSummary(context.Background(), "class1", "stu1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Present)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 1, summary.Excused)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 5, summary.Total)
	// Present and Late both count toward the percentage.
	assert.InDelta(t, 60.0, summary.Percent, 0.001)
}

func TestAttendanceServiceStudentSummaryEmpty(t *testing.T) {
	svc, _ := attendanceFixture()

	summary, err := svc.StudentSummary(context.Background(), "class1", "stu1")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0.0, summary.Percent)
}
