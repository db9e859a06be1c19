package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/export"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

type standingsStub struct {
	class   *models.ClassStandings
	student *models.StudentStanding
}

func (s *standingsStub) StudentStanding(_ context.Context, _, _ string) (*models.StudentStanding, error) {
	return s.student, nil
}

func (s *standingsStub) ClassStandings(_ context.Context, _ string) (*models.ClassStandings, error) {
	return s.class, nil
}

type attendanceStub struct {
	summary *models.AttendanceSummary
}

func (s *attendanceStub) StudentSummary(_ context.Context, _, _ string) (*models.AttendanceSummary, error) {
	return s.summary, nil
}

type exportClassStub struct {
	class   *models.Class
	members []models.ClassMember
}

func (s *exportClassStub) FindByID(_ context.Context, _ string) (*models.Class, error) {
	return s.class, nil
}

func (s *exportClassStub) ListMembers(_ context.Context, _ string) ([]models.ClassMember, error) {
	return s.members, nil
}

func gradedStanding(studentID, name string, initial float64, current, tentative int) models.StudentStanding {
	return models.StudentStanding{
		StudentID:   studentID,
		StudentName: name,
		ClassID:     "class1",
		Grades: models.ComputedGrades{
			Approved: models.CategoryBreakdown{
				WrittenWorks:        models.CategoryAggregate{Earned: 24, Max: 30, Percent: 80, Count: 3},
				PerformanceTasks:    models.CategoryAggregate{Earned: 40, Max: 50, Percent: 80, Count: 2},
				QuarterlyAssessment: models.CategoryAggregate{Earned: 16, Max: 20, Percent: 80, Count: 1},
			},
			InitialGrade:           &initial,
			CurrentGrade:           &current,
			TentativeGrade:         &tentative,
			ApprovedCount:          6,
			IsEligibleForTentative: true,
			IsSynced:               true,
		},
	}
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)

	alice := gradedStanding("stu1", "Alice", 80, 94, 94)
	bob := gradedStanding("stu2", "Bob", 90, 96, 96)
	standings := &standingsStub{
		class:   &models.ClassStandings{ClassID: "class1", Standings: []models.StudentStanding{alice, bob}},
		student: &alice,
	}
	attendance := &attendanceStub{
		summary: &models.AttendanceSummary{Present: 18, Late: 1, Excused: 1, Absent: 0, Total: 20, Percent: 95.0},
	}
	classes := &exportClassStub{
		class: &models.Class{ID: "class1", Name: "Biology 9", Subject: "Science", TeacherID: "teach1", SchoolYear: "2026-2027", Quarter: 1, Active: true},
		members: []models.ClassMember{
			{ClassStudent: models.ClassStudent{ClassID: "class1", StudentID: "stu1"}, StudentName: "Alice"},
			{ClassStudent: models.ClassStudent{ClassID: "class1", StudentID: "stu2"}, StudentName: "Bob"},
		},
	}

	svc := NewExportService(standings, attendance, classes, store, signer,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour},
		zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateClassStandingsCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	job := &models.ReportJob{
		ID:     "job1",
		Type:   models.ReportTypeClassStandings,
		Params: models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, result.URL, "/api/v1/exports/download/")
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	payload, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Alice")
	assert.Contains(t, string(payload), "94")
}

func TestExportServiceGenerateStudentReportPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	studentID := "stu1"
	job := &models.ReportJob{
		ID:     "job2",
		Type:   models.ReportTypeStudentReport,
		Params: models.ReportJobParams{ClassID: "class1", StudentID: &studentID, Format: models.ReportFormatPDF},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.ReportFormatPDF, result.Format)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"))

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateAttendanceCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	job := &models.ReportJob{
		ID:     "job3",
		Type:   models.ReportTypeAttendance,
		Params: models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Bob")
	assert.Contains(t, string(payload), "95.0")
}

func TestExportServiceStudentReportRequiresStudent(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	job := &models.ReportJob{
		ID:     "job4",
		Type:   models.ReportTypeStudentReport,
		Params: models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
	}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "studentId")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	job := &models.ReportJob{
		ID:     "job5",
		Type:   models.ReportTypeClassStandings,
		Params: models.ReportJobParams{ClassID: "class1", Format: models.ReportFormat("xlsx")},
	}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestExportServiceTokenRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	job := &models.ReportJob{
		ID:     "job6",
		Type:   models.ReportTypeClassStandings,
		Params: models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, expiresAt, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job6", jobID)
	assert.Equal(t, result.RelativePath, relPath)
	assert.WithinDuration(t, result.ExpiresAt, expiresAt, time.Second)
}
