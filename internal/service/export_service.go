package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/pkg/export"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

type exportStandingsProvider interface {
	StudentStanding(ctx context.Context, classID, studentID string) (*models.StudentStanding, error)
	ClassStandings(ctx context.Context, classID string) (*models.ClassStandings, error)
}

type exportAttendanceReader interface {
	StudentSummary(ctx context.Context, classID, studentID string) (*models.AttendanceSummary, error)
}

type exportClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListMembers(ctx context.Context, classID string) ([]models.ClassMember, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds gradebook datasets and persists rendered files.
type ExportService struct {
	standings  exportStandingsProvider
	attendance exportAttendanceReader
	classes    exportClassReader
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(standings exportStandingsProvider, attendance exportAttendanceReader, classes exportClassReader, fileStore fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		standings:  standings,
		attendance: attendance,
		classes:    classes,
		storage:    fileStore,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open resolves a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes stored exports older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	ext := "csv"
	if job.Params.Format == models.ReportFormatPDF {
		ext = "pdf"
	}
	return fmt.Sprintf("%s-%s-%d.%s", job.Type, job.ID, time.Now().UTC().Unix(), ext)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeClassStandings:
		return s.buildClassStandingsDataset(ctx, job.Params)
	case models.ReportTypeStudentReport:
		return s.buildStudentReportDataset(ctx, job.Params)
	case models.ReportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildClassStandingsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	class, err := s.classes.FindByID(ctx, params.ClassID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	standings, err := s.standings.ClassStandings(ctx, params.ClassID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Student", "WW %", "PT %", "QA %", "Initial", "Current", "Tentative", "Pending", "Needs Revision", "Synced"}
	rows := make([]map[string]string, 0, len(standings.Standings))
	for _, standing := range standings.Standings {
		grades := standing.Grades
		rows = append(rows, map[string]string{
			"Student":        standing.StudentName,
			"WW %":           formatPercent(grades.Approved.WrittenWorks.Percent, grades.Approved.WrittenWorks.Count),
			"PT %":           formatPercent(grades.Approved.PerformanceTasks.Percent, grades.Approved.PerformanceTasks.Count),
			"QA %":           formatPercent(grades.Approved.QuarterlyAssessment.Percent, grades.Approved.QuarterlyAssessment.Count),
			"Initial":        formatFloat(grades.InitialGrade),
			"Current":        formatInt(grades.CurrentGrade),
			"Tentative":      formatInt(grades.TentativeGrade),
			"Pending":        strconv.Itoa(grades.PendingCount),
			"Needs Revision": strconv.Itoa(grades.NeedsRevisionCount),
			"Synced":         strconv.FormatBool(grades.IsSynced),
		})
	}

	title := fmt.Sprintf("Class Standings: %s (%s Q%d)", class.Name, class.SchoolYear, class.Quarter)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func (s *ExportService) buildStudentReportDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.StudentID == nil || *params.StudentID == "" {
		return export.Dataset{}, "", fmt.Errorf("student report requires studentId")
	}
	standing, err := s.standings.StudentStanding(ctx, params.ClassID, *params.StudentID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Category", "Earned", "Max", "Percent", "Entries"}
	categories := []struct {
		label     string
		aggregate models.CategoryAggregate
	}{
		{"Written Works", standing.Grades.Approved.WrittenWorks},
		{"Performance Tasks", standing.Grades.Approved.PerformanceTasks},
		{"Quarterly Assessment", standing.Grades.Approved.QuarterlyAssessment},
	}
	rows := make([]map[string]string, 0, len(categories)+1)
	for _, category := range categories {
		rows = append(rows, map[string]string{
			"Category": category.label,
			"Earned":   strconv.FormatFloat(category.aggregate.Earned, 'f', 2, 64),
			"Max":      strconv.FormatFloat(category.aggregate.Max, 'f', 2, 64),
			"Percent":  formatPercent(category.aggregate.Percent, category.aggregate.Count),
			"Entries":  strconv.Itoa(category.aggregate.Count),
		})
	}
	rows = append(rows, map[string]string{
		"Category": "Final",
		"Earned":   formatFloat(standing.Grades.InitialGrade),
		"Max":      "100.00",
		"Percent":  formatInt(standing.Grades.TentativeGrade),
		"Entries":  strconv.Itoa(standing.Grades.ApprovedCount),
	})

	title := fmt.Sprintf("Student Report: %s", *params.StudentID)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	class, err := s.classes.FindByID(ctx, params.ClassID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	members, err := s.classes.ListMembers(ctx, params.ClassID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Student", "Present", "Late", "Excused", "Absent", "Total", "Percent"}
	rows := make([]map[string]string, 0, len(members))
	for _, member := range members {
		summary, err := s.attendance.StudentSummary(ctx, params.ClassID, member.StudentID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows = append(rows, map[string]string{
			"Student": member.StudentName,
			"Present": strconv.Itoa(summary.Present),
			"Late":    strconv.Itoa(summary.Late),
			"Excused": strconv.Itoa(summary.Excused),
			"Absent":  strconv.Itoa(summary.Absent),
			"Total":   strconv.Itoa(summary.Total),
			"Percent": strconv.FormatFloat(summary.Percent, 'f', 1, 64),
		})
	}

	title := fmt.Sprintf("Attendance Summary: %s (%s Q%d)", class.Name, class.SchoolYear, class.Quarter)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func formatPercent(percent float64, count int) string {
	if count == 0 {
		return ""
	}
	return strconv.FormatFloat(percent, 'f', 2, 64)
}

func formatFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', 2, 64)
}

func formatInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}
