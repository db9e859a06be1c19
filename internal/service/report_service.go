package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/repository"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

type reportClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsMember(ctx context.Context, classID, studentID string) (bool, error)
}

// CreateExportRequest asks for a background export of a class or student.
type CreateExportRequest struct {
	Type      models.ReportType   `json:"type"`
	ClassID   string              `json:"class_id"`
	StudentID *string             `json:"student_id,omitempty"`
	Format    models.ReportFormat `json:"format"`
}

// ExportJobStatus exposes job metadata to clients.
type ExportJobStatus struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ReportService orchestrates export job lifecycle management.
type ReportService struct {
	repo     reportJobStore
	classes  reportClassReader
	queue    jobDispatcher
	exporter *ExportService
	logger   *zap.Logger
	cfg      ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, classes reportClassReader, queue jobDispatcher, exporter *ExportService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		repo:     repo,
		classes:  classes,
		queue:    queue,
		exporter: exporter,
		logger:   logger,
		cfg:      cfg,
	}
}

// ptr returns a pointer to v, for building partial update params.
func ptr[T any](v T) *T { return &v }

// jobStatus shapes a stored job into its client-facing form.
func jobStatus(job *models.ReportJob) ExportJobStatus {
	status := ExportJobStatus{
		ID:        job.ID,
		Type:      job.Type,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		CreatedAt: job.CreatedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		status.Error = job.ErrorMessage
	}
	return status
}

// CreateJob validates the request, persists the job, and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req CreateExportRequest, actorID string, role models.UserRole) (*ExportJobStatus, error) {
	if err := s.validateRequest(ctx, req, actorID, role); err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{ClassID: req.ClassID, StudentID: req.StudentID, Format: req.Format},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       ptr(models.ReportStatusFailed),
			Progress:     ptr(100),
			ErrorMessage: ptr("failed to enqueue job"),
			FinishedAt:   ptr(time.Now().UTC()),
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	status := jobStatus(job)
	return &status, nil
}

// GetStatus exposes job metadata, enforcing ownership for teachers.
func (s *ReportService) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*ExportJobStatus, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role == models.RoleTeacher && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	status := jobStatus(job)
	return &status, nil
}

// ListJobs returns the actor's recent export jobs.
func (s *ReportService) ListJobs(ctx context.Context, actorID string, limit int) ([]ExportJobStatus, error) {
	records, err := s.repo.ListByCreator(ctx, actorID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	statuses := make([]ExportJobStatus, 0, len(records))
	for i := range records {
		statuses = append(statuses, jobStatus(&records[i]))
	}
	return statuses, nil
}

// ResolveDownload validates a token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		if len(expired) == 0 {
			break
		}
		for _, job := range expired {
			if job.ResultURL == nil {
				continue
			}
			token := extractToken(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
			}
		}
		if len(expired) < 100 {
			break
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ReportService) validateRequest(ctx context.Context, req CreateExportRequest, actorID string, role models.UserRole) error {
	if req.ClassID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	if !isValidReportType(req.Type) {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	if !isValidFormat(req.Format) {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if req.Type == models.ReportTypeStudentReport && (req.StudentID == nil || *req.StudentID == "") {
		return appErrors.Clone(appErrors.ErrValidation, "studentId is required for student reports")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if role == models.RoleTeacher && class.TeacherID != actorID {
		return appErrors.ErrForbidden
	}
	if req.StudentID != nil && *req.StudentID != "" {
		member, err := s.classes.IsMember(ctx, req.ClassID, *req.StudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class membership")
		}
		if !member {
			return appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in class")
		}
	}
	return nil
}

func isValidReportType(t models.ReportType) bool {
	switch t {
	case models.ReportTypeClassStandings, models.ReportTypeStudentReport, models.ReportTypeAttendance:
		return true
	default:
		return false
	}
}

func isValidFormat(f models.ReportFormat) bool {
	return f == models.ReportFormatCSV || f == models.ReportFormatPDF
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// mark applies a partial update, logging instead of failing when the
// bookkeeping write itself errors.
func (w *ReportWorker) mark(ctx context.Context, jobID string, params repository.UpdateReportJobParams) {
	if err := w.repo.Update(ctx, jobID, params); err != nil {
		w.logger.Sugar().Warnw("failed to update export job", "job_id", jobID, "error", err)
	}
}

// Handle processes a queue job. Returning an error hands the job back to
// the queue's retry loop; the final attempt marks the job failed.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:   ptr(models.ReportStatusProcessing),
		Progress: ptr(10),
	}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		if job.Attempt >= w.maxRetries {
			w.mark(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       ptr(models.ReportStatusFailed),
				Progress:     ptr(100),
				ErrorMessage: ptr(err.Error()),
				FinishedAt:   ptr(time.Now().UTC()),
			})
		} else {
			w.mark(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       ptr(models.ReportStatusQueued),
				Progress:     ptr(0),
				ErrorMessage: ptr(err.Error()),
			})
		}
		return err
	}

	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       ptr(models.ReportStatusFinished),
		Progress:     ptr(100),
		ResultURL:    ptr(result.URL),
		ErrorMessage: ptr(""),
		FinishedAt:   ptr(time.Now().UTC()),
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}
