package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/repository"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: make(map[string]*models.ReportJob)}
}

func (s *reportRepoStub) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *reportRepoStub) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (s *reportRepoStub) ListByCreator(_ context.Context, creatorID string, _ int) ([]models.ReportJob, error) {
	out := make([]models.ReportJob, 0)
	for _, job := range s.jobs {
		if job.CreatedBy == creatorID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *reportRepoStub) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *reportRepoStub) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	out := make([]models.ReportJob, 0)
	for _, job := range s.jobs {
		if job.Status == models.ReportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *reportRepoStub) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.ReportJob, error) {
	return nil, nil
}

type queueStub struct {
	enqueued []jobs.Job
	err      error
}

func (s *queueStub) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, job)
	return nil
}

type reportClassStub struct {
	class   *models.Class
	members map[string]bool
}

func (s *reportClassStub) FindByID(_ context.Context, id string) (*models.Class, error) {
	if s.class == nil || s.class.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.class, nil
}

func (s *reportClassStub) IsMember(_ context.Context, _, studentID string) (bool, error) {
	return s.members[studentID], nil
}

type generatorStub struct {
	result *ExportResult
	err    error
}

func (s *generatorStub) Generate(_ context.Context, _ *models.ReportJob) (*ExportResult, error) {
	return s.result, s.err
}

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub) {
	t.Helper()

	repo := newReportRepoStub()
	queue := &queueStub{}
	classes := &reportClassStub{
		class:   &models.Class{ID: "class1", Name: "Biology 9", TeacherID: "teach1", SchoolYear: "2026-2027", Quarter: 1, Active: true},
		members: map[string]bool{"stu1": true},
	}
	exporter, _ := newExportServiceForTest(t)

	svc := NewReportService(repo, classes, queue, exporter, zap.NewNop(), ReportServiceConfig{
		ResultTTL:  time.Hour,
		MaxRetries: 3,
	})
	return svc, repo, queue
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue := newReportServiceForTest(t)

	status, err := svc.CreateJob(context.Background(), CreateExportRequest{
		Type:    models.ReportTypeClassStandings,
		ClassID: "class1",
		Format:  models.ReportFormatCSV,
	}, "teach1", models.RoleTeacher)

	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, status.Status)
	assert.NotEmpty(t, status.ID)

	stored, ok := repo.jobs[status.ID]
	require.True(t, ok)
	assert.Equal(t, "teach1", stored.CreatedBy)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, status.ID, queue.enqueued[0].ID)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	svc, repo, queue := newReportServiceForTest(t)
	queue.err = errors.New("queue full")

	_, err := svc.CreateJob(context.Background(), CreateExportRequest{
		Type:    models.ReportTypeClassStandings,
		ClassID: "class1",
		Format:  models.ReportFormatCSV,
	}, "teach1", models.RoleTeacher)

	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		assert.Equal(t, 100, job.Progress)
		require.NotNil(t, job.ErrorMessage)
	}
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, queue := newReportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, CreateExportRequest{
		Type:   models.ReportTypeClassStandings,
		Format: models.ReportFormatCSV,
	}, "teach1", models.RoleTeacher)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(ctx, CreateExportRequest{
		Type:    models.ReportTypeStudentReport,
		ClassID: "class1",
		Format:  models.ReportFormatPDF,
	}, "teach1", models.RoleTeacher)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	outsider := "stu9"
	_, err = svc.CreateJob(ctx, CreateExportRequest{
		Type:      models.ReportTypeStudentReport,
		ClassID:   "class1",
		StudentID: &outsider,
		Format:    models.ReportFormatPDF,
	}, "teach1", models.RoleTeacher)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(ctx, CreateExportRequest{
		Type:    models.ReportTypeClassStandings,
		ClassID: "class1",
		Format:  models.ReportFormatCSV,
	}, "teach2", models.RoleTeacher)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	assert.Empty(t, queue.enqueued)
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _ := newReportServiceForTest(t)
	ctx := context.Background()

	job := &models.ReportJob{
		Type:      models.ReportTypeClassStandings,
		Params:    models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusProcessing,
		Progress:  10,
		CreatedBy: "teach1",
	}
	require.NoError(t, repo.Create(ctx, job))

	status, err := svc.GetStatus(ctx, job.ID, "teach1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, status.Status)

	_, err = svc.GetStatus(ctx, job.ID, "teach2", models.RoleTeacher)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins can read jobs owned by anyone.
	_, err = svc.GetStatus(ctx, job.ID, "admin1", models.RoleAdmin)
	assert.NoError(t, err)

	_, err = svc.GetStatus(ctx, "missing", "teach1", models.RoleTeacher)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceListJobs(t *testing.T) {
	svc, repo, _ := newReportServiceForTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.ReportJob{Type: models.ReportTypeClassStandings, CreatedBy: "teach1", Status: models.ReportStatusQueued}))
	require.NoError(t, repo.Create(ctx, &models.ReportJob{Type: models.ReportTypeAttendance, CreatedBy: "teach1", Status: models.ReportStatusFinished}))
	require.NoError(t, repo.Create(ctx, &models.ReportJob{Type: models.ReportTypeClassStandings, CreatedBy: "teach2", Status: models.ReportStatusQueued}))

	statuses, err := svc.ListJobs(ctx, "teach1", 20)
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _ := newReportServiceForTest(t)
	ctx := context.Background()

	job := &models.ReportJob{
		Type:      models.ReportTypeClassStandings,
		Params:    models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "teach1",
	}
	require.NoError(t, repo.Create(ctx, job))

	result, err := svc.exporter.Generate(ctx, job)
	require.NoError(t, err)

	finished := models.ReportStatusFinished
	require.NoError(t, repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:    &finished,
		ResultURL: &result.URL,
	}))

	download, err := svc.ResolveDownload(ctx, result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	assert.NotEmpty(t, download.Filename)

	_, err = svc.ResolveDownload(ctx, "not-a-token")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceResolveDownloadTokenMismatch(t *testing.T) {
	svc, repo, _ := newReportServiceForTest(t)
	ctx := context.Background()

	job := &models.ReportJob{
		Type:      models.ReportTypeClassStandings,
		Params:    models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "teach1",
	}
	require.NoError(t, repo.Create(ctx, job))

	result, err := svc.exporter.Generate(ctx, job)
	require.NoError(t, err)

	// Job was never finished and carries no result URL.
	_, err = svc.ResolveDownload(ctx, result.Token)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue := newReportServiceForTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.ReportJob{Type: models.ReportTypeClassStandings, CreatedBy: "teach1", Status: models.ReportStatusQueued}))
	require.NoError(t, repo.Create(ctx, &models.ReportJob{Type: models.ReportTypeAttendance, CreatedBy: "teach1", Status: models.ReportStatusFinished}))

	svc.RecoverPendingJobs(ctx)
	assert.Len(t, queue.enqueued, 1)
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := newReportRepoStub()
	ctx := context.Background()

	job := &models.ReportJob{
		Type:      models.ReportTypeClassStandings,
		Params:    models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "teach1",
	}
	require.NoError(t, repo.Create(ctx, job))

	url := "/api/v1/exports/download/tok123"
	worker := NewReportWorker(repo, &generatorStub{result: &ExportResult{RelativePath: "f.csv", Token: "tok123", URL: url, Format: models.ReportFormatCSV}}, 3, zap.NewNop())

	require.NoError(t, worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 1}))

	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, url, *stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerHandleRequeuesOnEarlyFailure(t *testing.T) {
	repo := newReportRepoStub()
	ctx := context.Background()

	job := &models.ReportJob{
		Type:      models.ReportTypeClassStandings,
		Params:    models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "teach1",
	}
	require.NoError(t, repo.Create(ctx, job))

	worker := NewReportWorker(repo, &generatorStub{err: errors.New("render failed")}, 3, zap.NewNop())

	err := worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 1})
	require.Error(t, err)

	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ReportStatusQueued, stored.Status)
	assert.Equal(t, 0, stored.Progress)
	require.NotNil(t, stored.ErrorMessage)
}

func TestReportWorkerHandleFailsAtMaxRetries(t *testing.T) {
	repo := newReportRepoStub()
	ctx := context.Background()

	job := &models.ReportJob{
		Type:      models.ReportTypeClassStandings,
		Params:    models.ReportJobParams{ClassID: "class1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "teach1",
	}
	require.NoError(t, repo.Create(ctx, job))

	worker := NewReportWorker(repo, &generatorStub{err: errors.New("render failed")}, 3, zap.NewNop())

	err := worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 3})
	require.Error(t, err)

	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ErrorMessage)
	require.NotNil(t, stored.FinishedAt)
}
