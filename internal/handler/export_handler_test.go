package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/middleware"
	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/service"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type exportServiceMock struct {
	createResp  *service.ExportJobStatus
	createErr   error
	statusResp  *service.ExportJobStatus
	statusErr   error
	listResp    []service.ExportJobStatus
	listErr     error
	download    *service.ReportDownload
	downloadErr error
}

func (m *exportServiceMock) CreateJob(ctx context.Context, req service.CreateExportRequest, actorID string, role models.UserRole) (*service.ExportJobStatus, error) {
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*service.ExportJobStatus, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ListJobs(ctx context.Context, actorID string, limit int) ([]service.ExportJobStatus, error) {
	return m.listResp, m.listErr
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestExportHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		createResp: &service.ExportJobStatus{ID: "job-1", Type: models.ReportTypeClassStandings, Status: models.ReportStatusQueued},
	}
	handler := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateExportRequest{
		Type:    models.ReportTypeClassStandings,
		ClassID: "class1",
		Format:  models.ReportFormatCSV,
	})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher})

	handler.Generate(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestExportHandlerGenerateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/exports", []byte(`{}`))

	handler.Generate(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		statusResp: &service.ExportJobStatus{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher})

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExportHandlerStatusForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{statusErr: appErrors.ErrForbidden}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teach2", Role: models.RoleTeacher})

	handler.Status(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		listResp: []service.ExportJobStatus{
			{ID: "job-1", Status: models.ReportStatusFinished},
			{ID: "job-2", Status: models.ReportStatusQueued},
		},
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports?limit=10", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "export*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("Student,Current\nAlice,94\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &exportServiceMock{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "export.csv",
			Format:    models.ReportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "Alice")
}

func TestExportHandlerDownloadExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"),
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/stale", nil)
	c.Params = gin.Params{{Key: "token", Value: "stale"}}

	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
