package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
)

func newSubmissionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func submissionColumnsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "activity_id", "student_id", "raw_score", "status", "note", "review_note", "reviewed_by", "reviewed_at", "submitted_at", "created_at", "updated_at"}).
		AddRow("s1", "a1", "u1", 8.0, "PENDING", nil, nil, nil, nil, time.Now(), time.Now(), time.Now())
}

func TestSubmissionRepositoryFindByActivityAndStudent(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, activity_id, student_id, raw_score, status, note, review_note, reviewed_by, reviewed_at, submitted_at, created_at, updated_at FROM submissions WHERE activity_id = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("a1", "u1").
		WillReturnRows(submissionColumnsRows())

	submission, err := repo.FindByActivityAndStudent(context.Background(), "a1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, submission.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryList(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "activity_id", "student_id", "raw_score", "status", "note", "review_note", "reviewed_by", "reviewed_at", "submitted_at", "created_at", "updated_at", "activity_title", "activity_category", "max_score", "student_name"}).
		AddRow("s1", "a1", "u1", 8.0, "PENDING", nil, nil, nil, nil, time.Now(), time.Now(), time.Now(), "Quiz 1", "WRITTEN_WORK", 10.0, "Student One")

	status := models.SubmissionPending
	mock.ExpectQuery("SELECT s.id, s.activity_id, s.student_id").
		WithArgs("c1", status).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions s")).
		WithArgs("c1", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	submissions, total, err := repo.List(context.Background(), models.SubmissionFilter{ClassID: "c1", Status: &status})
	require.NoError(t, err)
	assert.Len(t, submissions, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Quiz 1", submissions[0].ActivityTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListByStudentAndClass(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery("SELECT s.id, s.activity_id, s.student_id").
		WithArgs("u1", "c1").
		WillReturnRows(submissionColumnsRows())

	submissions, err := repo.ListByStudentAndClass(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Len(t, submissions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("INSERT INTO submissions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	submission := &models.Submission{ActivityID: "a1", StudentID: "u1", RawScore: 8, Status: models.SubmissionPending, SubmittedAt: time.Now()}
	err := repo.Upsert(context.Background(), submission)
	require.NoError(t, err)
	assert.NotEmpty(t, submission.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryReview(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	note := "looks good"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $2, review_note = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $5 WHERE id = $1")).
		WithArgs("s1", models.SubmissionApproved, note, "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Review(context.Background(), "s1", models.SubmissionApproved, &note, "t1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCountPendingByClass(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions s")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountPendingByClass(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
