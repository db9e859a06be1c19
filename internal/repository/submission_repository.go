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

// SubmissionRepository handles submission persistence.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, activity_id, student_id, raw_score, status, note, review_note, reviewed_by, reviewed_at, submitted_at, created_at, updated_at`

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1 LIMIT 1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByActivityAndStudent returns the single active submission a student has
// for an activity, if any.
func (r *SubmissionRepository) FindByActivityAndStudent(ctx context.Context, activityID, studentID string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE activity_id = $1 AND student_id = $2 LIMIT 1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, activityID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions joined with activity metadata, filtered and paginated.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	baseQuery := `FROM submissions s
        JOIN activities a ON a.id = s.activity_id
        JOIN users u ON u.id = s.student_id
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("s.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"submitted_at": "s.submitted_at",
		"updated_at":   "s.updated_at",
		"status":       "s.status",
		"raw_score":    "s.raw_score",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "s.submitted_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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

	listQuery := fmt.Sprintf(`SELECT s.id, s.activity_id, s.student_id, s.raw_score, s.status, s.note,
        s.review_note, s.reviewed_by, s.reviewed_at, s.submitted_at, s.created_at, s.updated_at,
        a.title AS activity_title, a.category AS activity_category, a.max_score,
        u.full_name AS student_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, baseQuery, sortColumn, sortOrder, pageSize, offset)
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	return submissions, total, nil
}

// ListByStudentAndClass returns all submissions a student has across a
// class's activities. Callers filter archived activities themselves so
// the grading input stays uniform.
func (r *SubmissionRepository) ListByStudentAndClass(ctx context.Context, studentID, classID string) ([]models.Submission, error) {
	const query = `SELECT s.id, s.activity_id, s.student_id, s.raw_score, s.status, s.note,
        s.review_note, s.reviewed_by, s.reviewed_at, s.submitted_at, s.created_at, s.updated_at
        FROM submissions s
        JOIN activities a ON a.id = s.activity_id
        WHERE s.student_id = $1 AND a.class_id = $2`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, studentID, classID); err != nil {
		return nil, fmt.Errorf("list submissions by student: %w", err)
	}
	return submissions, nil
}

// ListByClass returns all submissions across a class's activities.
func (r *SubmissionRepository) ListByClass(ctx context.Context, classID string) ([]models.Submission, error) {
	const query = `SELECT s.id, s.activity_id, s.student_id, s.raw_score, s.status, s.note,
        s.review_note, s.reviewed_by, s.reviewed_at, s.submitted_at, s.created_at, s.updated_at
        FROM submissions s
        JOIN activities a ON a.id = s.activity_id
        WHERE a.class_id = $1`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, classID); err != nil {
		return nil, fmt.Errorf("list submissions by class: %w", err)
	}
	return submissions, nil
}

// Upsert inserts a submission or, when the student already has one for the
// activity, overwrites it in place. Resubmission resets the review fields
// and puts the row back into Pending.
func (r *SubmissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	submission.CreatedAt = now
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions (id, activity_id, student_id, raw_score, status, note, review_note, reviewed_by, reviewed_at, submitted_at, created_at, updated_at)
        VALUES (:id, :activity_id, :student_id, :raw_score, :status, :note, :review_note, :reviewed_by, :reviewed_at, :submitted_at, :created_at, :updated_at)
        ON CONFLICT (activity_id, student_id) DO UPDATE SET
            raw_score = EXCLUDED.raw_score,
            status = EXCLUDED.status,
            note = EXCLUDED.note,
            review_note = NULL,
            reviewed_by = NULL,
            reviewed_at = NULL,
            submitted_at = EXCLUDED.submitted_at,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// Review records a teacher decision on a submission.
func (r *SubmissionRepository) Review(ctx context.Context, id string, status models.SubmissionStatus, reviewNote *string, reviewerID string) error {
	now := time.Now().UTC()
	const query = `UPDATE submissions SET status = $2, review_note = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewNote, reviewerID, now); err != nil {
		return fmt.Errorf("review submission: %w", err)
	}
	return nil
}

// CountPendingByClass returns the number of pending submissions per class for
// a teacher's classes. Used for review-queue badges.
func (r *SubmissionRepository) CountPendingByClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions s
        JOIN activities a ON a.id = s.activity_id
        WHERE a.class_id = $1 AND s.status = 'PENDING' AND a.archived = FALSE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, classID); err != nil {
		return 0, fmt.Errorf("count pending submissions: %w", err)
	}
	return total, nil
}
