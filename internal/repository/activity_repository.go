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

// ActivityRepository handles activity persistence.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, class_id, teacher_id, title, description, category, max_score, due_date, archived, created_at, updated_at`

// FindByID returns an activity by identifier.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE id = $1 LIMIT 1`, activityColumns)
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}

// List returns activities matching the filter with a total count.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	baseQuery := `FROM activities WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = FALSE")
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"title": true, "due_date": true, "created_at": true, "updated_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", activityColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}

	return activities, total, nil
}

// ListActiveByClass returns every non-archived activity for a class.
func (r *ActivityRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE class_id = $1 AND archived = FALSE`, activityColumns)
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, classID); err != nil {
		return nil, fmt.Errorf("list active activities: %w", err)
	}
	return activities, nil
}

// Create inserts a new activity.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now
	const query = `INSERT INTO activities (id, class_id, teacher_id, title, description, category, max_score, due_date, archived, created_at, updated_at)
        VALUES (:id, :class_id, :teacher_id, :title, :description, :category, :max_score, :due_date, :archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update modifies mutable activity fields.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET title = :title, description = :description, category = :category,
        max_score = :max_score, due_date = :due_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// SetArchived flips the archived flag. Archived activities and their
// submissions drop out of all grade computation.
func (r *ActivityRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	const query = `UPDATE activities SET archived = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, archived, time.Now().UTC()); err != nil {
		return fmt.Errorf("archive activity: %w", err)
	}
	return nil
}
