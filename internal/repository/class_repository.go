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

// ClassRepository handles class and roster persistence.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = `id, name, subject, grade_level, teacher_id, school_year, quarter, active, created_at, updated_at`

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// List returns classes matching the filter with a total count. Student
// scoping goes through the roster table.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	baseQuery := `FROM classes c WHERE c.active = TRUE`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM class_students cs WHERE cs.class_id = c.id AND cs.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("c.school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.Quarter != nil {
		conditions = append(conditions, fmt.Sprintf("c.quarter = $%d", len(args)+1))
		args = append(args, *filter.Quarter)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.subject) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "subject": true, "created_at": true, "updated_at": true}
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

	listQuery := fmt.Sprintf("SELECT c.* %s ORDER BY c.%s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, subject, grade_level, teacher_id, school_year, quarter, active, created_at, updated_at)
        VALUES (:id, :name, :subject, :grade_level, :teacher_id, :school_year, :quarter, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies mutable class fields.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, subject = :subject, grade_level = :grade_level,
        school_year = :school_year, quarter = :quarter, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// ListMembers returns a class roster with student metadata, ordered by name.
func (r *ClassRepository) ListMembers(ctx context.Context, classID string) ([]models.ClassMember, error) {
	const query = `SELECT cs.id, cs.class_id, cs.student_id, cs.joined_at,
        u.full_name AS student_name, u.email AS student_email
        FROM class_students cs
        JOIN users u ON u.id = cs.student_id
        WHERE cs.class_id = $1
        ORDER BY u.full_name ASC`
	var members []models.ClassMember
	if err := r.db.SelectContext(ctx, &members, query, classID); err != nil {
		return nil, fmt.Errorf("list class members: %w", err)
	}
	return members, nil
}

// IsMember reports whether a student belongs to a class.
func (r *ClassRepository) IsMember(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM class_students WHERE class_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, classID, studentID); err != nil {
		return false, fmt.Errorf("check class membership: %w", err)
	}
	return exists, nil
}

// AddMember enrolls a student in a class. Re-enrolling is a no-op.
func (r *ClassRepository) AddMember(ctx context.Context, classID, studentID string) error {
	const query = `INSERT INTO class_students (id, class_id, student_id, joined_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (class_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), classID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add class member: %w", err)
	}
	return nil
}

// RemoveMember drops a student from a class roster.
func (r *ClassRepository) RemoveMember(ctx context.Context, classID, studentID string) error {
	const query = `DELETE FROM class_students WHERE class_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, classID, studentID); err != nil {
		return fmt.Errorf("remove class member: %w", err)
	}
	return nil
}
