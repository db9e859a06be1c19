package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// SchemeRepository handles grading scheme persistence.
type SchemeRepository struct {
	db *sqlx.DB
}

// NewSchemeRepository creates a new scheme repository.
func NewSchemeRepository(db *sqlx.DB) *SchemeRepository {
	return &SchemeRepository{db: db}
}

// FindByClass returns the grading scheme for a class with its transmutation
// rules loaded in band order.
func (r *SchemeRepository) FindByClass(ctx context.Context, classID string) (*models.GradingScheme, error) {
	const query = `SELECT id, class_id, written_works_percent, performance_tasks_percent,
        quarterly_assessment_percent, created_at, updated_at
        FROM grading_schemes WHERE class_id = $1 LIMIT 1`
	var scheme models.GradingScheme
	if err := r.db.GetContext(ctx, &scheme, query, classID); err != nil {
		return nil, err
	}

	const rulesQuery = `SELECT id, scheme_id, min_percent, max_percent, transmuted_grade
        FROM transmutation_rules WHERE scheme_id = $1 ORDER BY min_percent ASC`
	if err := r.db.SelectContext(ctx, &scheme.TransmutationRules, rulesQuery, scheme.ID); err != nil {
		return nil, fmt.Errorf("load transmutation rules: %w", err)
	}

	return &scheme, nil
}

// Upsert writes the scheme for a class and replaces its transmutation table
// atomically. One scheme per class.
func (r *SchemeRepository) Upsert(ctx context.Context, scheme *models.GradingScheme) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scheme upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if scheme.ID == "" {
		scheme.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	scheme.CreatedAt = now
	scheme.UpdatedAt = now

	const schemeQuery = `INSERT INTO grading_schemes (id, class_id, written_works_percent, performance_tasks_percent, quarterly_assessment_percent, created_at, updated_at)
        VALUES (:id, :class_id, :written_works_percent, :performance_tasks_percent, :quarterly_assessment_percent, :created_at, :updated_at)
        ON CONFLICT (class_id) DO UPDATE SET
            written_works_percent = EXCLUDED.written_works_percent,
            performance_tasks_percent = EXCLUDED.performance_tasks_percent,
            quarterly_assessment_percent = EXCLUDED.quarterly_assessment_percent,
            updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, schemeQuery, scheme); err != nil {
		return fmt.Errorf("upsert grading scheme: %w", err)
	}

	// The conflict path keeps the existing row's id. Resolve it so the rules
	// attach to the stored scheme, not a discarded candidate id.
	var storedID string
	if err := tx.GetContext(ctx, &storedID, `SELECT id FROM grading_schemes WHERE class_id = $1`, scheme.ClassID); err != nil {
		return fmt.Errorf("resolve scheme id: %w", err)
	}
	scheme.ID = storedID

	if _, err := tx.ExecContext(ctx, `DELETE FROM transmutation_rules WHERE scheme_id = $1`, scheme.ID); err != nil {
		return fmt.Errorf("clear transmutation rules: %w", err)
	}

	const ruleQuery = `INSERT INTO transmutation_rules (id, scheme_id, min_percent, max_percent, transmuted_grade)
        VALUES (:id, :scheme_id, :min_percent, :max_percent, :transmuted_grade)`
	for i := range scheme.TransmutationRules {
		rule := &scheme.TransmutationRules[i]
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		rule.SchemeID = scheme.ID
		if _, err := tx.NamedExecContext(ctx, ruleQuery, rule); err != nil {
			return fmt.Errorf("insert transmutation rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scheme upsert: %w", err)
	}
	return nil
}
