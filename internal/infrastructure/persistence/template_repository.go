package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/constants"
)

// TemplateRepository persists workflow templates with steps embedded as JSON
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Insert stores a new template
func (r *TemplateRepository) Insert(ctx context.Context, tpl *models.WorkflowTemplate) error {
	stepsJSON, err := json.Marshal(tpl.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal template steps: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, description, status, steps, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, constants.TableWorkflowTemplate)

	_, err = r.db.ExecContext(ctx, query,
		tpl.ID, tpl.Name, tpl.Description, string(tpl.Status), stepsJSON,
		tpl.CreatedDate, tpl.LastModified)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return nil
}

// GetByID fetches a template; returns nil when not found
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	query := fmt.Sprintf(`
		SELECT id, name, description, status, steps, created_date, last_modified_date
		FROM %s WHERE id = ? LIMIT 1
	`, constants.TableWorkflowTemplate)

	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tpl, err
}

// List returns all templates ordered by creation time, newest first
func (r *TemplateRepository) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	query := fmt.Sprintf(`
		SELECT id, name, description, status, steps, created_date, last_modified_date
		FROM %s ORDER BY created_date DESC
	`, constants.TableWorkflowTemplate)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*models.WorkflowTemplate, 0)
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			continue
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// UpdateStatus changes the lifecycle status of a template
func (r *TemplateRepository) UpdateStatus(ctx context.Context, id string, status models.TemplateStatus) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, last_modified_date = ? WHERE id = ?
	`, constants.TableWorkflowTemplate)

	_, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	return err
}

// Count returns the total number of templates
func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", constants.TableWorkflowTemplate)
	var count int
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.WorkflowTemplate, error) {
	var tpl models.WorkflowTemplate
	var description sql.NullString
	var status string
	var stepsRaw []byte

	if err := row.Scan(&tpl.ID, &tpl.Name, &description, &status, &stepsRaw,
		&tpl.CreatedDate, &tpl.LastModified); err != nil {
		return nil, err
	}

	tpl.Description = description.String
	tpl.Status = models.TemplateStatus(status)

	if err := json.Unmarshal(stepsRaw, &tpl.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template steps: %w", err)
	}
	return &tpl, nil
}
