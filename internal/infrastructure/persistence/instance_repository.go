package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/constants"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

// InstanceRepository persists workflow instances. The instance's step list
// and step states are embedded JSON, preserving the clone-at-start invariant
// in the storage layout itself (no foreign reference to template steps).
type InstanceRepository struct {
	db *sql.DB
}

// NewInstanceRepository creates a new InstanceRepository
func NewInstanceRepository(db *sql.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Insert stores a new instance with version 1
func (r *InstanceRepository) Insert(ctx context.Context, inst *models.WorkflowInstance) error {
	stepsJSON, statesJSON, err := marshalInstanceState(inst)
	if err != nil {
		return err
	}

	inst.Version = 1
	query := fmt.Sprintf(`
		INSERT INTO %s (id, template_id, document_id, initiator_id, status,
			current_step_index, steps, step_states, started_at, finished_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, constants.TableWorkflowInstance)

	_, err = r.db.ExecContext(ctx, query,
		inst.ID, inst.TemplateID, inst.DocumentID, inst.InitiatorID, string(inst.Status),
		inst.CurrentStepIndex, stepsJSON, statesJSON, inst.StartedAt, inst.FinishedAt, inst.Version)
	if err != nil {
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	return nil
}

// GetByID fetches an instance; returns nil when not found
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := fmt.Sprintf(`
		SELECT id, template_id, document_id, initiator_id, status,
			current_step_index, steps, step_states, started_at, finished_at, version
		FROM %s WHERE id = ? LIMIT 1
	`, constants.TableWorkflowInstance)

	inst, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inst, err
}

// Save persists the instance if the stored version still matches
// expectedVersion, then bumps the version. A mismatch means a concurrent
// writer won; callers retry against the refreshed state.
func (r *InstanceRepository) Save(ctx context.Context, inst *models.WorkflowInstance, expectedVersion int) error {
	stepsJSON, statesJSON, err := marshalInstanceState(inst)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = ?, current_step_index = ?, steps = ?, step_states = ?,
			finished_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, constants.TableWorkflowInstance)

	result, err := r.db.ExecContext(ctx, query,
		string(inst.Status), inst.CurrentStepIndex, stepsJSON, statesJSON,
		inst.FinishedAt, inst.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.NewConflictError("workflow instance",
			fmt.Sprintf("instance %s was modified concurrently", inst.ID))
	}

	inst.Version = expectedVersion + 1
	return nil
}

// ListByStatus returns all instances with the given status
func (r *InstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	query := fmt.Sprintf(`
		SELECT id, template_id, document_id, initiator_id, status,
			current_step_index, steps, step_states, started_at, finished_at, version
		FROM %s WHERE status = ? ORDER BY started_at ASC
	`, constants.TableWorkflowInstance)

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	instances := make([]*models.WorkflowInstance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// CountByStatus counts instances with the given status
func (r *InstanceRepository) CountByStatus(ctx context.Context, status models.InstanceStatus) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = ?", constants.TableWorkflowInstance)
	var count int
	err := r.db.QueryRowContext(ctx, query, string(status)).Scan(&count)
	return count, err
}

// CountFinishedSince counts instances that reached the given terminal status
// at or after the cutoff
func (r *InstanceRepository) CountFinishedSince(ctx context.Context, status models.InstanceStatus, since time.Time) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE status = ? AND finished_at >= ?
	`, constants.TableWorkflowInstance)
	var count int
	err := r.db.QueryRowContext(ctx, query, string(status), since).Scan(&count)
	return count, err
}

func marshalInstanceState(inst *models.WorkflowInstance) ([]byte, []byte, error) {
	stepsJSON, err := json.Marshal(inst.Steps)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal instance steps: %w", err)
	}
	statesJSON, err := json.Marshal(inst.StepStates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal step states: %w", err)
	}
	return stepsJSON, statesJSON, nil
}

func scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var inst models.WorkflowInstance
	var status string
	var stepsRaw, statesRaw []byte
	var finishedAt sql.NullTime

	if err := row.Scan(&inst.ID, &inst.TemplateID, &inst.DocumentID, &inst.InitiatorID,
		&status, &inst.CurrentStepIndex, &stepsRaw, &statesRaw,
		&inst.StartedAt, &finishedAt, &inst.Version); err != nil {
		return nil, err
	}

	inst.Status = models.InstanceStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		inst.FinishedAt = &t
	}

	if err := json.Unmarshal(stepsRaw, &inst.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance steps: %w", err)
	}
	if err := json.Unmarshal(statesRaw, &inst.StepStates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step states: %w", err)
	}
	return &inst, nil
}
