package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/backend/pkg/constants"
)

// OutboxEvent represents a persisted event record
type OutboxEvent struct {
	ID           string
	EventType    string
	Payload      string
	Status       string
	RetryCount   int
	ErrorMessage string
	CreatedDate  time.Time
}

// OutboxRepository handles database operations for the outbox pattern
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue inserts a new pending event into the outbox
func (r *OutboxRepository) Enqueue(ctx context.Context, exec Executor, eventType string, payload interface{}) (string, error) {
	id := uuid.NewString()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_type, payload, status, retry_count, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, 0, NOW(), NOW())
	`, constants.TableWorkflowOutbox)

	_, err = exec.ExecContext(ctx, query, id, eventType, payloadJSON, constants.OutboxStatusPending)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}
	return id, nil
}

// GetPendingEvents retrieves pending events ordered by creation time
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, event_type, payload, retry_count
		FROM %s
		WHERE status = ?
		ORDER BY created_date ASC
		LIMIT ?
	`, constants.TableWorkflowOutbox)

	rows, err := r.db.QueryContext(ctx, query, constants.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.RetryCount); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ClaimEvent attempts to lock a specific pending event for processing.
// Returns empty string when another worker already holds or processed it.
func (r *OutboxRepository) ClaimEvent(ctx context.Context, exec Executor, id string) (string, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE id = ? AND status = ?
		FOR UPDATE SKIP LOCKED
	`, constants.TableWorkflowOutbox)

	var claimedID string
	err := exec.QueryRowContext(ctx, query, id, constants.OutboxStatusPending).Scan(&claimedID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return claimedID, nil
}

// UpdateStatus marks an event processed or failed
func (r *OutboxRepository) UpdateStatus(ctx context.Context, exec Executor, id string, status string, errMessage string) error {
	switch status {
	case constants.OutboxStatusProcessed:
		query := fmt.Sprintf(`
			UPDATE %s
			SET status = ?, processed_date = NOW(), last_modified_date = NOW()
			WHERE id = ?
		`, constants.TableWorkflowOutbox)
		_, err := exec.ExecContext(ctx, query, status, id)
		return err
	case constants.OutboxStatusFailed:
		query := fmt.Sprintf(`
			UPDATE %s
			SET status = ?, error_message = ?, last_modified_date = NOW()
			WHERE id = ?
		`, constants.TableWorkflowOutbox)
		_, err := exec.ExecContext(ctx, query, status, errMessage, id)
		return err
	default:
		return fmt.Errorf("unsupported status update: %s", status)
	}
}

// IncrementRetry increments the retry count and records the last error
func (r *OutboxRepository) IncrementRetry(ctx context.Context, exec Executor, id string, newCount int, errMessage string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET retry_count = ?, error_message = ?, last_modified_date = NOW()
		WHERE id = ?
	`, constants.TableWorkflowOutbox)

	_, err := exec.ExecContext(ctx, query, newCount, errMessage, id)
	return err
}

// CleanupProcessed deletes old processed events to prevent table bloat
func (r *OutboxRepository) CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE status = ? AND processed_date < ?
	`, constants.TableWorkflowOutbox)

	result, err := r.db.ExecContext(ctx, query, constants.OutboxStatusProcessed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
