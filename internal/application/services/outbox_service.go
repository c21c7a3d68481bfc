package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/docuflow/backend/internal/domain/events"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/internal/infrastructure/persistence"
	"github.com/docuflow/backend/pkg/constants"
)

// OutboxService is the event emitter. State transitions enqueue one row per
// event; a background worker delivers them to the notification collaborator
// via the EventBus, at least once. Enqueue failures are logged and never roll
// back the state transition that produced the event — the instance record is
// the source of truth.
type OutboxService struct {
	db       *sql.DB
	repo     *persistence.OutboxRepository
	eventBus *EventBus

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.EventSink = (*OutboxService)(nil)

// NewOutboxService creates a new OutboxService
func NewOutboxService(db *sql.DB, eventBus *EventBus) *OutboxService {
	return &OutboxService{
		db:       db,
		repo:     persistence.NewOutboxRepository(db),
		eventBus: eventBus,
		stopCh:   make(chan struct{}),
	}
}

// Emit enqueues a workflow event for asynchronous delivery
func (os *OutboxService) Emit(ctx context.Context, eventType events.EventType, payload events.WorkflowEventPayload) error {
	id, err := os.repo.Enqueue(ctx, os.db, string(eventType), payload)
	if err != nil {
		return err
	}
	log.Printf("✅ [Outbox] Enqueued event %s (ID: %s)", eventType, id)
	return nil
}

// StartWorker starts the background worker that processes pending outbox
// events, polling with the specified interval.
func (os *OutboxService) StartWorker(interval time.Duration) {
	os.wg.Add(1)
	go func() {
		defer os.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("📤 Outbox worker started with %v interval", interval)

		for {
			select {
			case <-os.stopCh:
				log.Printf("📤 Outbox worker stopping...")
				return
			case <-ticker.C:
				if err := os.ProcessOutbox(context.Background()); err != nil {
					log.Printf("⚠️ Outbox worker error: %v", err)
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (os *OutboxService) StopWorker() {
	os.stopOnce.Do(func() {
		close(os.stopCh)
	})
	os.wg.Wait()
	log.Printf("📤 Outbox worker stopped")
}

// ProcessOutbox processes all pending events in the outbox table.
// Each event is claimed, published and marked in its own transaction.
func (os *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := os.repo.GetPendingEvents(ctx, constants.OutboxBatchSize)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		log.Printf("🔄 [Outbox] Processing %d pending events", len(pending))
	}

	for _, e := range pending {
		if err := os.processEventAtomic(ctx, e.ID, e.EventType, e.Payload, e.RetryCount); err != nil {
			log.Printf("⚠️ Failed to process outbox event %s: %v", e.ID, err)
		}
	}
	return nil
}

// processEventAtomic claims an event, publishes it, and updates status atomically
func (os *OutboxService) processEventAtomic(ctx context.Context, id, eventType, payloadJSON string, retryCount int) error {
	tx, err := os.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	claimedID, err := os.repo.ClaimEvent(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to claim event: %w", err)
	}
	if claimedID == "" {
		return nil // Already processed/locked by another worker
	}

	var payload events.WorkflowEventPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		log.Printf("❌ [Outbox] Event %s failed payload unmarshal: %v", id, err)
		if markErr := os.repo.UpdateStatus(ctx, tx, id, constants.OutboxStatusFailed, fmt.Sprintf("invalid payload: %v", err)); markErr != nil {
			return fmt.Errorf("failed to mark event as failed: %w", markErr)
		}
		return tx.Commit()
	}

	if err := os.eventBus.Publish(ctx, events.EventType(eventType), payload); err != nil {
		newRetryCount := retryCount + 1
		if newRetryCount >= constants.OutboxMaxRetries {
			if markErr := os.repo.UpdateStatus(ctx, tx, id, constants.OutboxStatusFailed, fmt.Sprintf("max retries exceeded: %v", err)); markErr != nil {
				return fmt.Errorf("failed to mark event as failed: %w", markErr)
			}
			return tx.Commit()
		}

		if updateErr := os.repo.IncrementRetry(ctx, tx, id, newRetryCount, err.Error()); updateErr != nil {
			return fmt.Errorf("failed to update retry count: %w", updateErr)
		}
		log.Printf("⚠️ [Outbox] Event %s failed (Attempt %d/%d). Error: %v", id, newRetryCount, constants.OutboxMaxRetries, err)
		return tx.Commit()
	}

	if err := os.repo.UpdateStatus(ctx, tx, id, constants.OutboxStatusProcessed, ""); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	return tx.Commit()
}

// CleanupProcessed removes old processed events from the outbox
func (os *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	return os.repo.CleanupProcessed(ctx, cutoff)
}
