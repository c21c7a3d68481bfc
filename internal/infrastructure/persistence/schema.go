package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/docuflow/backend/pkg/constants"
)

// InitializeSchema creates the engine's tables when they don't exist yet.
// Template steps and instance step lists are embedded JSON columns: the
// instance carries its own copy of the steps so template edits never reach a
// running instance.
func InitializeSchema(db *sql.DB) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			status VARCHAR(50) NOT NULL,
			steps JSON NOT NULL,
			created_date DATETIME NOT NULL,
			last_modified_date DATETIME NOT NULL
		)`, constants.TableWorkflowTemplate),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			template_id VARCHAR(36) NOT NULL,
			document_id VARCHAR(36) NOT NULL,
			initiator_id VARCHAR(36) NOT NULL,
			status VARCHAR(50) NOT NULL,
			current_step_index INT NOT NULL DEFAULT 0,
			steps JSON NOT NULL,
			step_states JSON NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NULL,
			version INT NOT NULL DEFAULT 1,
			INDEX idx_instance_status (status),
			INDEX idx_instance_document (document_id)
		)`, constants.TableWorkflowInstance),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			event_type VARCHAR(100) NOT NULL,
			payload JSON NOT NULL,
			status VARCHAR(50) NOT NULL,
			retry_count INT NOT NULL DEFAULT 0,
			error_message TEXT,
			created_date DATETIME NOT NULL,
			processed_date DATETIME NULL,
			last_modified_date DATETIME NOT NULL,
			INDEX idx_outbox_status (status, created_date)
		)`, constants.TableWorkflowOutbox),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password VARCHAR(255) NOT NULL,
			role_id VARCHAR(36) NULL,
			org_id VARCHAR(36) NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_date DATETIME NOT NULL,
			INDEX idx_identity_role (role_id),
			INDEX idx_identity_org (org_id)
		)`, constants.TableIdentityUser),
	}

	ctx := context.Background()
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("✅ Workflow schema initialized")
	return nil
}
