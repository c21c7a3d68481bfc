package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/constants"
)

// IdentityUser is the engine's view of an identity-service user
type IdentityUser struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	RoleID       *string
	OrgID        *string
	IsAdmin      bool
}

// IdentityRepository is the SQL-backed adapter for the identity collaborator.
// It implements ports.IdentityResolver: role and organization references
// expand to their current member set at query time.
type IdentityRepository struct {
	db *sql.DB
}

// NewIdentityRepository creates a new IdentityRepository
func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Expand resolves an approver reference to user ids
func (r *IdentityRepository) Expand(ctx context.Context, ref models.ApproverRef) ([]string, error) {
	switch ref.Kind {
	case models.ApproverKindUser:
		return []string{ref.ID}, nil
	case models.ApproverKindRole:
		return r.memberIDs(ctx, "role_id", ref.ID)
	case models.ApproverKindOrganization:
		return r.memberIDs(ctx, "org_id", ref.ID)
	default:
		return nil, fmt.Errorf("unknown approver kind: %s", ref.Kind)
	}
}

func (r *IdentityRepository) memberIDs(ctx context.Context, column, groupID string) ([]string, error) {
	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", constants.TableIdentityUser, column)

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", column, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindByEmail retrieves a user by email; returns nil when not found
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*IdentityUser, error) {
	query := fmt.Sprintf(`
		SELECT id, name, email, password, role_id, org_id, is_admin
		FROM %s WHERE email = ? LIMIT 1
	`, constants.TableIdentityUser)

	var u IdentityUser
	var roleID, orgID sql.NullString

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &roleID, &orgID, &u.IsAdmin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if roleID.Valid {
		u.RoleID = &roleID.String
	}
	if orgID.Valid {
		u.OrgID = &orgID.String
	}
	return &u, nil
}

// EnsureUser inserts a user if the email is not present yet. Used by the boot
// seed so a fresh database has identities to log in with.
func (r *IdentityRepository) EnsureUser(ctx context.Context, u IdentityUser) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, email, password, role_id, org_id, is_admin, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE name = name
	`, constants.TableIdentityUser)

	_, err := r.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.RoleID, u.OrgID, u.IsAdmin)
	return err
}
