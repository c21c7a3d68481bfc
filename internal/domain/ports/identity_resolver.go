package ports

import (
	"context"

	"github.com/docuflow/backend/internal/domain/models"
)

// IdentityResolver expands approver references to concrete user identities.
// Expansion happens at vote time, never cached in step state, so membership
// changes stay authoritative with the identity service.
type IdentityResolver interface {
	// Expand returns the current member user ids for the given reference.
	// A User reference expands to itself.
	Expand(ctx context.Context, ref models.ApproverRef) ([]string, error)
}
