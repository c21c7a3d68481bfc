package services

import (
	"context"

	"github.com/docuflow/backend/internal/infrastructure/persistence"
	"github.com/docuflow/backend/pkg/auth"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

// AuthService issues session tokens against the identity store. The engine
// only validates bearer tokens; full session/user management belongs to the
// identity collaborator.
type AuthService struct {
	identity *persistence.IdentityRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(identity *persistence.IdentityRepository) *AuthService {
	return &AuthService{identity: identity}
}

// Login verifies credentials and returns a signed JWT plus the session it
// encodes
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *auth.UserSession, error) {
	user, err := s.identity.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return "", nil, appErrors.NewUnauthorizedError("invalid email or password")
	}

	session := auth.UserSession{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		RoleID:  user.RoleID,
		OrgID:   user.OrgID,
		IsAdmin: user.IsAdmin,
	}

	token, err := auth.GenerateToken(session)
	if err != nil {
		return "", nil, err
	}
	return token, &session, nil
}

// ValidateToken parses and validates a bearer token
func (s *AuthService) ValidateToken(tokenString string) (*auth.Claims, error) {
	return auth.ValidateToken(tokenString)
}
