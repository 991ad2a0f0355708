package auth

import (
	"context"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// MinPasswordLength is enforced before an identity is created.
const MinPasswordLength = 6

// Provider is the external identity service.
type Provider interface {
	// CreateIdentity registers email/password and returns the new identity.
	CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error)
	// Authenticate checks a password sign-in.
	Authenticate(ctx context.Context, email, password string) (*models.Identity, error)
	// Verify checks an ID token minted by the identity service itself.
	Verify(ctx context.Context, idToken string) (*models.Identity, error)
	// SetRole records an authoritative role claim on the identity.
	SetRole(ctx context.Context, id string, role models.Role) error
	// SignOut invalidates the identity's provider-side sessions.
	SignOut(ctx context.Context, id string) error
}
