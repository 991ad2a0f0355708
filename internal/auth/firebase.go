package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// roleClaim is the custom claim holding the account role.
const roleClaim = "role"

// FirebaseProvider talks to Firebase Authentication. The Admin SDK covers
// account management and ID-token checks; password sign-in goes through the
// Identity Toolkit API since the Admin SDK cannot verify passwords.
type FirebaseProvider struct {
	client  *fbauth.Client
	toolkit *identitytoolkit.Service
}

var _ Provider = (*FirebaseProvider)(nil)

// NewFirebaseProvider creates a provider. emulatorHost, when set, points the
// password sign-in calls at the Auth emulator; the Admin SDK picks the
// emulator up from FIREBASE_AUTH_EMULATOR_HOST on its own.
func NewFirebaseProvider(ctx context.Context, client *fbauth.Client, apiKey, emulatorHost string) (*FirebaseProvider, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if emulatorHost != "" {
		opts = append(opts, option.WithEndpoint("http://"+emulatorHost+"/www.googleapis.com/identitytoolkit/v3/relyingparty/"))
	}
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("identity toolkit: %w", err)
	}
	return &FirebaseProvider{client: client, toolkit: svc}, nil
}

func (p *FirebaseProvider) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	params := (&fbauth.UserToCreate{}).Email(email).Password(password)
	u, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &models.Identity{ID: u.UID, Email: u.Email}, nil
}

func (p *FirebaseProvider) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}
	resp, err := p.toolkit.Relyingparty.VerifyPassword(req).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitError(err)
	}

	id := &models.Identity{ID: resp.LocalId, Email: resp.Email}
	u, err := p.client.GetUser(ctx, resp.LocalId)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	id.Role = roleFromClaims(u.CustomClaims)
	return id, nil
}

func (p *FirebaseProvider) Verify(ctx context.Context, idToken string) (*models.Identity, error) {
	tok, err := p.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	email, _ := tok.Claims["email"].(string)
	return &models.Identity{
		ID:    tok.UID,
		Email: email,
		Role:  roleFromClaims(tok.Claims),
	}, nil
}

func (p *FirebaseProvider) SetRole(ctx context.Context, id string, role models.Role) error {
	err := p.client.SetCustomUserClaims(ctx, id, map[string]interface{}{roleClaim: string(role)})
	if fbauth.IsUserNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (p *FirebaseProvider) SignOut(ctx context.Context, id string) error {
	return p.client.RevokeRefreshTokens(ctx, id)
}

func roleFromClaims(claims map[string]interface{}) models.Role {
	s, _ := claims[roleClaim].(string)
	if r := models.Role(s); r.Valid() {
		return r
	}
	return models.RoleNone
}

// mapToolkitError translates Identity Toolkit error codes, which arrive as
// the message of a googleapi.Error.
func mapToolkitError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("verify password: %w", err)
	}
	msg := gerr.Message
	switch {
	case strings.HasPrefix(msg, "EMAIL_NOT_FOUND"):
		return ErrNotFound
	case strings.HasPrefix(msg, "INVALID_PASSWORD"):
		return ErrWrongPassword
	case strings.HasPrefix(msg, "INVALID_LOGIN_CREDENTIALS"):
		return ErrInvalidCredentials
	case strings.HasPrefix(msg, "INVALID_EMAIL"):
		return ErrInvalidEmail
	case strings.HasPrefix(msg, "WEAK_PASSWORD"):
		return ErrWeakPassword
	case strings.HasPrefix(msg, "EMAIL_EXISTS"):
		return ErrDuplicateEmail
	}
	return fmt.Errorf("verify password: %w", err)
}
