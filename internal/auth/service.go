package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/internal/metrics"
	"github.com/jredh-dev/ewaste/internal/session"
	"github.com/jredh-dev/ewaste/internal/token"
	"github.com/jredh-dev/ewaste/pkg/identity"
	"github.com/jredh-dev/ewaste/pkg/models"
)

// UserRegistration is the sign-up form for individual users.
type UserRegistration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
}

// CompanyRegistration is the sign-up form for recycling companies.
type CompanyRegistration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	Certificate string `json:"certificate,omitempty"`
}

// Session is what a successful sign-in hands back.
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Principal models.Principal `json:"principal"`
}

// Service handles registration and sign-in.
type Service struct {
	provider Provider
	profiles database.Profiles
	resolver *session.Resolver
	tokens   *token.Service
	ttl      time.Duration
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new auth service.
func New(provider Provider, profiles database.Profiles, tokens *token.Service, ttl time.Duration, rec metrics.Recorder, logger *zap.Logger) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		profiles: profiles,
		resolver: session.NewResolver(profiles, logger),
		tokens:   tokens,
		ttl:      ttl,
		metrics:  rec,
		logger:   logger,
		now:      time.Now,
	}
}

func validateCredentials(email, password string) (string, error) {
	email = identity.NormalizeEmail(email)
	if !identity.ValidEmail(email) {
		return "", ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	return email, nil
}

// RegisterUser creates an identity with a user profile and signs it in.
func (s *Service) RegisterUser(ctx context.Context, r UserRegistration) (*Session, error) {
	email, err := validateCredentials(r.Email, r.Password)
	if err != nil {
		return nil, s.fail(err)
	}
	username := strings.TrimSpace(r.Username)
	if username == "" {
		return nil, s.fail(ErrMissingName)
	}

	id, err := s.provider.CreateIdentity(ctx, email, r.Password)
	if err != nil {
		return nil, s.fail(err)
	}

	profile := &models.UserProfile{
		ID:        id.ID,
		Username:  username,
		Mobile:    strings.TrimSpace(r.Mobile),
		Email:     email,
		UserType:  models.RoleUser,
		CreatedAt: s.now(),
	}
	if err := s.profiles.PutUserProfile(ctx, profile); err != nil {
		s.logger.Error("write user profile", zap.String("uid", id.ID), zap.Error(err))
		return nil, fmt.Errorf("write user profile: %w", err)
	}
	return s.finishRegistration(ctx, id, models.RoleUser)
}

// RegisterCompany creates an identity with a company profile and signs it in.
func (s *Service) RegisterCompany(ctx context.Context, r CompanyRegistration) (*Session, error) {
	email, err := validateCredentials(r.Email, r.Password)
	if err != nil {
		return nil, s.fail(err)
	}
	name := strings.TrimSpace(r.CompanyName)
	if name == "" {
		return nil, s.fail(ErrMissingName)
	}

	id, err := s.provider.CreateIdentity(ctx, email, r.Password)
	if err != nil {
		return nil, s.fail(err)
	}

	profile := &models.CompanyProfile{
		ID:          id.ID,
		CompanyName: name,
		Phone:       strings.TrimSpace(r.Phone),
		Email:       email,
		Certificate: strings.TrimSpace(r.Certificate),
		UserType:    models.RoleCompany,
		CreatedAt:   s.now(),
	}
	if err := s.profiles.PutCompanyProfile(ctx, profile); err != nil {
		s.logger.Error("write company profile", zap.String("uid", id.ID), zap.Error(err))
		return nil, fmt.Errorf("write company profile: %w", err)
	}
	return s.finishRegistration(ctx, id, models.RoleCompany)
}

// finishRegistration stamps the role claim and issues a session. A failed
// claim write is not fatal: the resolver falls back to checking profiles.
func (s *Service) finishRegistration(ctx context.Context, id *models.Identity, role models.Role) (*Session, error) {
	if err := s.provider.SetRole(ctx, id.ID, role); err != nil {
		s.logger.Warn("set role claim", zap.String("uid", id.ID), zap.Error(err))
	}
	s.logger.Info("registered", zap.String("uid", id.ID), zap.String("role", string(role)))
	return s.issue(models.Principal{ID: id.ID, Email: id.Email, Role: role})
}

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = identity.NormalizeEmail(email)
	if !identity.ValidEmail(email) {
		return nil, s.fail(ErrInvalidEmail)
	}
	id, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, s.fail(err)
	}
	return s.signIn(ctx, id)
}

// Exchange trades an ID token from the identity service for a session.
func (s *Service) Exchange(ctx context.Context, idToken string) (*Session, error) {
	if idToken == "" {
		return nil, s.fail(ErrUnauthorized)
	}
	id, err := s.provider.Verify(ctx, idToken)
	if err != nil {
		return nil, s.fail(err)
	}
	return s.signIn(ctx, id)
}

func (s *Service) signIn(ctx context.Context, id *models.Identity) (*Session, error) {
	p, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if p.Role == models.RoleNone {
		return nil, s.fail(ErrNoRole)
	}
	s.metrics.RecordLogin(string(p.Role))
	return s.issue(p)
}

func (s *Service) issue(p models.Principal) (*Session, error) {
	tok, exp, err := s.tokens.GenerateToken(p, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: tok, ExpiresAt: exp, Principal: p}, nil
}

// Logout revokes the presented token and the provider-side sessions.
func (s *Service) Logout(ctx context.Context, claims *token.Claims) error {
	s.tokens.Revoke(claims)
	if err := s.provider.SignOut(ctx, claims.UserID); err != nil {
		s.logger.Warn("provider sign-out", zap.String("uid", claims.UserID), zap.Error(err))
	}
	return nil
}

// fail records identity-service errors; anything unclassified passes through.
func (s *Service) fail(err error) error {
	kind := Kind(err)
	s.metrics.RecordIdentityError(kind)
	if kind == "other" {
		s.logger.Error("identity service", zap.Error(err))
	}
	return err
}

// IsIdentityError reports whether err belongs to the identity taxonomy.
func IsIdentityError(err error) bool {
	return Kind(err) != "other"
}
